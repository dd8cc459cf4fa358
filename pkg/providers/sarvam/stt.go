package sarvam

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/agrisarthi/agrivoice/pkg/adapters/stt"
	"github.com/agrisarthi/agrivoice/pkg/errorsx"
	"github.com/agrisarthi/agrivoice/pkg/logging"
)

// STT transcribes-and-translates one utterance to English text while
// reporting the detected source language.
type STT struct {
	client *client
	logger *slog.Logger
}

func NewSTT(cfg Config) *STT {
	return NewSTTWithHTTPClient(cfg, nil)
}

func NewSTTWithHTTPClient(cfg Config, hc *http.Client) *STT {
	return &STT{
		client: newClient(cfg, hc),
		logger: logging.NewComponentLogger(slog.Default(), "sarvam_stt"),
	}
}

func (s *STT) Name() string { return "sarvam_stt" }

func (s *STT) Transcribe(ctx context.Context, wav []byte) (stt.Result, error) {
	var out struct {
		Transcript   string `json:"transcript"`
		LanguageCode string `json:"language_code"`
	}
	fields := map[string]string{"model": s.client.cfg.STTModel}
	err := s.client.postMultipart(ctx, "/speech-to-text-translate", fields, "file", "audio.wav", wav, s.client.cfg.STTTimeout, &out)
	if err != nil {
		if ctx.Err() != nil {
			return stt.Result{}, errorsx.Wrap(err, errorsx.ReasonSTTTimeout)
		}
		return stt.Result{}, errorsx.Wrap(err, errorsx.ReasonSTTRequest)
	}
	lang := out.LanguageCode
	if lang == "" {
		lang = "en-IN"
	}
	text := strings.TrimSpace(out.Transcript)
	s.logger.Debug("stt_transcribed", "chars", len(text), "language", lang)
	return stt.Result{Text: text, Language: lang}, nil
}
