package sarvam

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/agrisarthi/agrivoice/pkg/errorsx"
	"github.com/agrisarthi/agrivoice/pkg/logging"
)

const maxTTSChars = 500

// TTS synthesizes English reply text in the caller's language. When
// the target language is not English the text is translated first.
type TTS struct {
	client *client
	logger *slog.Logger
}

func NewTTS(cfg Config) *TTS {
	return NewTTSWithHTTPClient(cfg, nil)
}

func NewTTSWithHTTPClient(cfg Config, hc *http.Client) *TTS {
	return &TTS{
		client: newClient(cfg, hc),
		logger: logging.NewComponentLogger(slog.Default(), "sarvam_tts"),
	}
}

func (t *TTS) Name() string { return "sarvam_tts" }

func (t *TTS) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	if language == "" {
		language = "en-IN"
	}
	speak := clampText(text)
	if language != "en-IN" {
		translated, err := t.translate(ctx, speak, language)
		if err != nil {
			// Translation failure falls back to the English text.
			t.logger.Warn("tts_translate_failed", "error", err.Error())
		} else if translated != "" {
			speak = clampText(translated)
		}
	}

	payload := map[string]any{
		"inputs":               []string{speak},
		"target_language_code": language,
		"speaker":              t.client.cfg.Speaker,
		"model":                t.client.cfg.TTSModel,
	}
	var out struct {
		Audios []string `json:"audios"`
	}
	if err := t.client.postJSON(ctx, "/text-to-speech", payload, t.client.cfg.TTSTimeout, &out); err != nil {
		if ctx.Err() != nil {
			return nil, errorsx.Wrap(err, errorsx.ReasonTTSTimeout)
		}
		return nil, errorsx.Wrap(err, errorsx.ReasonTTSRequest)
	}
	if len(out.Audios) == 0 {
		return nil, errorsx.Wrap(errors.New("tts returned no audio"), errorsx.ReasonTTSRequest)
	}
	wav, err := base64.StdEncoding.DecodeString(out.Audios[0])
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonTTSRequest)
	}
	t.logger.Debug("tts_synthesized", "language", language, "wav_bytes", len(wav))
	return wav, nil
}

func (t *TTS) translate(ctx context.Context, text, target string) (string, error) {
	payload := map[string]any{
		"input":                text,
		"source_language_code": "en-IN",
		"target_language_code": target,
		"speaker_gender":       "Male",
		"mode":                 "formal",
		"model":                t.client.cfg.Translate,
		"enable_preprocessing": true,
	}
	var out struct {
		TranslatedText string `json:"translated_text"`
	}
	if err := t.client.postJSON(ctx, "/translate", payload, t.client.cfg.TTSTimeout, &out); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.TranslatedText), nil
}

func clampText(s string) string {
	runes := []rune(s)
	if len(runes) > maxTTSChars {
		return string(runes[:maxTTSChars])
	}
	return s
}
