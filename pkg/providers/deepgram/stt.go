package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	restinterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/agrisarthi/agrivoice/pkg/adapters/stt"
	"github.com/agrisarthi/agrivoice/pkg/errorsx"
	"github.com/agrisarthi/agrivoice/pkg/logging"
)

type Config struct {
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Language string        `mapstructure:"language"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = "nova-2"
	}
	if c.Language == "" {
		c.Language = "en"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

type transcriber interface {
	FromStream(ctx context.Context, src io.Reader, options *interfaces.PreRecordedTranscriptionOptions) (*restinterfaces.PreRecordedResponse, error)
}

// BatchSTT transcribes complete WAV utterances through the Deepgram
// prerecorded REST API.
type BatchSTT struct {
	cfg    Config
	dg     transcriber
	logger *slog.Logger
}

func New(cfg Config) *BatchSTT {
	cfg = cfg.withDefaults()
	c := client.NewREST(cfg.APIKey, &interfaces.ClientOptions{})
	return &BatchSTT{
		cfg:    cfg,
		dg:     api.New(c),
		logger: logging.NewComponentLogger(slog.Default(), "deepgram_stt"),
	}
}

func (b *BatchSTT) Name() string { return "deepgram_stt" }

func (b *BatchSTT) Transcribe(ctx context.Context, wav []byte) (stt.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:       b.cfg.Model,
		Language:    b.cfg.Language,
		SmartFormat: true,
	}
	res, err := b.dg.FromStream(ctx, bytes.NewReader(wav), options)
	if err != nil {
		if ctx.Err() != nil {
			return stt.Result{}, errorsx.Wrap(err, errorsx.ReasonSTTTimeout)
		}
		return stt.Result{}, errorsx.Wrap(err, errorsx.ReasonSTTRequest)
	}
	text, lang, err := extractTranscript(res)
	if err != nil {
		return stt.Result{}, errorsx.Wrap(err, errorsx.ReasonSTTRequest)
	}
	if lang == "" {
		lang = b.cfg.Language
	}
	b.logger.Debug("stt_transcribed", "chars", len(text), "language", lang)
	return stt.Result{Text: text, Language: lang}, nil
}

// extractTranscript goes through the wire representation so it only
// depends on the documented response fields.
func extractTranscript(res *restinterfaces.PreRecordedResponse) (string, string, error) {
	if res == nil {
		return "", "", errors.New("empty transcription response")
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return "", "", err
	}
	var parsed struct {
		Results struct {
			Channels []struct {
				DetectedLanguage string `json:"detected_language"`
				Alternatives     []struct {
					Transcript string `json:"transcript"`
				} `json:"alternatives"`
			} `json:"channels"`
		} `json:"results"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", "", err
	}
	if len(parsed.Results.Channels) == 0 || len(parsed.Results.Channels[0].Alternatives) == 0 {
		return "", "", errors.New("no transcription channels in response")
	}
	channel := parsed.Results.Channels[0]
	return strings.TrimSpace(channel.Alternatives[0].Transcript), channel.DetectedLanguage, nil
}
