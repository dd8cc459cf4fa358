package agrivoice

import (
	"fmt"
	"strings"

	"github.com/agrisarthi/agrivoice/pkg/adapters/answer"
	"github.com/agrisarthi/agrivoice/pkg/adapters/stt"
	"github.com/agrisarthi/agrivoice/pkg/adapters/tts"
	"github.com/agrisarthi/agrivoice/pkg/configutil"
	"github.com/agrisarthi/agrivoice/pkg/providers/databricks"
	"github.com/agrisarthi/agrivoice/pkg/providers/deepgram"
	"github.com/agrisarthi/agrivoice/pkg/providers/mock"
	"github.com/agrisarthi/agrivoice/pkg/providers/sarvam"
)

type STTFactory func(settings map[string]any) (stt.SpeechToText, error)
type TTSFactory func(settings map[string]any) (tts.TextToSpeech, error)
type AnswerFactory func(settings map[string]any) (answer.Answerer, error)

type ProviderRegistry struct {
	stt    map[string]STTFactory
	tts    map[string]TTSFactory
	answer map[string]AnswerFactory
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		stt:    make(map[string]STTFactory),
		tts:    make(map[string]TTSFactory),
		answer: make(map[string]AnswerFactory),
	}
}

func (r *ProviderRegistry) RegisterSTT(name string, factory STTFactory) {
	r.stt[normalizeName(name)] = factory
}

func (r *ProviderRegistry) RegisterTTS(name string, factory TTSFactory) {
	r.tts[normalizeName(name)] = factory
}

func (r *ProviderRegistry) RegisterAnswer(name string, factory AnswerFactory) {
	r.answer[normalizeName(name)] = factory
}

func (r *ProviderRegistry) BuildSTT(cfg VendorConfig) (stt.SpeechToText, error) {
	fn := r.stt[normalizeName(cfg.Provider)]
	if fn == nil {
		return nil, fmt.Errorf("stt provider not registered: %s", cfg.Provider)
	}
	return fn(cfg.Settings)
}

func (r *ProviderRegistry) BuildTTS(cfg VendorConfig) (tts.TextToSpeech, error) {
	fn := r.tts[normalizeName(cfg.Provider)]
	if fn == nil {
		return nil, fmt.Errorf("tts provider not registered: %s", cfg.Provider)
	}
	return fn(cfg.Settings)
}

func (r *ProviderRegistry) BuildAnswer(cfg VendorConfig) (answer.Answerer, error) {
	fn := r.answer[normalizeName(cfg.Provider)]
	if fn == nil {
		return nil, fmt.Errorf("answer provider not registered: %s", cfg.Provider)
	}
	return fn(cfg.Settings)
}

// DefaultRegistry wires every built-in provider.
func DefaultRegistry() *ProviderRegistry {
	r := NewProviderRegistry()

	r.RegisterSTT("sarvam", func(settings map[string]any) (stt.SpeechToText, error) {
		var cfg sarvam.Config
		if err := configutil.DecodeSettings(settings, &cfg); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(cfg.APIKey, "vendors.stt.settings.api_key"); err != nil {
			return nil, err
		}
		return sarvam.NewSTT(cfg), nil
	})
	r.RegisterSTT("deepgram", func(settings map[string]any) (stt.SpeechToText, error) {
		var cfg deepgram.Config
		if err := configutil.DecodeSettings(settings, &cfg); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(cfg.APIKey, "vendors.stt.settings.api_key"); err != nil {
			return nil, err
		}
		return deepgram.New(cfg), nil
	})
	r.RegisterSTT("mock", func(settings map[string]any) (stt.SpeechToText, error) {
		var cfg struct {
			Text     string `mapstructure:"text"`
			Language string `mapstructure:"language"`
		}
		if err := configutil.DecodeSettings(settings, &cfg); err != nil {
			return nil, err
		}
		return &mock.STT{Text: cfg.Text, Language: cfg.Language}, nil
	})

	r.RegisterTTS("sarvam", func(settings map[string]any) (tts.TextToSpeech, error) {
		var cfg sarvam.Config
		if err := configutil.DecodeSettings(settings, &cfg); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(cfg.APIKey, "vendors.tts.settings.api_key"); err != nil {
			return nil, err
		}
		return sarvam.NewTTS(cfg), nil
	})
	r.RegisterTTS("mock", func(settings map[string]any) (tts.TextToSpeech, error) {
		return &mock.TTS{}, nil
	})

	r.RegisterAnswer("databricks", func(settings map[string]any) (answer.Answerer, error) {
		var cfg databricks.Config
		if err := configutil.DecodeSettings(settings, &cfg); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(cfg.Host, "vendors.answer.settings.host"); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(cfg.Token, "vendors.answer.settings.token"); err != nil {
			return nil, err
		}
		return databricks.New(cfg), nil
	})
	r.RegisterAnswer("mock", func(settings map[string]any) (answer.Answerer, error) {
		var cfg struct {
			Reply string `mapstructure:"reply"`
		}
		if err := configutil.DecodeSettings(settings, &cfg); err != nil {
			return nil, err
		}
		return &mock.Answerer{Reply: cfg.Reply}, nil
	})

	return r
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
