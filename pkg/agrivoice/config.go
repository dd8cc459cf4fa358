package agrivoice

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`

	VAD          VADConfig          `mapstructure:"vad"`
	Aggregator   AggregatorConfig   `mapstructure:"aggregator"`
	Audio        AudioConfig        `mapstructure:"audio"`
	Greeting     GreetingConfig     `mapstructure:"greeting"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Transports   TransportsConfig   `mapstructure:"transports"`
	Vendors      VendorsConfig      `mapstructure:"vendors"`

	DrainTimeoutMS int `mapstructure:"drain_timeout_ms"`
}

type VADConfig struct {
	SilenceThreshold int `mapstructure:"silence_threshold"`
}

type AggregatorConfig struct {
	SilenceMS   int `mapstructure:"silence_ms"`
	MinSpeechMS int `mapstructure:"min_speech_ms"`
	MaxSpeechMS int `mapstructure:"max_speech_ms"`
}

type AudioConfig struct {
	STTSampleRate int `mapstructure:"stt_sample_rate"`
}

type GreetingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Text     string `mapstructure:"text"`
	Language string `mapstructure:"language"`
}

type OrchestratorConfig struct {
	STTTimeoutMS    int               `mapstructure:"stt_timeout_ms"`
	AnswerTimeoutMS int               `mapstructure:"answer_timeout_ms"`
	TTSTimeoutMS    int               `mapstructure:"tts_timeout_ms"`
	FrameIntervalMS int               `mapstructure:"frame_interval_ms"`
	Fallbacks       map[string]string `mapstructure:"fallbacks"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type VendorsConfig struct {
	STT    VendorConfig `mapstructure:"stt"`
	TTS    VendorConfig `mapstructure:"tts"`
	Answer VendorConfig `mapstructure:"answer"`
}

type TransportsConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("vad.silence_threshold", 1000)
	v.SetDefault("aggregator.silence_ms", 1200)
	v.SetDefault("aggregator.min_speech_ms", 800)
	v.SetDefault("aggregator.max_speech_ms", 15000)
	v.SetDefault("audio.stt_sample_rate", 16000)
	v.SetDefault("greeting.enabled", true)
	v.SetDefault("greeting.text", "नमस्ते! कृषि सारथी में आपका स्वागत है। आप अपना सवाल पूछ सकते हैं।")
	v.SetDefault("greeting.language", "hi-IN")
	v.SetDefault("orchestrator.stt_timeout_ms", 30000)
	v.SetDefault("orchestrator.answer_timeout_ms", 60000)
	v.SetDefault("orchestrator.tts_timeout_ms", 30000)
	v.SetDefault("orchestrator.frame_interval_ms", 20)
	v.SetDefault("transports.provider", "twilio")
	v.SetDefault("vendors.stt.provider", "sarvam")
	v.SetDefault("vendors.tts.provider", "sarvam")
	v.SetDefault("vendors.answer.provider", "databricks")
	v.SetDefault("drain_timeout_ms", 10000)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Transports.Provider) == "" {
		return fmt.Errorf("transports.provider is required")
	}
	if strings.TrimSpace(c.Vendors.STT.Provider) == "" {
		return fmt.Errorf("vendors.stt.provider is required")
	}
	if strings.TrimSpace(c.Vendors.TTS.Provider) == "" {
		return fmt.Errorf("vendors.tts.provider is required")
	}
	if strings.TrimSpace(c.Vendors.Answer.Provider) == "" {
		return fmt.Errorf("vendors.answer.provider is required")
	}
	if c.Aggregator.SilenceMS <= 0 || c.Aggregator.MinSpeechMS <= 0 || c.Aggregator.MaxSpeechMS <= 0 {
		return fmt.Errorf("aggregator durations must be positive")
	}
	if c.Aggregator.MinSpeechMS >= c.Aggregator.MaxSpeechMS {
		return fmt.Errorf("aggregator.min_speech_ms must be below max_speech_ms")
	}
	return nil
}

// expandEnvStrings resolves ${VAR} references so secrets stay out of
// config files.
func expandEnvStrings(cfg *Config) {
	cfg.Greeting.Text = os.ExpandEnv(cfg.Greeting.Text)
	cfg.Transports.Settings = expandSettings(cfg.Transports.Settings)
	cfg.Vendors.STT.Settings = expandSettings(cfg.Vendors.STT.Settings)
	cfg.Vendors.TTS.Settings = expandSettings(cfg.Vendors.TTS.Settings)
	cfg.Vendors.Answer.Settings = expandSettings(cfg.Vendors.Answer.Settings)
	for k, msg := range cfg.Orchestrator.Fallbacks {
		cfg.Orchestrator.Fallbacks[k] = os.ExpandEnv(msg)
	}
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k := range val {
			val[k] = expandAny(val[k])
		}
		return val
	default:
		return v
	}
}
