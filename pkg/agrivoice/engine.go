// Package agrivoice assembles the voice-call pipeline: telephony
// transport, per-call sessions, conversation orchestration and the
// call registry.
package agrivoice

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/agrisarthi/agrivoice/pkg/aggregator"
	"github.com/agrisarthi/agrivoice/pkg/configutil"
	"github.com/agrisarthi/agrivoice/pkg/logging"
	"github.com/agrisarthi/agrivoice/pkg/orchestrator"
	"github.com/agrisarthi/agrivoice/pkg/registry"
	"github.com/agrisarthi/agrivoice/pkg/runner"
	"github.com/agrisarthi/agrivoice/pkg/session"
	"github.com/agrisarthi/agrivoice/pkg/transports"
	"github.com/agrisarthi/agrivoice/pkg/transports/twilio"
)

// mediaTransport is what the engine needs from a transport: the
// vendor contract plus outbound dialing and an HTTP mux for the
// reporting surface.
type mediaTransport interface {
	transports.Transport
	transports.OutboundDialer
	transports.ReadyReporter
	Handle(path string, h http.Handler)
}

type Engine struct {
	cfg       Config
	transport mediaTransport
	manager   *session.Manager
	registry  *registry.Registry
	logger    *slog.Logger
}

func NewEngine(cfg Config) (*Engine, error) {
	return NewEngineWithRegistry(cfg, DefaultRegistry())
}

func NewEngineWithRegistry(cfg Config, providers *ProviderRegistry) (*Engine, error) {
	logging.SetDefault(cfg.LogLevel, cfg.LogFormat)
	logger := logging.NewComponentLogger(slog.Default(), "engine")

	sttProvider, err := providers.BuildSTT(cfg.Vendors.STT)
	if err != nil {
		return nil, fmt.Errorf("build stt provider: %w", err)
	}
	ttsProvider, err := providers.BuildTTS(cfg.Vendors.TTS)
	if err != nil {
		return nil, fmt.Errorf("build tts provider: %w", err)
	}
	answerProvider, err := providers.BuildAnswer(cfg.Vendors.Answer)
	if err != nil {
		return nil, fmt.Errorf("build answer provider: %w", err)
	}

	transport, err := buildTransport(cfg.Transports)
	if err != nil {
		return nil, err
	}

	reg := registry.New()
	orch := orchestrator.New(orchestrator.Config{
		STTTimeout:      time.Duration(cfg.Orchestrator.STTTimeoutMS) * time.Millisecond,
		AnswerTimeout:   time.Duration(cfg.Orchestrator.AnswerTimeoutMS) * time.Millisecond,
		TTSTimeout:      time.Duration(cfg.Orchestrator.TTSTimeoutMS) * time.Millisecond,
		STTSampleRate:   cfg.Audio.STTSampleRate,
		FrameInterval:   time.Duration(cfg.Orchestrator.FrameIntervalMS) * time.Millisecond,
		DefaultLanguage: cfg.Greeting.Language,
		Fallbacks:       cfg.Orchestrator.Fallbacks,
	}, sttProvider, answerProvider, ttsProvider, transport, reg)

	manager := session.NewManager(session.Config{
		GreetingEnabled:  cfg.Greeting.Enabled,
		GreetingText:     cfg.Greeting.Text,
		GreetingLanguage: cfg.Greeting.Language,
		SilenceThreshold: cfg.VAD.SilenceThreshold,
		Aggregator: aggregator.Config{
			SilenceDuration:   time.Duration(cfg.Aggregator.SilenceMS) * time.Millisecond,
			MinSpeechDuration: time.Duration(cfg.Aggregator.MinSpeechMS) * time.Millisecond,
			MaxSpeechDuration: time.Duration(cfg.Aggregator.MaxSpeechMS) * time.Millisecond,
		},
	}, orch, reg)
	transport.SetHandler(manager)

	reporting := newReportingHandler(reg, transport)
	transport.Handle("/calls", reporting)
	transport.Handle("/calls/", reporting)

	logger.Info("engine_configured",
		"transport", transport.Name(),
		"stt", sttProvider.Name(),
		"tts", ttsProvider.Name(),
		"answer", answerProvider.Name(),
	)
	return &Engine{
		cfg:       cfg,
		transport: transport,
		manager:   manager,
		registry:  reg,
		logger:    logger,
	}, nil
}

// Registry exposes call history for embedding callers.
func (e *Engine) Registry() *registry.Registry { return e.registry }

// Run serves until ctx is cancelled, then drains in-flight turns.
func (e *Engine) Run(ctx context.Context) error {
	lr := runner.NewLifecycleRunner(e.manager, runner.Hooks{
		OnStart: func() {
			if err := e.transport.Start(ctx); err != nil {
				e.logger.Error("transport_start_failed", "error", err.Error())
				return
			}
			fields := []any{"transport", e.transport.Name()}
			for k, v := range e.transport.ReadyFields() {
				fields = append(fields, k, v)
			}
			e.logger.Info("engine_ready", fields...)
		},
		OnStop: func() {
			_ = e.transport.Stop()
			e.logger.Info("engine_stopped", "active_sessions", e.manager.ActiveSessions())
		},
	}, time.Duration(e.cfg.DrainTimeoutMS)*time.Millisecond)
	return lr.Run(ctx)
}

func buildTransport(cfg TransportsConfig) (mediaTransport, error) {
	switch normalizeName(cfg.Provider) {
	case "twilio":
		var tcfg twilio.Config
		if err := configutil.DecodeSettings(cfg.Settings, &tcfg); err != nil {
			return nil, fmt.Errorf("decode transport settings: %w", err)
		}
		return twilio.New(tcfg), nil
	default:
		return nil, fmt.Errorf("transport provider not registered: %s", cfg.Provider)
	}
}
