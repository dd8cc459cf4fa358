// Package session routes transport events to per-call sessions and
// owns the call lifecycle from start to finalization.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/agrisarthi/agrivoice/pkg/aggregator"
	"github.com/agrisarthi/agrivoice/pkg/logging"
	"github.com/agrisarthi/agrivoice/pkg/registry"
	"github.com/agrisarthi/agrivoice/pkg/transports"
	"github.com/agrisarthi/agrivoice/pkg/vad"
)

// TurnRunner executes one conversation turn and speaks standalone
// prompts such as the greeting.
type TurnRunner interface {
	RunTurn(ctx context.Context, callID, streamID string, utt aggregator.Utterance)
	Speak(ctx context.Context, streamID, text, language string) error
}

type Config struct {
	GreetingEnabled  bool
	GreetingText     string
	GreetingLanguage string

	SilenceThreshold int
	Aggregator       aggregator.Config
}

func (c Config) withDefaults() Config {
	if c.SilenceThreshold <= 0 {
		c.SilenceThreshold = vad.DefaultSilenceThreshold
	}
	if c.GreetingLanguage == "" {
		c.GreetingLanguage = "hi-IN"
	}
	return c
}

// Manager implements transports.SessionHandler. HandleEvent is called
// from each connection's read goroutine in arrival order and never
// blocks on turn work.
type Manager struct {
	cfg      Config
	runner   TurnRunner
	registry *registry.Registry
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session

	turns sync.WaitGroup
}

func NewManager(cfg Config, runner TurnRunner, reg *registry.Registry) *Manager {
	return &Manager{
		cfg:      cfg.withDefaults(),
		runner:   runner,
		registry: reg,
		logger:   logging.NewComponentLogger(slog.Default(), "session_manager"),
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) HandleEvent(evt transports.Event) {
	switch evt.Type {
	case transports.EventConnected:
		m.logger.Debug("media_connected")
	case transports.EventStart:
		m.startSession(evt)
	case transports.EventMedia:
		m.handleMedia(evt)
	case transports.EventStop, transports.EventDisconnect:
		m.endSession(evt)
	}
}

// ActiveSessions reports the number of live sessions.
func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Drain waits for in-flight turns to finish. Called by the lifecycle
// runner during shutdown.
func (m *Manager) Drain() error {
	m.turns.Wait()
	return nil
}

func (m *Manager) startSession(evt transports.Event) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		CallID:   evt.CallID,
		StreamID: evt.StreamID,
		TraceID:  evt.TraceID,
		agg:      aggregator.New(m.cfg.Aggregator, vad.New(m.cfg.SilenceThreshold)),
		logger:   m.logger.With("call_id", evt.CallID, "trace_id", evt.TraceID),
		ctx:      ctx,
		cancel:   cancel,
		state:    StateConnecting,
		started:  time.Now(),
	}

	m.mu.Lock()
	if _, exists := m.sessions[evt.StreamID]; exists {
		m.mu.Unlock()
		cancel()
		m.logger.Warn("session_duplicate_start", "stream_id", evt.StreamID)
		return
	}
	m.sessions[evt.StreamID] = s
	m.mu.Unlock()

	m.registry.StartCall(evt.CallID, registry.DirectionInbound, evt.From, "", s.started)
	s.logger.Info("session_started", "stream_id", evt.StreamID, "from", evt.From)

	if m.cfg.GreetingEnabled && m.cfg.GreetingText != "" && s.setState(StateGreeting) {
		greetCtx, greetCancel := context.WithCancel(ctx)
		s.greetCancel = greetCancel
		m.turns.Add(1)
		go func() {
			defer m.turns.Done()
			defer greetCancel()
			if err := m.runner.Speak(greetCtx, s.StreamID, m.cfg.GreetingText, m.cfg.GreetingLanguage); err != nil {
				s.logger.Warn("greeting_failed", "error", err.Error())
			}
			// Greeting done or failed either way the caller gets
			// the floor.
			s.mu.Lock()
			if s.state == StateGreeting {
				s.setStateLocked(StateListening)
			}
			s.mu.Unlock()
		}()
	} else {
		s.setState(StateListening)
	}
}

func (m *Manager) handleMedia(evt transports.Event) {
	s := m.lookup(evt.StreamID)
	if s == nil {
		return
	}
	utt, ready := s.agg.Push(evt.Audio, time.Now())

	// Caller speech during the greeting interrupts it.
	if s.agg.SpeechActive() && s.State() == StateGreeting {
		if s.greetCancel != nil {
			s.greetCancel()
		}
		s.setState(StateListening)
	}
	if !ready {
		return
	}
	s.logger.Info("utterance_captured", "duration_ms", utt.DurationMS, "reason", string(utt.Reason))
	if s.queueOrStart(utt) {
		m.dispatchTurn(s, utt)
	}
}

// dispatchTurn runs one turn detached from the inbound loop and chains
// into the pending utterance when the turn completes.
func (m *Manager) dispatchTurn(s *Session, utt aggregator.Utterance) {
	m.turns.Add(1)
	go func() {
		defer m.turns.Done()
		m.runner.RunTurn(s.ctx, s.CallID, s.StreamID, utt)
		if next := s.finishTurn(); next != nil {
			m.dispatchTurn(s, *next)
		}
	}()
}

func (m *Manager) endSession(evt transports.Event) {
	m.mu.Lock()
	s := m.sessions[evt.StreamID]
	delete(m.sessions, evt.StreamID)
	m.mu.Unlock()
	if s == nil {
		// A stop for a stream that never started; nothing to do.
		m.logger.Debug("stray_stop_ignored", "stream_id", evt.StreamID)
		return
	}
	s.end()
	if m.registry.FinalizeCall(s.CallID, time.Now()) {
		s.logger.Info("session_ended", "stream_id", evt.StreamID, "event", evt.Type.String())
	}
}

func (m *Manager) lookup(streamID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[streamID]
}
