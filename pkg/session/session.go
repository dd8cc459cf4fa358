package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/agrisarthi/agrivoice/pkg/aggregator"
)

// Session holds the per-call pipeline state. All fields except the
// turn bookkeeping are touched only by the transport's read goroutine;
// the mutex guards the handoff between that goroutine and turn
// completion callbacks.
type Session struct {
	CallID   string
	StreamID string
	TraceID  string

	agg    *aggregator.Aggregator
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	greetCancel context.CancelFunc

	mu       sync.Mutex
	state    State
	inFlight bool
	pending  *aggregator.Utterance
	started  time.Time
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setStateLocked(to)
}

func (s *Session) setStateLocked(to State) bool {
	next, err := s.state.transition(to)
	if err != nil {
		s.logger.Warn("session_invalid_transition", "from", string(s.state), "to", string(to))
		return false
	}
	s.state = next
	return true
}

// queueOrStart decides what to do with a completed utterance: start a
// turn if none is running, otherwise park it as the single pending
// slot, dropping the previous occupant.
func (s *Session) queueOrStart(utt aggregator.Utterance) (start bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateEnded {
		return false
	}
	if s.inFlight {
		if s.pending != nil {
			s.logger.Warn("utterance_dropped", "duration_ms", s.pending.DurationMS)
		}
		s.pending = &utt
		return false
	}
	s.inFlight = true
	s.setStateLocked(StateProcessing)
	return true
}

// finishTurn clears the in-flight flag and hands back a parked
// utterance, if any, for immediate dispatch.
func (s *Session) finishTurn() (next *aggregator.Utterance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		next = s.pending
		s.pending = nil
		return next
	}
	s.inFlight = false
	if s.state == StateProcessing {
		s.setStateLocked(StateListening)
	}
	return nil
}

func (s *Session) end() {
	s.mu.Lock()
	if s.state != StateEnded {
		s.state = StateEnded
	}
	s.mu.Unlock()
	if s.greetCancel != nil {
		s.greetCancel()
	}
	s.cancel()
}
