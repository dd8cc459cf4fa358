package session

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agrisarthi/agrivoice/pkg/aggregator"
	"github.com/agrisarthi/agrivoice/pkg/audio"
	"github.com/agrisarthi/agrivoice/pkg/registry"
	"github.com/agrisarthi/agrivoice/pkg/transports"
)

type turnCall struct {
	callID string
	utt    aggregator.Utterance
}

// blockingRunner lets a test hold turns open and observe dispatch.
type blockingRunner struct {
	mu      sync.Mutex
	turns   []turnCall
	spoken  []string
	release chan struct{}
	started chan struct{}
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{
		release: make(chan struct{}),
		started: make(chan struct{}, 16),
	}
}

func (r *blockingRunner) RunTurn(_ context.Context, callID, _ string, utt aggregator.Utterance) {
	r.mu.Lock()
	r.turns = append(r.turns, turnCall{callID: callID, utt: utt})
	r.mu.Unlock()
	r.started <- struct{}{}
	<-r.release
}

func (r *blockingRunner) Speak(ctx context.Context, _, text, _ string) error {
	r.mu.Lock()
	r.spoken = append(r.spoken, text)
	r.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func (r *blockingRunner) turnCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.turns)
}

func speechFrame() []byte {
	pcm := make([]int16, audio.TelephonyRate/50)
	for i := range pcm {
		pcm[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(audio.TelephonyRate)))
	}
	return audio.EncodeMuLaw(pcm)
}

func silenceFrame() []byte {
	return audio.EncodeMuLaw(make([]int16, audio.TelephonyRate/50))
}

func testConfig() Config {
	return Config{
		Aggregator: aggregator.Config{
			SilenceDuration:   20 * time.Millisecond,
			MinSpeechDuration: 10 * time.Millisecond,
			MaxSpeechDuration: 15 * time.Second,
		},
	}
}

func startEvent(stream, call string) transports.Event {
	return transports.Event{Type: transports.EventStart, StreamID: stream, CallID: call, From: "+15550001", TraceID: "trace-1"}
}

func feedUtterance(m *Manager, stream string) {
	for i := 0; i < 10; i++ {
		m.HandleEvent(transports.Event{Type: transports.EventMedia, StreamID: stream, Audio: speechFrame()})
	}
	// Silence long enough to close the utterance.
	for i := 0; i < 5; i++ {
		time.Sleep(10 * time.Millisecond)
		m.HandleEvent(transports.Event{Type: transports.EventMedia, StreamID: stream, Audio: silenceFrame()})
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

func TestStartCreatesSessionAndRecord(t *testing.T) {
	runner := newBlockingRunner()
	reg := registry.New()
	m := NewManager(testConfig(), runner, reg)

	m.HandleEvent(startEvent("MZ1", "CA1"))
	if m.ActiveSessions() != 1 {
		t.Fatalf("expected 1 active session")
	}
	rec, ok := reg.Lookup("CA1")
	if !ok || rec.Status != registry.StatusInProgress {
		t.Fatalf("expected in-progress record, got %+v ok=%v", rec, ok)
	}
}

func TestSecondUtteranceParksAndThirdDropsOldest(t *testing.T) {
	runner := newBlockingRunner()
	reg := registry.New()
	m := NewManager(testConfig(), runner, reg)

	m.HandleEvent(startEvent("MZ1", "CA1"))
	feedUtterance(m, "MZ1")
	<-runner.started
	if runner.turnCount() != 1 {
		t.Fatalf("expected one in-flight turn, got %d", runner.turnCount())
	}

	// Two more utterances while the first is in flight: the second is
	// parked, the third replaces it.
	feedUtterance(m, "MZ1")
	feedUtterance(m, "MZ1")
	if runner.turnCount() != 1 {
		t.Fatalf("expected still one dispatched turn, got %d", runner.turnCount())
	}

	close(runner.release)
	waitFor(t, func() bool { return runner.turnCount() == 2 })

	// The parked slot held only the newest utterance, so exactly one
	// follow-up turn runs.
	time.Sleep(50 * time.Millisecond)
	if got := runner.turnCount(); got != 2 {
		t.Fatalf("expected 2 turns total, got %d", got)
	}
}

func TestStopFinalizesExactlyOnce(t *testing.T) {
	runner := newBlockingRunner()
	close(runner.release)
	reg := registry.New()
	m := NewManager(testConfig(), runner, reg)

	m.HandleEvent(startEvent("MZ1", "CA1"))
	m.HandleEvent(transports.Event{Type: transports.EventStop, StreamID: "MZ1", CallID: "CA1"})
	rec, _ := reg.Lookup("CA1")
	if rec.Status != registry.StatusCompleted {
		t.Fatalf("expected completed record, got %+v", rec)
	}
	end := rec.EndTime

	// A trailing disconnect for the same stream is a no-op.
	m.HandleEvent(transports.Event{Type: transports.EventDisconnect, StreamID: "MZ1", CallID: "CA1"})
	rec, _ = reg.Lookup("CA1")
	if !rec.EndTime.Equal(end) {
		t.Fatalf("expected end time unchanged")
	}
	if m.ActiveSessions() != 0 {
		t.Fatalf("expected no active sessions")
	}
}

func TestStrayStopIsIgnored(t *testing.T) {
	runner := newBlockingRunner()
	reg := registry.New()
	m := NewManager(testConfig(), runner, reg)

	m.HandleEvent(transports.Event{Type: transports.EventStop, StreamID: "never-started"})
	if m.ActiveSessions() != 0 {
		t.Fatalf("expected no sessions")
	}
	if len(reg.History()) != 0 {
		t.Fatalf("expected no call records")
	}
}

func TestMediaForUnknownStreamIsIgnored(t *testing.T) {
	runner := newBlockingRunner()
	m := NewManager(testConfig(), runner, registry.New())
	m.HandleEvent(transports.Event{Type: transports.EventMedia, StreamID: "nope", Audio: speechFrame()})
	if runner.turnCount() != 0 {
		t.Fatalf("expected no turns")
	}
}

func TestGreetingInterruptedByCallerSpeech(t *testing.T) {
	runner := newBlockingRunner()
	reg := registry.New()
	cfg := testConfig()
	cfg.GreetingEnabled = true
	cfg.GreetingText = "Welcome to Agri Sarthi"
	m := NewManager(cfg, runner, reg)

	m.HandleEvent(startEvent("MZ1", "CA1"))
	waitFor(t, func() bool {
		runner.mu.Lock()
		defer runner.mu.Unlock()
		return len(runner.spoken) == 1
	})

	s := m.lookup("MZ1")
	if s.State() != StateGreeting {
		t.Fatalf("expected greeting state, got %s", s.State())
	}

	// First speech frame hands the floor to the caller.
	m.HandleEvent(transports.Event{Type: transports.EventMedia, StreamID: "MZ1", Audio: speechFrame()})
	if s.State() != StateListening {
		t.Fatalf("expected listening after speech, got %s", s.State())
	}
}

func TestDroppedUtteranceLogsCallIDOnce(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	runner := newBlockingRunner()
	m := NewManager(testConfig(), runner, registry.New())
	m.HandleEvent(startEvent("MZ1", "CA1"))
	s := m.lookup("MZ1")

	if !s.queueOrStart(aggregator.Utterance{DurationMS: 100}) {
		t.Fatalf("expected first utterance to start a turn")
	}
	s.queueOrStart(aggregator.Utterance{DurationMS: 200})
	s.queueOrStart(aggregator.Utterance{DurationMS: 300})

	var dropLine string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, "utterance_dropped") {
			dropLine = line
		}
	}
	if dropLine == "" {
		t.Fatalf("expected utterance_dropped log line, got %q", buf.String())
	}
	if got := strings.Count(dropLine, "call_id="); got != 1 {
		t.Fatalf("expected call_id once in drop line, got %d: %s", got, dropLine)
	}
}

func TestEndedSessionDiscardsLateUtterance(t *testing.T) {
	runner := newBlockingRunner()
	close(runner.release)
	m := NewManager(testConfig(), runner, registry.New())

	m.HandleEvent(startEvent("MZ1", "CA1"))
	s := m.lookup("MZ1")
	s.end()
	if s.queueOrStart(aggregator.Utterance{DurationMS: 1000}) {
		t.Fatalf("expected ended session to refuse new turns")
	}
}
