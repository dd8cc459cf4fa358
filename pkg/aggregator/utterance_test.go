package aggregator

import (
	"math"
	"testing"
	"time"

	"github.com/agrisarthi/agrivoice/pkg/audio"
	"github.com/agrisarthi/agrivoice/pkg/vad"
)

const frameMS = 20

// 20 ms of loud tone / silence at the telephony rate.
func speechFrame() []byte {
	pcm := make([]int16, audio.TelephonyRate*frameMS/1000)
	for i := range pcm {
		pcm[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(audio.TelephonyRate)))
	}
	return audio.EncodeMuLaw(pcm)
}

func silenceFrame() []byte {
	return audio.EncodeMuLaw(make([]int16, audio.TelephonyRate*frameMS/1000))
}

type feeder struct {
	agg *Aggregator
	now time.Time
}

func newFeeder() *feeder {
	return &feeder{
		agg: New(Config{}, vad.New(vad.DefaultSilenceThreshold)),
		now: time.Unix(1700000000, 0),
	}
}

func (f *feeder) push(t *testing.T, frame []byte) (Utterance, bool) {
	t.Helper()
	f.now = f.now.Add(frameMS * time.Millisecond)
	return f.agg.Push(frame, f.now)
}

func (f *feeder) pushMS(t *testing.T, frame func() []byte, ms int) []Utterance {
	t.Helper()
	var out []Utterance
	for i := 0; i < ms/frameMS; i++ {
		if utt, ok := f.push(t, frame()); ok {
			out = append(out, utt)
		}
	}
	return out
}

func TestSilenceNeverTriggersCapture(t *testing.T) {
	f := newFeeder()
	if got := f.pushMS(t, silenceFrame, 10000); len(got) != 0 {
		t.Fatalf("expected no utterances from pure silence, got %d", len(got))
	}
	if f.agg.SpeechActive() {
		t.Fatalf("expected speechActive to stay false")
	}
}

func TestShortBurstDiscardedAsNoise(t *testing.T) {
	f := newFeeder()
	if got := f.pushMS(t, speechFrame, 400); len(got) != 0 {
		t.Fatalf("unexpected utterance during short burst")
	}
	if got := f.pushMS(t, silenceFrame, 2000); len(got) != 0 {
		t.Fatalf("expected short burst discarded, got %d utterances", len(got))
	}
	if f.agg.SpeechActive() {
		t.Fatalf("expected state reset after discard")
	}
}

func TestSilenceTimeoutEmitsOneUtterance(t *testing.T) {
	f := newFeeder()
	if got := f.pushMS(t, speechFrame, 1000); len(got) != 0 {
		t.Fatalf("unexpected early emission")
	}
	got := f.pushMS(t, silenceFrame, 1300)
	if len(got) != 1 {
		t.Fatalf("expected exactly one utterance, got %d", len(got))
	}
	utt := got[0]
	if utt.Reason != ReasonSilenceTimeout {
		t.Fatalf("expected silence_timeout, got %s", utt.Reason)
	}
	if utt.DurationMS < 980 || utt.DurationMS > 1020 {
		t.Fatalf("expected ~1000 ms utterance, got %d ms", utt.DurationMS)
	}
	// Trailing silence after the emission stays quiet.
	if more := f.pushMS(t, silenceFrame, 2000); len(more) != 0 {
		t.Fatalf("expected no further utterances, got %d", len(more))
	}
}

func TestMaxDurationForcesFlush(t *testing.T) {
	f := newFeeder()
	got := f.pushMS(t, speechFrame, 16000)
	if len(got) != 1 {
		t.Fatalf("expected exactly one forced utterance, got %d", len(got))
	}
	if got[0].Reason != ReasonMaxDurationExceeded {
		t.Fatalf("expected max_duration_exceeded, got %s", got[0].Reason)
	}
	if got[0].DurationMS < 15000 {
		t.Fatalf("expected >=15000 ms, got %d", got[0].DurationMS)
	}
	// Capture resumes immediately for the remaining speech.
	if !f.agg.SpeechActive() {
		t.Fatalf("expected capture to resume after forced flush")
	}
}

func TestDurationComputedFromBytesNotWallClock(t *testing.T) {
	agg := New(Config{}, vad.New(vad.DefaultSilenceThreshold))
	now := time.Unix(1700000000, 0)
	// Deliver 1000 ms of audio with wildly jittered arrival times.
	for i := 0; i < 50; i++ {
		now = now.Add(500 * time.Millisecond)
		if _, ok := agg.Push(speechFrame(), now); ok {
			t.Fatalf("unexpected emission during jittered delivery")
		}
	}
	now = now.Add(1300 * time.Millisecond)
	agg.Push(silenceFrame(), now)
	now = now.Add(1300 * time.Millisecond)
	utt, ok := agg.Push(silenceFrame(), now)
	if !ok {
		t.Fatalf("expected utterance after silence window")
	}
	if utt.DurationMS != 1000 {
		t.Fatalf("expected byte-count duration 1000 ms, got %d", utt.DurationMS)
	}
}
