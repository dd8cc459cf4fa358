package aggregator

import (
	"time"

	"github.com/agrisarthi/agrivoice/pkg/audio"
	"github.com/agrisarthi/agrivoice/pkg/vad"
)

// EmitReason records why an utterance was closed.
type EmitReason string

const (
	ReasonSilenceTimeout      EmitReason = "silence_timeout"
	ReasonMaxDurationExceeded EmitReason = "max_duration_exceeded"
)

// Utterance is one contiguous speech segment ready for transcription.
type Utterance struct {
	Frames     [][]byte
	DurationMS int
	Reason     EmitReason
}

// Config holds segmentation thresholds. Durations are byte-count
// durations at the fixed telephony rate, not wall-clock time.
type Config struct {
	SilenceDuration   time.Duration
	MinSpeechDuration time.Duration
	MaxSpeechDuration time.Duration
}

func (c Config) withDefaults() Config {
	if c.SilenceDuration <= 0 {
		c.SilenceDuration = 1200 * time.Millisecond
	}
	if c.MinSpeechDuration <= 0 {
		c.MinSpeechDuration = 800 * time.Millisecond
	}
	if c.MaxSpeechDuration <= 0 {
		c.MaxSpeechDuration = 15 * time.Second
	}
	return c
}

// Aggregator buffers speech frames for one call and decides when a
// complete utterance is ready. Not safe for concurrent use; each call
// session owns exactly one.
type Aggregator struct {
	cfg      Config
	detector vad.Detector

	speechActive    bool
	silenceStarted  time.Time
	haveSilenceMark bool
	buffer          [][]byte
	bufferedBytes   int
}

func New(cfg Config, detector vad.Detector) *Aggregator {
	return &Aggregator{cfg: cfg.withDefaults(), detector: detector}
}

// SpeechActive reports whether the aggregator is mid-capture.
func (a *Aggregator) SpeechActive() bool { return a.speechActive }

// Push feeds one inbound frame. It returns a completed utterance and
// true when segmentation decides one is ready.
func (a *Aggregator) Push(frame []byte, now time.Time) (Utterance, bool) {
	switch a.detector.Classify(frame) {
	case vad.Speech:
		a.speechActive = true
		a.haveSilenceMark = false
		a.buffer = append(a.buffer, frame)
		a.bufferedBytes += len(frame)
		if a.bufferedDuration() >= a.cfg.MaxSpeechDuration {
			return a.emit(ReasonMaxDurationExceeded), true
		}
	case vad.Silence:
		if !a.speechActive {
			return Utterance{}, false // leading silence
		}
		if !a.haveSilenceMark {
			a.silenceStarted = now
			a.haveSilenceMark = true
			return Utterance{}, false
		}
		if now.Sub(a.silenceStarted) >= a.cfg.SilenceDuration {
			if a.bufferedDuration() >= a.cfg.MinSpeechDuration {
				return a.emit(ReasonSilenceTimeout), true
			}
			// Too short to be an utterance; treat as noise.
			a.Reset()
		}
	}
	return Utterance{}, false
}

// Reset clears capture state between utterances.
func (a *Aggregator) Reset() {
	a.speechActive = false
	a.haveSilenceMark = false
	a.buffer = nil
	a.bufferedBytes = 0
}

func (a *Aggregator) bufferedDuration() time.Duration {
	return time.Duration(audio.DurationMS(a.bufferedBytes)) * time.Millisecond
}

func (a *Aggregator) emit(reason EmitReason) Utterance {
	utt := Utterance{
		Frames:     a.buffer,
		DurationMS: audio.DurationMS(a.bufferedBytes),
		Reason:     reason,
	}
	a.Reset()
	return utt
}
