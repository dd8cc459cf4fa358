package vad

import (
	"math"

	"github.com/agrisarthi/agrivoice/pkg/audio"
)

// Classification of one telephony frame.
type Classification int

const (
	Silence Classification = iota
	Speech
)

func (c Classification) String() string {
	if c == Speech {
		return "speech"
	}
	return "silence"
}

// DefaultSilenceThreshold is the RMS energy below which a frame counts
// as silence.
const DefaultSilenceThreshold = 1000

// Detector classifies mu-law frames by RMS energy. Stateless; frame
// size and threshold are configuration, not per-call state.
type Detector struct {
	threshold float64
}

func New(threshold int) Detector {
	if threshold <= 0 {
		threshold = DefaultSilenceThreshold
	}
	return Detector{threshold: float64(threshold)}
}

// Classify expands the frame to PCM and compares RMS energy to the
// threshold. Empty or undecodable frames classify as silence so
// corrupt data never triggers speech capture.
func (d Detector) Classify(frame []byte) Classification {
	if len(frame) == 0 {
		return Silence
	}
	pcm := audio.DecodeMuLaw(frame)
	if rms(pcm) < d.threshold {
		return Silence
	}
	return Speech
}

func rms(pcm []int16) float64 {
	if len(pcm) == 0 {
		return 0
	}
	var sum float64
	for _, s := range pcm {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(pcm)))
}
