package vad

import (
	"math"
	"testing"

	"github.com/agrisarthi/agrivoice/pkg/audio"
)

func toneFrame(amplitude float64, samples int) []byte {
	pcm := make([]int16, samples)
	for i := range pcm {
		pcm[i] = int16(amplitude * math.Sin(2*math.Pi*440*float64(i)/float64(audio.TelephonyRate)))
	}
	return audio.EncodeMuLaw(pcm)
}

func TestClassifySpeechTone(t *testing.T) {
	d := New(DefaultSilenceThreshold)
	if got := d.Classify(toneFrame(8000, 160)); got != Speech {
		t.Fatalf("expected speech, got %s", got)
	}
}

func TestClassifyQuietToneAsSilence(t *testing.T) {
	d := New(DefaultSilenceThreshold)
	if got := d.Classify(toneFrame(200, 160)); got != Silence {
		t.Fatalf("expected silence, got %s", got)
	}
}

func TestClassifyEmptyFrameAsSilence(t *testing.T) {
	d := New(DefaultSilenceThreshold)
	if got := d.Classify(nil); got != Silence {
		t.Fatalf("expected fail-safe silence, got %s", got)
	}
}

func TestThresholdIsConfigurable(t *testing.T) {
	strict := New(20000)
	if got := strict.Classify(toneFrame(8000, 160)); got != Silence {
		t.Fatalf("expected silence under raised threshold, got %s", got)
	}
}
