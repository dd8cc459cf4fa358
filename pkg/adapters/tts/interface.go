package tts

import "context"

// TextToSpeech renders one reply as a WAV payload. The language tag
// selects the synthesis voice and locale.
type TextToSpeech interface {
	Name() string
	Synthesize(ctx context.Context, text, language string) ([]byte, error)
}
