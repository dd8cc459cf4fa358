package stt

import "context"

// Result is one batch transcription outcome. Language is the detected
// or configured BCP-47 tag of the spoken audio.
type Result struct {
	Text     string
	Language string
}

// SpeechToText transcribes one complete utterance delivered as a WAV
// payload. Implementations must honor ctx cancellation.
type SpeechToText interface {
	Name() string
	Transcribe(ctx context.Context, wav []byte) (Result, error)
}
