// Package mock provides in-memory providers for tests and for running
// the pipeline without external credentials.
package mock

import (
	"context"

	"github.com/agrisarthi/agrivoice/pkg/adapters/stt"
	"github.com/agrisarthi/agrivoice/pkg/audio"
)

// STT returns a fixed transcript regardless of audio content.
type STT struct {
	Text     string
	Language string
	Err      error

	Calls   int
	LastWAV []byte
}

func (m *STT) Name() string { return "mock_stt" }

func (m *STT) Transcribe(_ context.Context, wav []byte) (stt.Result, error) {
	m.Calls++
	m.LastWAV = wav
	if m.Err != nil {
		return stt.Result{}, m.Err
	}
	lang := m.Language
	if lang == "" {
		lang = "en-IN"
	}
	return stt.Result{Text: m.Text, Language: lang}, nil
}

// TTS returns a short valid WAV so downstream codec paths stay real.
type TTS struct {
	Err error

	Calls    int
	LastText string
	LastLang string
}

func (m *TTS) Name() string { return "mock_tts" }

func (m *TTS) Synthesize(_ context.Context, text, language string) ([]byte, error) {
	m.Calls++
	m.LastText = text
	m.LastLang = language
	if m.Err != nil {
		return nil, m.Err
	}
	pcm := make([]int16, audio.TelephonyRate/10) // 100 ms of silence
	return audio.PCMToWAV(pcm, audio.TelephonyRate), nil
}

// Answerer echoes a canned reply.
type Answerer struct {
	Reply string
	Err   error

	Calls    int
	LastText string
}

func (m *Answerer) Name() string { return "mock_answerer" }

func (m *Answerer) Invoke(_ context.Context, text string) (string, error) {
	m.Calls++
	m.LastText = text
	if m.Err != nil {
		return "", m.Err
	}
	if m.Reply != "" {
		return m.Reply, nil
	}
	return "You said: " + text, nil
}
