// Package orchestrator runs one conversation turn end to end: encode
// the captured utterance, transcribe it, ask the answering backend,
// synthesize the reply and stream it back over the transport.
package orchestrator

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/agrisarthi/agrivoice/pkg/adapters/answer"
	"github.com/agrisarthi/agrivoice/pkg/adapters/stt"
	"github.com/agrisarthi/agrivoice/pkg/adapters/tts"
	"github.com/agrisarthi/agrivoice/pkg/aggregator"
	"github.com/agrisarthi/agrivoice/pkg/audio"
	"github.com/agrisarthi/agrivoice/pkg/logging"
	"github.com/agrisarthi/agrivoice/pkg/registry"
	"github.com/agrisarthi/agrivoice/pkg/transports"
)

type Config struct {
	STTTimeout    time.Duration
	AnswerTimeout time.Duration
	TTSTimeout    time.Duration
	STTSampleRate int
	FrameInterval time.Duration

	// DefaultLanguage is used for synthesis when detection reports
	// English or nothing.
	DefaultLanguage string

	// Fallbacks maps a language prefix ("hi", "en") to the apology
	// spoken when the answering backend fails.
	Fallbacks map[string]string
}

func (c Config) withDefaults() Config {
	if c.STTTimeout <= 0 {
		c.STTTimeout = 30 * time.Second
	}
	if c.AnswerTimeout <= 0 {
		c.AnswerTimeout = 60 * time.Second
	}
	if c.TTSTimeout <= 0 {
		c.TTSTimeout = 30 * time.Second
	}
	if c.STTSampleRate <= 0 {
		c.STTSampleRate = 16000
	}
	if c.FrameInterval <= 0 {
		c.FrameInterval = 20 * time.Millisecond
	}
	if c.DefaultLanguage == "" {
		c.DefaultLanguage = "hi-IN"
	}
	if c.Fallbacks == nil {
		c.Fallbacks = map[string]string{
			"hi": "क्षमा करें, मुझे अभी तकनीकी समस्या आ रही है। कृपया फिर से प्रयास करें।",
			"en": "Sorry, I am facing a technical issue. Please try again.",
		}
	}
	return c
}

type Orchestrator struct {
	cfg      Config
	stt      stt.SpeechToText
	answerer answer.Answerer
	tts      tts.TextToSpeech
	out      transports.Outbound
	registry *registry.Registry
	logger   *slog.Logger
}

func New(cfg Config, sttp stt.SpeechToText, ans answer.Answerer, ttsp tts.TextToSpeech, out transports.Outbound, reg *registry.Registry) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg.withDefaults(),
		stt:      sttp,
		answerer: ans,
		tts:      ttsp,
		out:      out,
		registry: reg,
		logger:   logging.NewComponentLogger(slog.Default(), "orchestrator"),
	}
}

// RunTurn processes one utterance. Every step can abandon the turn;
// abandoning is logged, never propagated to the inbound loop.
func (o *Orchestrator) RunTurn(ctx context.Context, callID, streamID string, utt aggregator.Utterance) {
	logger := o.logger.With("call_id", callID, "stream_id", streamID)
	if len(utt.Frames) == 0 {
		return
	}
	wav := audio.MuLawFramesToWAV(utt.Frames, o.cfg.STTSampleRate)

	sttCtx, cancel := context.WithTimeout(ctx, o.cfg.STTTimeout)
	result, err := o.stt.Transcribe(sttCtx, wav)
	cancel()
	if err != nil {
		logger.Warn("turn_stt_failed", "error", err.Error())
		return
	}
	if result.Text == "" {
		// Noise that survived segmentation; drop it quietly.
		logger.Debug("turn_empty_transcript", "duration_ms", utt.DurationMS)
		return
	}
	logger.Info("turn_transcribed", "language", result.Language, "chars", len(result.Text))
	o.registry.AppendTranscript(callID, registry.TranscriptEntry{
		Role:      registry.RoleFarmer,
		Text:      result.Text,
		Language:  result.Language,
		Timestamp: time.Now(),
	})

	speakLang := o.synthesisLanguage(result.Language)

	answerCtx, cancel := context.WithTimeout(ctx, o.cfg.AnswerTimeout)
	reply, err := o.answerer.Invoke(answerCtx, result.Text)
	cancel()
	if err != nil {
		logger.Warn("turn_answer_failed", "error", err.Error())
		reply = o.fallbackApology(speakLang)
	}
	o.registry.AppendTranscript(callID, registry.TranscriptEntry{
		Role:      registry.RoleAgent,
		Text:      reply,
		Language:  speakLang,
		Timestamp: time.Now(),
	})

	if err := o.Speak(ctx, streamID, reply, speakLang); err != nil {
		logger.Warn("turn_playback_failed", "error", err.Error())
	}
}

// Speak synthesizes text and streams it to the caller, flushing any
// queued platform audio first so the reply starts clean.
func (o *Orchestrator) Speak(ctx context.Context, streamID, text, language string) error {
	ttsCtx, cancel := context.WithTimeout(ctx, o.cfg.TTSTimeout)
	wav, err := o.tts.Synthesize(ttsCtx, text, language)
	cancel()
	if err != nil {
		return err
	}
	frames, err := audio.WAVToMuLawFrames(wav)
	if err != nil {
		return err
	}
	if err := o.out.Clear(streamID); err != nil {
		o.logger.Debug("clear_failed", "stream_id", streamID, "error", err.Error())
	}
	return o.streamFrames(ctx, streamID, frames)
}

// streamFrames paces delivery at one frame per tick so the platform
// buffer never floods.
func (o *Orchestrator) streamFrames(ctx context.Context, streamID string, frames [][]byte) error {
	ticker := time.NewTicker(o.cfg.FrameInterval)
	defer ticker.Stop()
	for _, frame := range frames {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := o.out.SendAudio(streamID, frame); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) synthesisLanguage(detected string) string {
	if detected == "" || strings.HasPrefix(detected, "en") {
		return o.cfg.DefaultLanguage
	}
	return detected
}

func (o *Orchestrator) fallbackApology(language string) string {
	base, _, _ := strings.Cut(language, "-")
	if msg, ok := o.cfg.Fallbacks[base]; ok {
		return msg
	}
	if msg, ok := o.cfg.Fallbacks["en"]; ok {
		return msg
	}
	return "Sorry, I am facing a technical issue. Please try again."
}
