// Package voice hosts the agent behind a speech or text front end.
package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/harunnryd/voxa/pkg/adapters/stt"
	"github.com/harunnryd/voxa/pkg/adapters/tts"
	"github.com/harunnryd/voxa/pkg/agent"
	"github.com/harunnryd/voxa/pkg/audio"
	"github.com/harunnryd/voxa/pkg/errorsx"
	"github.com/harunnryd/voxa/pkg/logging"
	"github.com/harunnryd/voxa/pkg/metrics"
	"github.com/harunnryd/voxa/pkg/redact"
)

// Loop runs capture, transcribe, answer, synthesize and play until an exit
// phrase is heard or the source is exhausted. Speech failures never reach
// the agent; they are logged and the loop listens again.
type Loop struct {
	Source      audio.Source
	Transcriber stt.Transcriber
	Agent       *agent.Agent
	Synthesizer tts.Synthesizer
	Sink        audio.Sink

	// Out receives the printed transcript; nil discards it.
	Out         io.Writer
	ExitPhrases []string
	Logger      *slog.Logger
	Observer    metrics.Observer
}

// Stats summarizes a finished loop.
type Stats struct {
	Turns   int
	Skipped int
	Exited  bool
}

func (l *Loop) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	if l.Source == nil || l.Transcriber == nil || l.Agent == nil {
		return stats, errors.New("voice loop requires source, transcriber and agent")
	}
	log := logging.NewComponentLogger(l.Logger, "voice")
	phrases := l.ExitPhrases
	if len(phrases) == 0 {
		phrases = DefaultExitPhrases
	}

	log.Info("voice_loop_started", "conversation_id", l.Agent.ID(),
		"stt", l.Transcriber.Name(), "tts", l.synthName())
	l.speak(ctx, log, Greeting)

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		text, err := l.listen(ctx)
		if err != nil {
			switch {
			case errors.Is(err, audio.ErrExhausted):
				log.Info("voice_loop_finished", "turns", stats.Turns, "skipped", stats.Skipped)
				return stats, nil
			case ctx.Err() != nil:
				return stats, ctx.Err()
			case errors.Is(err, audio.ErrNoInput), errors.Is(err, stt.ErrNoSpeech):
				stats.Skipped++
				log.Warn("no_usable_input", "error", err)
				continue
			default:
				return stats, errorsx.Wrap(err, errorsx.ReasonAudioCapture)
			}
		}
		l.printf("You: %s\n", text)

		if IsExit(text, phrases) {
			log.Info("exit_requested")
			l.speak(ctx, log, Farewell)
			stats.Exited = true
			return stats, nil
		}

		reply := l.Agent.ProcessInput(ctx, text)
		stats.Turns++
		l.speak(ctx, log, reply)
	}
}

// listen captures one clip and reduces transcriber failures to
// "no usable input".
func (l *Loop) listen(ctx context.Context) (string, error) {
	clip, err := l.Source.Capture(ctx)
	if err != nil {
		return "", err
	}
	start := time.Now()
	text, err := l.Transcriber.Transcribe(ctx, clip)
	status := "ok"
	if err != nil {
		status = "error"
	}
	l.record(metrics.EventSpeechInput, start, l.Transcriber.Name(), status)
	if err != nil {
		if errors.Is(err, stt.ErrNoSpeech) || ctx.Err() != nil {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", audio.ErrNoInput, err)
	}
	if text == "" {
		return "", stt.ErrNoSpeech
	}
	logging.NewComponentLogger(l.Logger, "voice").Debug("transcribed",
		"clip", clip.Name, "text", redact.Preview(text, 80))
	return text, nil
}

func (l *Loop) speak(ctx context.Context, log *slog.Logger, text string) {
	l.printf("Assistant: %s\n", text)
	if l.Synthesizer == nil || l.Sink == nil || text == "" {
		return
	}
	start := time.Now()
	clip, err := l.Synthesizer.Synthesize(ctx, text)
	if err == nil {
		err = l.Sink.Play(ctx, clip)
		if err != nil {
			err = errorsx.Wrap(err, errorsx.ReasonAudioPlay)
		}
	}
	status := "ok"
	if err != nil {
		status = "error"
		log.Warn("speech_output_failed", "error", err, "reason", errorsx.Reason(err))
	}
	l.record(metrics.EventSpeechOutput, start, l.Synthesizer.Name(), status)
}

func (l *Loop) synthName() string {
	if l.Synthesizer == nil {
		return "none"
	}
	return l.Synthesizer.Name()
}

func (l *Loop) printf(format string, args ...any) {
	if l.Out != nil {
		fmt.Fprintf(l.Out, format, args...)
	}
}

func (l *Loop) record(name string, start time.Time, provider, status string) {
	if l.Observer == nil {
		return
	}
	l.Observer.RecordEvent(metrics.MetricsEvent{
		Name:  name,
		Time:  time.Now(),
		Value: float64(time.Since(start).Milliseconds()),
		Tags: map[string]string{
			"component":       "voice",
			"conversation_id": l.Agent.ID(),
			"provider":        provider,
			"status":          status,
		},
	})
}
