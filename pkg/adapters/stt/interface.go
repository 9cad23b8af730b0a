package stt

import (
	"context"
	"errors"

	"github.com/harunnryd/voxa/pkg/audio"
)

// ErrNoSpeech is returned when a clip held no recognizable speech.
var ErrNoSpeech = errors.New("no speech recognized")

// Transcriber defines the contract for any STT vendor implementation.
type Transcriber interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Transcribe converts one recorded utterance to text.
	Transcribe(ctx context.Context, clip audio.Clip) (string, error)
}

// Config contains vendor-agnostic STT configuration.
type Config struct {
	Language   string
	SampleRate int
}
