package tts

import (
	"context"

	"github.com/harunnryd/voxa/pkg/audio"
)

// Synthesizer defines the contract for any TTS vendor implementation.
type Synthesizer interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Synthesize renders text to a playable clip.
	Synthesize(ctx context.Context, text string) (audio.Clip, error)
}

// Config contains vendor-agnostic TTS configuration.
type Config struct {
	Voice      string
	Format     string
	SampleRate int
}
