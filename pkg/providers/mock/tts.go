package mock

import (
	"context"
	"sync"

	"github.com/harunnryd/voxa/pkg/adapters/tts"
	"github.com/harunnryd/voxa/pkg/audio"
)

type TTSConfig struct {
	SampleRate int
	Err        error
}

// Synthesizer renders every text as a deterministic silent PCM clip.
type Synthesizer struct {
	cfg TTSConfig

	mu    sync.Mutex
	texts []string
}

func NewTTS(cfg TTSConfig) *Synthesizer {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	return &Synthesizer{cfg: cfg}
}

func (s *Synthesizer) Name() string { return "mock_tts" }

func (s *Synthesizer) Synthesize(ctx context.Context, text string) (audio.Clip, error) {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return audio.Clip{}, err
	}
	if s.cfg.Err != nil {
		return audio.Clip{}, s.cfg.Err
	}
	return audio.Clip{Data: make([]byte, 320), Format: "pcm", SampleRate: s.cfg.SampleRate}, nil
}

// Texts returns everything synthesized so far.
func (s *Synthesizer) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

var _ tts.Synthesizer = (*Synthesizer)(nil)
