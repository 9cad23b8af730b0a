package mock

import (
	"context"
	"sync"

	"github.com/harunnryd/voxa/pkg/adapters/stt"
	"github.com/harunnryd/voxa/pkg/audio"
)

type STTConfig struct {
	// Transcripts are returned in order; Transcript afterwards.
	Transcripts []string
	Transcript  string
	Err         error
}

type Transcriber struct {
	cfg STTConfig

	mu    sync.Mutex
	calls int
}

func NewSTT(cfg STTConfig) *Transcriber {
	if cfg.Transcript == "" {
		cfg.Transcript = "mock transcript"
	}
	return &Transcriber{cfg: cfg}
}

func (s *Transcriber) Name() string { return "mock_stt" }

func (s *Transcriber) Transcribe(ctx context.Context, clip audio.Clip) (string, error) {
	s.mu.Lock()
	n := s.calls
	s.calls++
	s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.cfg.Err != nil {
		return "", s.cfg.Err
	}
	if clip.Empty() {
		return "", stt.ErrNoSpeech
	}
	if n < len(s.cfg.Transcripts) {
		return s.cfg.Transcripts[n], nil
	}
	return s.cfg.Transcript, nil
}

func (s *Transcriber) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var _ stt.Transcriber = (*Transcriber)(nil)
