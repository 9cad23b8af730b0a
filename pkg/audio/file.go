package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
)

// DirSource yields the audio files of a directory in name order, one per
// Capture, then ErrExhausted.
type DirSource struct {
	mu    sync.Mutex
	files []string
	next  int
}

func NewDirSource(dir string) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || FormatFromPath(e.Name()) == "" {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return &DirSource{files: files}, nil
}

// NewFileSource yields a single file once.
func NewFileSource(path string) (*DirSource, error) {
	if FormatFromPath(path) == "" {
		return nil, fmt.Errorf("%s: unsupported audio format", path)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return &DirSource{files: []string{path}}, nil
}

// NewSource picks a directory or single-file source for path.
func NewSource(path string) (*DirSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return NewDirSource(path)
	}
	return NewFileSource(path)
}

func (s *DirSource) Capture(ctx context.Context) (Clip, error) {
	if err := ctx.Err(); err != nil {
		return Clip{}, err
	}
	s.mu.Lock()
	if s.next >= len(s.files) {
		s.mu.Unlock()
		return Clip{}, ErrExhausted
	}
	path := s.files[s.next]
	s.next++
	s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return Clip{}, fmt.Errorf("%w: %v", ErrNoInput, err)
	}
	if len(data) == 0 {
		return Clip{}, fmt.Errorf("%w: %s is empty", ErrNoInput, filepath.Base(path))
	}
	return Clip{Data: data, Format: FormatFromPath(path), Name: filepath.Base(path)}, nil
}

func (s *DirSource) Len() int { return len(s.files) }

// DirSink writes each played clip to a numbered file in a directory.
type DirSink struct {
	dir   string
	count atomic.Int64
}

func NewDirSink(dir string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DirSink{dir: dir}, nil
}

func (s *DirSink) Play(ctx context.Context, clip Clip) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if clip.Empty() {
		return nil
	}
	format := clip.Format
	if format == "" {
		format = "bin"
	}
	n := s.count.Add(1)
	path := filepath.Join(s.dir, fmt.Sprintf("reply_%04d.%s", n, format))
	return os.WriteFile(path, clip.Data, 0o644)
}

// Written returns how many clips were saved.
func (s *DirSink) Written() int { return int(s.count.Load()) }

// DiscardSink drops every clip.
type DiscardSink struct{}

func (DiscardSink) Play(context.Context, Clip) error { return nil }
