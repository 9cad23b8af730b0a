// Package audio holds the recorded-utterance boundary between the voice
// loop and whatever captures or plays sound.
package audio

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

var (
	// ErrNoInput marks a capture that produced nothing usable. Loops skip it.
	ErrNoInput = errors.New("no usable input")
	// ErrExhausted ends a loop: the source has nothing more to give.
	ErrExhausted = errors.New("audio source exhausted")
)

// Clip is one encoded utterance or reply.
type Clip struct {
	Data       []byte
	Format     string
	SampleRate int
	Name       string
}

func (c Clip) Empty() bool { return len(c.Data) == 0 }

// FileName returns a name with an extension matching Format.
func (c Clip) FileName() string {
	name := c.Name
	if name == "" {
		name = "clip"
	}
	if filepath.Ext(name) == "" && c.Format != "" {
		name += "." + c.Format
	}
	return name
}

type Source interface {
	Capture(ctx context.Context) (Clip, error)
}

type Sink interface {
	Play(ctx context.Context, clip Clip) error
}

var knownFormats = map[string]struct{}{
	"wav": {}, "mp3": {}, "m4a": {}, "ogg": {}, "webm": {}, "flac": {}, "pcm": {}, "mpga": {}, "mp4": {},
}

// FormatFromPath returns the audio format implied by the extension, or ""
// for files that are not audio.
func FormatFromPath(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if _, ok := knownFormats[ext]; ok {
		return ext
	}
	return ""
}
