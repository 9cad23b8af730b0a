package openai

import (
	"bytes"
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/harunnryd/voxa/pkg/adapters/stt"
	"github.com/harunnryd/voxa/pkg/audio"
)

// Transcriber sends recorded clips to the Whisper transcription endpoint.
type Transcriber struct {
	client   *openai.Client
	model    string
	language string
}

func NewTranscriber(cfg Config, language string) *Transcriber {
	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &Transcriber{client: newClient(cfg), model: model, language: language}
}

func (t *Transcriber) Name() string { return "openai_whisper" }

func (t *Transcriber) Transcribe(ctx context.Context, clip audio.Clip) (string, error) {
	if clip.Empty() {
		return "", stt.ErrNoSpeech
	}
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: clip.FileName(),
		Reader:   bytes.NewReader(clip.Data),
		Language: t.language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", mapError(err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", stt.ErrNoSpeech
	}
	return text, nil
}

var _ stt.Transcriber = (*Transcriber)(nil)
