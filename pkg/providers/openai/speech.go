package openai

import (
	"context"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/harunnryd/voxa/pkg/adapters/tts"
	"github.com/harunnryd/voxa/pkg/audio"
)

// Synthesizer renders replies through the speech endpoint.
type Synthesizer struct {
	client *openai.Client
	model  string
	voice  string
	format string
	speed  float64
}

func NewSynthesizer(cfg Config, voice, format string, speed float64) *Synthesizer {
	model := cfg.Model
	if model == "" {
		model = string(openai.TTSModel1)
	}
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	if format == "" {
		format = string(openai.SpeechResponseFormatMp3)
	}
	if speed <= 0 {
		speed = 1.0
	}
	return &Synthesizer{client: newClient(cfg), model: model, voice: voice, format: format, speed: speed}
}

func (s *Synthesizer) Name() string { return "openai_speech" }

func (s *Synthesizer) Synthesize(ctx context.Context, text string) (audio.Clip, error) {
	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.model),
		Input:          text,
		Voice:          openai.SpeechVoice(s.voice),
		ResponseFormat: openai.SpeechResponseFormat(s.format),
		Speed:          s.speed,
	})
	if err != nil {
		return audio.Clip{}, mapError(err)
	}
	defer resp.Close()
	data, err := io.ReadAll(resp)
	if err != nil {
		return audio.Clip{}, err
	}
	return audio.Clip{Data: data, Format: s.format}, nil
}

var _ tts.Synthesizer = (*Synthesizer)(nil)
