package deepgram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/harunnryd/voxa/pkg/adapters/stt"
	"github.com/harunnryd/voxa/pkg/audio"
	"github.com/harunnryd/voxa/pkg/errorsx"
	"github.com/harunnryd/voxa/pkg/logging"
	"github.com/harunnryd/voxa/pkg/resilience"
)

type Config struct {
	APIKey     string
	Model      string
	Language   string
	SampleRate int
	// Encoding is only needed for headerless PCM; containers are detected.
	Encoding       string
	UtteranceEndMS int
	// SettleTimeout bounds the wait for final results after the clip was sent.
	SettleTimeout time.Duration
	Retries       int
	Logger        *slog.Logger
}

// Transcriber streams each clip over a Deepgram live connection and
// returns the joined final transcript.
type Transcriber struct {
	cfg    Config
	logger *slog.Logger
	retry  resilience.RetryPolicy
}

func New(cfg Config) *Transcriber {
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = 3 * time.Second
	}
	return &Transcriber{
		cfg:    cfg,
		logger: logging.NewComponentLogger(cfg.Logger, "deepgram_stt"),
		retry:  resilience.NewRetryPolicy(cfg.Retries, 200*time.Millisecond),
	}
}

func (t *Transcriber) Name() string { return "deepgram" }

func (t *Transcriber) Transcribe(ctx context.Context, clip audio.Clip) (string, error) {
	if clip.Empty() {
		return "", stt.ErrNoSpeech
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	col := newCollector()
	cb := &callback{col: col, logger: t.logger}

	var dg *client.WSCallback
	err := t.retry.Do(ctx, func(ctx context.Context) error {
		c, err := client.NewWSUsingCallback(ctx, t.cfg.APIKey, &interfaces.ClientOptions{}, t.options(clip), cb)
		if err != nil {
			return err
		}
		if !c.Connect() {
			return errors.New("deepgram connection failed")
		}
		dg = c
		return nil
	})
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonSTTConnect)
	}
	defer dg.Stop()
	t.logger.Debug("deepgram_connected", "model", t.cfg.Model, "bytes", len(clip.Data))

	if err := dg.Stream(bytes.NewReader(clip.Data)); err != nil && ctx.Err() == nil {
		t.logger.Warn("deepgram_stream_error", "error", err)
	}

	timer := time.NewTimer(t.cfg.SettleTimeout)
	defer timer.Stop()
	select {
	case <-col.done:
	case <-timer.C:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if err := col.failure(); err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonSTTTranscribe)
	}
	text := col.transcript()
	if text == "" {
		return "", stt.ErrNoSpeech
	}
	return text, nil
}

func (t *Transcriber) options(clip audio.Clip) *interfaces.LiveTranscriptionOptions {
	opts := &interfaces.LiveTranscriptionOptions{
		Model:       t.cfg.Model,
		Language:    t.cfg.Language,
		SmartFormat: true,
		Punctuate:   true,
	}
	if clip.Format == "pcm" || t.cfg.Encoding != "" {
		opts.Encoding = t.cfg.Encoding
		if opts.Encoding == "" {
			opts.Encoding = "linear16"
		}
		opts.SampleRate = t.cfg.SampleRate
		if clip.SampleRate > 0 {
			opts.SampleRate = clip.SampleRate
		}
	}
	if t.cfg.UtteranceEndMS > 0 {
		opts.InterimResults = true
		opts.UtteranceEndMs = fmt.Sprintf("%d", t.cfg.UtteranceEndMS)
	}
	return opts
}

// collector accumulates final segments until the utterance is over.
type collector struct {
	mu       sync.Mutex
	segments []string
	err      error
	done     chan struct{}
	once     sync.Once
}

func newCollector() *collector {
	return &collector{done: make(chan struct{})}
}

func (c *collector) add(text string, final, speechFinal bool) {
	text = strings.TrimSpace(text)
	if final && text != "" {
		c.mu.Lock()
		c.segments = append(c.segments, text)
		c.mu.Unlock()
	}
	if speechFinal {
		c.finish()
	}
}

func (c *collector) fail(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
	c.finish()
}

func (c *collector) finish() {
	c.once.Do(func() { close(c.done) })
}

func (c *collector) transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.segments, " ")
}

func (c *collector) failure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// --- Callback Implementation ---

type callback struct {
	col    *collector
	logger *slog.Logger
}

func (c *callback) Open(*msginterfaces.OpenResponse) error {
	c.logger.Debug("deepgram_connection_opened")
	return nil
}

func (c *callback) Message(mr *msginterfaces.MessageResponse) error {
	text := ""
	if len(mr.Channel.Alternatives) > 0 {
		text = mr.Channel.Alternatives[0].Transcript
	}
	c.logger.Debug("transcript_received", "is_final", mr.IsFinal, "speech_final", mr.SpeechFinal)
	c.col.add(text, mr.IsFinal, mr.SpeechFinal)
	return nil
}

func (c *callback) Metadata(md *msginterfaces.MetadataResponse) error {
	c.logger.Debug("deepgram_metadata_received", "request_id", md.RequestID)
	return nil
}

func (c *callback) SpeechStarted(*msginterfaces.SpeechStartedResponse) error {
	return nil
}

func (c *callback) UtteranceEnd(*msginterfaces.UtteranceEndResponse) error {
	c.col.finish()
	return nil
}

func (c *callback) Close(*msginterfaces.CloseResponse) error {
	c.logger.Debug("deepgram_connection_closed")
	c.col.finish()
	return nil
}

func (c *callback) Error(er *msginterfaces.ErrorResponse) error {
	c.logger.Error("deepgram_error", "error_code", er.ErrCode, "error_message", er.ErrMsg)
	c.col.fail(fmt.Errorf("deepgram: %s: %s", er.ErrCode, er.ErrMsg))
	return nil
}

func (c *callback) UnhandledEvent(byData []byte) error {
	c.logger.Debug("deepgram_unhandled_event", "data", string(byData))
	return nil
}

var _ stt.Transcriber = (*Transcriber)(nil)
