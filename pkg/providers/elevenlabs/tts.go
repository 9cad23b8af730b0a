package elevenlabs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/harunnryd/voxa/pkg/adapters/tts"
	"github.com/harunnryd/voxa/pkg/audio"
	"github.com/harunnryd/voxa/pkg/errorsx"
	"github.com/harunnryd/voxa/pkg/logging"
	"github.com/harunnryd/voxa/pkg/resilience"
)

const defaultBaseURL = "wss://api.elevenlabs.io"

type Config struct {
	APIKey       string
	VoiceID      string
	ModelID      string
	OutputFormat string
	// BaseURL overrides the websocket endpoint host, e.g. ws://127.0.0.1:8080.
	BaseURL string
	Timeout time.Duration
	Retries int
	Logger  *slog.Logger
}

// Synthesizer renders a whole reply over one stream-input connection.
type Synthesizer struct {
	cfg    Config
	dialer websocket.Dialer
	retry  resilience.RetryPolicy
	logger *slog.Logger
}

func New(cfg Config) *Synthesizer {
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = "mp3_44100_128"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	retry := resilience.NewRetryPolicy(cfg.Retries, 250*time.Millisecond)
	retry.Retryable = func(err error) bool { return !resilience.IsRateLimit(err) }
	return &Synthesizer{
		cfg:    cfg,
		dialer: websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: 10 * time.Second},
		retry:  retry,
		logger: logging.NewComponentLogger(cfg.Logger, "elevenlabs_tts"),
	}
}

func (s *Synthesizer) Name() string { return "elevenlabs" }

type inbound struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Synthesizer) Synthesize(ctx context.Context, text string) (audio.Clip, error) {
	text = strings.TrimSpace(text)
	format, rate := parseOutputFormat(s.cfg.OutputFormat)
	clip := audio.Clip{Format: format, SampleRate: rate}
	if text == "" {
		return clip, nil
	}
	if s.cfg.APIKey == "" || s.cfg.VoiceID == "" {
		return clip, errorsx.Errorf(errorsx.ReasonTTSConnect, "missing elevenlabs config")
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var conn *websocket.Conn
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		c, err := s.dial(ctx)
		if err != nil {
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return clip, errorsx.Wrap(err, errorsx.ReasonTTSConnect)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for _, payload := range []map[string]any{
		{
			"text": " ",
			"voice_settings": map[string]any{
				"stability":        0.5,
				"similarity_boost": 0.8,
			},
		},
		{"text": text + " ", "try_trigger_generation": true},
		{"text": ""},
	} {
		if err := conn.WriteJSON(payload); err != nil {
			return clip, errorsx.Wrap(err, errorsx.ReasonTTSSynthesize)
		}
	}

	var buf bytes.Buffer
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return clip, errorsx.Wrap(ctx.Err(), errorsx.ReasonTTSSynthesize)
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) && buf.Len() > 0 {
				break
			}
			return clip, errorsx.Wrap(err, errorsx.ReasonTTSSynthesize)
		}
		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("tts_unparsed_message", "size_bytes", len(data))
			continue
		}
		if msg.Error != "" {
			return clip, errorsx.Errorf(errorsx.ReasonTTSSynthesize, "elevenlabs: %s: %s", msg.Error, msg.Message)
		}
		if msg.Audio != "" {
			raw, err := base64.StdEncoding.DecodeString(msg.Audio)
			if err != nil {
				return clip, errorsx.Wrap(err, errorsx.ReasonTTSSynthesize)
			}
			buf.Write(raw)
			s.logger.Debug("tts_audio_chunk", "size_bytes", len(raw))
		}
		if msg.IsFinal {
			break
		}
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	clip.Data = buf.Bytes()
	s.logger.Debug("tts_completed", "size_bytes", len(clip.Data), "format", clip.Format)
	return clip, nil
}

func (s *Synthesizer) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := s.buildURL()
	if err != nil {
		return nil, err
	}
	conn, resp, err := s.dialer.DialContext(ctx, u, http.Header{"xi-api-key": []string{s.cfg.APIKey}})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			s.logger.Error("tts_rate_limited", "status", resp.Status)
			return nil, resilience.RateLimitError{Provider: "elevenlabs", Message: resp.Status}
		}
		s.logger.Error("tts_connect_failed", "error", err)
		return nil, err
	}
	s.logger.Debug("tts_connected", "output_format", s.cfg.OutputFormat)
	return conn, nil
}

func (s *Synthesizer) buildURL() (string, error) {
	base, err := url.Parse(strings.TrimRight(s.cfg.BaseURL, "/"))
	if err != nil {
		return "", err
	}
	if base.Scheme != "ws" && base.Scheme != "wss" {
		return "", errors.New("elevenlabs base url must use ws or wss")
	}
	base.Path += "/v1/text-to-speech/" + url.PathEscape(s.cfg.VoiceID) + "/stream-input"
	q := url.Values{}
	if s.cfg.ModelID != "" {
		q.Set("model_id", s.cfg.ModelID)
	}
	q.Set("output_format", s.cfg.OutputFormat)
	base.RawQuery = q.Encode()
	return base.String(), nil
}

// parseOutputFormat maps vendor formats like "mp3_44100_128" or
// "pcm_16000" to a clip format and sample rate.
func parseOutputFormat(format string) (string, int) {
	parts := strings.Split(format, "_")
	rate := 0
	if len(parts) > 1 {
		rate, _ = strconv.Atoi(parts[1])
	}
	return parts[0], rate
}

var _ tts.Synthesizer = (*Synthesizer)(nil)
