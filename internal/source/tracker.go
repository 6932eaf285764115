package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	ws "github.com/gorilla/websocket"

	"github.com/robocup-autoref/autoref/pkg/core"
)

// TrackerConfig locates the tracker's websocket feed.
type TrackerConfig struct {
	URL            string        `json:"url" mapstructure:"url"`
	Token          string        `json:"token" mapstructure:"token"`
	ReadTimeout    time.Duration `json:"readTimeout" mapstructure:"readTimeout"`
	InitialBackoff time.Duration `json:"initialBackoff" mapstructure:"initialBackoff"`
	MaxBackoff     time.Duration `json:"maxBackoff" mapstructure:"maxBackoff"`
}

// DefaultTrackerConfig returns settings for a tracker on the local host.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		URL:            "ws://localhost:10010/frames",
		ReadTimeout:    time.Second,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}

// Tracker receives JSON world frames, one per text message. A lost
// connection is re-dialled with exponential backoff until ctx is done.
type Tracker struct {
	cfg    TrackerConfig
	logger *slog.Logger
	dialer *ws.Dialer
	seq    uint64
}

// NewTracker creates a tracker source.
func NewTracker(logger *slog.Logger, cfg TrackerConfig) *Tracker {
	def := DefaultTrackerConfig()
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	return &Tracker{cfg: cfg, logger: logger, dialer: ws.DefaultDialer}
}

// Run blocks until ctx is done or sink fails. Cancellation returns nil.
func (t *Tracker) Run(ctx context.Context, sink Sink) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.cfg.InitialBackoff
	b.MaxInterval = t.cfg.MaxBackoff

	for {
		conn, err := backoff.Retry(ctx, func() (*ws.Conn, error) {
			return t.dial(ctx)
		},
			backoff.WithBackOff(b),
			backoff.WithMaxElapsedTime(0),
			backoff.WithNotify(func(err error, d time.Duration) {
				t.logger.Warn("tracker dial failed", "error", err, "retryIn", d)
			}),
		)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		t.logger.Info("tracker connected", "url", t.cfg.URL)

		err = t.read(ctx, conn, sink)
		if ctx.Err() != nil {
			return nil
		}
		var sinkErr *sinkError
		if errors.As(err, &sinkErr) {
			return sinkErr.err
		}
		t.logger.Warn("tracker connection lost", "error", err)
		b.Reset()
	}
}

// dial performs a single websocket dial with the token query param.
func (t *Tracker) dial(ctx context.Context) (*ws.Conn, error) {
	u, err := url.Parse(t.cfg.URL)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("invalid tracker URL: %w", err))
	}
	if t.cfg.Token != "" {
		q := u.Query()
		q.Set("token", t.cfg.Token)
		u.RawQuery = q.Encode()
	}

	conn, _, err := t.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

type sinkError struct{ err error }

func (e *sinkError) Error() string { return e.err.Error() }

func (t *Tracker) read(ctx context.Context, conn *ws.Conn, sink Sink) error {
	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer func() {
		if stop() {
			_ = conn.Close()
		}
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(t.cfg.ReadTimeout)); err != nil {
			return err
		}
		kind, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if kind != ws.TextMessage {
			continue
		}

		var f core.WorldFrame
		if err := json.Unmarshal(message, &f); err != nil {
			t.logger.Debug("dropping malformed frame", "error", err)
			continue
		}
		t.seq++
		if f.Seq == 0 {
			f.Seq = t.seq
		}
		if err := sink(ctx, f); err != nil {
			return &sinkError{err: err}
		}
	}
}
