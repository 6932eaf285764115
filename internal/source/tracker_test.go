package source

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robocup-autoref/autoref/pkg/core"
)

var t0 = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func frameAt(ms int, x float64) core.WorldFrame {
	return core.WorldFrame{
		Timestamp: t0.Add(time.Duration(ms) * time.Millisecond),
		Ball:      core.Ball{Pos: core.Vec2{X: x}, Visible: true},
		Referee:   core.RefereeMsg{GameState: core.GameState{State: core.StateRunning}},
	}
}

// trackerServer serves one batch of messages per connection and then hangs
// up. Tokens seen in the query string are recorded.
func trackerServer(t *testing.T, batches ...[]string) (*httptest.Server, *atomic.Int32, *sync.Map) {
	t.Helper()
	var conns atomic.Int32
	tokens := &sync.Map{}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(conns.Add(1)) - 1
		tokens.Store(r.URL.Query().Get("token"), true)
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		if n >= len(batches) {
			// Keep the last connection open until the client leaves.
			for {
				if _, _, err := c.ReadMessage(); err != nil {
					return
				}
			}
		}
		for _, msg := range batches[n] {
			if err := c.WriteMessage(ws.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &conns, tokens
}

func encode(t *testing.T, f core.WorldFrame) string {
	t.Helper()
	b, err := json.Marshal(f)
	require.NoError(t, err)
	return string(b)
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestTracker_ReconnectsAndSkipsMalformed(t *testing.T) {
	srv, conns, tokens := trackerServer(t,
		[]string{encode(t, frameAt(0, 1)), "{not json", encode(t, frameAt(16, 2))},
		[]string{encode(t, frameAt(32, 3))},
	)

	tr := NewTracker(discard(), TrackerConfig{
		URL:            wsURL(srv),
		Token:          "s3cret",
		InitialBackoff: 5 * time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []core.WorldFrame
	errCh := make(chan error, 1)
	go func() {
		errCh <- tr.Run(ctx, func(_ context.Context, f core.WorldFrame) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, f)
			if len(got) == 3 {
				cancel()
			}
			return nil
		})
	}()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("tracker did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 3)
	for i, f := range got {
		assert.Equal(t, float64(i+1), f.Ball.Pos.X)
		assert.Equal(t, core.StateRunning, f.Referee.GameState.State)
	}
	assert.Equal(t, []uint64{1, 2, 3}, []uint64{got[0].Seq, got[1].Seq, got[2].Seq})
	assert.GreaterOrEqual(t, conns.Load(), int32(2))
	_, ok := tokens.Load("s3cret")
	assert.True(t, ok)
}

func TestTracker_SinkErrorStops(t *testing.T) {
	srv, _, _ := trackerServer(t, []string{encode(t, frameAt(0, 1))})
	tr := NewTracker(discard(), TrackerConfig{URL: wsURL(srv)})

	boom := errors.New("runner closed")
	err := tr.Run(context.Background(), func(context.Context, core.WorldFrame) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestTracker_InvalidURL(t *testing.T) {
	tr := NewTracker(discard(), TrackerConfig{URL: "://nope"})
	err := tr.Run(context.Background(), func(context.Context, core.WorldFrame) error { return nil })
	assert.Error(t, err)
}

func TestTracker_CancelWhileDialling(t *testing.T) {
	tr := NewTracker(discard(), TrackerConfig{
		URL:            "ws://127.0.0.1:1/frames",
		InitialBackoff: 5 * time.Millisecond,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := tr.Run(ctx, func(context.Context, core.WorldFrame) error { return nil })
	assert.NoError(t, err)
}
