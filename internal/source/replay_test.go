package source

import (
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robocup-autoref/autoref/pkg/core"
)

func writeRecording(t *testing.T, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	data := strings.Join(lines, "\n") + "\n"
	if strings.HasSuffix(name, ".gz") {
		f, err := os.Create(path)
		require.NoError(t, err)
		gz := gzip.NewWriter(f)
		_, err = gz.Write([]byte(data))
		require.NoError(t, err)
		require.NoError(t, gz.Close())
		require.NoError(t, f.Close())
		return path
	}
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func collect(frames *[]core.WorldFrame) Sink {
	return func(_ context.Context, f core.WorldFrame) error {
		*frames = append(*frames, f)
		return nil
	}
}

func TestReplay_PlaysEveryLine(t *testing.T) {
	path := writeRecording(t, "match.jsonl",
		encode(t, frameAt(0, 1)),
		"",
		encode(t, frameAt(16, 2)),
		encode(t, frameAt(32, 3)),
	)

	var got []core.WorldFrame
	require.NoError(t, NewReplay(discard(), ReplayConfig{Path: path}).Run(context.Background(), collect(&got)))

	require.Len(t, got, 3)
	assert.Equal(t, uint64(3), got[2].Seq)
	assert.Equal(t, t0.Add(32*time.Millisecond), got[2].Timestamp)
}

func TestReplay_Gzip(t *testing.T) {
	path := writeRecording(t, "match.jsonl.gz", encode(t, frameAt(0, 1)), encode(t, frameAt(16, 2)))

	var got []core.WorldFrame
	require.NoError(t, NewReplay(discard(), ReplayConfig{Path: path}).Run(context.Background(), collect(&got)))
	assert.Len(t, got, 2)
}

func TestReplay_PacesBySpeed(t *testing.T) {
	path := writeRecording(t, "match.jsonl",
		encode(t, frameAt(0, 1)),
		encode(t, frameAt(100, 2)),
		encode(t, frameAt(300, 3)),
	)

	r := NewReplay(discard(), ReplayConfig{Path: path, Speed: 2})
	var gaps []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		gaps = append(gaps, d)
		return nil
	}

	var got []core.WorldFrame
	require.NoError(t, r.Run(context.Background(), collect(&got)))
	assert.Len(t, got, 3)
	assert.Equal(t, []time.Duration{50 * time.Millisecond, 100 * time.Millisecond}, gaps)
}

func TestReplay_MalformedLine(t *testing.T) {
	path := writeRecording(t, "match.jsonl", encode(t, frameAt(0, 1)), "{oops")

	var got []core.WorldFrame
	err := NewReplay(discard(), ReplayConfig{Path: path}).Run(context.Background(), collect(&got))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
	assert.Len(t, got, 1)
}

func TestReplay_MissingFile(t *testing.T) {
	err := NewReplay(discard(), ReplayConfig{Path: filepath.Join(t.TempDir(), "none.jsonl")}).
		Run(context.Background(), func(context.Context, core.WorldFrame) error { return nil })
	assert.Error(t, err)
}

func TestReplay_CancelStops(t *testing.T) {
	path := writeRecording(t, "match.jsonl", encode(t, frameAt(0, 1)), encode(t, frameAt(16, 2)))

	ctx, cancel := context.WithCancel(context.Background())
	count := 0
	err := NewReplay(discard(), ReplayConfig{Path: path}).Run(ctx, func(ctx context.Context, f core.WorldFrame) error {
		count++
		cancel()
		return ctx.Err()
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}
