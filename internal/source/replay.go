package source

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/robocup-autoref/autoref/pkg/core"
)

const maxLineSize = 4 << 20

// ReplayConfig selects a recording of JSON world frames, one per line.
// Files ending in ".gz" are decompressed on the fly.
type ReplayConfig struct {
	Path string `json:"path" mapstructure:"path"`
	// Speed scales the recorded frame spacing. Zero replays as fast as the
	// sink accepts frames.
	Speed float64 `json:"speed" mapstructure:"speed"`
}

// Replay plays back a recorded match.
type Replay struct {
	cfg    ReplayConfig
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewReplay creates a replay source.
func NewReplay(logger *slog.Logger, cfg ReplayConfig) *Replay {
	return &Replay{cfg: cfg, logger: logger, sleep: sleepCtx}
}

// Run replays the file once. Cancellation returns nil.
func (r *Replay) Run(ctx context.Context, sink Sink) error {
	f, err := os.Open(r.cfg.Path)
	if err != nil {
		return fmt.Errorf("open replay: %w", err)
	}
	defer f.Close()

	var in io.Reader = f
	if strings.HasSuffix(r.cfg.Path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("open replay: %w", err)
		}
		defer gz.Close()
		in = gz
	}

	n, err := r.play(ctx, in, sink)
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return err
	}
	r.logger.Info("replay finished", "path", r.cfg.Path, "frames", n)
	return nil
}

func (r *Replay) play(ctx context.Context, in io.Reader, sink Sink) (int, error) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		prev  time.Time
		count int
		line  int
	)
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var f core.WorldFrame
		if err := json.Unmarshal([]byte(text), &f); err != nil {
			return count, fmt.Errorf("replay line %d: %w", line, err)
		}
		if f.Seq == 0 {
			f.Seq = uint64(count + 1)
		}

		if r.cfg.Speed > 0 && !prev.IsZero() && f.Timestamp.After(prev) {
			gap := time.Duration(float64(f.Timestamp.Sub(prev)) / r.cfg.Speed)
			if err := r.sleep(ctx, gap); err != nil {
				return count, err
			}
		}
		prev = f.Timestamp

		if err := sink(ctx, f); err != nil {
			return count, err
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("read replay: %w", err)
	}
	return count, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
