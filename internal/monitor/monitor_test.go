package monitor

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robocup-autoref/autoref/internal/engine"
	"github.com/robocup-autoref/autoref/internal/phase"
	"github.com/robocup-autoref/autoref/pkg/core"
)

func TestHub_FansOutPerKind(t *testing.T) {
	h := NewHub()
	var commands, violations int
	h.OnCommand(func(CommandEvent) { commands++ })
	h.OnCommand(func(CommandEvent) { commands++ })
	h.OnViolation(func(ViolationEvent) { violations++ })

	h.PublishCommand(CommandEvent{Command: core.NewCommand(core.CommandStop), Sent: true})
	h.PublishPhase(PhaseEvent{Phase: phase.Stopped})

	assert.Equal(t, 2, commands)
	assert.Zero(t, violations)
}

func TestHub_OnDecision(t *testing.T) {
	h := NewHub()
	var got []core.DecisionEntry
	h.OnDecision(func(e core.DecisionEntry) { got = append(got, e) })

	ts := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	running := core.GameState{State: core.StateRunning}
	v := core.RuleViolation{Type: core.ViolationBotCrashUnique, Team: core.TeamBlue, Timestamp: ts}

	h.PublishViolation(ViolationEvent{Time: ts, GameState: running, Violation: v})
	h.PublishCommand(CommandEvent{Time: ts, GameState: running, Command: core.RefboxCommand{Command: core.CommandStop, Event: v.Event()}, Sent: true})
	h.PublishCommand(CommandEvent{Time: ts, Command: core.NewEventReport(v.Event())})
	h.PublishPhase(PhaseEvent{Time: ts, Phase: phase.Stopped})
	h.PublishMode(ModeEvent{Time: ts, Mode: engine.Passive, Paused: true})
	h.PublishReply(ReplyEvent{Time: ts, Status: "REJECTED", Reason: "late"})

	require.Len(t, got, 6)
	assert.Equal(t, core.DecisionViolation, got[0].Kind)
	assert.Equal(t, "BOT_CRASH_UNIQUE", got[0].Name)
	assert.Equal(t, core.TeamBlue, got[0].Team)

	assert.Equal(t, core.DecisionCommand, got[1].Kind)
	assert.Equal(t, "STOP", got[1].Name)
	assert.Equal(t, "BOT_CRASH_UNIQUE", got[1].Details)
	assert.Equal(t, "not sent BOT_CRASH_UNIQUE", got[2].Details)

	assert.Equal(t, "STOPPED", got[3].Name)
	assert.Equal(t, "none", got[3].Details)
	assert.Equal(t, core.DecisionMode, got[4].Kind)
	assert.Equal(t, "passive", got[4].Name)
	assert.Equal(t, "paused", got[4].Details)
	assert.Equal(t, core.DecisionReply, got[5].Kind)
	assert.Equal(t, "late", got[5].Details)
}

func TestService_WritesStatusFile(t *testing.T) {
	h := NewHub()
	h.SetSnapshot(Snapshot{Mode: "active", Phase: "RUNNING", Ticks: 42})

	path := filepath.Join(t.TempDir(), "status.txt")
	s := NewService(Dependencies{
		Hub:        h,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		StatusFile: path,
		Interval:   10 * time.Millisecond,
	})
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())

	require.Eventually(t, func() bool {
		b, err := os.ReadFile(path)
		if err != nil || len(b) == 0 {
			return false
		}
		var snap Snapshot
		return json.Unmarshal(b, &snap) == nil && snap.Ticks == 42
	}, time.Second, 10*time.Millisecond)

	s.Stop()
	s.Stop()
	assert.False(t, s.IsRunning())
}

func TestService_StatusWithoutFile(t *testing.T) {
	h := NewHub()
	h.SetSnapshot(Snapshot{Mode: "off"})
	s := NewService(Dependencies{Hub: h, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})

	require.NoError(t, s.Start())
	assert.Contains(t, s.Status(), `"mode": "off"`)
	s.Stop()
}
