package influx

import (
	"context"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/robocup-autoref/autoref/internal/monitor"
	"github.com/robocup-autoref/autoref/pkg/core"
)

// DecisionPoint renders a journal entry as an autoref_decisions point.
func DecisionPoint(e core.DecisionEntry) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(BucketDecisions).
		AddTag("kind", string(e.Kind)).
		AddTag("state", e.GameState.State.String()).
		AddField("count", 1).
		SetTime(e.Time)
	if e.Name != "" {
		p.AddTag("name", e.Name)
	}
	if e.Team.IsNonNeutral() {
		p.AddTag("team", e.Team.String())
	}
	if e.Details != "" {
		p.AddField("details", e.Details)
	}
	return p.SortTags().SortFields()
}

// SnapshotPoint renders the runner status as an autoref_runtime point.
func SnapshotPoint(s monitor.Snapshot, at time.Time) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(BucketRuntime).
		AddTag("mode", s.Mode).
		AddField("ticks", int64(s.Ticks)).
		AddField("dropped", int64(s.Dropped)).
		AddField("pending", s.Pending).
		AddField("connected", s.Connected).
		AddField("paused", s.Paused).
		SetTime(at)
	if s.Phase != "" {
		p.AddTag("phase", s.Phase)
	}
	for team, n := range s.Failures {
		p.AddField("placement_failures_"+team, n)
	}
	return p.SortTags().SortFields()
}

// Attach writes every decision published on hub.
func (m *Manager) Attach(hub *monitor.Hub) {
	hub.OnDecision(func(e core.DecisionEntry) {
		if err := m.WritePoint(BucketDecisions, DecisionPoint(e)); err != nil {
			m.Logger.Debug().Err(err).Msg("Dropping decision point")
		}
	})
}

// Run samples the hub snapshot every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, hub *monitor.Hub, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := m.WritePoint(BucketRuntime, SnapshotPoint(hub.Snapshot(), now)); err != nil {
				m.Logger.Debug().Err(err).Msg("Dropping runtime point")
			}
		}
	}
}
