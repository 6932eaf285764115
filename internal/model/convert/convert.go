package convert

import (
	"encoding/json"

	"github.com/robocup-autoref/autoref/internal/model"
	"github.com/robocup-autoref/autoref/pkg/core"
)

// DecisionToCore converts a GORM Decision back to a core.DecisionEntry.
// Unknown enum names fall back to the zero value; the payload is kept as
// raw JSON.
func DecisionToCore(d model.Decision) core.DecisionEntry {
	e := core.DecisionEntry{
		ID:      d.ID,
		Kind:    core.DecisionKind(d.Kind),
		Time:    d.Time,
		Name:    d.Name,
		Details: d.Details,
	}
	_ = e.GameState.State.UnmarshalText([]byte(d.State))
	_ = e.GameState.ForTeam.UnmarshalText([]byte(d.ForTeam))
	_ = e.Team.UnmarshalText([]byte(d.Team))
	if len(d.Payload) > 0 && string(d.Payload) != "null" {
		e.Payload = json.RawMessage(d.Payload)
	}
	return e
}
