// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/robocup-autoref/autoref/internal/model"
	"github.com/robocup-autoref/autoref/pkg/core"
)

// payloadToJSON marshals a decision payload. A nil payload is stored as null.
func payloadToJSON(v any) (datatypes.JSON, error) {
	if v == nil {
		return datatypes.JSON("null"), nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return datatypes.JSON(raw), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return datatypes.JSON(data), nil
}

// CoreToDecision converts a core.DecisionEntry to a GORM model.Decision.
// The session is stamped by the writer.
func CoreToDecision(e core.DecisionEntry) (model.Decision, error) {
	payload, err := payloadToJSON(e.Payload)
	if err != nil {
		return model.Decision{}, err
	}
	return model.Decision{
		ID:      e.ID,
		Time:    e.Time,
		Kind:    string(e.Kind),
		State:   e.GameState.State.String(),
		ForTeam: e.GameState.ForTeam.String(),
		Team:    e.Team.String(),
		Name:    e.Name,
		Details: e.Details,
		Payload: payload,
	}, nil
}
