package convert

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/robocup-autoref/autoref/internal/model"
	"github.com/robocup-autoref/autoref/pkg/core"
)

func TestDecisionToCore(t *testing.T) {
	ts := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	d := model.Decision{
		ID:      7,
		Time:    ts,
		Kind:    "command",
		State:   "STOP",
		ForTeam: "NEUTRAL",
		Team:    "BLUE",
		Name:    "STOP",
		Details: "BALL_LEFT_FIELD",
		Payload: datatypes.JSON(`{"command":"STOP"}`),
	}

	e := DecisionToCore(d)
	assert.Equal(t, uint(7), e.ID)
	assert.Equal(t, core.DecisionCommand, e.Kind)
	assert.Equal(t, core.GameState{State: core.StateStop}, e.GameState)
	assert.Equal(t, core.TeamBlue, e.Team)
	raw, ok := e.Payload.(json.RawMessage)
	require.True(t, ok)
	assert.JSONEq(t, `{"command":"STOP"}`, string(raw))
}

func TestDecisionToCore_RoundTrip(t *testing.T) {
	e := core.DecisionEntry{
		Kind:      core.DecisionPhase,
		Time:      time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC),
		GameState: core.GameState{State: core.StatePrepareKickoff, ForTeam: core.TeamYellow},
		Name:      "KICKOFF",
	}
	d, err := CoreToDecision(e)
	require.NoError(t, err)

	back := DecisionToCore(d)
	assert.Equal(t, e, back)
}

func TestDecisionToCore_UnknownNames(t *testing.T) {
	e := DecisionToCore(model.Decision{State: "SOMETHING", Team: "GREEN"})
	assert.Equal(t, core.StateUnknown, e.GameState.State)
	assert.Equal(t, core.TeamNeutral, e.Team)
	assert.Nil(t, e.Payload)
}
