// Package protocol implements the records exchanged with the game controller
// over the autoref connection. Records are protobuf-wire encoded and framed
// with a varint length prefix.
package protocol

import (
	"time"

	"github.com/robocup-autoref/autoref/pkg/core"
)

// StatusCode is the outcome carried in every controller reply.
type StatusCode int

const (
	StatusUnknown StatusCode = iota
	StatusOK
	StatusRejected
)

func (s StatusCode) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// Signature authenticates one outbound record. Token is the most recent
// token issued by the controller, PKCS1v15 the RSA signature over the record
// serialized with an empty PKCS1v15 field.
type Signature struct {
	Token    string
	PKCS1v15 []byte
}

// Registration is the first record an autoref sends on a new connection.
type Registration struct {
	Identifier string
	Signature  *Signature
}

// ConfigEntry sets the accept policy for one event type.
type ConfigEntry struct {
	EventType core.ViolationType
	Accept    bool
}

// ConfigDelta is a partial update of the per-event-type accept policy.
type ConfigDelta struct {
	Entries []ConfigEntry
}

// AutoRefToController is a steady-state outbound record. It carries a game
// event, a referee command, a config delta, or a combination.
type AutoRefToController struct {
	Signature   *Signature
	GameEvent   *core.GameEvent
	Command     core.Command
	ConfigDelta *ConfigDelta
	// Designation is the ball placement target of a BALL_PLACEMENT command.
	Designation *core.Vec2
}

// ControllerReply answers exactly one outbound record.
type ControllerReply struct {
	Status    StatusCode
	Reason    string
	NextToken string
}

// ControllerToAutoRef is any inbound record: a reply, a pushed config
// delta, or both.
type ControllerToAutoRef struct {
	Reply       *ControllerReply
	ConfigDelta *ConfigDelta
}

// FromCommand builds the outbound record for a decision.
func FromCommand(cmd core.RefboxCommand) *AutoRefToController {
	return &AutoRefToController{
		GameEvent:   cmd.Event,
		Command:     cmd.Command,
		Designation: cmd.Designation,
	}
}

func unixMicro(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func fromUnixMicro(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.UnixMicro(v).UTC()
}
