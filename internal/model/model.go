package model

import (
	"time"

	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Session{},
	&Decision{},
}

// Session is one run of the autoref process.
type Session struct {
	ID         uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	StartedAt  time.Time `json:"startedAt" gorm:"NOT NULL;"`
	Identifier string    `json:"identifier" gorm:"size:64"`
	Mode       string    `json:"mode" gorm:"size:16"`
	Division   string    `json:"division" gorm:"size:8"`
}

func (*Session) TableName() string {
	return "sessions"
}

// Decision is a journal row. Payload holds the JSON of the violation,
// command or reply that caused it.
type Decision struct {
	ID        uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID uint           `json:"sessionId" gorm:"index:idx_decision_session_id"`
	Session   Session        `json:"session" gorm:"foreignkey:SessionID;"`
	Time      time.Time      `json:"time" gorm:"NOT NULL;index:idx_decision_time"`
	Kind      string         `json:"kind" gorm:"size:16;index:idx_decision_kind"`
	State     string         `json:"state" gorm:"size:32"`
	ForTeam   string         `json:"forTeam" gorm:"size:8"`
	Team      string         `json:"team" gorm:"size:8"`
	Name      string         `json:"name" gorm:"size:64"`
	Details   string         `json:"details"`
	Payload   datatypes.JSON `json:"payload"`
}

func (*Decision) TableName() string {
	return "decisions"
}
