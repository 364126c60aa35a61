package model

import (
	"time"

	"gorm.io/datatypes"
)

// ResearchSessionRecord is the persisted form of one company session: the
// serialized transcript/ledger payload keyed by company name.
type ResearchSessionRecord struct {
	Company   string         `gorm:"primaryKey;size:255" json:"company"`
	Payload   datatypes.JSON `json:"payload"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (ResearchSessionRecord) TableName() string {
	return "research_sessions"
}

// SessionAuxRecord holds session-scoped auxiliary state (consent flags,
// derived caches) that a full reset must also wipe.
type SessionAuxRecord struct {
	Company   string         `gorm:"primaryKey;size:255" json:"company"`
	AuxKey    string         `gorm:"primaryKey;size:100" json:"aux_key"`
	Value     datatypes.JSON `json:"value"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (SessionAuxRecord) TableName() string {
	return "research_session_aux"
}
