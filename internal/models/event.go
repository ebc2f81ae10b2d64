package models

import (
	"time"

	"gorm.io/datatypes"
)

// SessionEvent records one accepted lifecycle transition.
type SessionEvent struct {
	ID         string         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SessionID  string         `gorm:"column:session_id;type:text;index" json:"session_id"`
	UserID     string         `gorm:"column:user_id;type:text;index" json:"user_id"`
	FromStatus string         `gorm:"column:from_status;type:text" json:"from_status"`
	ToStatus   string         `gorm:"column:to_status;type:text" json:"to_status"`
	Timestamp  time.Time      `gorm:"column:timestamp;type:timestamptz;index" json:"timestamp"`
	Metadata   datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
}

func (SessionEvent) TableName() string { return "session_events" }
