package models

import (
	"time"

	"github.com/lib/pq"
)

// RetentionPolicy governs when a user's sessions are archived and purged.
type RetentionPolicy struct {
	ArchiveAfterDays int             `json:"archive_after_days" yaml:"archive_after_days"`
	DeleteAfterDays  int             `json:"delete_after_days" yaml:"delete_after_days"`
	ApplyTo          []SessionStatus `json:"apply_to" yaml:"apply_to"`
}

func (p RetentionPolicy) Applies(s SessionStatus) bool {
	for _, v := range p.ApplyTo {
		if v == s {
			return true
		}
	}
	return false
}

// UserRetentionPolicy is the persisted per-user override of the global policy.
type UserRetentionPolicy struct {
	UserID           string         `gorm:"column:user_id;type:text;primaryKey" json:"user_id"`
	ArchiveAfterDays int            `gorm:"column:archive_after_days;type:integer" json:"archive_after_days"`
	DeleteAfterDays  int            `gorm:"column:delete_after_days;type:integer" json:"delete_after_days"`
	ApplyTo          pq.StringArray `gorm:"column:apply_to;type:text[]" json:"apply_to"`
	UpdatedAt        time.Time      `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (UserRetentionPolicy) TableName() string { return "retention_policies" }

func (u UserRetentionPolicy) Policy() RetentionPolicy {
	p := RetentionPolicy{
		ArchiveAfterDays: u.ArchiveAfterDays,
		DeleteAfterDays:  u.DeleteAfterDays,
	}
	for _, s := range u.ApplyTo {
		p.ApplyTo = append(p.ApplyTo, SessionStatus(s))
	}
	return p
}

func NewUserRetentionPolicy(userID string, p RetentionPolicy) *UserRetentionPolicy {
	row := &UserRetentionPolicy{
		UserID:           userID,
		ArchiveAfterDays: p.ArchiveAfterDays,
		DeleteAfterDays:  p.DeleteAfterDays,
	}
	for _, s := range p.ApplyTo {
		row.ApplyTo = append(row.ApplyTo, string(s))
	}
	return row
}

// RetentionResult summarises one policy application.
type RetentionResult struct {
	Archived   int           `json:"archived"`
	Deleted    int           `json:"deleted"`
	Skipped    int           `json:"skipped"`
	Scanned    int           `json:"scanned"`
	SkippedIDs []ItemOutcome `json:"skipped_items,omitempty"`
	NextOffset int           `json:"next_offset"`
	Done       bool          `json:"done"`
}

// ItemOutcome is the per-id result of a batch operation.
type ItemOutcome struct {
	SessionID string        `json:"session_id"`
	OK        bool          `json:"ok"`
	Status    SessionStatus `json:"status,omitempty"`
	Code      string        `json:"code,omitempty"`
	Error     string        `json:"error,omitempty"`
}
