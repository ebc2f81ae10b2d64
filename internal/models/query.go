package models

import "time"

// SessionFilter holds the optional predicates of a session query; all are ANDed.
type SessionFilter struct {
	Status        SessionStatus `json:"status,omitempty"`
	InterviewType InterviewType `json:"interview_type,omitempty"`
	Interviewer   string        `json:"interviewer,omitempty"`
	Difficulty    Difficulty    `json:"difficulty,omitempty"`
	From          *time.Time    `json:"from,omitempty"` // started_at >= From
	To            *time.Time    `json:"to,omitempty"`   // started_at <= To
	Search        string        `json:"search,omitempty"`
}

type SessionPage struct {
	Sessions []InterviewSession `json:"sessions"`
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
}

// StatusUsage is the storage footprint of one status bucket.
type StatusUsage struct {
	Status         SessionStatus `json:"status" bson:"_id"`
	Count          int64         `json:"count" bson:"count"`
	EstimatedBytes int64         `json:"estimated_bytes" bson:"bytes"`
}

type StorageStats struct {
	UserID         string        `json:"user_id,omitempty"`
	ByStatus       []StatusUsage `json:"by_status"`
	TotalCount     int64         `json:"total_count"`
	EstimatedBytes int64         `json:"estimated_bytes"`
}
