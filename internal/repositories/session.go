// Package repositories defines the storage contracts shared by the mongo and
// memory session stores.
package repositories

import (
	"context"
	"strings"

	"github.com/yoockh/prepdeck/internal/models"
)

// SessionRepository owns the canonical InterviewSession records.
//
// Every write is atomic per session id. Update is conditional on the caller's
// version stamp and returns utils.ErrConflict when another write got there
// first; Get/Update return utils.ErrNotFound for unknown ids.
type SessionRepository interface {
	Create(ctx context.Context, s *models.InterviewSession) error
	Get(ctx context.Context, sessionID string) (*models.InterviewSession, error)
	Update(ctx context.Context, sessionID string, expectedVersion int64, patch models.SessionPatch) (*models.InterviewSession, error)
	Query(ctx context.Context, candidateID string, f models.SessionFilter, page, pageSize int) ([]models.InterviewSession, int64, error)
	Delete(ctx context.Context, sessionID string) error
	// StorageStats groups counts and serialized sizes by status; an empty
	// candidateID covers every user.
	StorageStats(ctx context.Context, candidateID string) ([]models.StatusUsage, error)
}

// Matches evaluates f against s the same way the mongo store's query does.
func Matches(f models.SessionFilter, s *models.InterviewSession) bool {
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if f.InterviewType != "" && s.Configuration.InterviewType != f.InterviewType {
		return false
	}
	if f.Interviewer != "" && s.Configuration.Interviewer != f.Interviewer {
		return false
	}
	if f.Difficulty != "" && s.Configuration.Difficulty != f.Difficulty {
		return false
	}
	if f.From != nil && s.StartedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && s.StartedAt.After(*f.To) {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(SearchText(s)), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

// SearchText is the concatenation the free-text filter scans.
func SearchText(s *models.InterviewSession) string {
	var b strings.Builder
	for _, q := range s.Questions {
		b.WriteString(q.Text)
		b.WriteByte('\n')
	}
	if s.Feedback != nil {
		b.WriteString(s.Feedback.Notes)
	}
	return b.String()
}

// Before reports whether a sorts ahead of b: started_at descending,
// then session id ascending.
func Before(a, b *models.InterviewSession) bool {
	if !a.StartedAt.Equal(b.StartedAt) {
		return a.StartedAt.After(b.StartedAt)
	}
	return a.SessionID < b.SessionID
}
