// Package memory provides a process-local SessionRepository backed by a
// mutex-guarded map. It serves single-node deployments and tests.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/yoockh/prepdeck/internal/models"
	"github.com/yoockh/prepdeck/internal/repositories"
	"github.com/yoockh/prepdeck/internal/utils"
)

type sessionRepo struct {
	mu   sync.RWMutex
	byID map[string]*models.InterviewSession
}

func NewSessionRepo() repositories.SessionRepository {
	return &sessionRepo{byID: map[string]*models.InterviewSession{}}
}

func (r *sessionRepo) Create(ctx context.Context, s *models.InterviewSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[s.SessionID]; ok {
		return utils.ErrConflict
	}
	stored := s.Clone()
	stored.Version = 1
	r.byID[s.SessionID] = stored
	s.Version = 1
	return nil
}

func (r *sessionRepo) Get(ctx context.Context, sessionID string) (*models.InterviewSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byID[sessionID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return s.Clone(), nil
}

func (r *sessionRepo) Update(ctx context.Context, sessionID string, expectedVersion int64, patch models.SessionPatch) (*models.InterviewSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[sessionID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	if s.Version != expectedVersion {
		return nil, utils.ErrConflict
	}

	next := s.Clone()
	patch.Apply(next)
	// detach from slices the caller still holds
	next = next.Clone()
	next.Version++
	r.byID[sessionID] = next
	return next.Clone(), nil
}

func (r *sessionRepo) Query(ctx context.Context, candidateID string, f models.SessionFilter, page, pageSize int) ([]models.InterviewSession, int64, error) {
	r.mu.RLock()
	matched := make([]*models.InterviewSession, 0)
	for _, s := range r.byID {
		if s.CandidateID == candidateID && repositories.Matches(f, s) {
			matched = append(matched, s)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return repositories.Before(matched[i], matched[j]) })

	total := int64(len(matched))
	if page < 1 || pageSize < 1 {
		return []models.InterviewSession{}, total, nil
	}
	start := (page - 1) * pageSize
	if start >= len(matched) {
		return []models.InterviewSession{}, total, nil
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}

	out := make([]models.InterviewSession, 0, end-start)
	for _, s := range matched[start:end] {
		out = append(out, *s.Clone())
	}
	return out, total, nil
}

func (r *sessionRepo) Delete(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byID, sessionID)
	return nil
}

func (r *sessionRepo) StorageStats(ctx context.Context, candidateID string) ([]models.StatusUsage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byStatus := map[models.SessionStatus]*models.StatusUsage{}
	for _, s := range r.byID {
		if candidateID != "" && s.CandidateID != candidateID {
			continue
		}
		b, err := json.Marshal(s)
		if err != nil {
			return nil, err
		}
		u, ok := byStatus[s.Status]
		if !ok {
			u = &models.StatusUsage{Status: s.Status}
			byStatus[s.Status] = u
		}
		u.Count++
		u.EstimatedBytes += int64(len(b))
	}

	out := make([]models.StatusUsage, 0, len(byStatus))
	for _, u := range byStatus {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out, nil
}
