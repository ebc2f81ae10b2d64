package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/yoockh/prepdeck/internal/cache"
	"github.com/yoockh/prepdeck/internal/lifecycle"
	"github.com/yoockh/prepdeck/internal/models"
	"github.com/yoockh/prepdeck/internal/observability"
	"github.com/yoockh/prepdeck/internal/repositories"
	pgrepo "github.com/yoockh/prepdeck/internal/repositories/postgres"
	"github.com/yoockh/prepdeck/internal/utils"
)

// maxWriteAttempts bounds optimistic-concurrency retries per mutation.
const maxWriteAttempts = 3

// Deps are the collaborators shared by the session core services.
// Only Sessions is required.
type Deps struct {
	Sessions repositories.SessionRepository
	Events   pgrepo.SessionEventRepository
	Cache    cache.Cache
	Metrics  *observability.Metrics
	Logger   *logrus.Logger
	Now      func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = logrus.New()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return d
}

// mutateFunc inspects the current record and returns the patch to apply.
type mutateFunc func(s *models.InterviewSession) (models.SessionPatch, error)

// mutate is the single read-modify-write path for sessions. The patch is
// written only if the version read is still current; on a lost race the
// record is re-read and fn re-evaluated, up to maxWriteAttempts.
func (d Deps) mutate(ctx context.Context, op, sessionID string, fn mutateFunc) (before, after *models.InterviewSession, err error) {
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		cur, err := d.Sessions.Get(ctx, sessionID)
		if err != nil {
			return nil, nil, storeErr(op, err)
		}

		patch, err := fn(cur)
		if err != nil {
			return nil, nil, err
		}

		updated, err := d.Sessions.Update(ctx, sessionID, cur.Version, patch)
		if err == nil {
			return cur, updated, nil
		}
		if !errors.Is(err, utils.ErrConflict) {
			return nil, nil, storeErr(op, err)
		}
		d.Metrics.ConflictRetry(op)
		d.Logger.WithFields(logrus.Fields{
			"op":         op,
			"session_id": sessionID,
			"attempt":    attempt,
		}).Debug("version conflict, retrying")
	}
	return nil, nil, utils.E(utils.CodeConflict, op, "session was modified concurrently, retry later", utils.ErrConflict)
}

// transitioned records the side effects of an accepted status change.
func (d Deps) transitioned(ctx context.Context, op string, s *models.InterviewSession, from models.SessionStatus, meta map[string]any) {
	d.Metrics.Transition(string(from), string(s.Status))
	d.invalidate(ctx, s.CandidateID)

	log := d.Logger.WithFields(logrus.Fields{
		"op":         op,
		"session_id": s.SessionID,
		"user_id":    s.CandidateID,
		"from":       from,
		"to":         s.Status,
	})
	log.Info("session transition")

	if d.Events == nil {
		return
	}
	var raw datatypes.JSON
	if len(meta) > 0 {
		b, err := json.Marshal(meta)
		if err == nil {
			raw = datatypes.JSON(b)
		}
	}
	ev := &models.SessionEvent{
		ID:         uuid.NewString(),
		SessionID:  s.SessionID,
		UserID:     s.CandidateID,
		FromStatus: string(from),
		ToStatus:   string(s.Status),
		Timestamp:  d.Now(),
		Metadata:   raw,
	}
	if err := d.Events.Insert(ctx, ev); err != nil {
		log.WithError(err).Warn("failed to record session event")
	}
}

func (d Deps) invalidate(ctx context.Context, userID string) {
	if d.Cache == nil || userID == "" {
		return
	}
	if err := d.Cache.SetJSON(ctx, cache.AnalyticsGenKey(userID), uuid.NewString(), 0); err != nil {
		d.Logger.WithError(err).WithField("user_id", userID).Warn("failed to bump analytics generation")
	}
	if err := d.Cache.Del(ctx, cache.AnalyticsKey(userID), cache.StorageStatsKey(userID)); err != nil {
		d.Logger.WithError(err).WithField("user_id", userID).Warn("failed to invalidate cache")
	}
}

func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, utils.ErrNotFound):
		return utils.E(utils.CodeNotFound, op, "session not found", err)
	case errors.Is(err, utils.ErrConflict):
		return utils.E(utils.CodeConflict, op, "session already exists", err)
	default:
		return utils.E(utils.CodeInternal, op, "session store failure", err)
	}
}

func transitionErr(op string, err error) error {
	return utils.E(utils.CodeInvalidTransition, op, err.Error(), err)
}

// checkTransition runs the state machine and wraps a rejection.
func checkTransition(op string, s *models.InterviewSession, to models.SessionStatus, req lifecycle.Request) (models.SessionStatus, error) {
	next, err := lifecycle.Transition(s.Status, to, req)
	if err != nil {
		return s.Status, transitionErr(op, err)
	}
	return next, nil
}

// systemic reports whether err should abort a batch instead of being
// recorded against a single item.
func systemic(err error) bool {
	return utils.IsCode(err, utils.CodeInternal) || utils.IsCode(err, utils.CodeUnavailable) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func outcomeErr(id string, err error) models.ItemOutcome {
	out := models.ItemOutcome{SessionID: id, Code: string(utils.CodeOf(err)), Error: err.Error()}
	var ae *utils.AppError
	if errors.As(err, &ae) && ae.Message != "" {
		out.Error = ae.Message
	}
	return out
}
