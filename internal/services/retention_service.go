package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/prepdeck/internal/cache"
	"github.com/yoockh/prepdeck/internal/lifecycle"
	"github.com/yoockh/prepdeck/internal/models"
	pgrepo "github.com/yoockh/prepdeck/internal/repositories/postgres"
	"github.com/yoockh/prepdeck/internal/utils"
)

const (
	sweepPageSize   = 100
	statsCacheTTL   = time.Minute
	defaultSweepMax = 1000

	// restoreTarget names the requested state of a restore when the
	// session carries no archived origin.
	restoreTarget models.SessionStatus = "restored"
)

type RetentionService interface {
	GetPolicy(ctx context.Context, userID string) (models.RetentionPolicy, error)
	SetPolicy(ctx context.Context, userID string, p models.RetentionPolicy) (models.RetentionPolicy, error)
	Apply(ctx context.Context, userID string, p models.RetentionPolicy, offset int) (*models.RetentionResult, error)
	ApplyUserPolicy(ctx context.Context, userID string, offset int) (*models.RetentionResult, error)
	Restore(ctx context.Context, userID string, sessionIDs []string) ([]models.ItemOutcome, error)
	DeleteArchived(ctx context.Context, userID string, sessionIDs []string) ([]models.ItemOutcome, error)
	ArchiveStats(ctx context.Context) (*models.StorageStats, error)
	UserStorageStats(ctx context.Context, userID string) (*models.StorageStats, error)
}

type retentionService struct {
	d        Deps
	policies pgrepo.RetentionPolicyRepository
	fallback models.RetentionPolicy
	sweepMax int
}

// NewRetentionService wires the retention engine. policies may be nil, in
// which case every user gets fallback.
func NewRetentionService(d Deps, policies pgrepo.RetentionPolicyRepository, fallback models.RetentionPolicy, sweepMax int) RetentionService {
	if sweepMax <= 0 {
		sweepMax = defaultSweepMax
	}
	return &retentionService{d: d.withDefaults(), policies: policies, fallback: fallback, sweepMax: sweepMax}
}

// ValidatePolicy rejects negative ages and statuses retention cannot act on.
func ValidatePolicy(p models.RetentionPolicy) error {
	const op = "RetentionService.ValidatePolicy"

	if p.ArchiveAfterDays < 0 || p.DeleteAfterDays < 0 {
		return utils.E(utils.CodeInvalidArgument, op, "retention ages must not be negative", nil)
	}
	if len(p.ApplyTo) == 0 {
		return utils.E(utils.CodeInvalidArgument, op, "apply_to must name at least one status", nil)
	}
	for _, s := range p.ApplyTo {
		switch s {
		case models.StatusInProgress, models.StatusCompleted, models.StatusAbandoned:
		default:
			return utils.E(utils.CodeInvalidArgument, op, "apply_to cannot contain "+string(s), nil)
		}
	}
	return nil
}

func (s *retentionService) GetPolicy(ctx context.Context, userID string) (models.RetentionPolicy, error) {
	const op = "RetentionService.GetPolicy"

	if userID == "" {
		return models.RetentionPolicy{}, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	if s.policies == nil {
		return s.fallback, nil
	}
	row, err := s.policies.GetByUserID(ctx, userID)
	if errors.Is(err, utils.ErrNotFound) {
		return s.fallback, nil
	}
	if err != nil {
		return models.RetentionPolicy{}, utils.E(utils.CodeInternal, op, "failed to load retention policy", err)
	}
	return row.Policy(), nil
}

func (s *retentionService) SetPolicy(ctx context.Context, userID string, p models.RetentionPolicy) (models.RetentionPolicy, error) {
	const op = "RetentionService.SetPolicy"

	if userID == "" {
		return models.RetentionPolicy{}, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	if err := ValidatePolicy(p); err != nil {
		return models.RetentionPolicy{}, err
	}
	if s.policies == nil {
		return models.RetentionPolicy{}, utils.E(utils.CodeUnavailable, op, "policy storage is not configured", nil)
	}
	row := models.NewUserRetentionPolicy(userID, p)
	row.UpdatedAt = s.d.Now()
	if err := s.policies.Upsert(ctx, row); err != nil {
		return models.RetentionPolicy{}, utils.E(utils.CodeInternal, op, "failed to save retention policy", err)
	}
	return row.Policy(), nil
}

func (s *retentionService) ApplyUserPolicy(ctx context.Context, userID string, offset int) (*models.RetentionResult, error) {
	p, err := s.GetPolicy(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.Apply(ctx, userID, p, offset)
}

// Apply runs one bounded pass of p over the user's sessions starting at
// offset in query order. At most sweepMax sessions are scanned; callers
// resume from NextOffset until Done.
func (s *retentionService) Apply(ctx context.Context, userID string, p models.RetentionPolicy, offset int) (*models.RetentionResult, error) {
	const op = "RetentionService.Apply"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	if err := ValidatePolicy(p); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}

	log := s.d.Logger.WithFields(logrus.Fields{"op": op, "user_id": userID, "offset": offset})
	now := s.d.Now()
	archiveAge := days(p.ArchiveAfterDays)
	deleteAge := days(p.DeleteAfterDays)

	res := &models.RetentionResult{}
	var purgeQueue []string
	skip := func(id string, err error) {
		res.Skipped++
		res.SkippedIDs = append(res.SkippedIDs, outcomeErr(id, err))
		log.WithError(err).WithField("session_id", id).Warn("retention skipped session")
	}

	pos := offset
	total := int64(-1)
	for res.Scanned < s.sweepMax {
		page := pos/sweepPageSize + 1
		rows, n, err := s.d.Sessions.Query(ctx, userID, models.SessionFilter{}, page, sweepPageSize)
		if err != nil {
			return nil, utils.E(utils.CodeUnavailable, op, "failed to scan sessions", err)
		}
		total = n
		rows = rows[min(pos%sweepPageSize, len(rows)):]
		if len(rows) == 0 {
			break
		}

		for _, cur := range rows {
			if res.Scanned >= s.sweepMax {
				break
			}
			res.Scanned++
			pos++

			switch {
			case cur.Status == models.StatusArchived:
				if cur.ArchivedAt != nil && archiveAgeAt(&cur, now) >= deleteAge {
					purgeQueue = append(purgeQueue, cur.SessionID)
				}
			case p.Applies(cur.Status) && now.Sub(retentionAnchor(&cur)) >= archiveAge:
				if err := s.archive(ctx, op, cur.SessionID, archiveAge, now); err != nil {
					if systemic(err) {
						return nil, err
					}
					skip(cur.SessionID, err)
					continue
				}
				res.Archived++
				if deleteAge <= 0 {
					purgeQueue = append(purgeQueue, cur.SessionID)
				}
			}
		}
	}

	for _, id := range purgeQueue {
		_, err := purge(ctx, s.d, op, id, func(cur *models.InterviewSession) error {
			if cur.ArchivedAt == nil || archiveAgeAt(cur, now) < deleteAge {
				return utils.E(utils.CodeInvalidTransition, op, "session is no longer due for deletion", nil)
			}
			return nil
		}, false)
		if err != nil {
			if systemic(err) {
				return nil, err
			}
			skip(id, err)
			continue
		}
		res.Deleted++
	}

	res.NextOffset = pos - res.Deleted
	res.Done = total >= 0 && int64(pos) >= total
	s.d.Metrics.Retention("archived", res.Archived)
	s.d.Metrics.Retention("deleted", res.Deleted)
	s.d.Metrics.Retention("skipped", res.Skipped)
	log.WithFields(logrus.Fields{
		"scanned":  res.Scanned,
		"archived": res.Archived,
		"deleted":  res.Deleted,
		"skipped":  res.Skipped,
		"done":     res.Done,
	}).Info("retention pass finished")
	return res, nil
}

// archive re-checks eligibility against the fresh record so a session that
// changed since the scan is not archived on stale data. ArchivedAt is stamped
// with the pass time so the purge step of the same pass sees an age of zero.
func (s *retentionService) archive(ctx context.Context, op, sessionID string, minAge time.Duration, now time.Time) error {
	before, after, err := s.d.mutate(ctx, op, sessionID, func(cur *models.InterviewSession) (models.SessionPatch, error) {
		if cur.Status.Terminal() && now.Sub(retentionAnchor(cur)) < minAge {
			return models.SessionPatch{}, utils.E(utils.CodeInvalidTransition, op, "session is no longer due for archiving", nil)
		}
		next, err := checkTransition(op, cur, models.StatusArchived, lifecycle.Request{})
		if err != nil {
			return models.SessionPatch{}, err
		}
		from := cur.Status
		return models.SessionPatch{Status: &next, ArchivedFrom: &from, ArchivedAt: &now}, nil
	})
	if err != nil {
		return err
	}
	s.d.transitioned(ctx, op, after, before.Status, map[string]any{"reason": "retention"})
	return nil
}

func (s *retentionService) Restore(ctx context.Context, userID string, sessionIDs []string) ([]models.ItemOutcome, error) {
	const op = "RetentionService.Restore"

	return s.batch(ctx, op, userID, sessionIDs, func(id string) (*models.InterviewSession, error) {
		before, after, err := s.d.mutate(ctx, op, id, func(cur *models.InterviewSession) (models.SessionPatch, error) {
			if err := owned(op, cur, userID); err != nil {
				return models.SessionPatch{}, err
			}
			if cur.Status != models.StatusArchived {
				return models.SessionPatch{}, transitionErr(op, &lifecycle.TransitionError{From: cur.Status, To: restoreTarget, Reason: "session is not archived"})
			}
			next, err := checkTransition(op, cur, cur.ArchivedFrom, lifecycle.Request{ArchivedFrom: cur.ArchivedFrom})
			if err != nil {
				return models.SessionPatch{}, err
			}
			return models.SessionPatch{Status: &next, ClearArchive: true}, nil
		})
		if err != nil {
			return nil, err
		}
		s.d.transitioned(ctx, op, after, before.Status, map[string]any{"reason": "restore"})
		return after, nil
	})
}

func (s *retentionService) DeleteArchived(ctx context.Context, userID string, sessionIDs []string) ([]models.ItemOutcome, error) {
	const op = "RetentionService.DeleteArchived"

	return s.batch(ctx, op, userID, sessionIDs, func(id string) (*models.InterviewSession, error) {
		return purge(ctx, s.d, op, id, func(cur *models.InterviewSession) error {
			if err := owned(op, cur, userID); err != nil {
				return err
			}
			if cur.Status != models.StatusArchived {
				return transitionErr(op, &lifecycle.TransitionError{From: cur.Status, To: models.StatusDeleted, Reason: "only archived sessions can be deleted here"})
			}
			return nil
		}, false)
	})
}

// batch applies fn to every id and records per-id outcomes. Only a
// systemic failure aborts the remaining ids.
func (s *retentionService) batch(ctx context.Context, op, userID string, ids []string, fn func(id string) (*models.InterviewSession, error)) ([]models.ItemOutcome, error) {
	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	if len(ids) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_ids must not be empty", nil)
	}

	out := make([]models.ItemOutcome, 0, len(ids))
	failed := 0
	for _, id := range ids {
		sess, err := fn(id)
		if err != nil {
			if systemic(err) {
				return nil, err
			}
			failed++
			out = append(out, outcomeErr(id, err))
			s.d.Logger.WithError(err).WithFields(logrus.Fields{"op": op, "session_id": id, "user_id": userID}).Warn("batch item failed")
			continue
		}
		out = append(out, models.ItemOutcome{SessionID: id, OK: true, Status: sess.Status})
	}
	s.d.Logger.WithFields(logrus.Fields{"op": op, "user_id": userID, "requested": len(ids), "failed": failed}).Info("batch finished")
	return out, nil
}

func (s *retentionService) ArchiveStats(ctx context.Context) (*models.StorageStats, error) {
	return s.stats(ctx, "RetentionService.ArchiveStats", "")
}

func (s *retentionService) UserStorageStats(ctx context.Context, userID string) (*models.StorageStats, error) {
	const op = "RetentionService.UserStorageStats"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	return s.stats(ctx, op, userID)
}

func (s *retentionService) stats(ctx context.Context, op, userID string) (*models.StorageStats, error) {
	key := cache.StorageStatsKey(userID)
	if s.d.Cache != nil {
		var cached models.StorageStats
		if hit, err := s.d.Cache.GetJSON(ctx, key, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	rows, err := s.d.Sessions.StorageStats(ctx, userID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to compute storage stats", err)
	}
	out := &models.StorageStats{UserID: userID, ByStatus: rows}
	for _, r := range rows {
		out.TotalCount += r.Count
		out.EstimatedBytes += r.EstimatedBytes
	}

	// global stats are not invalidated per mutation, a short ttl bounds staleness
	if s.d.Cache != nil {
		if err := s.d.Cache.SetJSON(ctx, key, out, statsCacheTTL); err != nil {
			s.d.Logger.WithError(err).WithField("key", key).Warn("failed to cache storage stats")
		}
	}
	return out, nil
}

// owned hides sessions of other users behind NotFound.
func owned(op string, s *models.InterviewSession, userID string) error {
	if s.CandidateID != userID {
		return utils.E(utils.CodeNotFound, op, "session not found", utils.ErrNotFound)
	}
	return nil
}

// archiveAgeAt is how long s has been archived at now. An ArchivedAt later
// than now counts as zero.
func archiveAgeAt(s *models.InterviewSession, now time.Time) time.Duration {
	return max(now.Sub(*s.ArchivedAt), 0)
}

// retentionAnchor is the timestamp a session's age is measured from.
func retentionAnchor(s *models.InterviewSession) time.Time {
	if s.CompletedAt != nil {
		return *s.CompletedAt
	}
	return s.StartedAt
}

func days(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }
