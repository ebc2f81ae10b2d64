package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/yoockh/prepdeck/internal/analytics"
	"github.com/yoockh/prepdeck/internal/cache"
	"github.com/yoockh/prepdeck/internal/models"
	"github.com/yoockh/prepdeck/internal/utils"
)

const loadPageSize = 100

type AnalyticsService interface {
	UserAnalytics(ctx context.Context, userID string) (*models.UserAnalytics, error)
}

type analyticsService struct {
	d           Deps
	ttl         time.Duration
	maxSessions int
	flight      singleflight.Group
}

// NewAnalyticsService caches projections for ttl when d.Cache is set.
// maxSessions bounds how much history one projection reads.
func NewAnalyticsService(d Deps, ttl time.Duration, maxSessions int) AnalyticsService {
	if maxSessions <= 0 {
		maxSessions = 5000
	}
	return &analyticsService{d: d.withDefaults(), ttl: ttl, maxSessions: maxSessions}
}

// analyticsEntry is the cached form of a projection, tagged with the
// generation it was computed under.
type analyticsEntry struct {
	Generation string                `json:"generation"`
	Analytics  *models.UserAnalytics `json:"analytics"`
}

func (s *analyticsService) UserAnalytics(ctx context.Context, userID string) (*models.UserAnalytics, error) {
	const op = "AnalyticsService.UserAnalytics"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}

	key := cache.AnalyticsKey(userID)
	gen := s.generation(ctx, userID)
	if s.d.Cache != nil {
		var cached analyticsEntry
		hit, err := s.d.Cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.d.Logger.WithError(err).WithField("key", key).Warn("analytics cache read failed")
		}
		hit = hit && cached.Analytics != nil && cached.Generation == gen
		s.d.Metrics.AnalyticsCache(hit)
		if hit {
			return cached.Analytics, nil
		}
	}

	// waiters share the load, so it must not die with the first caller's request
	loadCtx := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(userID+"\x00"+gen, func() (any, error) {
		sessions, total, err := loadAll(loadCtx, s.d, userID, models.SessionFilter{}, s.maxSessions)
		if err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to load sessions", err)
		}
		out := analytics.Generate(userID, sessions, s.d.Now())
		if total > int64(len(sessions)) {
			out.TotalSessions = int(total)
			out.Truncated = true
			s.d.Logger.WithFields(logrus.Fields{"op": op, "user_id": userID, "total": total, "read": len(sessions)}).
				Warn("analytics projection truncated")
		}
		if s.d.Cache != nil && s.ttl > 0 {
			entry := analyticsEntry{Generation: gen, Analytics: out}
			if err := s.d.Cache.SetJSON(loadCtx, key, entry, s.ttl); err != nil {
				s.d.Logger.WithError(err).WithField("key", key).Warn("analytics cache write failed")
			}
		}
		return out, nil
	})

	select {
	case <-ctx.Done():
		return nil, utils.E(utils.CodeTimeout, op, "analytics request cancelled", ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*models.UserAnalytics), nil
	}
}

// generation reads the user's current cache generation. A missing token is
// the empty generation.
func (s *analyticsService) generation(ctx context.Context, userID string) string {
	if s.d.Cache == nil {
		return ""
	}
	var gen string
	if _, err := s.d.Cache.GetJSON(ctx, cache.AnalyticsGenKey(userID), &gen); err != nil {
		s.d.Logger.WithError(err).WithField("user_id", userID).Warn("analytics generation read failed")
	}
	return gen
}

// loadAll pages through a user's sessions in query order, reading at most
// limit records. total is the store's count of matching sessions, which
// exceeds len(rows) when the limit cut the read short.
func loadAll(ctx context.Context, d Deps, userID string, f models.SessionFilter, limit int) ([]models.InterviewSession, int64, error) {
	rows := []models.InterviewSession{}
	var total int64
	for page := 1; len(rows) < limit; page++ {
		batch, n, err := d.Sessions.Query(ctx, userID, f, page, loadPageSize)
		if err != nil {
			return nil, 0, err
		}
		total = n
		rows = append(rows, batch...)
		if len(batch) < loadPageSize || int64(page*loadPageSize) >= n {
			break
		}
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, max(total, int64(len(rows))), nil
}
