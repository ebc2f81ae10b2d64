package cache

import (
	"context"
	"time"
)

type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// AnalyticsKey is where a candidate's analytics projection is cached.
func AnalyticsKey(userID string) string { return "analytics:user:" + userID }

// AnalyticsGenKey holds the token that changes whenever a candidate's
// sessions are mutated. Cached projections carry the token they were built
// under and are stale once it moves.
func AnalyticsGenKey(userID string) string { return "analytics:gen:" + userID }

// StorageStatsKey caches per-user storage stats; "" addresses the global stats.
func StorageStatsKey(userID string) string {
	if userID == "" {
		return "storage:global"
	}
	return "storage:user:" + userID
}
