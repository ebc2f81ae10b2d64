package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yoockh/prepdeck/internal/models"
)

// ServiceConfig holds the tunables that bound per-call work.
type ServiceConfig struct {
	Port              string
	QueryMaxPageSize  int
	RetentionSweepMax int
	ExportMaxSessions int
	AnalyticsCacheTTL time.Duration
	RetentionWorkers  int
	ExportBucket      string
	DefaultRetention  models.RetentionPolicy
}

func LoadServiceConfig() (ServiceConfig, error) {
	cfg := ServiceConfig{
		Port:              envString("PORT", "8080"),
		QueryMaxPageSize:  envInt("QUERY_MAX_PAGE_SIZE", 100),
		RetentionSweepMax: envInt("RETENTION_SWEEP_MAX", 1000),
		ExportMaxSessions: envInt("EXPORT_MAX_SESSIONS", 5000),
		AnalyticsCacheTTL: envDuration("ANALYTICS_CACHE_TTL", 5*time.Minute),
		RetentionWorkers:  envInt("RETENTION_WORKERS", 2),
		ExportBucket:      os.Getenv("EXPORT_BUCKET"),
	}

	policy, err := LoadRetentionPolicy(os.Getenv("RETENTION_POLICY_FILE"))
	if err != nil {
		return ServiceConfig{}, err
	}
	cfg.DefaultRetention = policy
	return cfg, nil
}

// LoadRetentionPolicy reads the global default policy from a YAML file.
// With no file the RETENTION_* variables apply.
func LoadRetentionPolicy(path string) (models.RetentionPolicy, error) {
	p := models.RetentionPolicy{
		ArchiveAfterDays: envDays("RETENTION_ARCHIVE_AFTER_DAYS", 90),
		DeleteAfterDays:  envDays("RETENTION_DELETE_AFTER_DAYS", 365),
		ApplyTo:          parseStatuses(envString("RETENTION_APPLY_TO", "completed,abandoned")),
	}
	if path == "" {
		return p, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return models.RetentionPolicy{}, fmt.Errorf("read retention policy: %w", err)
	}
	var doc struct {
		Retention struct {
			ArchiveAfterDays *int                   `yaml:"archive_after_days"`
			DeleteAfterDays  *int                   `yaml:"delete_after_days"`
			ApplyTo          []models.SessionStatus `yaml:"apply_to"`
		} `yaml:"retention"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return models.RetentionPolicy{}, fmt.Errorf("parse retention policy %s: %w", path, err)
	}
	// fields missing from the file keep their env values
	if doc.Retention.ArchiveAfterDays != nil {
		p.ArchiveAfterDays = *doc.Retention.ArchiveAfterDays
	}
	if doc.Retention.DeleteAfterDays != nil {
		p.DeleteAfterDays = *doc.Retention.DeleteAfterDays
	}
	if len(doc.Retention.ApplyTo) > 0 {
		p.ApplyTo = doc.Retention.ApplyTo
	}
	return p, nil
}

func parseStatuses(csv string) []models.SessionStatus {
	var out []models.SessionStatus
	for _, part := range strings.Split(csv, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, models.SessionStatus(s))
		}
	}
	return out
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// envDays accepts zero, which is a meaningful retention age.
func envDays(key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v < 0 {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
