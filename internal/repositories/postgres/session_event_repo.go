package postgres

import (
	"context"

	"github.com/yoockh/prepdeck/internal/models"
	"gorm.io/gorm"
)

type SessionEventRepository interface {
	Insert(ctx context.Context, e *models.SessionEvent) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]models.SessionEvent, error)
}

type sessionEventRepo struct {
	db *gorm.DB
}

func NewSessionEventRepo(db *gorm.DB) SessionEventRepository {
	return &sessionEventRepo{db: db}
}

func (r *sessionEventRepo) Insert(ctx context.Context, e *models.SessionEvent) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *sessionEventRepo) ListBySession(ctx context.Context, sessionID string, limit int) ([]models.SessionEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []models.SessionEvent
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
