package postgres

import (
	"context"
	"errors"

	"github.com/yoockh/prepdeck/internal/models"
	"github.com/yoockh/prepdeck/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RetentionPolicyRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.UserRetentionPolicy, error)
	Upsert(ctx context.Context, p *models.UserRetentionPolicy) error
}

type retentionPolicyRepo struct {
	db *gorm.DB
}

func NewRetentionPolicyRepo(db *gorm.DB) RetentionPolicyRepository {
	return &retentionPolicyRepo{db: db}
}

func (r *retentionPolicyRepo) GetByUserID(ctx context.Context, userID string) (*models.UserRetentionPolicy, error) {
	var p models.UserRetentionPolicy
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &p, err
}

func (r *retentionPolicyRepo) Upsert(ctx context.Context, p *models.UserRetentionPolicy) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"archive_after_days", "delete_after_days", "apply_to", "updated_at"}),
		}).
		Create(p).Error
}
