package repos

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/wappstudy/wappstudy-backend/internal/domain"
	errs "github.com/wappstudy/wappstudy-backend/internal/pkg/errors"
	"github.com/wappstudy/wappstudy-backend/internal/pkg/logger"
)

type AttemptRepo interface {
	Create(ctx context.Context, tx *gorm.DB, attempt *types.AssessmentAttempt) (*types.AssessmentAttempt, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AssessmentAttempt, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error
}

type attemptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAttemptRepo(db *gorm.DB, baseLog *logger.Logger) AttemptRepo {
	repoLog := baseLog.With("repo", "AttemptRepo")
	return &attemptRepo{db: db, log: repoLog}
}

func (r *attemptRepo) Create(ctx context.Context, tx *gorm.DB, attempt *types.AssessmentAttempt) (*types.AssessmentAttempt, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if err := transaction.WithContext(ctx).Create(attempt).Error; err != nil {
		return nil, err
	}
	return attempt, nil
}

func (r *attemptRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AssessmentAttempt, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var attempt types.AssessmentAttempt
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&attempt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("attempt %s: %w", id, errs.ErrNotFound)
		}
		return nil, err
	}
	return &attempt, nil
}

func (r *attemptRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Model(&types.AssessmentAttempt{}).
		Where("id = ?", id).
		Updates(fields).Error
}
