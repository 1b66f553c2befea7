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

type AssessmentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, assessment *types.Assessment) (*types.Assessment, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Assessment, error)
	GetActiveByModule(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID, assessmentType string) (*types.Assessment, error)
	ListByModuleID(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) ([]*types.Assessment, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error
	DeactivateSiblings(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID, assessmentType string, exceptID uuid.UUID) error
}

type assessmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssessmentRepo(db *gorm.DB, baseLog *logger.Logger) AssessmentRepo {
	repoLog := baseLog.With("repo", "AssessmentRepo")
	return &assessmentRepo{db: db, log: repoLog}
}

func (r *assessmentRepo) Create(ctx context.Context, tx *gorm.DB, assessment *types.Assessment) (*types.Assessment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if err := transaction.WithContext(ctx).Create(assessment).Error; err != nil {
		return nil, err
	}
	return assessment, nil
}

func (r *assessmentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Assessment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var assessment types.Assessment
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&assessment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("assessment %s: %w", id, errs.ErrNotFound)
		}
		return nil, err
	}
	return &assessment, nil
}

func (r *assessmentRepo) GetActiveByModule(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID, assessmentType string) (*types.Assessment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var assessment types.Assessment
	if err := transaction.WithContext(ctx).
		Where("module_id = ? AND type = ? AND is_active = ?", moduleID, assessmentType, true).
		First(&assessment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("active %s for module %s: %w", assessmentType, moduleID, errs.ErrNotFound)
		}
		return nil, err
	}
	return &assessment, nil
}

func (r *assessmentRepo) ListByModuleID(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) ([]*types.Assessment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Assessment
	if err := transaction.WithContext(ctx).
		Where("module_id = ?", moduleID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *assessmentRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Model(&types.Assessment{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// DeactivateSiblings clears is_active on every other assessment of the same
// type under the module. Keeps the at-most-one-active invariant.
func (r *assessmentRepo) DeactivateSiblings(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID, assessmentType string, exceptID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Model(&types.Assessment{}).
		Where("module_id = ? AND type = ? AND id <> ?", moduleID, assessmentType, exceptID).
		Update("is_active", false).Error
}
