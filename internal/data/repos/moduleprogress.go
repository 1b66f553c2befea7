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

type ModuleProgressRepo interface {
	Get(ctx context.Context, tx *gorm.DB, enrollmentID, moduleID uuid.UUID) (*types.ModuleDeliveryProgress, error)
	GetOrCreate(ctx context.Context, tx *gorm.DB, enrollmentID, moduleID uuid.UUID) (*types.ModuleDeliveryProgress, error)
	ListByEnrollmentID(ctx context.Context, tx *gorm.DB, enrollmentID uuid.UUID) ([]*types.ModuleDeliveryProgress, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error
	ResetAllByEnrollment(ctx context.Context, tx *gorm.DB, enrollmentID uuid.UUID) error
}

type moduleProgressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewModuleProgressRepo(db *gorm.DB, baseLog *logger.Logger) ModuleProgressRepo {
	repoLog := baseLog.With("repo", "ModuleProgressRepo")
	return &moduleProgressRepo{db: db, log: repoLog}
}

func (r *moduleProgressRepo) Get(ctx context.Context, tx *gorm.DB, enrollmentID, moduleID uuid.UUID) (*types.ModuleDeliveryProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var progress types.ModuleDeliveryProgress
	if err := transaction.WithContext(ctx).
		Where("enrollment_id = ? AND module_id = ?", enrollmentID, moduleID).
		First(&progress).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("module progress for enrollment %s module %s: %w", enrollmentID, moduleID, errs.ErrNotFound)
		}
		return nil, err
	}
	return &progress, nil
}

func (r *moduleProgressRepo) GetOrCreate(ctx context.Context, tx *gorm.DB, enrollmentID, moduleID uuid.UUID) (*types.ModuleDeliveryProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	progress, err := r.Get(ctx, transaction, enrollmentID, moduleID)
	if err == nil {
		return progress, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	created := &types.ModuleDeliveryProgress{
		ID:           uuid.New(),
		EnrollmentID: enrollmentID,
		ModuleID:     moduleID,
		State:        types.ModuleDeliveryNotStarted,
	}
	if err := transaction.WithContext(ctx).Create(created).Error; err != nil {
		return nil, err
	}
	return created, nil
}

func (r *moduleProgressRepo) ListByEnrollmentID(ctx context.Context, tx *gorm.DB, enrollmentID uuid.UUID) ([]*types.ModuleDeliveryProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.ModuleDeliveryProgress
	if err := transaction.WithContext(ctx).
		Where("enrollment_id = ?", enrollmentID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *moduleProgressRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Model(&types.ModuleDeliveryProgress{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *moduleProgressRepo) ResetAllByEnrollment(ctx context.Context, tx *gorm.DB, enrollmentID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Model(&types.ModuleDeliveryProgress{}).
		Where("enrollment_id = ?", enrollmentID).
		Updates(map[string]interface{}{
			"state":            types.ModuleDeliveryNotStarted,
			"current_topic_id": nil,
		}).Error
}
