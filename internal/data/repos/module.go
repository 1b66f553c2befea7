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

type ModuleRepo interface {
	Create(ctx context.Context, tx *gorm.DB, modules []*types.Module) ([]*types.Module, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Module, error)
	ListByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) ([]*types.Module, error)
	NextByOrder(ctx context.Context, tx *gorm.DB, courseID uuid.UUID, afterOrder int) (*types.Module, error)
	CountByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) (int64, error)
	FullDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
	Renumber(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) error
}

type moduleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewModuleRepo(db *gorm.DB, baseLog *logger.Logger) ModuleRepo {
	repoLog := baseLog.With("repo", "ModuleRepo")
	return &moduleRepo{db: db, log: repoLog}
}

func (r *moduleRepo) Create(ctx context.Context, tx *gorm.DB, modules []*types.Module) ([]*types.Module, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(modules) == 0 {
		return []*types.Module{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&modules).Error; err != nil {
		return nil, err
	}
	return modules, nil
}

func (r *moduleRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Module, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var module types.Module
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&module).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("module %s: %w", id, errs.ErrNotFound)
		}
		return nil, err
	}
	return &module, nil
}

func (r *moduleRepo) ListByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) ([]*types.Module, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Module
	if err := transaction.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("module_order ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *moduleRepo) NextByOrder(ctx context.Context, tx *gorm.DB, courseID uuid.UUID, afterOrder int) (*types.Module, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var module types.Module
	if err := transaction.WithContext(ctx).
		Where("course_id = ? AND module_order > ?", courseID, afterOrder).
		Order("module_order ASC").
		First(&module).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("next module after order %d: %w", afterOrder, errs.ErrNotFound)
		}
		return nil, err
	}
	return &module, nil
}

func (r *moduleRepo) CountByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Module{}).
		Where("course_id = ?", courseID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *moduleRepo) FullDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(ids) == 0 {
		return nil
	}

	return transaction.WithContext(ctx).
		Unscoped().
		Where("id IN ?", ids).
		Delete(&types.Module{}).Error
}

// Renumber rewrites module_order to a contiguous 1..N sequence for the course.
func (r *moduleRepo) Renumber(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	modules, err := r.ListByCourseID(ctx, transaction, courseID)
	if err != nil {
		return err
	}
	for i, m := range modules {
		want := i + 1
		if m.Order == want {
			continue
		}
		if err := transaction.WithContext(ctx).
			Model(&types.Module{}).
			Where("id = ?", m.ID).
			Update("module_order", want).Error; err != nil {
			return err
		}
	}
	return nil
}
