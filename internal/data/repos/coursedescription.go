package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/wappstudy/wappstudy-backend/internal/domain"
	"github.com/wappstudy/wappstudy-backend/internal/pkg/logger"
)

type CourseDescriptionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, descriptions []*types.CourseDescription) ([]*types.CourseDescription, error)
	ListByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) ([]*types.CourseDescription, error)
}

type courseDescriptionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseDescriptionRepo(db *gorm.DB, baseLog *logger.Logger) CourseDescriptionRepo {
	repoLog := baseLog.With("repo", "CourseDescriptionRepo")
	return &courseDescriptionRepo{db: db, log: repoLog}
}

func (r *courseDescriptionRepo) Create(ctx context.Context, tx *gorm.DB, descriptions []*types.CourseDescription) ([]*types.CourseDescription, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(descriptions) == 0 {
		return []*types.CourseDescription{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&descriptions).Error; err != nil {
		return nil, err
	}
	return descriptions, nil
}

func (r *courseDescriptionRepo) ListByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) ([]*types.CourseDescription, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.CourseDescription
	if err := transaction.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("position ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
