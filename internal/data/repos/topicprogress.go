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

type TopicProgressRepo interface {
	Get(ctx context.Context, tx *gorm.DB, enrollmentID, topicID uuid.UUID) (*types.TopicDeliveryProgress, error)
	GetOrCreate(ctx context.Context, tx *gorm.DB, enrollmentID, topicID uuid.UUID) (*types.TopicDeliveryProgress, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error
	ResetAllByEnrollment(ctx context.Context, tx *gorm.DB, enrollmentID uuid.UUID) error
}

type topicProgressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTopicProgressRepo(db *gorm.DB, baseLog *logger.Logger) TopicProgressRepo {
	repoLog := baseLog.With("repo", "TopicProgressRepo")
	return &topicProgressRepo{db: db, log: repoLog}
}

func (r *topicProgressRepo) Get(ctx context.Context, tx *gorm.DB, enrollmentID, topicID uuid.UUID) (*types.TopicDeliveryProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var progress types.TopicDeliveryProgress
	if err := transaction.WithContext(ctx).
		Where("enrollment_id = ? AND topic_id = ?", enrollmentID, topicID).
		First(&progress).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("topic progress for enrollment %s topic %s: %w", enrollmentID, topicID, errs.ErrNotFound)
		}
		return nil, err
	}
	return &progress, nil
}

func (r *topicProgressRepo) GetOrCreate(ctx context.Context, tx *gorm.DB, enrollmentID, topicID uuid.UUID) (*types.TopicDeliveryProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	progress, err := r.Get(ctx, transaction, enrollmentID, topicID)
	if err == nil {
		return progress, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	created := &types.TopicDeliveryProgress{
		ID:           uuid.New(),
		EnrollmentID: enrollmentID,
		TopicID:      topicID,
		State:        types.TopicDeliveryNotStarted,
	}
	if err := transaction.WithContext(ctx).Create(created).Error; err != nil {
		return nil, err
	}
	return created, nil
}

func (r *topicProgressRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Model(&types.TopicDeliveryProgress{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *topicProgressRepo) ResetAllByEnrollment(ctx context.Context, tx *gorm.DB, enrollmentID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Model(&types.TopicDeliveryProgress{}).
		Where("enrollment_id = ?", enrollmentID).
		Updates(map[string]interface{}{
			"state":                types.TopicDeliveryNotStarted,
			"current_paragraph_id": nil,
		}).Error
}
