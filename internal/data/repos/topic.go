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

type TopicRepo interface {
	Create(ctx context.Context, tx *gorm.DB, topic *types.Topic) (*types.Topic, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Topic, error)
	ListByModuleID(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) ([]*types.Topic, error)
	ListActiveByModuleID(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) ([]*types.Topic, error)
	FirstActive(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) (*types.Topic, error)
	NextActiveAfter(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID, afterOrder int) (*types.Topic, error)
	LastActive(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) (*types.Topic, error)
	PrevActiveBefore(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID, beforeOrder int) (*types.Topic, error)
	MaxOrder(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) (int, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error
	FullDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
	Renumber(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) error
}

type topicRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTopicRepo(db *gorm.DB, baseLog *logger.Logger) TopicRepo {
	repoLog := baseLog.With("repo", "TopicRepo")
	return &topicRepo{db: db, log: repoLog}
}

func (r *topicRepo) Create(ctx context.Context, tx *gorm.DB, topic *types.Topic) (*types.Topic, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if err := transaction.WithContext(ctx).Create(topic).Error; err != nil {
		return nil, err
	}
	return topic, nil
}

func (r *topicRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Topic, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var topic types.Topic
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&topic).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("topic %s: %w", id, errs.ErrNotFound)
		}
		return nil, err
	}
	return &topic, nil
}

func (r *topicRepo) ListByModuleID(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) ([]*types.Topic, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Topic
	if err := transaction.WithContext(ctx).
		Where("module_id = ?", moduleID).
		Order("topic_order ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *topicRepo) ListActiveByModuleID(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) ([]*types.Topic, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Topic
	if err := transaction.WithContext(ctx).
		Where("module_id = ? AND is_active = ?", moduleID, true).
		Order("topic_order ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *topicRepo) FirstActive(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) (*types.Topic, error) {
	return r.NextActiveAfter(ctx, tx, moduleID, 0)
}

func (r *topicRepo) NextActiveAfter(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID, afterOrder int) (*types.Topic, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var topic types.Topic
	if err := transaction.WithContext(ctx).
		Where("module_id = ? AND is_active = ? AND topic_order > ?", moduleID, true, afterOrder).
		Order("topic_order ASC").
		First(&topic).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("next topic after order %d: %w", afterOrder, errs.ErrNotFound)
		}
		return nil, err
	}
	return &topic, nil
}

func (r *topicRepo) LastActive(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) (*types.Topic, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var topic types.Topic
	if err := transaction.WithContext(ctx).
		Where("module_id = ? AND is_active = ?", moduleID, true).
		Order("topic_order DESC").
		First(&topic).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("last topic of module %s: %w", moduleID, errs.ErrNotFound)
		}
		return nil, err
	}
	return &topic, nil
}

func (r *topicRepo) PrevActiveBefore(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID, beforeOrder int) (*types.Topic, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var topic types.Topic
	if err := transaction.WithContext(ctx).
		Where("module_id = ? AND is_active = ? AND topic_order < ?", moduleID, true, beforeOrder).
		Order("topic_order DESC").
		First(&topic).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("topic before order %d: %w", beforeOrder, errs.ErrNotFound)
		}
		return nil, err
	}
	return &topic, nil
}

func (r *topicRepo) MaxOrder(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) (int, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var max *int
	if err := transaction.WithContext(ctx).
		Model(&types.Topic{}).
		Where("module_id = ?", moduleID).
		Select("MAX(topic_order)").
		Scan(&max).Error; err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

func (r *topicRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Model(&types.Topic{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *topicRepo) FullDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
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
		Delete(&types.Topic{}).Error
}

// Renumber rewrites topic_order to a contiguous 1..N sequence for the module.
func (r *topicRepo) Renumber(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	topics, err := r.ListByModuleID(ctx, transaction, moduleID)
	if err != nil {
		return err
	}
	for i, t := range topics {
		want := i + 1
		if t.Order == want {
			continue
		}
		if err := transaction.WithContext(ctx).
			Model(&types.Topic{}).
			Where("id = ?", t.ID).
			Update("topic_order", want).Error; err != nil {
			return err
		}
	}
	return nil
}
