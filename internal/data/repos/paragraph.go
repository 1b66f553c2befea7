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

type ParagraphRepo interface {
	Create(ctx context.Context, tx *gorm.DB, paragraphs []*types.Paragraph) ([]*types.Paragraph, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Paragraph, error)
	ListByTopicID(ctx context.Context, tx *gorm.DB, topicID uuid.UUID) ([]*types.Paragraph, error)
	First(ctx context.Context, tx *gorm.DB, topicID uuid.UUID) (*types.Paragraph, error)
	NextAfter(ctx context.Context, tx *gorm.DB, topicID uuid.UUID, afterOrder int) (*types.Paragraph, error)
	Last(ctx context.Context, tx *gorm.DB, topicID uuid.UUID) (*types.Paragraph, error)
	PrevBefore(ctx context.Context, tx *gorm.DB, topicID uuid.UUID, beforeOrder int) (*types.Paragraph, error)
	Renumber(ctx context.Context, tx *gorm.DB, topicID uuid.UUID) error
}

type paragraphRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewParagraphRepo(db *gorm.DB, baseLog *logger.Logger) ParagraphRepo {
	repoLog := baseLog.With("repo", "ParagraphRepo")
	return &paragraphRepo{db: db, log: repoLog}
}

func (r *paragraphRepo) Create(ctx context.Context, tx *gorm.DB, paragraphs []*types.Paragraph) ([]*types.Paragraph, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(paragraphs) == 0 {
		return []*types.Paragraph{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&paragraphs).Error; err != nil {
		return nil, err
	}
	return paragraphs, nil
}

func (r *paragraphRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Paragraph, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var paragraph types.Paragraph
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&paragraph).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("paragraph %s: %w", id, errs.ErrNotFound)
		}
		return nil, err
	}
	return &paragraph, nil
}

func (r *paragraphRepo) ListByTopicID(ctx context.Context, tx *gorm.DB, topicID uuid.UUID) ([]*types.Paragraph, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Paragraph
	if err := transaction.WithContext(ctx).
		Where("topic_id = ?", topicID).
		Order("paragraph_order ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *paragraphRepo) First(ctx context.Context, tx *gorm.DB, topicID uuid.UUID) (*types.Paragraph, error) {
	return r.NextAfter(ctx, tx, topicID, 0)
}

func (r *paragraphRepo) NextAfter(ctx context.Context, tx *gorm.DB, topicID uuid.UUID, afterOrder int) (*types.Paragraph, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var paragraph types.Paragraph
	if err := transaction.WithContext(ctx).
		Where("topic_id = ? AND paragraph_order > ?", topicID, afterOrder).
		Order("paragraph_order ASC").
		First(&paragraph).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("next paragraph after order %d: %w", afterOrder, errs.ErrNotFound)
		}
		return nil, err
	}
	return &paragraph, nil
}

func (r *paragraphRepo) Last(ctx context.Context, tx *gorm.DB, topicID uuid.UUID) (*types.Paragraph, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var paragraph types.Paragraph
	if err := transaction.WithContext(ctx).
		Where("topic_id = ?", topicID).
		Order("paragraph_order DESC").
		First(&paragraph).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("last paragraph of topic %s: %w", topicID, errs.ErrNotFound)
		}
		return nil, err
	}
	return &paragraph, nil
}

func (r *paragraphRepo) PrevBefore(ctx context.Context, tx *gorm.DB, topicID uuid.UUID, beforeOrder int) (*types.Paragraph, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var paragraph types.Paragraph
	if err := transaction.WithContext(ctx).
		Where("topic_id = ? AND paragraph_order < ?", topicID, beforeOrder).
		Order("paragraph_order DESC").
		First(&paragraph).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("paragraph before order %d: %w", beforeOrder, errs.ErrNotFound)
		}
		return nil, err
	}
	return &paragraph, nil
}

// Renumber rewrites paragraph_order to a contiguous 1..N sequence for the topic.
func (r *paragraphRepo) Renumber(ctx context.Context, tx *gorm.DB, topicID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	paragraphs, err := r.ListByTopicID(ctx, transaction, topicID)
	if err != nil {
		return err
	}
	for i, p := range paragraphs {
		want := i + 1
		if p.Order == want {
			continue
		}
		if err := transaction.WithContext(ctx).
			Model(&types.Paragraph{}).
			Where("id = ?", p.ID).
			Update("paragraph_order", want).Error; err != nil {
			return err
		}
	}
	return nil
}
