package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/wappstudy/wappstudy-backend/internal/domain"
	"github.com/wappstudy/wappstudy-backend/internal/pkg/logger"
)

type ResponseRepo interface {
	Create(ctx context.Context, tx *gorm.DB, response *types.QuestionResponse) (*types.QuestionResponse, error)
	ListByAttemptID(ctx context.Context, tx *gorm.DB, attemptID uuid.UUID) ([]*types.QuestionResponse, error)
	SumScores(ctx context.Context, tx *gorm.DB, attemptID uuid.UUID) (float64, error)
}

type responseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewResponseRepo(db *gorm.DB, baseLog *logger.Logger) ResponseRepo {
	repoLog := baseLog.With("repo", "ResponseRepo")
	return &responseRepo{db: db, log: repoLog}
}

func (r *responseRepo) Create(ctx context.Context, tx *gorm.DB, response *types.QuestionResponse) (*types.QuestionResponse, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if err := transaction.WithContext(ctx).Create(response).Error; err != nil {
		return nil, err
	}
	return response, nil
}

func (r *responseRepo) ListByAttemptID(ctx context.Context, tx *gorm.DB, attemptID uuid.UUID) ([]*types.QuestionResponse, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.QuestionResponse
	if err := transaction.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("answered_at ASC, created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *responseRepo) SumScores(ctx context.Context, tx *gorm.DB, attemptID uuid.UUID) (float64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var sum *float64
	if err := transaction.WithContext(ctx).
		Model(&types.QuestionResponse{}).
		Where("attempt_id = ?", attemptID).
		Select("SUM(score)").
		Scan(&sum).Error; err != nil {
		return 0, err
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}
