package services

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wappstudy/wappstudy-backend/internal/data/repos"
	types "github.com/wappstudy/wappstudy-backend/internal/domain"
	"github.com/wappstudy/wappstudy-backend/internal/pkg/logger"
)

// CatalogService is the read surface over the course content tree. Delivery
// and assessment code goes through it rather than touching content repos
// directly.
type CatalogService interface {
	GetCourse(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) (*types.Course, error)
	ListCourseDescriptions(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) ([]*types.CourseDescription, error)
	GetModule(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) (*types.Module, error)
	ListModules(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) ([]*types.Module, error)
	ListActiveTopics(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) ([]*types.Topic, error)
	ListParagraphs(ctx context.Context, tx *gorm.DB, topicID uuid.UUID) ([]*types.Paragraph, error)
	GetActiveAssessment(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID, assessmentType string) (*types.Assessment, error)
	ListQuestions(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID) ([]*types.Question, error)
}

type catalogService struct {
	log            *logger.Logger
	courseRepo     repos.CourseRepo
	descRepo       repos.CourseDescriptionRepo
	moduleRepo     repos.ModuleRepo
	topicRepo      repos.TopicRepo
	paragraphRepo  repos.ParagraphRepo
	assessmentRepo repos.AssessmentRepo
	questionRepo   repos.QuestionRepo
}

func NewCatalogService(
	baseLog *logger.Logger,
	courseRepo repos.CourseRepo,
	descRepo repos.CourseDescriptionRepo,
	moduleRepo repos.ModuleRepo,
	topicRepo repos.TopicRepo,
	paragraphRepo repos.ParagraphRepo,
	assessmentRepo repos.AssessmentRepo,
	questionRepo repos.QuestionRepo,
) CatalogService {
	svcLog := baseLog.With("service", "CatalogService")
	return &catalogService{
		log:            svcLog,
		courseRepo:     courseRepo,
		descRepo:       descRepo,
		moduleRepo:     moduleRepo,
		topicRepo:      topicRepo,
		paragraphRepo:  paragraphRepo,
		assessmentRepo: assessmentRepo,
		questionRepo:   questionRepo,
	}
}

func (s *catalogService) GetCourse(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) (*types.Course, error) {
	return s.courseRepo.GetByID(ctx, tx, courseID)
}

func (s *catalogService) ListCourseDescriptions(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) ([]*types.CourseDescription, error) {
	return s.descRepo.ListByCourseID(ctx, tx, courseID)
}

func (s *catalogService) GetModule(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) (*types.Module, error) {
	return s.moduleRepo.GetByID(ctx, tx, moduleID)
}

func (s *catalogService) ListModules(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) ([]*types.Module, error) {
	return s.moduleRepo.ListByCourseID(ctx, tx, courseID)
}

func (s *catalogService) ListActiveTopics(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) ([]*types.Topic, error) {
	return s.topicRepo.ListActiveByModuleID(ctx, tx, moduleID)
}

func (s *catalogService) ListParagraphs(ctx context.Context, tx *gorm.DB, topicID uuid.UUID) ([]*types.Paragraph, error) {
	return s.paragraphRepo.ListByTopicID(ctx, tx, topicID)
}

func (s *catalogService) GetActiveAssessment(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID, assessmentType string) (*types.Assessment, error) {
	return s.assessmentRepo.GetActiveByModule(ctx, tx, moduleID, assessmentType)
}

func (s *catalogService) ListQuestions(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID) ([]*types.Question, error) {
	return s.questionRepo.ListByAssessmentID(ctx, tx, assessmentID)
}
