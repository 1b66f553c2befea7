package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wappstudy/wappstudy-backend/internal/data/repos"
	types "github.com/wappstudy/wappstudy-backend/internal/domain"
	errs "github.com/wappstudy/wappstudy-backend/internal/pkg/errors"
	"github.com/wappstudy/wappstudy-backend/internal/pkg/logger"
)

// ContentService is the authoring surface: course/module/topic/paragraph
// mutations and the assessment activation workflow. Order columns stay
// contiguous 1..N after every mutation.
type ContentService interface {
	CreateCourse(ctx context.Context, tx *gorm.DB, course *types.Course, descriptions []*types.CourseDescription) (*types.Course, error)
	ActivateCourse(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) error

	CreateModule(ctx context.Context, tx *gorm.DB, module *types.Module) (*types.Module, error)
	DeleteModule(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) error

	CreateTopic(ctx context.Context, tx *gorm.DB, topic *types.Topic) (*types.Topic, error)
	UpdateTopic(ctx context.Context, tx *gorm.DB, topicID uuid.UUID, fields map[string]interface{}) error
	ReorderTopic(ctx context.Context, tx *gorm.DB, moduleID, topicID uuid.UUID, newOrder int) error
	DeleteTopic(ctx context.Context, tx *gorm.DB, topicID uuid.UUID) error

	CreateParagraphs(ctx context.Context, tx *gorm.DB, topicID uuid.UUID, contents []string) ([]*types.Paragraph, error)

	CreateAssessment(ctx context.Context, tx *gorm.DB, assessment *types.Assessment, questions []*types.Question) (*types.Assessment, error)
	SetAssessmentActive(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID, active bool) error
}

type contentService struct {
	db             *gorm.DB
	log            *logger.Logger
	courseRepo     repos.CourseRepo
	descRepo       repos.CourseDescriptionRepo
	moduleRepo     repos.ModuleRepo
	topicRepo      repos.TopicRepo
	paragraphRepo  repos.ParagraphRepo
	assessmentRepo repos.AssessmentRepo
	questionRepo   repos.QuestionRepo
}

func NewContentService(
	db *gorm.DB,
	baseLog *logger.Logger,
	courseRepo repos.CourseRepo,
	descRepo repos.CourseDescriptionRepo,
	moduleRepo repos.ModuleRepo,
	topicRepo repos.TopicRepo,
	paragraphRepo repos.ParagraphRepo,
	assessmentRepo repos.AssessmentRepo,
	questionRepo repos.QuestionRepo,
) ContentService {
	svcLog := baseLog.With("service", "ContentService")
	return &contentService{
		db:             db,
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

func (s *contentService) CreateCourse(ctx context.Context, tx *gorm.DB, course *types.Course, descriptions []*types.CourseDescription) (*types.Course, error) {
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}

	var created *types.Course
	err := transaction.WithContext(ctx).Transaction(func(innerTx *gorm.DB) error {
		c, err := s.courseRepo.Create(ctx, innerTx, course)
		if err != nil {
			return fmt.Errorf("create course: %w", err)
		}
		for i, d := range descriptions {
			d.CourseID = c.ID
			if d.Position == 0 {
				d.Position = i + 1
			}
		}
		if len(descriptions) > 0 {
			if _, err := s.descRepo.Create(ctx, innerTx, descriptions); err != nil {
				return fmt.Errorf("create course descriptions: %w", err)
			}
		}
		created = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("created course", "course_id", created.ID, "name", created.Name)
	return created, nil
}

// ActivateCourse flips is_active on. A course only goes live when it has at
// least one module and every module carries an active assessment and an
// active quiz; anything less stays a draft.
func (s *contentService) ActivateCourse(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}

	return transaction.WithContext(ctx).Transaction(func(innerTx *gorm.DB) error {
		modules, err := s.moduleRepo.ListByCourseID(ctx, innerTx, courseID)
		if err != nil {
			return err
		}
		if len(modules) == 0 {
			return fmt.Errorf("course %s has no modules: %w", courseID, errs.ErrInvalidArgument)
		}
		for _, m := range modules {
			for _, assessmentType := range []string{types.AssessmentTypeAssessment, types.AssessmentTypeQuiz} {
				if _, err := s.assessmentRepo.GetActiveByModule(ctx, innerTx, m.ID, assessmentType); err != nil {
					if errors.Is(err, errs.ErrNotFound) {
						return fmt.Errorf("module %d has no active %s: %w", m.Order, assessmentType, errs.ErrInvalidArgument)
					}
					return err
				}
			}
		}
		return s.courseRepo.UpdateFields(ctx, innerTx, courseID, map[string]interface{}{
			"is_active": true,
		})
	})
}

func (s *contentService) CreateModule(ctx context.Context, tx *gorm.DB, module *types.Module) (*types.Module, error) {
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}

	var created *types.Module
	err := transaction.WithContext(ctx).Transaction(func(innerTx *gorm.DB) error {
		if module.Order <= 0 {
			count, err := s.moduleRepo.CountByCourseID(ctx, innerTx, module.CourseID)
			if err != nil {
				return err
			}
			module.Order = int(count) + 1
		}
		out, err := s.moduleRepo.Create(ctx, innerTx, []*types.Module{module})
		if err != nil {
			return err
		}
		created = out[0]
		return s.moduleRepo.Renumber(ctx, innerTx, module.CourseID)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *contentService) DeleteModule(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}

	return transaction.WithContext(ctx).Transaction(func(innerTx *gorm.DB) error {
		module, err := s.moduleRepo.GetByID(ctx, innerTx, moduleID)
		if err != nil {
			return err
		}
		if err := s.moduleRepo.FullDeleteByIDs(ctx, innerTx, []uuid.UUID{moduleID}); err != nil {
			return err
		}
		return s.moduleRepo.Renumber(ctx, innerTx, module.CourseID)
	})
}

func (s *contentService) CreateTopic(ctx context.Context, tx *gorm.DB, topic *types.Topic) (*types.Topic, error) {
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}

	var created *types.Topic
	err := transaction.WithContext(ctx).Transaction(func(innerTx *gorm.DB) error {
		if topic.Order <= 0 {
			max, err := s.topicRepo.MaxOrder(ctx, innerTx, topic.ModuleID)
			if err != nil {
				return err
			}
			topic.Order = max + 1
		}
		out, err := s.topicRepo.Create(ctx, innerTx, topic)
		if err != nil {
			return err
		}
		created = out
		return s.topicRepo.Renumber(ctx, innerTx, topic.ModuleID)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *contentService) UpdateTopic(ctx context.Context, tx *gorm.DB, topicID uuid.UUID, fields map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}
	return s.topicRepo.UpdateFields(ctx, transaction, topicID, fields)
}

// ReorderTopic moves a topic to newOrder within its module, shifting siblings.
// The topic must belong to moduleID.
func (s *contentService) ReorderTopic(ctx context.Context, tx *gorm.DB, moduleID, topicID uuid.UUID, newOrder int) error {
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}

	return transaction.WithContext(ctx).Transaction(func(innerTx *gorm.DB) error {
		topic, err := s.topicRepo.GetByID(ctx, innerTx, topicID)
		if err != nil {
			return err
		}
		if topic.ModuleID != moduleID {
			return fmt.Errorf("topic %s does not belong to module %s: %w", topicID, moduleID, errs.ErrInvalidArgument)
		}
		max, err := s.topicRepo.MaxOrder(ctx, innerTx, moduleID)
		if err != nil {
			return err
		}
		if newOrder < 1 || newOrder > max {
			return fmt.Errorf("order %d out of range [1,%d]: %w", newOrder, max, errs.ErrInvalidArgument)
		}
		if newOrder == topic.Order {
			return nil
		}

		// Park the moving topic past the end, close the gap, then drop it
		// into its slot. Renumber restores contiguity.
		if err := s.topicRepo.UpdateFields(ctx, innerTx, topicID, map[string]interface{}{
			"topic_order": max + 1,
		}); err != nil {
			return err
		}
		if err := s.topicRepo.Renumber(ctx, innerTx, moduleID); err != nil {
			return err
		}
		siblings, err := s.topicRepo.ListByModuleID(ctx, innerTx, moduleID)
		if err != nil {
			return err
		}
		for _, sib := range siblings {
			if sib.ID == topicID {
				continue
			}
			if sib.Order >= newOrder {
				if err := s.topicRepo.UpdateFields(ctx, innerTx, sib.ID, map[string]interface{}{
					"topic_order": sib.Order + 1,
				}); err != nil {
					return err
				}
			}
		}
		if err := s.topicRepo.UpdateFields(ctx, innerTx, topicID, map[string]interface{}{
			"topic_order": newOrder,
		}); err != nil {
			return err
		}
		return s.topicRepo.Renumber(ctx, innerTx, moduleID)
	})
}

func (s *contentService) DeleteTopic(ctx context.Context, tx *gorm.DB, topicID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}

	return transaction.WithContext(ctx).Transaction(func(innerTx *gorm.DB) error {
		topic, err := s.topicRepo.GetByID(ctx, innerTx, topicID)
		if err != nil {
			return err
		}
		if err := s.topicRepo.FullDeleteByIDs(ctx, innerTx, []uuid.UUID{topicID}); err != nil {
			return err
		}
		return s.topicRepo.Renumber(ctx, innerTx, topic.ModuleID)
	})
}

func (s *contentService) CreateParagraphs(ctx context.Context, tx *gorm.DB, topicID uuid.UUID, contents []string) ([]*types.Paragraph, error) {
	if len(contents) == 0 {
		return nil, fmt.Errorf("no paragraph contents: %w", errs.ErrInvalidArgument)
	}

	transaction := tx
	if transaction == nil {
		transaction = s.db
	}

	var created []*types.Paragraph
	err := transaction.WithContext(ctx).Transaction(func(innerTx *gorm.DB) error {
		last, err := s.paragraphRepo.Last(ctx, innerTx, topicID)
		if err != nil && !errors.Is(err, errs.ErrNotFound) {
			return err
		}
		start := 0
		if last != nil {
			start = last.Order
		}

		paragraphs := make([]*types.Paragraph, 0, len(contents))
		for i, content := range contents {
			paragraphs = append(paragraphs, &types.Paragraph{
				TopicID: topicID,
				Content: content,
				Order:   start + i + 1,
			})
		}
		created, err = s.paragraphRepo.Create(ctx, innerTx, paragraphs)
		if err != nil {
			return err
		}
		return s.paragraphRepo.Renumber(ctx, innerTx, topicID)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *contentService) CreateAssessment(ctx context.Context, tx *gorm.DB, assessment *types.Assessment, questions []*types.Question) (*types.Assessment, error) {
	if assessment.Type != types.AssessmentTypeQuiz && assessment.Type != types.AssessmentTypeAssessment {
		return nil, fmt.Errorf("unknown assessment type %q: %w", assessment.Type, errs.ErrInvalidArgument)
	}

	transaction := tx
	if transaction == nil {
		transaction = s.db
	}

	var created *types.Assessment
	err := transaction.WithContext(ctx).Transaction(func(innerTx *gorm.DB) error {
		// New assessments start inactive; activation runs the validation
		// workflow below.
		assessment.IsActive = false
		a, err := s.assessmentRepo.Create(ctx, innerTx, assessment)
		if err != nil {
			return err
		}
		for _, q := range questions {
			q.AssessmentID = a.ID
		}
		if len(questions) > 0 {
			if _, err := s.questionRepo.Create(ctx, innerTx, questions); err != nil {
				return err
			}
		}
		created = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// SetAssessmentActive activates or deactivates an assessment. Activation
// requires at least one question, every MCQ question at least two options,
// and deactivates any other active assessment of the same type on the module
// in the same transaction.
func (s *contentService) SetAssessmentActive(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID, active bool) error {
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}

	return transaction.WithContext(ctx).Transaction(func(innerTx *gorm.DB) error {
		assessment, err := s.assessmentRepo.GetByID(ctx, innerTx, assessmentID)
		if err != nil {
			return err
		}

		if !active {
			return s.assessmentRepo.UpdateFields(ctx, innerTx, assessmentID, map[string]interface{}{
				"is_active": false,
			})
		}

		questions, err := s.questionRepo.ListByAssessmentID(ctx, innerTx, assessmentID)
		if err != nil {
			return err
		}
		if len(questions) == 0 {
			return fmt.Errorf("assessment %s has no questions: %w", assessmentID, errs.ErrInvalidArgument)
		}
		for _, q := range questions {
			if q.Type != types.QuestionTypeMCQ {
				continue
			}
			var options []types.QuestionOption
			if len(q.Options) > 0 {
				if err := json.Unmarshal(q.Options, &options); err != nil {
					return fmt.Errorf("question %s options: %w", q.ID, err)
				}
			}
			if len(options) < 2 {
				return fmt.Errorf("mcq question %s has %d options, need at least 2: %w", q.ID, len(options), errs.ErrInvalidArgument)
			}
		}

		if err := s.assessmentRepo.DeactivateSiblings(ctx, innerTx, assessment.ModuleID, assessment.Type, assessmentID); err != nil {
			return err
		}
		return s.assessmentRepo.UpdateFields(ctx, innerTx, assessmentID, map[string]interface{}{
			"is_active": true,
		})
	})
}
