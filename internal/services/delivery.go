package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wappstudy/wappstudy-backend/internal/data/repos"
	types "github.com/wappstudy/wappstudy-backend/internal/domain"
	errs "github.com/wappstudy/wappstudy-backend/internal/pkg/errors"
	"github.com/wappstudy/wappstudy-backend/internal/pkg/logger"
)

// StepKind tags what a delivery step carries.
type StepKind string

const (
	// StepModuleIntro is the module's own content, sent before any topic.
	StepModuleIntro StepKind = "module_intro"
	// StepTopicStart is the first paragraph of a newly entered topic.
	StepTopicStart StepKind = "topic_start"
	// StepParagraph is the next paragraph within the current topic.
	StepParagraph StepKind = "paragraph"
	// StepModuleDone means every active topic has been fully delivered.
	StepModuleDone StepKind = "module_done"
)

// ContentStep is one unit of outbound course content. Topic and Paragraph are
// set for topic_start/paragraph steps; module_done carries only the module.
type ContentStep struct {
	Kind      StepKind
	Module    *types.Module
	Topic     *types.Topic
	Paragraph *types.Paragraph
}

// DeliveryService advances and rewinds the learner's position through
// module -> topic -> paragraph content. All advancement is computed from
// persisted state, never from deltas, so a retried call lands on the same
// next unit.
type DeliveryService interface {
	GetOrCreateModuleProgress(ctx context.Context, tx *gorm.DB, enrollmentID, moduleID uuid.UUID) (*types.ModuleDeliveryProgress, error)
	GetModuleProgress(ctx context.Context, tx *gorm.DB, enrollmentID, moduleID uuid.UUID) (*types.ModuleDeliveryProgress, error)
	AdvanceTopic(ctx context.Context, tx *gorm.DB, enrollmentID, moduleID uuid.UUID) (*types.ModuleDeliveryProgress, error)
	AdvanceParagraph(ctx context.Context, tx *gorm.DB, enrollmentID, topicID uuid.UUID) (*types.TopicDeliveryProgress, error)
	NextContent(ctx context.Context, tx *gorm.DB, enrollment *types.Enrollment) (*ContentStep, error)
	StepBack(ctx context.Context, tx *gorm.DB, enrollment *types.Enrollment) (*ContentStep, error)
	ResetModuleProgress(ctx context.Context, tx *gorm.DB, enrollmentID uuid.UUID) error
	MarkModuleState(ctx context.Context, tx *gorm.DB, enrollmentID, moduleID uuid.UUID, state string) error
}

type deliveryService struct {
	db            *gorm.DB
	log           *logger.Logger
	moduleRepo    repos.ModuleRepo
	topicRepo     repos.TopicRepo
	paragraphRepo repos.ParagraphRepo
	moduleProg    repos.ModuleProgressRepo
	topicProg     repos.TopicProgressRepo
}

func NewDeliveryService(
	db *gorm.DB,
	baseLog *logger.Logger,
	moduleRepo repos.ModuleRepo,
	topicRepo repos.TopicRepo,
	paragraphRepo repos.ParagraphRepo,
	moduleProg repos.ModuleProgressRepo,
	topicProg repos.TopicProgressRepo,
) DeliveryService {
	svcLog := baseLog.With("service", "DeliveryService")
	return &deliveryService{
		db:            db,
		log:           svcLog,
		moduleRepo:    moduleRepo,
		topicRepo:     topicRepo,
		paragraphRepo: paragraphRepo,
		moduleProg:    moduleProg,
		topicProg:     topicProg,
	}
}

func (s *deliveryService) GetOrCreateModuleProgress(ctx context.Context, tx *gorm.DB, enrollmentID, moduleID uuid.UUID) (*types.ModuleDeliveryProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}
	return s.moduleProg.GetOrCreate(ctx, transaction, enrollmentID, moduleID)
}

func (s *deliveryService) GetModuleProgress(ctx context.Context, tx *gorm.DB, enrollmentID, moduleID uuid.UUID) (*types.ModuleDeliveryProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}
	return s.moduleProg.Get(ctx, transaction, enrollmentID, moduleID)
}

// AdvanceTopic moves the module pointer to the next active topic by order, or
// marks the module content_delivered when none remain.
func (s *deliveryService) AdvanceTopic(ctx context.Context, tx *gorm.DB, enrollmentID, moduleID uuid.UUID) (*types.ModuleDeliveryProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}

	var out *types.ModuleDeliveryProgress
	err := transaction.WithContext(ctx).Transaction(func(innerTx *gorm.DB) error {
		progress, err := s.moduleProg.GetOrCreate(ctx, innerTx, enrollmentID, moduleID)
		if err != nil {
			return err
		}

		afterOrder := 0
		if progress.CurrentTopicID != nil {
			current, err := s.topicRepo.GetByID(ctx, innerTx, *progress.CurrentTopicID)
			switch {
			case err == nil:
				afterOrder = current.Order
			case errors.Is(err, errs.ErrNotFound):
				// Pointed-at topic was deleted; restart from the module start.
			default:
				return err
			}
		}

		next, err := s.topicRepo.NextActiveAfter(ctx, innerTx, moduleID, afterOrder)
		if err != nil && !errors.Is(err, errs.ErrNotFound) {
			return err
		}

		if next == nil {
			if err := s.moduleProg.UpdateFields(ctx, innerTx, progress.ID, map[string]interface{}{
				"state":            types.ModuleDeliveryContentDelivered,
				"current_topic_id": nil,
			}); err != nil {
				return err
			}
			progress.State = types.ModuleDeliveryContentDelivered
			progress.CurrentTopicID = nil
		} else {
			if err := s.moduleProg.UpdateFields(ctx, innerTx, progress.ID, map[string]interface{}{
				"state":            types.ModuleDeliveryContentDelivering,
				"current_topic_id": next.ID,
			}); err != nil {
				return err
			}
			progress.State = types.ModuleDeliveryContentDelivering
			progress.CurrentTopicID = &next.ID
		}
		out = progress
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AdvanceParagraph moves the topic pointer to the next paragraph by order,
// transitioning the topic not_started -> content_delivering -> content_delivered.
func (s *deliveryService) AdvanceParagraph(ctx context.Context, tx *gorm.DB, enrollmentID, topicID uuid.UUID) (*types.TopicDeliveryProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}

	var out *types.TopicDeliveryProgress
	err := transaction.WithContext(ctx).Transaction(func(innerTx *gorm.DB) error {
		tp, err := s.topicProg.GetOrCreate(ctx, innerTx, enrollmentID, topicID)
		if err != nil {
			return err
		}

		afterOrder := 0
		if tp.CurrentParagraphID != nil {
			current, err := s.paragraphRepo.GetByID(ctx, innerTx, *tp.CurrentParagraphID)
			switch {
			case err == nil:
				afterOrder = current.Order
			case errors.Is(err, errs.ErrNotFound):
				// Deleted paragraph; restart the topic from its first one.
			default:
				return err
			}
		}

		next, err := s.paragraphRepo.NextAfter(ctx, innerTx, topicID, afterOrder)
		if err != nil && !errors.Is(err, errs.ErrNotFound) {
			return err
		}

		if next == nil {
			if err := s.topicProg.UpdateFields(ctx, innerTx, tp.ID, map[string]interface{}{
				"state":                types.TopicDeliveryContentDelivered,
				"current_paragraph_id": nil,
			}); err != nil {
				return err
			}
			tp.State = types.TopicDeliveryContentDelivered
			tp.CurrentParagraphID = nil
		} else {
			if err := s.topicProg.UpdateFields(ctx, innerTx, tp.ID, map[string]interface{}{
				"state":                types.TopicDeliveryContentDelivering,
				"current_paragraph_id": next.ID,
			}); err != nil {
				return err
			}
			tp.State = types.TopicDeliveryContentDelivering
			tp.CurrentParagraphID = &next.ID
		}
		out = tp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// NextContent computes and persists the learner's next unit of content within
// the current module. Topics with no paragraphs are skipped.
func (s *deliveryService) NextContent(ctx context.Context, tx *gorm.DB, enrollment *types.Enrollment) (*ContentStep, error) {
	if enrollment.CurrentModuleID == nil {
		return nil, fmt.Errorf("enrollment %s has no current module: %w", enrollment.ID, errs.ErrNotFound)
	}

	transaction := tx
	if transaction == nil {
		transaction = s.db
	}

	var step *ContentStep
	err := transaction.WithContext(ctx).Transaction(func(innerTx *gorm.DB) error {
		module, err := s.moduleRepo.GetByID(ctx, innerTx, *enrollment.CurrentModuleID)
		if err != nil {
			return err
		}
		progress, err := s.moduleProg.GetOrCreate(ctx, innerTx, enrollment.ID, module.ID)
		if err != nil {
			return err
		}

		if progress.State == types.ModuleDeliveryContentDelivered && progress.CurrentTopicID == nil {
			step = &ContentStep{Kind: StepModuleDone, Module: module}
			return nil
		}

		// Within the current topic, try the next paragraph first. A pointer
		// to a since-deleted topic falls through to AdvanceTopic, which
		// restarts the walk from the module start.
		if progress.CurrentTopicID != nil {
			topic, err := s.topicRepo.GetByID(ctx, innerTx, *progress.CurrentTopicID)
			if err != nil && !errors.Is(err, errs.ErrNotFound) {
				return err
			}
			if topic != nil {
				tp, err := s.AdvanceParagraph(ctx, innerTx, enrollment.ID, topic.ID)
				if err != nil {
					return err
				}
				if tp.CurrentParagraphID != nil {
					paragraph, err := s.paragraphRepo.GetByID(ctx, innerTx, *tp.CurrentParagraphID)
					if err != nil {
						return err
					}
					step = &ContentStep{Kind: StepParagraph, Module: module, Topic: topic, Paragraph: paragraph}
					return nil
				}
				// Topic exhausted; move on.
			}
		}

		step, err = s.enterNextTopic(ctx, innerTx, enrollment, module)
		return err
	})
	if err != nil {
		return nil, err
	}
	return step, nil
}

// enterNextTopic advances the module pointer until it lands on an active
// topic with at least one paragraph, entering it at its first paragraph.
func (s *deliveryService) enterNextTopic(ctx context.Context, tx *gorm.DB, enrollment *types.Enrollment, module *types.Module) (*ContentStep, error) {
	for {
		progress, err := s.AdvanceTopic(ctx, tx, enrollment.ID, module.ID)
		if err != nil {
			return nil, err
		}
		if progress.CurrentTopicID == nil {
			return &ContentStep{Kind: StepModuleDone, Module: module}, nil
		}

		topic, err := s.topicRepo.GetByID(ctx, tx, *progress.CurrentTopicID)
		if err != nil {
			return nil, err
		}
		first, err := s.paragraphRepo.First(ctx, tx, topic.ID)
		if err != nil && !errors.Is(err, errs.ErrNotFound) {
			return nil, err
		}
		if first == nil {
			continue
		}

		// Entering a topic always (re)starts its paragraph walk.
		tp, err := s.topicProg.GetOrCreate(ctx, tx, enrollment.ID, topic.ID)
		if err != nil {
			return nil, err
		}
		if err := s.topicProg.UpdateFields(ctx, tx, tp.ID, map[string]interface{}{
			"state":                types.TopicDeliveryContentDelivering,
			"current_paragraph_id": first.ID,
		}); err != nil {
			return nil, err
		}
		return &ContentStep{Kind: StepTopicStart, Module: module, Topic: topic, Paragraph: first}, nil
	}
}

// StepBack rewinds to the previous unit: previous paragraph in the current
// topic, else the last paragraph of the previous active topic, else the
// module's own content. Clamped at module start, never wraps.
func (s *deliveryService) StepBack(ctx context.Context, tx *gorm.DB, enrollment *types.Enrollment) (*ContentStep, error) {
	if enrollment.CurrentModuleID == nil {
		return nil, fmt.Errorf("enrollment %s has no current module: %w", enrollment.ID, errs.ErrNotFound)
	}

	transaction := tx
	if transaction == nil {
		transaction = s.db
	}

	var step *ContentStep
	err := transaction.WithContext(ctx).Transaction(func(innerTx *gorm.DB) error {
		module, err := s.moduleRepo.GetByID(ctx, innerTx, *enrollment.CurrentModuleID)
		if err != nil {
			return err
		}
		progress, err := s.moduleProg.GetOrCreate(ctx, innerTx, enrollment.ID, module.ID)
		if err != nil {
			return err
		}

		// Module fully delivered: rewind to the last paragraph of the last
		// active topic.
		if progress.CurrentTopicID == nil {
			if progress.State != types.ModuleDeliveryContentDelivered {
				step = &ContentStep{Kind: StepModuleIntro, Module: module}
				return nil
			}
			last, err := s.topicRepo.LastActive(ctx, innerTx, module.ID)
			if err != nil {
				if errors.Is(err, errs.ErrNotFound) {
					step = &ContentStep{Kind: StepModuleIntro, Module: module}
					return nil
				}
				return err
			}
			step, err = s.moveToLastParagraph(ctx, innerTx, enrollment, module, progress, last)
			return err
		}

		topic, err := s.topicRepo.GetByID(ctx, innerTx, *progress.CurrentTopicID)
		if errors.Is(err, errs.ErrNotFound) {
			// Pointed-at topic was deleted; clamp to the module start.
			if err := s.moduleProg.UpdateFields(ctx, innerTx, progress.ID, map[string]interface{}{
				"current_topic_id": nil,
			}); err != nil {
				return err
			}
			step = &ContentStep{Kind: StepModuleIntro, Module: module}
			return nil
		}
		if err != nil {
			return err
		}
		tp, err := s.topicProg.GetOrCreate(ctx, innerTx, enrollment.ID, topic.ID)
		if err != nil {
			return err
		}

		if tp.CurrentParagraphID != nil {
			current, err := s.paragraphRepo.GetByID(ctx, innerTx, *tp.CurrentParagraphID)
			if errors.Is(err, errs.ErrNotFound) {
				step, err = s.moveToLastParagraph(ctx, innerTx, enrollment, module, progress, topic)
				return err
			}
			if err != nil {
				return err
			}
			prev, err := s.paragraphRepo.PrevBefore(ctx, innerTx, topic.ID, current.Order)
			if err != nil && !errors.Is(err, errs.ErrNotFound) {
				return err
			}
			if prev != nil {
				if err := s.topicProg.UpdateFields(ctx, innerTx, tp.ID, map[string]interface{}{
					"current_paragraph_id": prev.ID,
				}); err != nil {
					return err
				}
				step = &ContentStep{Kind: StepParagraph, Module: module, Topic: topic, Paragraph: prev}
				return nil
			}
		}

		// At the first paragraph (or a topic with no pointer yet): try the
		// previous active topic's last paragraph.
		prevTopic, err := s.topicRepo.PrevActiveBefore(ctx, innerTx, module.ID, topic.Order)
		if err != nil && !errors.Is(err, errs.ErrNotFound) {
			return err
		}
		if prevTopic == nil {
			// Clamped at module start: land on the module's own content,
			// never before it. Forward resumes from the first topic.
			if err := s.topicProg.UpdateFields(ctx, innerTx, tp.ID, map[string]interface{}{
				"state":                types.TopicDeliveryNotStarted,
				"current_paragraph_id": nil,
			}); err != nil {
				return err
			}
			if err := s.moduleProg.UpdateFields(ctx, innerTx, progress.ID, map[string]interface{}{
				"state":            types.ModuleDeliveryContentDelivering,
				"current_topic_id": nil,
			}); err != nil {
				return err
			}
			step = &ContentStep{Kind: StepModuleIntro, Module: module}
			return nil
		}

		step, err = s.moveToLastParagraph(ctx, innerTx, enrollment, module, progress, prevTopic)
		return err
	})
	if err != nil {
		return nil, err
	}
	return step, nil
}

func (s *deliveryService) moveToLastParagraph(ctx context.Context, tx *gorm.DB, enrollment *types.Enrollment, module *types.Module, progress *types.ModuleDeliveryProgress, topic *types.Topic) (*ContentStep, error) {
	last, err := s.paragraphRepo.Last(ctx, tx, topic.ID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return &ContentStep{Kind: StepModuleIntro, Module: module}, nil
		}
		return nil, err
	}

	if err := s.moduleProg.UpdateFields(ctx, tx, progress.ID, map[string]interface{}{
		"state":            types.ModuleDeliveryContentDelivering,
		"current_topic_id": topic.ID,
	}); err != nil {
		return nil, err
	}
	tp, err := s.topicProg.GetOrCreate(ctx, tx, enrollment.ID, topic.ID)
	if err != nil {
		return nil, err
	}
	if err := s.topicProg.UpdateFields(ctx, tx, tp.ID, map[string]interface{}{
		"state":                types.TopicDeliveryContentDelivering,
		"current_paragraph_id": last.ID,
	}); err != nil {
		return nil, err
	}
	return &ContentStep{Kind: StepParagraph, Module: module, Topic: topic, Paragraph: last}, nil
}

// ResetModuleProgress puts every progress row of the enrollment back to
// not_started with cleared pointers. Used when (re)starting a module's
// content phase.
func (s *deliveryService) ResetModuleProgress(ctx context.Context, tx *gorm.DB, enrollmentID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}

	return transaction.WithContext(ctx).Transaction(func(innerTx *gorm.DB) error {
		if err := s.moduleProg.ResetAllByEnrollment(ctx, innerTx, enrollmentID); err != nil {
			return err
		}
		return s.topicProg.ResetAllByEnrollment(ctx, innerTx, enrollmentID)
	})
}

func (s *deliveryService) MarkModuleState(ctx context.Context, tx *gorm.DB, enrollmentID, moduleID uuid.UUID, state string) error {
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}

	progress, err := s.moduleProg.GetOrCreate(ctx, transaction, enrollmentID, moduleID)
	if err != nil {
		return err
	}
	return s.moduleProg.UpdateFields(ctx, transaction, progress.ID, map[string]interface{}{
		"state": state,
	})
}
