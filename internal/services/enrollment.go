package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wappstudy/wappstudy-backend/internal/data/repos"
	types "github.com/wappstudy/wappstudy-backend/internal/domain"
	errs "github.com/wappstudy/wappstudy-backend/internal/pkg/errors"
	"github.com/wappstudy/wappstudy-backend/internal/pkg/logger"
)

// EnrollmentService owns the enrollment lifecycle: creation, the module
// cursor, the progress fraction and course completion.
type EnrollmentService interface {
	Enroll(ctx context.Context, tx *gorm.DB, user *types.User, courseID uuid.UUID) (*types.Enrollment, error)
	GetByID(ctx context.Context, tx *gorm.DB, enrollmentID uuid.UUID) (*types.Enrollment, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Enrollment, error)
	EnrolledCourseIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error)
	NextModule(ctx context.Context, tx *gorm.DB, enrollment *types.Enrollment) (*types.Module, error)
	AdvanceToModule(ctx context.Context, tx *gorm.DB, enrollment *types.Enrollment, module *types.Module) error
	SetConversationState(ctx context.Context, tx *gorm.DB, enrollmentID uuid.UUID, state string) error
	MarkCompleted(ctx context.Context, tx *gorm.DB, enrollmentID uuid.UUID) (*types.Enrollment, error)
}

type enrollmentService struct {
	db             *gorm.DB
	log            *logger.Logger
	courseRepo     repos.CourseRepo
	moduleRepo     repos.ModuleRepo
	enrollmentRepo repos.EnrollmentRepo
	userRepo       repos.UserRepo
	moduleProg     repos.ModuleProgressRepo
}

func NewEnrollmentService(
	db *gorm.DB,
	baseLog *logger.Logger,
	courseRepo repos.CourseRepo,
	moduleRepo repos.ModuleRepo,
	enrollmentRepo repos.EnrollmentRepo,
	userRepo repos.UserRepo,
	moduleProg repos.ModuleProgressRepo,
) EnrollmentService {
	svcLog := baseLog.With("service", "EnrollmentService")
	return &enrollmentService{
		db:             db,
		log:            svcLog,
		courseRepo:     courseRepo,
		moduleRepo:     moduleRepo,
		enrollmentRepo: enrollmentRepo,
		userRepo:       userRepo,
		moduleProg:     moduleProg,
	}
}

// Enroll creates an enrollment for an active course and makes it the user's
// active one. Enrolling twice in the same course is a conflict.
func (s *enrollmentService) Enroll(ctx context.Context, tx *gorm.DB, user *types.User, courseID uuid.UUID) (*types.Enrollment, error) {
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}

	var enrollment *types.Enrollment
	err := transaction.WithContext(ctx).Transaction(func(innerTx *gorm.DB) error {
		course, err := s.courseRepo.GetByID(ctx, innerTx, courseID)
		if err != nil {
			return err
		}
		if !course.IsActive {
			return fmt.Errorf("course %s is not active: %w", courseID, errs.ErrInvalidArgument)
		}

		existing, err := s.enrollmentRepo.GetByUserAndCourse(ctx, innerTx, user.ID, courseID)
		if err != nil && !errors.Is(err, errs.ErrNotFound) {
			return err
		}
		if existing != nil {
			return fmt.Errorf("user %s already enrolled in course %s: %w", user.ID, courseID, errs.ErrConflict)
		}

		enrollment, err = s.enrollmentRepo.Create(ctx, innerTx, &types.Enrollment{
			UserID:            user.ID,
			CourseID:          courseID,
			Status:            types.EnrollmentStatusInProgress,
			ConversationState: types.ConversationStateIdle,
			IntroductionState: types.IntroductionNotStarted,
		})
		if err != nil {
			return err
		}
		return s.userRepo.UpdateFields(ctx, innerTx, user.ID, map[string]interface{}{
			"active_enrollment_id": enrollment.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("enrolled user", "user_id", user.ID, "course_id", courseID, "enrollment_id", enrollment.ID)
	return enrollment, nil
}

func (s *enrollmentService) GetByID(ctx context.Context, tx *gorm.DB, enrollmentID uuid.UUID) (*types.Enrollment, error) {
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}
	return s.enrollmentRepo.GetByID(ctx, transaction, enrollmentID)
}

func (s *enrollmentService) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Enrollment, error) {
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}
	return s.enrollmentRepo.ListByUserID(ctx, transaction, userID)
}

func (s *enrollmentService) EnrolledCourseIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error) {
	enrollments, err := s.ListByUser(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(enrollments))
	for _, e := range enrollments {
		ids = append(ids, e.CourseID)
	}
	return ids, nil
}

// NextModule returns the module after the enrollment's current one in course
// order, the first module when no module is set yet, or nil when the course
// has no further modules.
func (s *enrollmentService) NextModule(ctx context.Context, tx *gorm.DB, enrollment *types.Enrollment) (*types.Module, error) {
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}

	afterOrder := 0
	if enrollment.CurrentModuleID != nil {
		current, err := s.moduleRepo.GetByID(ctx, transaction, *enrollment.CurrentModuleID)
		if err != nil {
			return nil, err
		}
		afterOrder = current.Order
	}

	next, err := s.moduleRepo.NextByOrder(ctx, transaction, enrollment.CourseID, afterOrder)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return next, nil
}

// AdvanceToModule points the enrollment at the given module and recomputes
// the progress fraction as completed modules over total modules. The module
// gets its progress row eagerly so delivery starts from a known state.
func (s *enrollmentService) AdvanceToModule(ctx context.Context, tx *gorm.DB, enrollment *types.Enrollment, module *types.Module) error {
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}

	return transaction.WithContext(ctx).Transaction(func(innerTx *gorm.DB) error {
		total, err := s.moduleRepo.CountByCourseID(ctx, innerTx, enrollment.CourseID)
		if err != nil {
			return err
		}
		progress := 0.0
		if total > 0 {
			progress = float64(module.Order-1) / float64(total)
		}

		if err := s.enrollmentRepo.UpdateFields(ctx, innerTx, enrollment.ID, map[string]interface{}{
			"current_module_id": module.ID,
			"progress":          progress,
		}); err != nil {
			return err
		}
		_, err = s.moduleProg.GetOrCreate(ctx, innerTx, enrollment.ID, module.ID)
		return err
	})
}

func (s *enrollmentService) SetConversationState(ctx context.Context, tx *gorm.DB, enrollmentID uuid.UUID, state string) error {
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}
	return s.enrollmentRepo.UpdateFields(ctx, transaction, enrollmentID, map[string]interface{}{
		"conversation_state": state,
	})
}

// MarkCompleted is the terminal enrollment transition: completed status, full
// progress, certificate flag on, and the user's active enrollment cleared.
func (s *enrollmentService) MarkCompleted(ctx context.Context, tx *gorm.DB, enrollmentID uuid.UUID) (*types.Enrollment, error) {
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}

	var out *types.Enrollment
	err := transaction.WithContext(ctx).Transaction(func(innerTx *gorm.DB) error {
		enrollment, err := s.enrollmentRepo.GetByID(ctx, innerTx, enrollmentID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := s.enrollmentRepo.UpdateFields(ctx, innerTx, enrollmentID, map[string]interface{}{
			"status":             types.EnrollmentStatusCompleted,
			"completed":          true,
			"completed_at":       now,
			"progress":           1.0,
			"certificate_earned": true,
			"conversation_state": types.ConversationStateCourseComplete,
		}); err != nil {
			return err
		}
		if err := s.userRepo.UpdateFields(ctx, innerTx, enrollment.UserID, map[string]interface{}{
			"active_enrollment_id": nil,
		}); err != nil {
			return err
		}

		out, err = s.enrollmentRepo.GetByID(ctx, innerTx, enrollmentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("completed enrollment", "enrollment_id", enrollmentID)
	return out, nil
}
