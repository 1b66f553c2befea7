package services

import (
	"context"
	"errors"
	"math"
	"testing"

	"gorm.io/gorm"

	"github.com/wappstudy/wappstudy-backend/internal/data/repos"
	"github.com/wappstudy/wappstudy-backend/internal/data/repos/testutil"
	types "github.com/wappstudy/wappstudy-backend/internal/domain"
	errs "github.com/wappstudy/wappstudy-backend/internal/pkg/errors"
)

func enrollmentFixture(t *testing.T) (EnrollmentService, repos.UserRepo, *gorm.DB) {
	t.Helper()
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)

	userRepo := repos.NewUserRepo(tx, log)
	svc := NewEnrollmentService(
		tx, log,
		repos.NewCourseRepo(tx, log),
		repos.NewModuleRepo(tx, log),
		repos.NewEnrollmentRepo(tx, log),
		userRepo,
		repos.NewModuleProgressRepo(tx, log),
	)
	return svc, userRepo, tx
}

func TestEnroll(t *testing.T) {
	svc, userRepo, tx := enrollmentFixture(t)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "27820000001")
	course := testutil.SeedCourse(t, ctx, tx, "Intro to SQL")
	testutil.SeedModule(t, ctx, tx, course.ID, 1)

	enrollment, err := svc.Enroll(ctx, tx, user, course.ID)
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if enrollment.ConversationState != types.ConversationStateIdle {
		t.Fatalf("conversation state = %q, want idle", enrollment.ConversationState)
	}
	if enrollment.IntroductionState != types.IntroductionNotStarted {
		t.Fatalf("introduction state = %q, want not_started", enrollment.IntroductionState)
	}

	reloaded, err := userRepo.GetByID(ctx, tx, user.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if reloaded.ActiveEnrollmentID == nil || *reloaded.ActiveEnrollmentID != enrollment.ID {
		t.Fatalf("active enrollment not pointed at new enrollment")
	}

	_, err = svc.Enroll(ctx, tx, user, course.ID)
	if !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("second enroll: err = %v, want ErrConflict", err)
	}
}

func TestEnrollRejectsInactiveCourse(t *testing.T) {
	svc, _, tx := enrollmentFixture(t)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "27820000002")
	course := testutil.SeedCourse(t, ctx, tx, "Draft Course")
	if err := tx.Model(&types.Course{}).Where("id = ?", course.ID).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate course: %v", err)
	}

	_, err := svc.Enroll(ctx, tx, user, course.ID)
	if !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("enrolling in inactive course: err = %v, want ErrInvalidArgument", err)
	}
}

func TestNextModuleWalksCourseOrder(t *testing.T) {
	svc, _, tx := enrollmentFixture(t)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "27820000003")
	course := testutil.SeedCourse(t, ctx, tx, "Intro to SQL")
	first := testutil.SeedModule(t, ctx, tx, course.ID, 1)
	second := testutil.SeedModule(t, ctx, tx, course.ID, 2)
	enrollment := testutil.SeedEnrollment(t, ctx, tx, user.ID, course.ID)

	next, err := svc.NextModule(ctx, tx, enrollment)
	if err != nil {
		t.Fatalf("NextModule: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("fresh enrollment should start at module 1")
	}

	enrollment.CurrentModuleID = &first.ID
	next, err = svc.NextModule(ctx, tx, enrollment)
	if err != nil {
		t.Fatalf("NextModule after module 1: %v", err)
	}
	if next == nil || next.ID != second.ID {
		t.Fatalf("module after first should be module 2")
	}

	enrollment.CurrentModuleID = &second.ID
	next, err = svc.NextModule(ctx, tx, enrollment)
	if err != nil {
		t.Fatalf("NextModule past last: %v", err)
	}
	if next != nil {
		t.Fatalf("NextModule past last module = %v, want nil", next.ID)
	}
}

func TestAdvanceToModuleProgressFraction(t *testing.T) {
	svc, _, tx := enrollmentFixture(t)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "27820000004")
	course := testutil.SeedCourse(t, ctx, tx, "Intro to SQL")
	testutil.SeedModule(t, ctx, tx, course.ID, 1)
	second := testutil.SeedModule(t, ctx, tx, course.ID, 2)
	third := testutil.SeedModule(t, ctx, tx, course.ID, 3)
	testutil.SeedModule(t, ctx, tx, course.ID, 4)
	enrollment := testutil.SeedEnrollment(t, ctx, tx, user.ID, course.ID)

	if err := svc.AdvanceToModule(ctx, tx, enrollment, second); err != nil {
		t.Fatalf("AdvanceToModule: %v", err)
	}
	reloaded, err := svc.GetByID(ctx, tx, enrollment.ID)
	if err != nil {
		t.Fatalf("reload enrollment: %v", err)
	}
	if reloaded.CurrentModuleID == nil || *reloaded.CurrentModuleID != second.ID {
		t.Fatalf("current module not updated")
	}
	// One of four modules is behind us.
	if math.Abs(reloaded.Progress-0.25) > 1e-9 {
		t.Fatalf("progress = %v, want 0.25", reloaded.Progress)
	}

	if err := svc.AdvanceToModule(ctx, tx, reloaded, third); err != nil {
		t.Fatalf("AdvanceToModule to third: %v", err)
	}
	reloaded, err = svc.GetByID(ctx, tx, enrollment.ID)
	if err != nil {
		t.Fatalf("reload enrollment: %v", err)
	}
	if math.Abs(reloaded.Progress-0.5) > 1e-9 {
		t.Fatalf("progress = %v, want 0.5", reloaded.Progress)
	}
}

func TestMarkCompleted(t *testing.T) {
	svc, userRepo, tx := enrollmentFixture(t)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "27820000005")
	course := testutil.SeedCourse(t, ctx, tx, "Intro to SQL")
	testutil.SeedModule(t, ctx, tx, course.ID, 1)
	enrollment := testutil.SeedEnrollment(t, ctx, tx, user.ID, course.ID)
	if err := userRepo.UpdateFields(ctx, tx, user.ID, map[string]interface{}{
		"active_enrollment_id": enrollment.ID,
	}); err != nil {
		t.Fatalf("set active enrollment: %v", err)
	}

	completed, err := svc.MarkCompleted(ctx, tx, enrollment.ID)
	if err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	if completed.Status != types.EnrollmentStatusCompleted {
		t.Fatalf("status = %q, want completed", completed.Status)
	}
	if !completed.Completed || completed.CompletedAt == nil {
		t.Fatalf("completion flag/timestamp not set")
	}
	if completed.Progress != 1.0 {
		t.Fatalf("progress = %v, want 1.0", completed.Progress)
	}
	if !completed.CertificateEarned {
		t.Fatalf("certificate not marked earned")
	}
	if completed.ConversationState != types.ConversationStateCourseComplete {
		t.Fatalf("conversation state = %q, want course_complete", completed.ConversationState)
	}

	reloadedUser, err := userRepo.GetByID(ctx, tx, user.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if reloadedUser.ActiveEnrollmentID != nil {
		t.Fatalf("active enrollment not cleared after completion")
	}
}
