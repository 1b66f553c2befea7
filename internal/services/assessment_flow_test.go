package services

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/wappstudy/wappstudy-backend/internal/data/repos"
	"github.com/wappstudy/wappstudy-backend/internal/data/repos/testutil"
	types "github.com/wappstudy/wappstudy-backend/internal/domain"
	errs "github.com/wappstudy/wappstudy-backend/internal/pkg/errors"
)

type attemptFixture struct {
	tx         *gorm.DB
	svc        AssessmentService
	enrollRepo repos.EnrollmentRepo
	user       *types.User
	enrollment *types.Enrollment
	assessment *types.Assessment
	questions  []*types.Question
}

func newAttemptFixture(t *testing.T) *attemptFixture {
	t.Helper()
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	ctx := context.Background()

	enrollRepo := repos.NewEnrollmentRepo(tx, log)
	svc := NewAssessmentService(
		tx, log,
		&fakeAI{},
		repos.NewQuestionRepo(tx, log),
		repos.NewAttemptRepo(tx, log),
		repos.NewResponseRepo(tx, log),
		enrollRepo,
	)

	user := testutil.SeedUser(t, ctx, tx, "27830000001")
	course := testutil.SeedCourse(t, ctx, tx, "Intro to SQL")
	module := testutil.SeedModule(t, ctx, tx, course.ID, 1)
	enrollment := testutil.SeedEnrollment(t, ctx, tx, user.ID, course.ID)
	assessment := testutil.SeedAssessment(t, ctx, tx, module.ID, types.AssessmentTypeAssessment, true)
	q1 := testutil.SeedMCQQuestion(t, ctx, tx, assessment.ID, "What does SQL stand for?",
		"Structured Query Language", "Simple Query Logic")
	q2 := testutil.SeedMCQQuestion(t, ctx, tx, assessment.ID, "Which clause filters rows?",
		"WHERE", "ORDER BY")

	return &attemptFixture{
		tx:         tx,
		svc:        svc,
		enrollRepo: enrollRepo,
		user:       user,
		enrollment: enrollment,
		assessment: assessment,
		questions:  []*types.Question{q1, q2},
	}
}

func TestStartAttemptSnapshotsQuestionCount(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	attempt, err := f.svc.StartAttempt(ctx, f.tx, f.user, f.enrollment, f.assessment)
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	if attempt.TotalQuestions != 2 {
		t.Fatalf("total questions = %d, want 2", attempt.TotalQuestions)
	}
	if attempt.Status != types.AttemptStatusInProgress {
		t.Fatalf("status = %q, want in_progress", attempt.Status)
	}

	reloaded, err := f.enrollRepo.GetByID(ctx, f.tx, f.enrollment.ID)
	if err != nil {
		t.Fatalf("reload enrollment: %v", err)
	}
	if reloaded.CurrentAssessmentAttemptID == nil || *reloaded.CurrentAssessmentAttemptID != attempt.ID {
		t.Fatalf("enrollment not pointed at the new attempt")
	}
}

func TestStartAttemptRejectsEmptyAssessment(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	module := testutil.SeedModule(t, ctx, f.tx, f.enrollment.CourseID, 2)
	empty := testutil.SeedAssessment(t, ctx, f.tx, module.ID, types.AssessmentTypeAssessment, false)

	_, err := f.svc.StartAttempt(ctx, f.tx, f.user, f.enrollment, empty)
	if !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("starting an empty assessment: err = %v, want ErrInvalidArgument", err)
	}
}

func TestFinalizePassesAtThreshold(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	attempt, err := f.svc.StartAttempt(ctx, f.tx, f.user, f.enrollment, f.assessment)
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}

	for _, q := range f.questions {
		attempt, _, err = f.svc.RecordResponse(ctx, f.tx, attempt, q, q.CorrectAnswer)
		if err != nil {
			t.Fatalf("RecordResponse: %v", err)
		}
	}
	if attempt.QuestionsAnswered != 2 || attempt.CurrentQuestionIndex != 2 {
		t.Fatalf("cursor after two answers = (%d, %d), want (2, 2)",
			attempt.QuestionsAnswered, attempt.CurrentQuestionIndex)
	}

	final, err := f.svc.Finalize(ctx, f.tx, attempt.ID)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if final.Status != types.AttemptStatusCompleted || final.CompletedAt == nil {
		t.Fatalf("attempt not completed: %+v", final)
	}
	if final.Score != 2 {
		t.Fatalf("score = %v, want 2", final.Score)
	}
	if !final.Passed {
		t.Fatalf("two of two correct should pass")
	}

	reloaded, err := f.enrollRepo.GetByID(ctx, f.tx, f.enrollment.ID)
	if err != nil {
		t.Fatalf("reload enrollment: %v", err)
	}
	if reloaded.CurrentAssessmentAttemptID != nil {
		t.Fatalf("attempt pointer not cleared after finalize")
	}

	// Finalizing again returns the attempt unchanged.
	again, err := f.svc.Finalize(ctx, f.tx, attempt.ID)
	if err != nil {
		t.Fatalf("second Finalize: %v", err)
	}
	if again.Score != final.Score || !again.CompletedAt.Equal(*final.CompletedAt) {
		t.Fatalf("second finalize changed the attempt: %+v vs %+v", again, final)
	}
}

func TestFinalizeFailsBelowThreshold(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	attempt, err := f.svc.StartAttempt(ctx, f.tx, f.user, f.enrollment, f.assessment)
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}

	attempt, eval, err := f.svc.RecordResponse(ctx, f.tx, attempt, f.questions[0], f.questions[0].CorrectAnswer)
	if err != nil {
		t.Fatalf("RecordResponse correct: %v", err)
	}
	if !eval.Success {
		t.Fatalf("exact answer graded incorrect")
	}
	attempt, eval, err = f.svc.RecordResponse(ctx, f.tx, attempt, f.questions[1], "ORDER BY")
	if err != nil {
		t.Fatalf("RecordResponse wrong: %v", err)
	}
	if eval.Success {
		t.Fatalf("wrong option graded correct")
	}

	final, err := f.svc.Finalize(ctx, f.tx, attempt.ID)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if final.Score != 1 {
		t.Fatalf("score = %v, want 1", final.Score)
	}
	// 1 of 2 is 50%, below the 70% pass mark.
	if final.Passed {
		t.Fatalf("half marks should not pass")
	}
}

func TestAbandonAttempt(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	attempt, err := f.svc.StartAttempt(ctx, f.tx, f.user, f.enrollment, f.assessment)
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}

	if err := f.svc.Abandon(ctx, f.tx, attempt.ID); err != nil {
		t.Fatalf("Abandon: %v", err)
	}
	reloaded, err := f.svc.GetAttempt(ctx, f.tx, attempt.ID)
	if err != nil {
		t.Fatalf("reload attempt: %v", err)
	}
	if reloaded.Status != types.AttemptStatusAbandoned {
		t.Fatalf("status = %q, want abandoned", reloaded.Status)
	}
	enrollment, err := f.enrollRepo.GetByID(ctx, f.tx, f.enrollment.ID)
	if err != nil {
		t.Fatalf("reload enrollment: %v", err)
	}
	if enrollment.CurrentAssessmentAttemptID != nil {
		t.Fatalf("attempt pointer not cleared after abandon")
	}

	if _, err := f.svc.Finalize(ctx, f.tx, attempt.ID); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("finalizing an abandoned attempt: err = %v, want ErrConflict", err)
	}
}
