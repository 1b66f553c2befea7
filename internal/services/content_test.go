package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/wappstudy/wappstudy-backend/internal/data/repos"
	"github.com/wappstudy/wappstudy-backend/internal/data/repos/testutil"
	types "github.com/wappstudy/wappstudy-backend/internal/domain"
	errs "github.com/wappstudy/wappstudy-backend/internal/pkg/errors"
)

func contentFixture(t *testing.T) (ContentService, repos.AssessmentRepo, repos.TopicRepo, *gorm.DB) {
	t.Helper()
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)

	assessmentRepo := repos.NewAssessmentRepo(tx, log)
	topicRepo := repos.NewTopicRepo(tx, log)
	svc := NewContentService(
		tx, log,
		repos.NewCourseRepo(tx, log),
		repos.NewCourseDescriptionRepo(tx, log),
		repos.NewModuleRepo(tx, log),
		topicRepo,
		repos.NewParagraphRepo(tx, log),
		assessmentRepo,
		repos.NewQuestionRepo(tx, log),
	)
	return svc, assessmentRepo, topicRepo, tx
}

func TestSetAssessmentActiveDeactivatesSiblings(t *testing.T) {
	svc, assessmentRepo, _, tx := contentFixture(t)
	ctx := context.Background()

	course := testutil.SeedCourse(t, ctx, tx, "Databases 101")
	module := testutil.SeedModule(t, ctx, tx, course.ID, 1)

	first := testutil.SeedAssessment(t, ctx, tx, module.ID, types.AssessmentTypeQuiz, true)
	testutil.SeedMCQQuestion(t, ctx, tx, first.ID, "What is a primary key?", "A unique row identifier", "A table name")

	second := testutil.SeedAssessment(t, ctx, tx, module.ID, types.AssessmentTypeQuiz, false)
	testutil.SeedMCQQuestion(t, ctx, tx, second.ID, "What is an index?", "A lookup structure", "A column type")

	if err := svc.SetAssessmentActive(ctx, tx, second.ID, true); err != nil {
		t.Fatalf("SetAssessmentActive: %v", err)
	}

	active, err := assessmentRepo.GetActiveByModule(ctx, tx, module.ID, types.AssessmentTypeQuiz)
	if err != nil {
		t.Fatalf("GetActiveByModule: %v", err)
	}
	if active.ID != second.ID {
		t.Fatalf("active assessment = %s, want %s", active.ID, second.ID)
	}

	reloaded, err := assessmentRepo.GetByID(ctx, tx, first.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if reloaded.IsActive {
		t.Fatalf("sibling assessment still active after activation")
	}
}

func TestActivateCourseRequiresActiveAssessmentAndQuiz(t *testing.T) {
	svc, _, _, tx := contentFixture(t)
	ctx := context.Background()

	course := testutil.SeedCourse(t, ctx, tx, "Draft Course")
	if err := tx.Model(&types.Course{}).Where("id = ?", course.ID).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate course: %v", err)
	}
	module := testutil.SeedModule(t, ctx, tx, course.ID, 1)

	// No active assessments at all.
	if err := svc.ActivateCourse(ctx, tx, course.ID); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("activation without assessments: err = %v, want ErrInvalidArgument", err)
	}

	// An active assessment alone is not enough; the quiz is still missing.
	testutil.SeedAssessment(t, ctx, tx, module.ID, types.AssessmentTypeAssessment, true)
	if err := svc.ActivateCourse(ctx, tx, course.ID); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("activation without a quiz: err = %v, want ErrInvalidArgument", err)
	}

	testutil.SeedAssessment(t, ctx, tx, module.ID, types.AssessmentTypeQuiz, true)
	if err := svc.ActivateCourse(ctx, tx, course.ID); err != nil {
		t.Fatalf("ActivateCourse: %v", err)
	}

	var reloaded types.Course
	if err := tx.WithContext(ctx).First(&reloaded, "id = ?", course.ID).Error; err != nil {
		t.Fatalf("reload course: %v", err)
	}
	if !reloaded.IsActive {
		t.Fatalf("course not active after activation")
	}
}

func TestSetAssessmentActiveRejectsEmptyAssessment(t *testing.T) {
	svc, _, _, tx := contentFixture(t)
	ctx := context.Background()

	course := testutil.SeedCourse(t, ctx, tx, "Databases 101")
	module := testutil.SeedModule(t, ctx, tx, course.ID, 1)
	empty := testutil.SeedAssessment(t, ctx, tx, module.ID, types.AssessmentTypeAssessment, false)

	err := svc.SetAssessmentActive(ctx, tx, empty.ID, true)
	if !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("activating empty assessment: err = %v, want ErrInvalidArgument", err)
	}
}

func TestSetAssessmentActiveRejectsSingleOptionMCQ(t *testing.T) {
	svc, _, _, tx := contentFixture(t)
	ctx := context.Background()

	course := testutil.SeedCourse(t, ctx, tx, "Databases 101")
	module := testutil.SeedModule(t, ctx, tx, course.ID, 1)
	assessment := testutil.SeedAssessment(t, ctx, tx, module.ID, types.AssessmentTypeAssessment, false)

	options, err := json.Marshal([]types.QuestionOption{{Text: "Only choice", IsCorrect: true}})
	if err != nil {
		t.Fatalf("marshal options: %v", err)
	}
	questionRepo := repos.NewQuestionRepo(tx, testutil.Logger(t))
	if _, err := questionRepo.Create(ctx, tx, []*types.Question{{
		AssessmentID:  assessment.ID,
		Type:          types.QuestionTypeMCQ,
		Text:          "Degenerate question",
		Marks:         1,
		Options:       datatypes.JSON(options),
		CorrectAnswer: "Only choice",
	}}); err != nil {
		t.Fatalf("create question: %v", err)
	}

	err = svc.SetAssessmentActive(ctx, tx, assessment.ID, true)
	if !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("activating single-option mcq: err = %v, want ErrInvalidArgument", err)
	}
}

func TestDeleteTopicRenumbersSiblings(t *testing.T) {
	svc, _, topicRepo, tx := contentFixture(t)
	ctx := context.Background()

	course := testutil.SeedCourse(t, ctx, tx, "Databases 101")
	module := testutil.SeedModule(t, ctx, tx, course.ID, 1)

	var topics []*types.Topic
	for i := 1; i <= 3; i++ {
		topics = append(topics, testutil.SeedTopic(t, ctx, tx, module.ID, i, true))
	}

	if err := svc.DeleteTopic(ctx, tx, topics[1].ID); err != nil {
		t.Fatalf("DeleteTopic: %v", err)
	}

	remaining, err := topicRepo.ListByModuleID(ctx, tx, module.ID)
	if err != nil {
		t.Fatalf("ListByModuleID: %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("len(remaining) = %d, want 2", len(remaining))
	}
	for i, topic := range remaining {
		if topic.Order != i+1 {
			t.Fatalf("topic %d has order %d after delete, want %d", i, topic.Order, i+1)
		}
	}
}

func TestReorderTopic(t *testing.T) {
	svc, _, topicRepo, tx := contentFixture(t)
	ctx := context.Background()

	course := testutil.SeedCourse(t, ctx, tx, "Databases 101")
	module := testutil.SeedModule(t, ctx, tx, course.ID, 1)

	var topics []*types.Topic
	for i := 1; i <= 3; i++ {
		topics = append(topics, testutil.SeedTopic(t, ctx, tx, module.ID, i, true))
	}

	// Move the last topic to the front.
	if err := svc.ReorderTopic(ctx, tx, module.ID, topics[2].ID, 1); err != nil {
		t.Fatalf("ReorderTopic: %v", err)
	}

	reordered, err := topicRepo.ListByModuleID(ctx, tx, module.ID)
	if err != nil {
		t.Fatalf("ListByModuleID: %v", err)
	}
	wantIDs := []string{topics[2].ID.String(), topics[0].ID.String(), topics[1].ID.String()}
	for i, topic := range reordered {
		if topic.ID.String() != wantIDs[i] {
			t.Fatalf("position %d holds %s, want %s", i+1, topic.ID, wantIDs[i])
		}
		if topic.Order != i+1 {
			t.Fatalf("position %d has order %d", i+1, topic.Order)
		}
	}

	// A topic from another module cannot be reordered into this one.
	otherModule := testutil.SeedModule(t, ctx, tx, course.ID, 2)
	foreign := testutil.SeedTopic(t, ctx, tx, otherModule.ID, 1, true)
	err = svc.ReorderTopic(ctx, tx, module.ID, foreign.ID, 1)
	if !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("foreign topic reorder: err = %v, want ErrInvalidArgument", err)
	}
}

func TestCreateParagraphsAppendsAfterExisting(t *testing.T) {
	svc, _, _, tx := contentFixture(t)
	ctx := context.Background()

	course := testutil.SeedCourse(t, ctx, tx, "Databases 101")
	module := testutil.SeedModule(t, ctx, tx, course.ID, 1)
	topic := testutil.SeedTopic(t, ctx, tx, module.ID, 1, true)

	// An empty topic starts its ordering at 1.
	first, err := svc.CreateParagraphs(ctx, tx, topic.ID, []string{"one", "two"})
	if err != nil {
		t.Fatalf("CreateParagraphs on empty topic: %v", err)
	}
	for i, p := range first {
		if p.Order != i+1 {
			t.Fatalf("paragraph %d has order %d, want %d", i, p.Order, i+1)
		}
	}

	// A second batch continues after the existing tail.
	second, err := svc.CreateParagraphs(ctx, tx, topic.ID, []string{"three"})
	if err != nil {
		t.Fatalf("CreateParagraphs append: %v", err)
	}
	if len(second) != 1 || second[0].Order != 3 {
		t.Fatalf("appended paragraph has order %d, want 3", second[0].Order)
	}
}
