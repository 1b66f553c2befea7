package services

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/wappstudy/wappstudy-backend/internal/data/repos"
	"github.com/wappstudy/wappstudy-backend/internal/data/repos/testutil"
	types "github.com/wappstudy/wappstudy-backend/internal/domain"
)

func deliveryFixture(t *testing.T) (DeliveryService, *gorm.DB, *types.Enrollment) {
	t.Helper()
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	ctx := context.Background()

	svc := NewDeliveryService(
		tx, log,
		repos.NewModuleRepo(tx, log),
		repos.NewTopicRepo(tx, log),
		repos.NewParagraphRepo(tx, log),
		repos.NewModuleProgressRepo(tx, log),
		repos.NewTopicProgressRepo(tx, log),
	)

	user := testutil.SeedUser(t, ctx, tx, "15550001111")
	course := testutil.SeedCourse(t, ctx, tx, "Networking Basics")
	module := testutil.SeedModule(t, ctx, tx, course.ID, 1)

	topic1 := testutil.SeedTopic(t, ctx, tx, module.ID, 1, true)
	testutil.SeedParagraph(t, ctx, tx, topic1.ID, 1)
	testutil.SeedParagraph(t, ctx, tx, topic1.ID, 2)
	topic2 := testutil.SeedTopic(t, ctx, tx, module.ID, 2, true)
	testutil.SeedParagraph(t, ctx, tx, topic2.ID, 1)
	// Inactive topics are skipped entirely.
	testutil.SeedTopic(t, ctx, tx, module.ID, 3, false)

	enrollment := testutil.SeedEnrollment(t, ctx, tx, user.ID, course.ID)
	enrollment.CurrentModuleID = &module.ID

	return svc, tx, enrollment
}

func TestNextContentWalksTopicsAndParagraphs(t *testing.T) {
	svc, tx, enrollment := deliveryFixture(t)
	ctx := context.Background()

	want := []StepKind{StepTopicStart, StepParagraph, StepTopicStart, StepModuleDone}
	for i, kind := range want {
		step, err := svc.NextContent(ctx, tx, enrollment)
		if err != nil {
			t.Fatalf("NextContent #%d: %v", i, err)
		}
		if step.Kind != kind {
			t.Fatalf("NextContent #%d kind = %s, want %s", i, step.Kind, kind)
		}
		if kind != StepModuleDone && step.Paragraph == nil {
			t.Fatalf("NextContent #%d carries no paragraph", i)
		}
	}

	// Exhausted delivery is stable: asking again keeps reporting done.
	step, err := svc.NextContent(ctx, tx, enrollment)
	if err != nil {
		t.Fatalf("NextContent after done: %v", err)
	}
	if step.Kind != StepModuleDone {
		t.Fatalf("kind after done = %s, want %s", step.Kind, StepModuleDone)
	}

	progress, err := svc.GetModuleProgress(ctx, tx, enrollment.ID, *enrollment.CurrentModuleID)
	if err != nil {
		t.Fatalf("GetModuleProgress: %v", err)
	}
	if progress.State != types.ModuleDeliveryContentDelivered {
		t.Fatalf("module state = %s, want %s", progress.State, types.ModuleDeliveryContentDelivered)
	}
	if progress.CurrentTopicID != nil {
		t.Fatalf("topic pointer not cleared after delivery")
	}
}

func TestStepBackClampsAtModuleStart(t *testing.T) {
	svc, tx, enrollment := deliveryFixture(t)
	ctx := context.Background()

	// Advance two units: topic1/para1, topic1/para2.
	for i := 0; i < 2; i++ {
		if _, err := svc.NextContent(ctx, tx, enrollment); err != nil {
			t.Fatalf("NextContent #%d: %v", i, err)
		}
	}

	step, err := svc.StepBack(ctx, tx, enrollment)
	if err != nil {
		t.Fatalf("StepBack: %v", err)
	}
	if step.Kind != StepParagraph || step.Paragraph.Order != 1 {
		t.Fatalf("StepBack landed on kind=%s order=%d, want paragraph 1", step.Kind, step.Paragraph.Order)
	}

	// At the first paragraph of the first topic, stepping back lands on the
	// module's own content and stays there.
	for i := 0; i < 2; i++ {
		step, err = svc.StepBack(ctx, tx, enrollment)
		if err != nil {
			t.Fatalf("StepBack clamp #%d: %v", i, err)
		}
		if step.Kind != StepModuleIntro {
			t.Fatalf("clamp #%d landed on kind=%s, want %s", i, step.Kind, StepModuleIntro)
		}
	}

	// Forward from the module intro restarts at the first unit.
	step, err = svc.NextContent(ctx, tx, enrollment)
	if err != nil {
		t.Fatalf("NextContent after clamp: %v", err)
	}
	if step.Kind != StepTopicStart || step.Topic.Order != 1 || step.Paragraph.Order != 1 {
		t.Fatalf("resume landed on kind=%s topic=%d paragraph=%d", step.Kind, step.Topic.Order, step.Paragraph.Order)
	}
}

func TestAdvanceTopicWalksActiveTopics(t *testing.T) {
	svc, tx, enrollment := deliveryFixture(t)
	ctx := context.Background()
	moduleID := *enrollment.CurrentModuleID

	progress, err := svc.AdvanceTopic(ctx, tx, enrollment.ID, moduleID)
	if err != nil {
		t.Fatalf("AdvanceTopic: %v", err)
	}
	if progress.State != types.ModuleDeliveryContentDelivering || progress.CurrentTopicID == nil {
		t.Fatalf("first advance: state=%s topic=%v", progress.State, progress.CurrentTopicID)
	}
	firstTopicID := *progress.CurrentTopicID

	progress, err = svc.AdvanceTopic(ctx, tx, enrollment.ID, moduleID)
	if err != nil {
		t.Fatalf("AdvanceTopic to second: %v", err)
	}
	if progress.CurrentTopicID == nil || *progress.CurrentTopicID == firstTopicID {
		t.Fatalf("second advance did not move to the next topic")
	}

	// Topic 3 is inactive, so the walk ends here.
	progress, err = svc.AdvanceTopic(ctx, tx, enrollment.ID, moduleID)
	if err != nil {
		t.Fatalf("AdvanceTopic past last: %v", err)
	}
	if progress.State != types.ModuleDeliveryContentDelivered || progress.CurrentTopicID != nil {
		t.Fatalf("exhausted walk: state=%s topic=%v", progress.State, progress.CurrentTopicID)
	}
}

func TestAdvanceParagraphTransitions(t *testing.T) {
	svc, tx, enrollment := deliveryFixture(t)
	ctx := context.Background()

	progress, err := svc.AdvanceTopic(ctx, tx, enrollment.ID, *enrollment.CurrentModuleID)
	if err != nil {
		t.Fatalf("AdvanceTopic: %v", err)
	}
	topicID := *progress.CurrentTopicID

	// Topic 1 has two paragraphs: delivering, delivering, then delivered.
	tp, err := svc.AdvanceParagraph(ctx, tx, enrollment.ID, topicID)
	if err != nil {
		t.Fatalf("AdvanceParagraph #1: %v", err)
	}
	if tp.State != types.TopicDeliveryContentDelivering || tp.CurrentParagraphID == nil {
		t.Fatalf("first advance: state=%s paragraph=%v", tp.State, tp.CurrentParagraphID)
	}
	firstParagraphID := *tp.CurrentParagraphID

	tp, err = svc.AdvanceParagraph(ctx, tx, enrollment.ID, topicID)
	if err != nil {
		t.Fatalf("AdvanceParagraph #2: %v", err)
	}
	if tp.CurrentParagraphID == nil || *tp.CurrentParagraphID == firstParagraphID {
		t.Fatalf("second advance did not move to the next paragraph")
	}

	tp, err = svc.AdvanceParagraph(ctx, tx, enrollment.ID, topicID)
	if err != nil {
		t.Fatalf("AdvanceParagraph past last: %v", err)
	}
	if tp.State != types.TopicDeliveryContentDelivered || tp.CurrentParagraphID != nil {
		t.Fatalf("exhausted topic: state=%s paragraph=%v", tp.State, tp.CurrentParagraphID)
	}
}

func TestStepBackCrossesTopicBoundary(t *testing.T) {
	svc, tx, enrollment := deliveryFixture(t)
	ctx := context.Background()

	// Advance into topic2's first paragraph.
	for i := 0; i < 3; i++ {
		if _, err := svc.NextContent(ctx, tx, enrollment); err != nil {
			t.Fatalf("NextContent #%d: %v", i, err)
		}
	}

	step, err := svc.StepBack(ctx, tx, enrollment)
	if err != nil {
		t.Fatalf("StepBack: %v", err)
	}
	if step.Kind != StepParagraph {
		t.Fatalf("kind = %s, want %s", step.Kind, StepParagraph)
	}
	if step.Topic.Order != 1 || step.Paragraph.Order != 2 {
		t.Fatalf("landed on topic %d paragraph %d, want last paragraph of previous topic", step.Topic.Order, step.Paragraph.Order)
	}

	// Forward again resumes from the rewound position.
	next, err := svc.NextContent(ctx, tx, enrollment)
	if err != nil {
		t.Fatalf("NextContent after rewind: %v", err)
	}
	if next.Topic.Order != 2 || next.Paragraph.Order != 1 {
		t.Fatalf("resume landed on topic %d paragraph %d", next.Topic.Order, next.Paragraph.Order)
	}
}

func TestResetModuleProgress(t *testing.T) {
	svc, tx, enrollment := deliveryFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.NextContent(ctx, tx, enrollment); err != nil {
			t.Fatalf("NextContent #%d: %v", i, err)
		}
	}
	if err := svc.ResetModuleProgress(ctx, tx, enrollment.ID); err != nil {
		t.Fatalf("ResetModuleProgress: %v", err)
	}

	progress, err := svc.GetModuleProgress(ctx, tx, enrollment.ID, *enrollment.CurrentModuleID)
	if err != nil {
		t.Fatalf("GetModuleProgress: %v", err)
	}
	if progress.State != types.ModuleDeliveryNotStarted || progress.CurrentTopicID != nil {
		t.Fatalf("progress not reset: state=%s topic=%v", progress.State, progress.CurrentTopicID)
	}

	// Delivery restarts from the first unit.
	step, err := svc.NextContent(ctx, tx, enrollment)
	if err != nil {
		t.Fatalf("NextContent after reset: %v", err)
	}
	if step.Kind != StepTopicStart || step.Topic.Order != 1 || step.Paragraph.Order != 1 {
		t.Fatalf("restart landed on kind=%s topic=%d paragraph=%d", step.Kind, step.Topic.Order, step.Paragraph.Order)
	}
}
