package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/wappstudy/wappstudy-backend/internal/clients/redis"
	"github.com/wappstudy/wappstudy-backend/internal/data/repos"
	"github.com/wappstudy/wappstudy-backend/internal/data/repos/testutil"
	types "github.com/wappstudy/wappstudy-backend/internal/domain"
)

type fakeCertificates struct {
	calls int
}

func (f *fakeCertificates) EnsureArtifacts(ctx context.Context, tx *gorm.DB, enrollment *types.Enrollment, user *types.User, course *types.Course) (*CertificateArtifacts, error) {
	f.calls++
	return &CertificateArtifacts{
		CertificateURL: "https://cdn.test/certificates/cert.png",
		CertificateKey: "certificates/cert.png",
		BadgeURL:       "https://cdn.test/badges/badge.png",
		BadgeKey:       "badges/badge.png",
	}, nil
}

type fakeNotifier struct {
	emails int
}

func (f *fakeNotifier) SendCompletionEmail(ctx context.Context, user *types.User, course *types.Course, certificateKey string) error {
	f.emails++
	return nil
}

type conversationWorld struct {
	tx          *gorm.DB
	svc         OrchestratorService
	wa          *fakeWhatsApp
	ai          *fakeAI
	certs       *fakeCertificates
	notifier    *fakeNotifier
	userRepo    repos.UserRepo
	enrollments EnrollmentService
	enrollmentR repos.EnrollmentRepo
	attemptRepo repos.AttemptRepo
}

func newConversationWorld(t *testing.T) *conversationWorld {
	t.Helper()
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)

	wa := &fakeWhatsApp{}
	ai := &fakeAI{jsonOut: map[string]any{"intent": "unknown"}}
	certs := &fakeCertificates{}
	notifier := &fakeNotifier{}

	userRepo := repos.NewUserRepo(tx, log)
	courseRepo := repos.NewCourseRepo(tx, log)
	descRepo := repos.NewCourseDescriptionRepo(tx, log)
	moduleRepo := repos.NewModuleRepo(tx, log)
	topicRepo := repos.NewTopicRepo(tx, log)
	paragraphRepo := repos.NewParagraphRepo(tx, log)
	assessmentRepo := repos.NewAssessmentRepo(tx, log)
	questionRepo := repos.NewQuestionRepo(tx, log)
	enrollmentRepo := repos.NewEnrollmentRepo(tx, log)
	attemptRepo := repos.NewAttemptRepo(tx, log)
	responseRepo := repos.NewResponseRepo(tx, log)
	moduleProgRepo := repos.NewModuleProgressRepo(tx, log)
	topicProgRepo := repos.NewTopicProgressRepo(tx, log)

	catalog := NewCatalogService(log, courseRepo, descRepo, moduleRepo, topicRepo, paragraphRepo, assessmentRepo, questionRepo)
	intents := NewIntentService(log, ai)
	delivery := NewDeliveryService(tx, log, moduleRepo, topicRepo, paragraphRepo, moduleProgRepo, topicProgRepo)
	assessments := NewAssessmentService(tx, log, ai, questionRepo, attemptRepo, responseRepo, enrollmentRepo)
	enrollments := NewEnrollmentService(tx, log, courseRepo, moduleRepo, enrollmentRepo, userRepo, moduleProgRepo)
	postCourse := NewPostCourseService(tx, log, ai, wa, courseRepo, userRepo, enrollments)

	svc := NewOrchestratorService(
		tx, log, redis.NewLocalLocker(), wa, ai,
		userRepo, enrollmentRepo,
		catalog, intents, delivery, assessments, enrollments,
		certs, notifier, postCourse,
	)
	return &conversationWorld{
		tx:          tx,
		svc:         svc,
		wa:          wa,
		ai:          ai,
		certs:       certs,
		notifier:    notifier,
		userRepo:    userRepo,
		enrollments: enrollments,
		enrollmentR: enrollmentRepo,
		attemptRepo: attemptRepo,
	}
}

// seedSingleModuleCourse builds a minimal runnable course: one description,
// one module with one topic and one paragraph, and an active assessment with
// a single MCQ question.
func seedSingleModuleCourse(t *testing.T, ctx context.Context, tx *gorm.DB) (*types.Course, *types.Module) {
	t.Helper()
	course := testutil.SeedCourse(t, ctx, tx, "Intro to SQL")
	desc := &types.CourseDescription{
		ID:       uuid.New(),
		CourseID: course.ID,
		Text:     "SQL is the language of relational databases.",
		Images:   datatypes.JSON(`[{"url":"https://cdn.test/intro/tables.png","caption":"A relational table"}]`),
		Position: 1,
	}
	if err := tx.WithContext(ctx).Create(desc).Error; err != nil {
		t.Fatalf("seed description: %v", err)
	}

	module := testutil.SeedModule(t, ctx, tx, course.ID, 1)
	topic := testutil.SeedTopic(t, ctx, tx, module.ID, 1, true)
	testutil.SeedParagraph(t, ctx, tx, topic.ID, 1)

	assessment := testutil.SeedAssessment(t, ctx, tx, module.ID, types.AssessmentTypeAssessment, true)
	testutil.SeedMCQQuestion(t, ctx, tx, assessment.ID, "What does SQL stand for?",
		"Structured Query Language", "Simple Question List")
	return course, module
}

func (w *conversationWorld) process(t *testing.T, whatsappID, text string) {
	t.Helper()
	if err := w.svc.ProcessUserMessage(context.Background(), whatsappID, "Learner", text); err != nil {
		t.Fatalf("ProcessUserMessage(%q): %v", text, err)
	}
}

func (w *conversationWorld) lastMessage(t *testing.T) string {
	t.Helper()
	sent := w.wa.sent()
	if len(sent) == 0 {
		t.Fatalf("no outbound messages recorded")
	}
	return sent[len(sent)-1]
}

func requireContains(t *testing.T, got, want string) {
	t.Helper()
	if !strings.Contains(got, want) {
		t.Fatalf("message %q does not contain %q", got, want)
	}
}

func TestConversationFullCourseJourney(t *testing.T) {
	w := newConversationWorld(t)
	ctx := context.Background()

	course, module := seedSingleModuleCourse(t, ctx, w.tx)
	user := testutil.SeedUser(t, ctx, w.tx, "27821110001")
	enrollment, err := w.enrollments.Enroll(ctx, w.tx, user, course.ID)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}

	// Greeting does not advance the introduction.
	w.process(t, user.WhatsappID, "hi")
	requireContains(t, w.lastMessage(t), "course tutor")

	// Introduction: description first, modules overview second. The
	// description's image goes out with its caption.
	w.process(t, user.WhatsappID, "continue")
	requireContains(t, w.lastMessage(t), "SQL is the language")
	var sawIntroImage bool
	for _, m := range w.wa.sent() {
		if m == "image:https://cdn.test/intro/tables.png|A relational table" {
			sawIntroImage = true
		}
	}
	if !sawIntroImage {
		t.Fatalf("intro image with caption never sent")
	}

	// Anything but continue re-prompts while the introduction runs.
	w.process(t, user.WhatsappID, "what is sql")
	requireContains(t, w.lastMessage(t), "course introduction")

	w.process(t, user.WhatsappID, "next")
	requireContains(t, w.lastMessage(t), "Modules Overview")

	// The quiz-or-content offer for module 1.
	w.process(t, user.WhatsappID, "ready")
	requireContains(t, w.lastMessage(t), "two choices")

	// Module content, then topic content, then the module-done prompt.
	w.process(t, user.WhatsappID, "module")
	requireContains(t, w.lastMessage(t), module.Title)

	w.process(t, user.WhatsappID, "next")
	requireContains(t, w.lastMessage(t), "paragraph content")

	w.process(t, user.WhatsappID, "next")
	requireContains(t, w.lastMessage(t), "completed all topics")

	// Content is delivered, so ASSESSMENT starts the real assessment.
	w.process(t, user.WhatsappID, "assessment")
	requireContains(t, w.lastMessage(t), "What does SQL stand for?")

	reloaded, err := w.enrollmentR.GetByID(ctx, w.tx, enrollment.ID)
	if err != nil {
		t.Fatalf("reload enrollment: %v", err)
	}
	if reloaded.CurrentAssessmentAttemptID == nil {
		t.Fatalf("attempt pointer not set after assessment start")
	}
	if reloaded.ConversationState != types.ConversationStateInAssessment {
		t.Fatalf("conversation state = %q, want in_assessment", reloaded.ConversationState)
	}

	// Correct answer on the only question passes and completes the course.
	w.process(t, user.WhatsappID, "1")

	final, err := w.enrollmentR.GetByID(ctx, w.tx, enrollment.ID)
	if err != nil {
		t.Fatalf("reload enrollment: %v", err)
	}
	if final.Status != types.EnrollmentStatusCompleted {
		t.Fatalf("status = %q, want completed", final.Status)
	}
	if final.Progress != 1.0 {
		t.Fatalf("progress = %v, want 1.0", final.Progress)
	}
	if final.ConversationState != types.ConversationStateCourseComplete {
		t.Fatalf("conversation state = %q, want course_complete", final.ConversationState)
	}
	if final.CurrentAssessmentAttemptID != nil {
		t.Fatalf("attempt pointer not cleared after completion")
	}
	if !final.CertificateEarned {
		t.Fatalf("certificate not marked earned")
	}

	if w.certs.calls != 1 {
		t.Fatalf("certificate generated %d times, want 1", w.certs.calls)
	}
	if w.notifier.emails != 1 {
		t.Fatalf("completion email sent %d times, want 1", w.notifier.emails)
	}

	var sawCertificate, sawNoMoreCourses bool
	for _, m := range w.wa.sent() {
		if strings.Contains(m, "document:") {
			sawCertificate = true
		}
		if strings.Contains(m, "completed all available courses") {
			sawNoMoreCourses = true
		}
	}
	if !sawCertificate {
		t.Fatalf("certificate document never delivered")
	}
	if !sawNoMoreCourses {
		t.Fatalf("post-course flow did not run after completion")
	}

	reloadedUser, err := w.userRepo.GetByID(ctx, w.tx, user.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if reloadedUser.ActiveEnrollmentID != nil {
		t.Fatalf("active enrollment not cleared after completion")
	}
	if reloadedUser.PostCourseStatus != types.PostCourseStatusCompleted {
		t.Fatalf("post-course status = %q, want completed", reloadedUser.PostCourseStatus)
	}
}

func TestConversationAdvancesAcrossModules(t *testing.T) {
	w := newConversationWorld(t)
	ctx := context.Background()

	course, first := seedSingleModuleCourse(t, ctx, w.tx)
	second := testutil.SeedModule(t, ctx, w.tx, course.ID, 2)
	topic2 := testutil.SeedTopic(t, ctx, w.tx, second.ID, 1, true)
	testutil.SeedParagraph(t, ctx, w.tx, topic2.ID, 1)
	assessment2 := testutil.SeedAssessment(t, ctx, w.tx, second.ID, types.AssessmentTypeAssessment, true)
	testutil.SeedMCQQuestion(t, ctx, w.tx, assessment2.ID, "Which clause filters rows?",
		"WHERE", "ORDER BY")

	user := testutil.SeedUser(t, ctx, w.tx, "27821110004")
	enrollment, err := w.enrollments.Enroll(ctx, w.tx, user, course.ID)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}

	// Walk module 1 through its content and pass its assessment.
	for _, msg := range []string{"continue", "next", "ready", "module", "next", "next", "assessment"} {
		w.process(t, user.WhatsappID, msg)
	}
	requireContains(t, w.lastMessage(t), "What does SQL stand for?")
	w.process(t, user.WhatsappID, "1")

	var sawAdvance bool
	for _, m := range w.wa.sent() {
		if strings.Contains(m, "Moving to the next module") {
			sawAdvance = true
		}
	}
	if !sawAdvance {
		t.Fatalf("pass did not announce the next module")
	}

	mid, err := w.enrollmentR.GetByID(ctx, w.tx, enrollment.ID)
	if err != nil {
		t.Fatalf("reload enrollment: %v", err)
	}
	if mid.Status != types.EnrollmentStatusInProgress {
		t.Fatalf("status = %q, want in_progress between modules", mid.Status)
	}
	if mid.CurrentModuleID == nil || *mid.CurrentModuleID != second.ID {
		t.Fatalf("enrollment not advanced past module %d", first.Order)
	}
	if mid.Progress != 0.5 {
		t.Fatalf("progress = %v, want 0.5 with one of two modules behind", mid.Progress)
	}

	// Module 2 plays out the same way and completes the course.
	for _, msg := range []string{"module", "next", "next", "assessment"} {
		w.process(t, user.WhatsappID, msg)
	}
	requireContains(t, w.lastMessage(t), "Which clause filters rows?")
	w.process(t, user.WhatsappID, "1")

	final, err := w.enrollmentR.GetByID(ctx, w.tx, enrollment.ID)
	if err != nil {
		t.Fatalf("reload enrollment: %v", err)
	}
	if final.Status != types.EnrollmentStatusCompleted {
		t.Fatalf("status = %q, want completed after the last module", final.Status)
	}
	if final.Progress != 1.0 {
		t.Fatalf("progress = %v, want 1.0", final.Progress)
	}
}

func TestConversationCancelAbandonsAttempt(t *testing.T) {
	w := newConversationWorld(t)
	ctx := context.Background()

	course, _ := seedSingleModuleCourse(t, ctx, w.tx)
	user := testutil.SeedUser(t, ctx, w.tx, "27821110002")
	enrollment, err := w.enrollments.Enroll(ctx, w.tx, user, course.ID)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}

	// Fast-forward through the introduction into the assessment.
	for _, msg := range []string{"continue", "next", "ready", "module", "next", "next", "assessment"} {
		w.process(t, user.WhatsappID, msg)
	}

	mid, err := w.enrollmentR.GetByID(ctx, w.tx, enrollment.ID)
	if err != nil {
		t.Fatalf("reload enrollment: %v", err)
	}
	if mid.CurrentAssessmentAttemptID == nil {
		t.Fatalf("attempt pointer not set")
	}
	attemptID := *mid.CurrentAssessmentAttemptID

	w.process(t, user.WhatsappID, "cancel")
	requireContains(t, w.lastMessage(t), "Assessment paused")

	after, err := w.enrollmentR.GetByID(ctx, w.tx, enrollment.ID)
	if err != nil {
		t.Fatalf("reload enrollment: %v", err)
	}
	if after.CurrentAssessmentAttemptID != nil {
		t.Fatalf("attempt pointer not cleared on cancel")
	}
	if after.ConversationState != types.ConversationStateIdle {
		t.Fatalf("conversation state = %q, want idle", after.ConversationState)
	}

	attempt, err := w.attemptRepo.GetByID(ctx, w.tx, attemptID)
	if err != nil {
		t.Fatalf("load attempt: %v", err)
	}
	if attempt.Status != types.AttemptStatusAbandoned {
		t.Fatalf("attempt status = %q, want abandoned", attempt.Status)
	}
}

func TestConversationNewUserGetsCourseOffer(t *testing.T) {
	w := newConversationWorld(t)
	ctx := context.Background()

	seedSingleModuleCourse(t, ctx, w.tx)

	w.process(t, "27821110003", "hello")

	var sawOffer bool
	for _, m := range w.wa.sent() {
		if strings.Contains(m, "Intro to SQL") {
			sawOffer = true
		}
	}
	if !sawOffer {
		t.Fatalf("new user was not offered available courses")
	}

	user, err := w.userRepo.GetByWhatsappID(ctx, w.tx, "27821110003")
	if err != nil {
		t.Fatalf("user not registered on first contact: %v", err)
	}
	if user.PostCourseStatus != types.PostCourseStatusInProgress {
		t.Fatalf("course-selection flow not started, status = %q", user.PostCourseStatus)
	}

	// Picking from the list enrolls and makes the enrollment active.
	w.process(t, "27821110003", "1")
	requireContains(t, w.lastMessage(t), "Reply CONTINUE to begin")

	user, err = w.userRepo.GetByWhatsappID(ctx, w.tx, "27821110003")
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if user.ActiveEnrollmentID == nil {
		t.Fatalf("enrollment not activated after selection")
	}
	if user.PostCourseStatus != types.PostCourseStatusCompleted {
		t.Fatalf("course-selection flow not closed, status = %q", user.PostCourseStatus)
	}
}
