package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/wappstudy/wappstudy-backend/internal/clients/openai"
	"github.com/wappstudy/wappstudy-backend/internal/clients/redis"
	"github.com/wappstudy/wappstudy-backend/internal/clients/whatsapp"
	"github.com/wappstudy/wappstudy-backend/internal/data/repos"
	types "github.com/wappstudy/wappstudy-backend/internal/domain"
	errs "github.com/wappstudy/wappstudy-backend/internal/pkg/errors"
	"github.com/wappstudy/wappstudy-backend/internal/pkg/logger"
)

// OrchestratorService is the conversation state machine. One inbound message
// comes in, intent classification and the enrollment's conversation state
// decide what goes out and which cursors move. Processing per user is
// serialized through the conversation locker; distinct users run in parallel.
type OrchestratorService interface {
	ProcessUserMessage(ctx context.Context, whatsappID string, profileName string, text string) error
}

type orchestratorService struct {
	db     *gorm.DB
	log    *logger.Logger
	locker redis.ConversationLocker
	wa     whatsapp.Client
	ai     openai.Client

	userRepo       repos.UserRepo
	enrollmentRepo repos.EnrollmentRepo

	catalog     CatalogService
	intents     IntentService
	delivery    DeliveryService
	assessments AssessmentService
	enrollments EnrollmentService
	certificate CertificateService
	notifier    NotifierService
	postCourse  PostCourseService
}

func NewOrchestratorService(
	db *gorm.DB,
	baseLog *logger.Logger,
	locker redis.ConversationLocker,
	wa whatsapp.Client,
	ai openai.Client,
	userRepo repos.UserRepo,
	enrollmentRepo repos.EnrollmentRepo,
	catalog CatalogService,
	intents IntentService,
	delivery DeliveryService,
	assessments AssessmentService,
	enrollments EnrollmentService,
	certificate CertificateService,
	notifier NotifierService,
	postCourse PostCourseService,
) OrchestratorService {
	svcLog := baseLog.With("service", "OrchestratorService")
	return &orchestratorService{
		db:             db,
		log:            svcLog,
		locker:         locker,
		wa:             wa,
		ai:             ai,
		userRepo:       userRepo,
		enrollmentRepo: enrollmentRepo,
		catalog:        catalog,
		intents:        intents,
		delivery:       delivery,
		assessments:    assessments,
		enrollments:    enrollments,
		certificate:    certificate,
		notifier:       notifier,
		postCourse:     postCourse,
	}
}

func (s *orchestratorService) send(ctx context.Context, whatsappID, message string) {
	if _, err := s.wa.SendText(ctx, whatsappID, message); err != nil {
		s.log.Error("outbound message failed", "whatsapp_id", whatsappID, "error", err)
	}
}

func (s *orchestratorService) ProcessUserMessage(ctx context.Context, whatsappID string, profileName string, text string) error {
	release, err := s.locker.Acquire(ctx, whatsappID)
	if err != nil {
		return fmt.Errorf("acquire conversation lock: %w", err)
	}
	defer release()

	if err := s.processMessage(ctx, whatsappID, profileName, text); err != nil {
		// The learner must always get a reply, even when handling failed.
		s.send(ctx, whatsappID, "Something went wrong on our side. Please try again in a moment.")
		return err
	}
	return nil
}

func (s *orchestratorService) processMessage(ctx context.Context, whatsappID string, profileName string, text string) error {
	user, err := s.userRepo.GetByWhatsappID(ctx, nil, whatsappID)
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			return err
		}
		user, err = s.userRepo.Create(ctx, nil, &types.User{
			WhatsappID:   whatsappID,
			WhatsappName: profileName,
		})
		if err != nil {
			return err
		}
		s.log.Info("registered new user", "whatsapp_id", whatsappID)
	}

	now := time.Now().UTC()
	if err := s.userRepo.UpdateFields(ctx, nil, user.ID, map[string]interface{}{
		"last_active_at": now,
	}); err != nil {
		s.log.Warn("last active update failed", "user_id", user.ID, "error", err)
	}

	// Course-selection flow runs outside enrollment conversation state.
	if user.ActiveEnrollmentID == nil && s.postCourse.InFlow(user) {
		enrollment, err := s.postCourse.HandleReply(ctx, nil, user, text)
		if err != nil {
			return err
		}
		if enrollment != nil {
			s.sendWelcome(ctx, user, enrollment)
		}
		return nil
	}

	if user.ActiveEnrollmentID == nil {
		return s.handleNoActiveEnrollment(ctx, user)
	}

	enrollment, err := s.enrollmentRepo.GetByID(ctx, nil, *user.ActiveEnrollmentID)
	if err != nil {
		return err
	}

	intent := s.intents.Classify(ctx, text, enrollment.ConversationState)
	s.log.Debug("classified message", "whatsapp_id", whatsappID, "intent", intent, "state", enrollment.ConversationState)

	if intent == IntentGreeting {
		s.send(ctx, whatsappID,
			"Hi! I'm your course tutor. Ask me any question about the course, or type CONTINUE to keep learning.")
		return nil
	}

	// An in-flight attempt captures every message except cancel.
	if enrollment.CurrentAssessmentAttemptID != nil {
		if intent == IntentCancel {
			if err := s.assessments.Abandon(ctx, nil, *enrollment.CurrentAssessmentAttemptID); err != nil {
				return err
			}
			if err := s.enrollments.SetConversationState(ctx, nil, enrollment.ID, types.ConversationStateIdle); err != nil {
				return err
			}
			s.send(ctx, whatsappID, "Assessment paused. Type START to resume or MENU for options.")
			return nil
		}
		return s.handleAssessmentAnswer(ctx, user, enrollment, text)
	}

	// The introduction gates everything: only continue moves forward.
	if enrollment.IntroductionState != types.IntroductionDelivered {
		if intent == IntentContinue {
			return s.deliverIntro(ctx, user, enrollment)
		}
		s.send(ctx, whatsappID,
			"You're currently in the course introduction. To move ahead, reply with CONTINUE.")
		return nil
	}

	switch enrollment.ConversationState {
	case types.ConversationStateAwaitingUserQuery:
		switch intent {
		case IntentContinue:
			return s.offerQuizOrContent(ctx, user, enrollment)
		case IntentQuestion:
			reply, err := s.answerUserQuery(ctx, enrollment, text)
			if err != nil {
				return err
			}
			s.send(ctx, whatsappID, reply+"\n\nType READY when you want to continue, or ask more questions.")
			return s.enrollments.SetConversationState(ctx, nil, enrollment.ID, types.ConversationStateAwaitingContinue)
		default:
			s.send(ctx, whatsappID, "Do you have a question? Or type READY to start!")
			return nil
		}

	case types.ConversationStateAwaitingContinue:
		if intent == IntentContinue {
			return s.offerQuizOrContent(ctx, user, enrollment)
		}
		s.send(ctx, whatsappID, "No worries! Ask any course question, or type READY to continue.")
		return nil

	case types.ConversationStateOfferQuizOrContent:
		return s.handleOfferQuizOrContent(ctx, user, enrollment, intent, text)

	case types.ConversationStateInAssessment:
		// Pointer already cleared (finalized or abandoned) but state not yet
		// moved on: fall back to the offer.
		return s.offerQuizOrContent(ctx, user, enrollment)

	case types.ConversationStateCourseComplete:
		return s.postCourse.Start(ctx, nil, user)

	default: // idle and anything unrecognized
		if enrollment.CurrentModuleID == nil {
			if err := s.sendCourseIntroduction(ctx, user, enrollment); err != nil {
				return err
			}
			return s.enrollments.SetConversationState(ctx, nil, enrollment.ID, types.ConversationStateAwaitingUserQuery)
		}
		module, err := s.catalog.GetModule(ctx, nil, *enrollment.CurrentModuleID)
		if err != nil {
			return err
		}
		s.send(ctx, whatsappID, fmt.Sprintf(
			"You're on *%s*. Type CONTINUE to keep going, ASSESSMENT to take a quiz, or ask a question.",
			module.Title))
		return s.enrollments.SetConversationState(ctx, nil, enrollment.ID, types.ConversationStateOfferQuizOrContent)
	}
}

// --- enrollment-missing and welcome paths ---

func (s *orchestratorService) handleNoActiveEnrollment(ctx context.Context, user *types.User) error {
	name := user.WhatsappName
	if name == "" {
		name = "there"
	}
	s.send(ctx, user.WhatsappID, fmt.Sprintf("Hello %s!\n\nYou're not enrolled in any course yet.", name))
	return s.postCourse.Start(ctx, nil, user)
}

func (s *orchestratorService) sendWelcome(ctx context.Context, user *types.User, enrollment *types.Enrollment) {
	course, err := s.catalog.GetCourse(ctx, nil, enrollment.CourseID)
	if err != nil {
		s.log.Error("welcome course lookup failed", "course_id", enrollment.CourseID, "error", err)
		return
	}
	s.send(ctx, user.WhatsappID, fmt.Sprintf(
		"Welcome to *%s*!\n\nReply CONTINUE to begin the course introduction.", course.Name))
}

// --- introduction delivery ---

// deliverIntro sends the next introduction unit: the course description
// sequence first, then the modules overview, which ends the introduction.
func (s *orchestratorService) deliverIntro(ctx context.Context, user *types.User, enrollment *types.Enrollment) error {
	descriptions, err := s.catalog.ListCourseDescriptions(ctx, nil, enrollment.CourseID)
	if err != nil {
		return err
	}

	step := enrollment.IntroductionStep
	if step < len(descriptions) {
		desc := descriptions[step]
		message := desc.Text + "\n\nReply NEXT to continue."

		var images []types.DescriptionImage
		if len(desc.Images) > 0 {
			if err := json.Unmarshal(desc.Images, &images); err != nil {
				s.log.Warn("intro images malformed", "description_id", desc.ID, "error", err)
			}
		}
		if len(images) > 0 {
			waImages := make([]whatsapp.Image, 0, len(images))
			for _, img := range images {
				waImages = append(waImages, whatsapp.Image{URL: img.URL, Caption: img.Caption})
			}
			if err := s.wa.SendImages(ctx, user.WhatsappID, waImages); err != nil {
				s.log.Error("intro images failed", "whatsapp_id", user.WhatsappID, "error", err)
			}
		}
		s.send(ctx, user.WhatsappID, message)

		return s.enrollmentRepo.UpdateFields(ctx, nil, enrollment.ID, map[string]interface{}{
			"introduction_state": types.IntroductionDelivering,
			"introduction_step":  step + 1,
		})
	}

	modules, err := s.catalog.ListModules(ctx, nil, enrollment.CourseID)
	if err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString("*Modules Overview:*\n")
	for _, m := range modules {
		fmt.Fprintf(&b, "%d. %s\n", m.Order, m.Title)
	}
	b.WriteString("\nLet's begin your learning journey!\nReply with READY to start the course.")
	s.send(ctx, user.WhatsappID, b.String())

	return s.enrollmentRepo.UpdateFields(ctx, nil, enrollment.ID, map[string]interface{}{
		"introduction_state": types.IntroductionDelivered,
		"introduction_step":  step + 1,
		"conversation_state": types.ConversationStateOfferQuizOrContent,
	})
}

func (s *orchestratorService) sendCourseIntroduction(ctx context.Context, user *types.User, enrollment *types.Enrollment) error {
	course, err := s.catalog.GetCourse(ctx, nil, enrollment.CourseID)
	if err != nil {
		return err
	}
	s.send(ctx, user.WhatsappID, fmt.Sprintf(
		"*Welcome to %s!*\n\n%s\n\nDuration: %d weeks\nLevel: %s\n\nDo you have any questions before we begin? Ask now, or type READY to start!",
		course.Name, course.Description, course.DurationInWeeks, course.Level))
	return nil
}

// --- quiz-or-content offer and content delivery ---

func (s *orchestratorService) offerQuizOrContent(ctx context.Context, user *types.User, enrollment *types.Enrollment) error {
	if enrollment.CurrentModuleID == nil {
		next, err := s.enrollments.NextModule(ctx, nil, enrollment)
		if err != nil {
			return err
		}
		if next == nil {
			return s.completeCourse(ctx, user, enrollment)
		}
		if err := s.enrollments.AdvanceToModule(ctx, nil, enrollment, next); err != nil {
			return err
		}
		enrollment.CurrentModuleID = &next.ID
	}

	module, err := s.catalog.GetModule(ctx, nil, *enrollment.CurrentModuleID)
	if err != nil {
		return err
	}
	course, err := s.catalog.GetCourse(ctx, nil, enrollment.CourseID)
	if err != nil {
		return err
	}

	body := fmt.Sprintf(
		"Coming up next in your learning path: *%s* from the course *%s*.\n\n"+
			"You have two choices:\n\n"+
			"*Type QUIZ* - Take a quick test. If you pass, you can skip this module.\n\n"+
			"*Type MODULE* - Jump straight into the learning material.\n\n"+
			"How would you like to continue?",
		module.Title, course.Name)
	if _, err := s.wa.SendInteractiveButtons(ctx, user.WhatsappID, body, []whatsapp.Button{
		{ID: "quiz", Title: "Quiz"},
		{ID: "module", Title: "Module"},
	}); err != nil {
		s.log.Warn("interactive offer failed, falling back to text", "whatsapp_id", user.WhatsappID, "error", err)
		s.send(ctx, user.WhatsappID, body)
	}

	return s.enrollments.SetConversationState(ctx, nil, enrollment.ID, types.ConversationStateOfferQuizOrContent)
}

func (s *orchestratorService) handleOfferQuizOrContent(ctx context.Context, user *types.User, enrollment *types.Enrollment, intent Intent, text string) error {
	switch intent {
	case IntentContinue:
		if enrollment.CurrentModuleID == nil {
			return s.offerQuizOrContent(ctx, user, enrollment)
		}
		progress, err := s.delivery.GetModuleProgress(ctx, nil, enrollment.ID, *enrollment.CurrentModuleID)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				return s.offerQuizOrContent(ctx, user, enrollment)
			}
			return err
		}
		switch progress.State {
		case types.ModuleDeliveryNotStarted, types.ModuleDeliveryContentDelivering:
			return s.sendNextContent(ctx, user, enrollment)
		case types.ModuleDeliveryContentDelivered:
			module, err := s.catalog.GetModule(ctx, nil, *enrollment.CurrentModuleID)
			if err != nil {
				return err
			}
			s.send(ctx, user.WhatsappID, fmt.Sprintf(
				"You've completed all topics in *%s*!\n\nType ASSESSMENT to start the module assessment.", module.Title))
			return nil
		default:
			return s.offerQuizOrContent(ctx, user, enrollment)
		}

	case IntentAssessment:
		if enrollment.CurrentModuleID == nil {
			s.send(ctx, user.WhatsappID, "No current active module found.")
			return nil
		}
		progress, err := s.delivery.GetOrCreateModuleProgress(ctx, nil, enrollment.ID, *enrollment.CurrentModuleID)
		if err != nil {
			return err
		}
		if progress.State == types.ModuleDeliveryContentDelivered {
			return s.startAttempt(ctx, user, enrollment, types.AssessmentTypeAssessment)
		}
		return s.startAttempt(ctx, user, enrollment, types.AssessmentTypeQuiz)

	case IntentModule:
		return s.startModule(ctx, user, enrollment)

	case IntentPrev:
		step, err := s.delivery.StepBack(ctx, nil, enrollment)
		if err != nil {
			return err
		}
		s.sendContentStep(ctx, user.WhatsappID, step)
		return nil

	case IntentQuestion:
		reply, err := s.answerUserQuery(ctx, enrollment, text)
		if err != nil {
			return err
		}
		s.send(ctx, user.WhatsappID, reply+"\n\nType CONTINUE for the next topic.")
		return nil

	case IntentHome:
		s.send(ctx, user.WhatsappID,
			"Main menu: type CONTINUE for content, ASSESSMENT for a quiz, PROGRESS for your status, or ask a question.")
		return nil

	case IntentCourseIntro:
		return s.sendCourseIntroSummary(ctx, user, enrollment)

	case IntentCourseProgress:
		return s.sendCourseProgress(ctx, user, enrollment)

	default:
		s.send(ctx, user.WhatsappID,
			"Would you like to begin the module?\nReply *MODULE*.\n\nOr, to take the quiz,\nreply *ASSESSMENT*.")
		return nil
	}
}

// startModule (re)starts the current module's content phase: module-level
// content first, delivery cursors reset.
func (s *orchestratorService) startModule(ctx context.Context, user *types.User, enrollment *types.Enrollment) error {
	if enrollment.CurrentModuleID == nil {
		next, err := s.enrollments.NextModule(ctx, nil, enrollment)
		if err != nil {
			return err
		}
		if next == nil {
			s.send(ctx, user.WhatsappID, "No next module found.")
			return nil
		}
		if err := s.enrollments.AdvanceToModule(ctx, nil, enrollment, next); err != nil {
			return err
		}
		enrollment.CurrentModuleID = &next.ID
	}

	module, err := s.catalog.GetModule(ctx, nil, *enrollment.CurrentModuleID)
	if err != nil {
		return err
	}
	if err := s.delivery.ResetModuleProgress(ctx, nil, enrollment.ID); err != nil {
		return err
	}
	s.send(ctx, user.WhatsappID, fmt.Sprintf(
		"*%s*\n\n%s\n\nType NEXT when you're ready for the first topic.", module.Title, module.Content))
	return nil
}

func (s *orchestratorService) sendNextContent(ctx context.Context, user *types.User, enrollment *types.Enrollment) error {
	step, err := s.delivery.NextContent(ctx, nil, enrollment)
	if err != nil {
		return err
	}
	s.sendContentStep(ctx, user.WhatsappID, step)
	return nil
}

func (s *orchestratorService) sendContentStep(ctx context.Context, whatsappID string, step *ContentStep) {
	switch step.Kind {
	case StepModuleIntro:
		s.send(ctx, whatsappID, fmt.Sprintf(
			"*%s*\n\n%s\n\nType NEXT when you're ready for the first topic.",
			step.Module.Title, step.Module.Content))
	case StepTopicStart:
		s.send(ctx, whatsappID, fmt.Sprintf(
			"*%s - %s*\n\n%s\n\nType CONTINUE for more, or PREV to step back.",
			step.Module.Title, step.Topic.Title, step.Paragraph.Content))
	case StepParagraph:
		s.send(ctx, whatsappID, step.Paragraph.Content+"\n\nType CONTINUE for more, or PREV to step back.")
	case StepModuleDone:
		s.send(ctx, whatsappID, fmt.Sprintf(
			"You've completed all topics in *%s*!\n\nType ASSESSMENT to start the module assessment.",
			step.Module.Title))
	}
}

// --- assessment flow ---

func (s *orchestratorService) startAttempt(ctx context.Context, user *types.User, enrollment *types.Enrollment, assessmentType string) error {
	assessment, err := s.catalog.GetActiveAssessment(ctx, nil, *enrollment.CurrentModuleID, assessmentType)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			if assessmentType == types.AssessmentTypeQuiz {
				s.send(ctx, user.WhatsappID, "No quiz available for this module. Type MODULE to start the content.")
			} else {
				s.send(ctx, user.WhatsappID, "No assessment available for this module.")
			}
			return nil
		}
		return err
	}

	attempt, err := s.assessments.StartAttempt(ctx, nil, user, enrollment, assessment)
	if err != nil {
		return err
	}

	deliveredState := types.ModuleDeliveryQuizDelivered
	label := "quiz"
	if assessmentType == types.AssessmentTypeAssessment {
		deliveredState = types.ModuleDeliveryAssessmentDelivered
		label = "assessment"
	}
	if err := s.delivery.MarkModuleState(ctx, nil, enrollment.ID, *enrollment.CurrentModuleID, deliveredState); err != nil {
		return err
	}
	if err := s.enrollments.SetConversationState(ctx, nil, enrollment.ID, types.ConversationStateInAssessment); err != nil {
		return err
	}

	s.send(ctx, user.WhatsappID, fmt.Sprintf("Let's begin the %s for this module! Good luck!", label))
	return s.sendCurrentQuestion(ctx, user, attempt)
}

func (s *orchestratorService) sendCurrentQuestion(ctx context.Context, user *types.User, attempt *types.AssessmentAttempt) error {
	question, err := s.assessments.CurrentQuestion(ctx, nil, attempt)
	if err != nil {
		return err
	}
	if question == nil {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*Question %d of %d*\n\n%s", attempt.CurrentQuestionIndex+1, attempt.TotalQuestions, question.Text)
	if question.Type == types.QuestionTypeMCQ {
		var options []types.QuestionOption
		if len(question.Options) > 0 {
			_ = json.Unmarshal(question.Options, &options)
		}
		b.WriteString("\n")
		for i, o := range options {
			fmt.Fprintf(&b, "\n%d. %s", i+1, o.Text)
		}
		b.WriteString("\n\nReply with the number of your answer.")
	}
	s.send(ctx, user.WhatsappID, b.String())
	return nil
}

func (s *orchestratorService) handleAssessmentAnswer(ctx context.Context, user *types.User, enrollment *types.Enrollment, text string) error {
	attempt, err := s.assessments.GetAttempt(ctx, nil, *enrollment.CurrentAssessmentAttemptID)
	if err != nil {
		return err
	}

	question, err := s.assessments.CurrentQuestion(ctx, nil, attempt)
	if err != nil {
		return err
	}
	if question != nil {
		attempt, _, err = s.assessments.RecordResponse(ctx, nil, attempt, question, text)
		if err != nil {
			return err
		}
	}

	next, err := s.assessments.CurrentQuestion(ctx, nil, attempt)
	if err != nil {
		return err
	}
	if next != nil {
		return s.sendCurrentQuestion(ctx, user, attempt)
	}

	return s.finalizeAttempt(ctx, user, enrollment, attempt)
}

// finalizeAttempt completes the attempt and routes: pass moves the enrollment
// to the next module (or course completion), fail offers a retry.
func (s *orchestratorService) finalizeAttempt(ctx context.Context, user *types.User, enrollment *types.Enrollment, attempt *types.AssessmentAttempt) error {
	finalized, err := s.assessments.Finalize(ctx, nil, attempt.ID)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("*Assessment Complete!*\n\n")
	fmt.Fprintf(&b, "Score: %.1f\n", finalized.Score)
	if finalized.Passed {
		b.WriteString("Result: Passed\n")
	} else {
		b.WriteString("Result: Try Again\n")
	}

	if !finalized.Passed {
		b.WriteString("\nType ASSESSMENT to try again, or MODULE to review the content.")
		s.send(ctx, user.WhatsappID, b.String())
		return s.enrollments.SetConversationState(ctx, nil, enrollment.ID, types.ConversationStateOfferQuizOrContent)
	}

	// Passed: close out the module's quiz/assessment phase.
	progress, err := s.delivery.GetOrCreateModuleProgress(ctx, nil, enrollment.ID, attempt.ModuleID)
	if err != nil {
		return err
	}
	switch progress.State {
	case types.ModuleDeliveryAssessmentDelivered:
		if err := s.delivery.MarkModuleState(ctx, nil, enrollment.ID, attempt.ModuleID, types.ModuleDeliveryAssessmentCompleted); err != nil {
			return err
		}
	case types.ModuleDeliveryQuizDelivered:
		if err := s.delivery.MarkModuleState(ctx, nil, enrollment.ID, attempt.ModuleID, types.ModuleDeliveryQuizCompleted); err != nil {
			return err
		}
	}

	enrollment, err = s.enrollments.GetByID(ctx, nil, enrollment.ID)
	if err != nil {
		return err
	}
	next, err := s.enrollments.NextModule(ctx, nil, enrollment)
	if err != nil {
		return err
	}
	if next == nil {
		s.send(ctx, user.WhatsappID, b.String())
		return s.completeCourse(ctx, user, enrollment)
	}

	fmt.Fprintf(&b, "\nGreat job! Moving to the next module *%s*.", next.Title)
	s.send(ctx, user.WhatsappID, b.String())

	if err := s.enrollments.AdvanceToModule(ctx, nil, enrollment, next); err != nil {
		return err
	}
	enrollment.CurrentModuleID = &next.ID
	return s.offerQuizOrContent(ctx, user, enrollment)
}

// --- course completion ---

// completeCourse is the terminal transition: mark completed, render and
// deliver artifacts, email the certificate, then hand off to the post-course
// flow. Artifact and email failures are logged, not fatal: the enrollment is
// already completed and the learner keeps moving.
func (s *orchestratorService) completeCourse(ctx context.Context, user *types.User, enrollment *types.Enrollment) error {
	course, err := s.catalog.GetCourse(ctx, nil, enrollment.CourseID)
	if err != nil {
		return err
	}

	completed, err := s.enrollments.MarkCompleted(ctx, nil, enrollment.ID)
	if err != nil {
		return err
	}

	s.send(ctx, user.WhatsappID, fmt.Sprintf(
		"*Course Completed!*\n\nCongratulations on completing %s!\n\nType COURSES to see other available courses.",
		course.Name))

	artifacts, err := s.certificate.EnsureArtifacts(ctx, nil, completed, user, course)
	if err != nil {
		s.log.Error("certificate generation failed", "enrollment_id", enrollment.ID, "error", err)
	} else {
		if _, err := s.wa.SendDocument(ctx, user.WhatsappID, artifacts.CertificateURL,
			fmt.Sprintf("certificate_%s.png", course.Name), "Your certificate of completion"); err != nil {
			s.log.Error("certificate delivery failed", "enrollment_id", enrollment.ID, "error", err)
		}
		if err := s.notifier.SendCompletionEmail(ctx, user, course, artifacts.CertificateKey); err != nil {
			s.log.Error("completion email failed", "enrollment_id", enrollment.ID, "error", err)
		}
	}

	return s.postCourse.Start(ctx, nil, user)
}

// --- tutor answers and side-channel info ---

// answerUserQuery asks the AI tutor, constrained to the learner's current
// course/module/topic context. AI failure falls back to a canned reply so the
// conversation never stalls.
func (s *orchestratorService) answerUserQuery(ctx context.Context, enrollment *types.Enrollment, question string) (string, error) {
	course, err := s.catalog.GetCourse(ctx, nil, enrollment.CourseID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "The student is enrolled in the course '%s'.\nCategory: %s\nLevel: %s\nDescription: %s\n",
		course.Name, course.Category, course.Level, course.Description)

	if enrollment.CurrentModuleID != nil {
		module, err := s.catalog.GetModule(ctx, nil, *enrollment.CurrentModuleID)
		if err == nil {
			fmt.Fprintf(&b, "They are currently on the module '%s'.\nModule content: %s\n", module.Title, module.Content)
			progress, err := s.delivery.GetModuleProgress(ctx, nil, enrollment.ID, module.ID)
			if err == nil && progress.CurrentTopicID != nil {
				if topics, err := s.catalog.ListActiveTopics(ctx, nil, module.ID); err == nil {
					for _, t := range topics {
						if t.ID == *progress.CurrentTopicID {
							fmt.Fprintf(&b, "They have read up to the topic '%s'.\nTopic content: %s\n", t.Title, t.Content)
							break
						}
					}
				}
			}
		}
	}

	system := "You are a friendly course tutor on WhatsApp. Provide a helpful, concise and clear explanation. " +
		"If the question is unrelated to the course or unclear, politely ask the student to rephrase and do not answer it."
	user := b.String() + "\nThe student asked: " + question

	reply, err := s.ai.GenerateText(ctx, system, user)
	if err != nil {
		s.log.Warn("tutor answer failed", "enrollment_id", enrollment.ID, "error", err)
		return "That's a great question! Let me get back to you on that.", nil
	}
	return reply, nil
}

func (s *orchestratorService) sendCourseIntroSummary(ctx context.Context, user *types.User, enrollment *types.Enrollment) error {
	course, err := s.catalog.GetCourse(ctx, nil, enrollment.CourseID)
	if err != nil {
		return err
	}
	s.send(ctx, user.WhatsappID, fmt.Sprintf(
		"*%s*\n\n%s\n\nDuration: %d weeks\nLevel: %s",
		course.Name, course.Description, course.DurationInWeeks, course.Level))
	return nil
}

func (s *orchestratorService) sendCourseProgress(ctx context.Context, user *types.User, enrollment *types.Enrollment) error {
	course, err := s.catalog.GetCourse(ctx, nil, enrollment.CourseID)
	if err != nil {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "*Your progress in %s*\n\n%d%% complete\n", course.Name, int(enrollment.Progress*100))
	if enrollment.CurrentModuleID != nil {
		if module, err := s.catalog.GetModule(ctx, nil, *enrollment.CurrentModuleID); err == nil {
			fmt.Fprintf(&b, "Current module: %s\n", module.Title)
		}
	}
	s.send(ctx, user.WhatsappID, b.String())
	return nil
}
