package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wappstudy/wappstudy-backend/internal/clients/openai"
	"github.com/wappstudy/wappstudy-backend/internal/data/repos"
	types "github.com/wappstudy/wappstudy-backend/internal/domain"
	errs "github.com/wappstudy/wappstudy-backend/internal/pkg/errors"
	"github.com/wappstudy/wappstudy-backend/internal/pkg/envutil"
	"github.com/wappstudy/wappstudy-backend/internal/pkg/logger"
)

const passPercentThreshold = 70.0

// Evaluation is the outcome of grading one answer. Score is in [0,1] before
// weighting by question marks.
type Evaluation struct {
	Success       bool
	Score         float64
	UserAnswer    string
	CorrectAnswer string
	Feedback      string
}

// AssessmentService runs one attempt of a quiz or assessment end to end:
// snapshot, question cursor, grading, finalization. Grading never returns an
// error for an AI failure; it degrades to a deterministic incorrect result.
type AssessmentService interface {
	StartAttempt(ctx context.Context, tx *gorm.DB, user *types.User, enrollment *types.Enrollment, assessment *types.Assessment) (*types.AssessmentAttempt, error)
	GetAttempt(ctx context.Context, tx *gorm.DB, attemptID uuid.UUID) (*types.AssessmentAttempt, error)
	CurrentQuestion(ctx context.Context, tx *gorm.DB, attempt *types.AssessmentAttempt) (*types.Question, error)
	Evaluate(ctx context.Context, question *types.Question, userInput string) Evaluation
	RecordResponse(ctx context.Context, tx *gorm.DB, attempt *types.AssessmentAttempt, question *types.Question, userInput string) (*types.AssessmentAttempt, Evaluation, error)
	Finalize(ctx context.Context, tx *gorm.DB, attemptID uuid.UUID) (*types.AssessmentAttempt, error)
	Abandon(ctx context.Context, tx *gorm.DB, attemptID uuid.UUID) error
}

type assessmentService struct {
	db             *gorm.DB
	log            *logger.Logger
	ai             openai.Client
	questionRepo   repos.QuestionRepo
	attemptRepo    repos.AttemptRepo
	responseRepo   repos.ResponseRepo
	enrollmentRepo repos.EnrollmentRepo

	confidenceThreshold float64
}

func NewAssessmentService(
	db *gorm.DB,
	baseLog *logger.Logger,
	ai openai.Client,
	questionRepo repos.QuestionRepo,
	attemptRepo repos.AttemptRepo,
	responseRepo repos.ResponseRepo,
	enrollmentRepo repos.EnrollmentRepo,
) AssessmentService {
	svcLog := baseLog.With("service", "AssessmentService")
	return &assessmentService{
		db:                  db,
		log:                 svcLog,
		ai:                  ai,
		questionRepo:        questionRepo,
		attemptRepo:         attemptRepo,
		responseRepo:        responseRepo,
		enrollmentRepo:      enrollmentRepo,
		confidenceThreshold: envutil.Float("ASSESSMENT_AI_CONFIDENCE_THRESHOLD", 0.7),
	}
}

// StartAttempt snapshots the question count at this instant and points the
// enrollment at the new attempt. An assessment with zero questions cannot be
// started; activation should have prevented that.
func (s *assessmentService) StartAttempt(ctx context.Context, tx *gorm.DB, user *types.User, enrollment *types.Enrollment, assessment *types.Assessment) (*types.AssessmentAttempt, error) {
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}

	var attempt *types.AssessmentAttempt
	err := transaction.WithContext(ctx).Transaction(func(innerTx *gorm.DB) error {
		count, err := s.questionRepo.CountByAssessmentID(ctx, innerTx, assessment.ID)
		if err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("assessment %s has no questions: %w", assessment.ID, errs.ErrInvalidArgument)
		}

		attempt, err = s.attemptRepo.Create(ctx, innerTx, &types.AssessmentAttempt{
			UserID:         user.ID,
			EnrollmentID:   enrollment.ID,
			AssessmentID:   assessment.ID,
			ModuleID:       assessment.ModuleID,
			Status:         types.AttemptStatusInProgress,
			StartedAt:      time.Now().UTC(),
			TotalQuestions: int(count),
		})
		if err != nil {
			return err
		}
		return s.enrollmentRepo.UpdateFields(ctx, innerTx, enrollment.ID, map[string]interface{}{
			"current_assessment_attempt_id": attempt.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("started attempt", "attempt_id", attempt.ID, "assessment_id", assessment.ID, "total_questions", attempt.TotalQuestions)
	return attempt, nil
}

func (s *assessmentService) GetAttempt(ctx context.Context, tx *gorm.DB, attemptID uuid.UUID) (*types.AssessmentAttempt, error) {
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}
	return s.attemptRepo.GetByID(ctx, transaction, attemptID)
}

// CurrentQuestion returns the question at the attempt's cursor, or nil when
// the attempt is exhausted.
func (s *assessmentService) CurrentQuestion(ctx context.Context, tx *gorm.DB, attempt *types.AssessmentAttempt) (*types.Question, error) {
	if attempt.CurrentQuestionIndex >= attempt.TotalQuestions {
		return nil, nil
	}

	transaction := tx
	if transaction == nil {
		transaction = s.db
	}

	questions, err := s.questionRepo.ListByAssessmentID(ctx, transaction, attempt.AssessmentID)
	if err != nil {
		return nil, err
	}
	if attempt.CurrentQuestionIndex >= len(questions) {
		return nil, nil
	}
	return questions[attempt.CurrentQuestionIndex], nil
}

func decodeOptions(q *types.Question) []types.QuestionOption {
	var options []types.QuestionOption
	if len(q.Options) > 0 {
		_ = json.Unmarshal(q.Options, &options)
	}
	return options
}

func correctOptionText(options []types.QuestionOption) string {
	for _, o := range options {
		if o.IsCorrect {
			return o.Text
		}
	}
	return ""
}

// Evaluate grades one answer. MCQ: a 1-based numeric reply resolves to option
// text first, then exact case-insensitive match, then an AI fuzzy match above
// the confidence threshold. Open: exact match, then AI semantic scoring.
func (s *assessmentService) Evaluate(ctx context.Context, question *types.Question, userInput string) Evaluation {
	input := strings.TrimSpace(userInput)

	switch question.Type {
	case types.QuestionTypeMCQ:
		return s.evaluateMCQ(ctx, question, input)
	case types.QuestionTypeOpen:
		return s.evaluateOpen(ctx, question, input)
	default:
		s.log.Warn("unknown question type", "question_id", question.ID, "type", question.Type)
		return Evaluation{UserAnswer: input, CorrectAnswer: question.CorrectAnswer}
	}
}

func (s *assessmentService) evaluateMCQ(ctx context.Context, question *types.Question, input string) Evaluation {
	options := decodeOptions(question)
	correct := correctOptionText(options)
	if correct == "" {
		correct = question.CorrectAnswer
	}

	answer := input
	if idx, err := strconv.Atoi(input); err == nil && idx >= 1 && idx <= len(options) {
		answer = options[idx-1].Text
	}

	if strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(correct)) {
		return Evaluation{Success: true, Score: 1, UserAnswer: answer, CorrectAnswer: correct}
	}

	optionTexts := make([]string, 0, len(options))
	for _, o := range options {
		optionTexts = append(optionTexts, o.Text)
	}

	system := "You match a learner's answer against the options of a multiple-choice question. " +
		"Return the matched option text verbatim, or null when no option fits, with your confidence in [0,1]."
	user := fmt.Sprintf("Question: %s\nOptions: %s\nCorrect option: %s\nLearner answer: %s",
		question.Text, strings.Join(optionTexts, " | "), correct, answer)
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"matched_option": map[string]any{"type": []string{"string", "null"}},
			"confidence":     map[string]any{"type": "number"},
		},
		"required":             []string{"matched_option", "confidence"},
		"additionalProperties": false,
	}

	out, err := s.ai.GenerateJSON(ctx, system, user, "mcq_match", schema)
	if err != nil {
		s.log.Warn("mcq fuzzy match degraded to incorrect", "question_id", question.ID, "error", err)
		return Evaluation{UserAnswer: answer, CorrectAnswer: correct}
	}

	matched, _ := out["matched_option"].(string)
	confidence, _ := out["confidence"].(float64)
	if matched != "" && confidence > s.confidenceThreshold && strings.EqualFold(strings.TrimSpace(matched), strings.TrimSpace(correct)) {
		return Evaluation{Success: true, Score: 1, UserAnswer: answer, CorrectAnswer: correct}
	}
	return Evaluation{UserAnswer: answer, CorrectAnswer: correct}
}

func (s *assessmentService) evaluateOpen(ctx context.Context, question *types.Question, input string) Evaluation {
	correct := question.CorrectAnswer

	if strings.EqualFold(strings.TrimSpace(input), strings.TrimSpace(correct)) {
		return Evaluation{Success: true, Score: 1, UserAnswer: input, CorrectAnswer: correct}
	}

	system := "You grade a learner's open-ended answer against the canonical answer. " +
		"Return a continuous score in [0,1] for semantic correctness, your confidence in [0,1], and one sentence of feedback."
	user := fmt.Sprintf("Question: %s\nCanonical answer: %s\nLearner answer: %s", question.Text, correct, input)
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"score":      map[string]any{"type": "number"},
			"confidence": map[string]any{"type": "number"},
			"feedback":   map[string]any{"type": "string"},
		},
		"required":             []string{"score", "confidence", "feedback"},
		"additionalProperties": false,
	}

	out, err := s.ai.GenerateJSON(ctx, system, user, "open_answer_grading", schema)
	if err != nil {
		s.log.Warn("open grading degraded to incorrect", "question_id", question.ID, "error", err)
		return Evaluation{UserAnswer: input, CorrectAnswer: correct}
	}

	score, _ := out["score"].(float64)
	confidence, _ := out["confidence"].(float64)
	feedback, _ := out["feedback"].(string)
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return Evaluation{
		Success:       confidence >= s.confidenceThreshold && score >= s.confidenceThreshold,
		Score:         score,
		UserAnswer:    input,
		CorrectAnswer: correct,
		Feedback:      feedback,
	}
}

// RecordResponse grades the answer, persists the snapshot and advances the
// attempt cursor in one transaction. The stored score is weighted by the
// question's marks.
func (s *assessmentService) RecordResponse(ctx context.Context, tx *gorm.DB, attempt *types.AssessmentAttempt, question *types.Question, userInput string) (*types.AssessmentAttempt, Evaluation, error) {
	eval := s.Evaluate(ctx, question, userInput)

	transaction := tx
	if transaction == nil {
		transaction = s.db
	}

	var updated *types.AssessmentAttempt
	err := transaction.WithContext(ctx).Transaction(func(innerTx *gorm.DB) error {
		now := time.Now().UTC()
		if _, err := s.responseRepo.Create(ctx, innerTx, &types.QuestionResponse{
			AttemptID:     attempt.ID,
			QuestionID:    question.ID,
			QuestionText:  question.Text,
			QuestionType:  question.Type,
			Options:       question.Options,
			CorrectAnswer: eval.CorrectAnswer,
			UserAnswer:    eval.UserAnswer,
			IsCorrect:     eval.Success,
			Score:         eval.Score * question.Marks,
			AnsweredAt:    now,
		}); err != nil {
			return err
		}

		if err := s.attemptRepo.UpdateFields(ctx, innerTx, attempt.ID, map[string]interface{}{
			"questions_answered":     attempt.QuestionsAnswered + 1,
			"current_question_index": attempt.CurrentQuestionIndex + 1,
		}); err != nil {
			return err
		}

		var err error
		updated, err = s.attemptRepo.GetByID(ctx, innerTx, attempt.ID)
		return err
	})
	if err != nil {
		return nil, eval, err
	}
	return updated, eval, nil
}

// Finalize sums recorded scores and marks the attempt completed. The pass
// percentage divides by the snapshotted question count, not the sum of marks;
// see DESIGN.md for why that denominator is kept. Idempotent: finalizing a
// completed attempt returns it unchanged.
func (s *assessmentService) Finalize(ctx context.Context, tx *gorm.DB, attemptID uuid.UUID) (*types.AssessmentAttempt, error) {
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}

	var out *types.AssessmentAttempt
	err := transaction.WithContext(ctx).Transaction(func(innerTx *gorm.DB) error {
		attempt, err := s.attemptRepo.GetByID(ctx, innerTx, attemptID)
		if err != nil {
			return err
		}
		if attempt.Status == types.AttemptStatusCompleted {
			out = attempt
			return nil
		}
		if attempt.Status == types.AttemptStatusAbandoned {
			return fmt.Errorf("attempt %s is abandoned: %w", attemptID, errs.ErrConflict)
		}

		sum, err := s.responseRepo.SumScores(ctx, innerTx, attemptID)
		if err != nil {
			return err
		}

		passed := false
		if attempt.TotalQuestions > 0 {
			passed = sum/float64(attempt.TotalQuestions)*100 >= passPercentThreshold
		}

		now := time.Now().UTC()
		if err := s.attemptRepo.UpdateFields(ctx, innerTx, attemptID, map[string]interface{}{
			"status":       types.AttemptStatusCompleted,
			"completed_at": now,
			"score":        sum,
			"passed":       passed,
		}); err != nil {
			return err
		}
		if err := s.enrollmentRepo.UpdateFields(ctx, innerTx, attempt.EnrollmentID, map[string]interface{}{
			"current_assessment_attempt_id": nil,
		}); err != nil {
			return err
		}

		out, err = s.attemptRepo.GetByID(ctx, innerTx, attemptID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("finalized attempt", "attempt_id", out.ID, "score", out.Score, "passed", out.Passed)
	return out, nil
}

// Abandon marks the attempt abandoned and clears the enrollment pointer. No
// score is computed.
func (s *assessmentService) Abandon(ctx context.Context, tx *gorm.DB, attemptID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = s.db
	}

	return transaction.WithContext(ctx).Transaction(func(innerTx *gorm.DB) error {
		attempt, err := s.attemptRepo.GetByID(ctx, innerTx, attemptID)
		if err != nil {
			return err
		}
		if attempt.Status != types.AttemptStatusInProgress {
			return nil
		}
		if err := s.attemptRepo.UpdateFields(ctx, innerTx, attemptID, map[string]interface{}{
			"status": types.AttemptStatusAbandoned,
		}); err != nil {
			return err
		}
		return s.enrollmentRepo.UpdateFields(ctx, innerTx, attempt.EnrollmentID, map[string]interface{}{
			"current_assessment_attempt_id": nil,
		})
	})
}
