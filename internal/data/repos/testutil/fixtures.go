package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/wappstudy/wappstudy-backend/internal/domain"
)

func PtrUUID(id uuid.UUID) *uuid.UUID { return &id }

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, whatsappID string) *types.User {
	tb.Helper()
	u := &types.User{
		ID:               uuid.New(),
		WhatsappID:       whatsappID,
		WhatsappName:     "Learner",
		FullName:         "Test Learner",
		PostCourseStatus: types.PostCourseStatusNotStarted,
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedCourse(tb testing.TB, ctx context.Context, tx *gorm.DB, name string) *types.Course {
	tb.Helper()
	c := &types.Course{
		ID:       uuid.New(),
		Name:     name,
		Level:    "beginner",
		Tags:     datatypes.JSON([]byte(`[]`)),
		IsActive: true,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed course: %v", err)
	}
	return c
}

func SeedModule(tb testing.TB, ctx context.Context, tx *gorm.DB, courseID uuid.UUID, order int) *types.Module {
	tb.Helper()
	m := &types.Module{
		ID:       uuid.New(),
		CourseID: courseID,
		Title:    "module",
		Content:  "module content",
		Order:    order,
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed module: %v", err)
	}
	return m
}

func SeedTopic(tb testing.TB, ctx context.Context, tx *gorm.DB, moduleID uuid.UUID, order int, active bool) *types.Topic {
	tb.Helper()
	t := &types.Topic{
		ID:       uuid.New(),
		ModuleID: moduleID,
		Title:    "topic",
		Content:  "topic content",
		Order:    order,
		IsActive: active,
	}
	if err := tx.WithContext(ctx).Create(t).Error; err != nil {
		tb.Fatalf("seed topic: %v", err)
	}
	return t
}

func SeedParagraph(tb testing.TB, ctx context.Context, tx *gorm.DB, topicID uuid.UUID, order int) *types.Paragraph {
	tb.Helper()
	p := &types.Paragraph{
		ID:      uuid.New(),
		TopicID: topicID,
		Content: "paragraph content",
		Order:   order,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed paragraph: %v", err)
	}
	return p
}

func SeedAssessment(tb testing.TB, ctx context.Context, tx *gorm.DB, moduleID uuid.UUID, assessmentType string, active bool) *types.Assessment {
	tb.Helper()
	a := &types.Assessment{
		ID:       uuid.New(),
		ModuleID: moduleID,
		Title:    "check",
		Type:     assessmentType,
		IsActive: active,
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed assessment: %v", err)
	}
	return a
}

func SeedMCQQuestion(tb testing.TB, ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID, text, correct string, wrong ...string) *types.Question {
	tb.Helper()
	options := `[{"text":"` + correct + `","isCorrect":true}`
	for _, w := range wrong {
		options += `,{"text":"` + w + `","isCorrect":false}`
	}
	options += `]`
	q := &types.Question{
		ID:            uuid.New(),
		AssessmentID:  assessmentID,
		Type:          types.QuestionTypeMCQ,
		Text:          text,
		Marks:         1,
		Options:       datatypes.JSON([]byte(options)),
		CorrectAnswer: correct,
	}
	if err := tx.WithContext(ctx).Create(q).Error; err != nil {
		tb.Fatalf("seed mcq question: %v", err)
	}
	return q
}

func SeedEnrollment(tb testing.TB, ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) *types.Enrollment {
	tb.Helper()
	e := &types.Enrollment{
		ID:                uuid.New(),
		UserID:            userID,
		CourseID:          courseID,
		Status:            types.EnrollmentStatusInProgress,
		ConversationState: types.ConversationStateIdle,
		IntroductionState: types.IntroductionNotStarted,
	}
	if err := tx.WithContext(ctx).Create(e).Error; err != nil {
		tb.Fatalf("seed enrollment: %v", err)
	}
	return e
}
