package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	AttemptStatusInProgress = "in_progress"
	AttemptStatusCompleted  = "completed"
	AttemptStatusAbandoned  = "abandoned"
)

// AssessmentAttempt snapshots total_questions at start, so edits to the
// assessment mid-attempt do not move the finish line.
type AssessmentAttempt struct {
	ID           uuid.UUID   `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID       uuid.UUID   `gorm:"type:uuid;not null;index" json:"user_id"`
	User         *User       `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	EnrollmentID uuid.UUID   `gorm:"type:uuid;not null;index" json:"enrollment_id"`
	Enrollment   *Enrollment `gorm:"constraint:OnDelete:CASCADE;foreignKey:EnrollmentID;references:ID" json:"enrollment,omitempty"`
	AssessmentID uuid.UUID   `gorm:"type:uuid;not null;index" json:"assessment_id"`
	Assessment   *Assessment `gorm:"constraint:OnDelete:CASCADE;foreignKey:AssessmentID;references:ID" json:"assessment,omitempty"`
	ModuleID     uuid.UUID   `gorm:"type:uuid;not null;index" json:"module_id"`

	Status string `gorm:"column:status;not null;default:'in_progress';index" json:"status"`

	StartedAt   time.Time  `gorm:"column:started_at;not null;default:now()" json:"started_at"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`

	Score  float64 `gorm:"column:score;not null;default:0" json:"score"`
	Passed bool    `gorm:"column:passed;not null;default:false" json:"passed"`

	CurrentQuestionIndex int `gorm:"column:current_question_index;not null;default:0" json:"current_question_index"`
	QuestionsAnswered    int `gorm:"column:questions_answered;not null;default:0" json:"questions_answered"`
	TotalQuestions       int `gorm:"column:total_questions;not null;default:0" json:"total_questions"`

	Responses []*QuestionResponse `gorm:"foreignKey:AttemptID;references:ID" json:"responses,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (AssessmentAttempt) TableName() string { return "assessment_attempt" }

// QuestionResponse is an append-only record of one answered question. Question
// text, type, options and correct answer are copied in at answer time so the
// record stays meaningful if the question is later edited or deleted.
type QuestionResponse struct {
	ID         uuid.UUID          `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	AttemptID  uuid.UUID          `gorm:"type:uuid;not null;index" json:"attempt_id"`
	Attempt    *AssessmentAttempt `gorm:"constraint:OnDelete:CASCADE;foreignKey:AttemptID;references:ID" json:"attempt,omitempty"`
	QuestionID uuid.UUID          `gorm:"type:uuid;not null;index" json:"question_id"`

	QuestionText  string         `gorm:"column:question_text;type:text;not null" json:"question_text"`
	QuestionType  string         `gorm:"column:question_type;not null" json:"question_type"`
	Options       datatypes.JSON `gorm:"column:options;type:jsonb" json:"options"`
	CorrectAnswer string         `gorm:"column:correct_answer;type:text" json:"correct_answer"`

	UserAnswer string  `gorm:"column:user_answer;type:text" json:"user_answer"`
	IsCorrect  bool    `gorm:"column:is_correct;not null;default:false" json:"is_correct"`
	Score      float64 `gorm:"column:score;not null;default:0" json:"score"`

	AnsweredAt time.Time `gorm:"column:answered_at;not null;default:now()" json:"answered_at"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (QuestionResponse) TableName() string { return "question_response" }
