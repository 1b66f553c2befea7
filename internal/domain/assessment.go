package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	AssessmentTypeQuiz       = "quiz"
	AssessmentTypeAssessment = "assessment"
)

const (
	QuestionTypeMCQ  = "mcq"
	QuestionTypeOpen = "open"
)

// Assessment is a quiz (pre-content check) or assessment (post-content check)
// attached to a module. At most one active assessment per (module, type).
type Assessment struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ModuleID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"module_id"`
	Module      *Module    `gorm:"constraint:OnDelete:CASCADE;foreignKey:ModuleID;references:ID" json:"module,omitempty"`
	CourseID    *uuid.UUID `gorm:"type:uuid;index" json:"course_id,omitempty"`
	Title       string     `gorm:"column:title;not null" json:"title"`
	Description string     `gorm:"column:description;type:text" json:"description"`
	Type        string     `gorm:"column:type;not null;index" json:"type"`
	IsActive    bool       `gorm:"column:is_active;not null;default:false;index" json:"is_active"`

	Questions []*Question `gorm:"foreignKey:AssessmentID;references:ID" json:"questions,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Assessment) TableName() string { return "assessment" }

type Question struct {
	ID           uuid.UUID   `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	AssessmentID uuid.UUID   `gorm:"type:uuid;not null;index" json:"assessment_id"`
	Assessment   *Assessment `gorm:"constraint:OnDelete:CASCADE;foreignKey:AssessmentID;references:ID" json:"assessment,omitempty"`
	Type         string      `gorm:"column:type;not null" json:"type"`
	Text         string      `gorm:"column:text;type:text;not null" json:"text"`
	Marks        float64     `gorm:"column:marks;not null;default:1" json:"marks"`

	// Options holds [{"text": ..., "isCorrect": ...}] for MCQ questions.
	Options       datatypes.JSON `gorm:"column:options;type:jsonb" json:"options"`
	CorrectAnswer string         `gorm:"column:correct_answer;type:text" json:"correct_answer"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Question) TableName() string { return "question" }

// QuestionOption is the decoded shape of one element of Question.Options.
type QuestionOption struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}
