package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	EnrollmentStatusInProgress = "in_progress"
	EnrollmentStatusCompleted  = "completed"
	EnrollmentStatusPaused     = "paused"
)

// Conversation states for an enrollment. One state per enrollment; the
// orchestrator dispatches on it every learner turn.
const (
	ConversationStateIdle               = "idle"
	ConversationStateAwaitingUserQuery  = "awaiting_user_query"
	ConversationStateAwaitingContinue   = "awaiting_continue_confirmation"
	ConversationStateOfferQuizOrContent = "offer_quiz_or_content"
	ConversationStateInAssessment       = "in_assessment"
	ConversationStateCourseComplete     = "course_complete"
)

// Introduction sub-state, orthogonal to the conversation state.
const (
	IntroductionNotStarted = "not_started"
	IntroductionDelivering = "delivering"
	IntroductionDelivered  = "delivered"
)

type Enrollment struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;index:idx_enrollment_user_course,unique" json:"user_id"`
	User     *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	CourseID uuid.UUID `gorm:"type:uuid;not null;index:idx_enrollment_user_course,unique" json:"course_id"`
	Course   *Course   `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID;references:ID" json:"course,omitempty"`

	Status   string  `gorm:"column:status;not null;default:'in_progress';index" json:"status"`
	Progress float64 `gorm:"column:progress;not null;default:0" json:"progress"`

	ConversationState string `gorm:"column:conversation_state;not null;default:'idle'" json:"conversation_state"`

	IntroductionState string `gorm:"column:introduction_state;not null;default:'not_started'" json:"introduction_state"`
	IntroductionStep  int    `gorm:"column:introduction_step;not null;default:0" json:"introduction_step"`

	CurrentModuleID *uuid.UUID `gorm:"type:uuid;index" json:"current_module_id,omitempty"`
	CurrentModule   *Module    `gorm:"foreignKey:CurrentModuleID;references:ID" json:"current_module,omitempty"`

	CurrentAssessmentAttemptID *uuid.UUID `gorm:"type:uuid;index" json:"current_assessment_attempt_id,omitempty"`

	Completed   bool       `gorm:"column:completed;not null;default:false" json:"completed"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`

	CertificateEarned bool   `gorm:"column:certificate_earned;not null;default:false" json:"certificate_earned"`
	CertificateURL    string `gorm:"column:certificate_url" json:"certificate_url"`
	BadgeURL          string `gorm:"column:badge_url" json:"badge_url"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Enrollment) TableName() string { return "enrollment" }
