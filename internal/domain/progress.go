package domain

import (
	"time"

	"github.com/google/uuid"
)

// Module delivery states. quiz_* and assessment_* layer on top of the content
// states: a quiz runs before content is delivered, an assessment after.
const (
	ModuleDeliveryNotStarted          = "not_started"
	ModuleDeliveryContentDelivering   = "content_delivering"
	ModuleDeliveryContentDelivered    = "content_delivered"
	ModuleDeliveryQuizDelivered       = "quiz_delivered"
	ModuleDeliveryQuizCompleted       = "quiz_completed"
	ModuleDeliveryAssessmentDelivered = "assessment_delivered"
	ModuleDeliveryAssessmentCompleted = "assessment_completed"
)

const (
	TopicDeliveryNotStarted        = "not_started"
	TopicDeliveryContentDelivering = "content_delivering"
	TopicDeliveryContentDelivered  = "content_delivered"
)

// ModuleDeliveryProgress is the per-(enrollment, module) delivery cursor.
type ModuleDeliveryProgress struct {
	ID           uuid.UUID   `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	EnrollmentID uuid.UUID   `gorm:"type:uuid;not null;index:idx_module_progress_enrollment_module,unique" json:"enrollment_id"`
	Enrollment   *Enrollment `gorm:"constraint:OnDelete:CASCADE;foreignKey:EnrollmentID;references:ID" json:"enrollment,omitempty"`
	ModuleID     uuid.UUID   `gorm:"type:uuid;not null;index:idx_module_progress_enrollment_module,unique" json:"module_id"`
	Module       *Module     `gorm:"constraint:OnDelete:CASCADE;foreignKey:ModuleID;references:ID" json:"module,omitempty"`

	State string `gorm:"column:state;not null;default:'not_started'" json:"state"`

	CurrentTopicID *uuid.UUID `gorm:"type:uuid;index" json:"current_topic_id,omitempty"`
	CurrentTopic   *Topic     `gorm:"foreignKey:CurrentTopicID;references:ID" json:"current_topic,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (ModuleDeliveryProgress) TableName() string { return "module_delivery_progress" }

// TopicDeliveryProgress is the per-(enrollment, topic) paragraph cursor.
type TopicDeliveryProgress struct {
	ID           uuid.UUID   `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	EnrollmentID uuid.UUID   `gorm:"type:uuid;not null;index:idx_topic_progress_enrollment_topic,unique" json:"enrollment_id"`
	Enrollment   *Enrollment `gorm:"constraint:OnDelete:CASCADE;foreignKey:EnrollmentID;references:ID" json:"enrollment,omitempty"`
	TopicID      uuid.UUID   `gorm:"type:uuid;not null;index:idx_topic_progress_enrollment_topic,unique" json:"topic_id"`
	Topic        *Topic      `gorm:"constraint:OnDelete:CASCADE;foreignKey:TopicID;references:ID" json:"topic,omitempty"`

	State string `gorm:"column:state;not null;default:'not_started'" json:"state"`

	CurrentParagraphID *uuid.UUID `gorm:"type:uuid;index" json:"current_paragraph_id,omitempty"`
	CurrentParagraph   *Paragraph `gorm:"foreignKey:CurrentParagraphID;references:ID" json:"current_paragraph,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (TopicDeliveryProgress) TableName() string { return "topic_delivery_progress" }
