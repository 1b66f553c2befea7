package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	PostCourseStatusNotStarted = "not_started"
	PostCourseStatusInProgress = "in_progress"
	PostCourseStatusCompleted  = "completed"
)

// User is a WhatsApp learner, keyed by the provider phone id.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	WhatsappID   string    `gorm:"column:whatsapp_id;not null;uniqueIndex" json:"whatsapp_id"`
	WhatsappName string    `gorm:"column:whatsapp_name" json:"whatsapp_name"`
	FullName     string    `gorm:"column:full_name" json:"full_name"`
	Email        string    `gorm:"column:email" json:"email"`

	ActiveEnrollmentID *uuid.UUID  `gorm:"type:uuid;index" json:"active_enrollment_id,omitempty"`
	ActiveEnrollment   *Enrollment `gorm:"foreignKey:ActiveEnrollmentID;references:ID" json:"active_enrollment,omitempty"`

	// Course-selection flow after a course completes. SharedCourseIDs is the
	// ordered list of course ids offered in the last selection prompt.
	PostCourseStatus string         `gorm:"column:post_course_status;not null;default:'not_started'" json:"post_course_status"`
	PostCourseStep   int            `gorm:"column:post_course_step;not null;default:0" json:"post_course_step"`
	SharedCourseIDs  datatypes.JSON `gorm:"column:shared_course_ids;type:jsonb" json:"shared_course_ids"`

	LastActiveAt *time.Time `gorm:"column:last_active_at;index" json:"last_active_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (User) TableName() string { return "app_user" }
