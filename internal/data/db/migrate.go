package db

import (
	types "github.com/wappstudy/wappstudy-backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(

		// =========================
		// Content catalog
		// =========================
		&types.Course{},
		&types.CourseDescription{},
		&types.Module{},
		&types.Topic{},
		&types.Paragraph{},
		&types.Assessment{},
		&types.Question{},

		// =========================
		// Learners + enrollment state
		// =========================
		&types.User{},
		&types.Enrollment{},
		&types.ModuleDeliveryProgress{},
		&types.TopicDeliveryProgress{},

		// =========================
		// Assessment attempts
		// =========================
		&types.AssessmentAttempt{},
		&types.QuestionResponse{},
	)
}
