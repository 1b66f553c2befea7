package app

import (
	"gorm.io/gorm"

	"github.com/wappstudy/wappstudy-backend/internal/data/repos"
	"github.com/wappstudy/wappstudy-backend/internal/pkg/logger"
)

type Repos struct {
	User              repos.UserRepo
	Course            repos.CourseRepo
	CourseDescription repos.CourseDescriptionRepo
	Module            repos.ModuleRepo
	Topic             repos.TopicRepo
	Paragraph         repos.ParagraphRepo
	Assessment        repos.AssessmentRepo
	Question          repos.QuestionRepo
	Enrollment        repos.EnrollmentRepo
	Attempt           repos.AttemptRepo
	Response          repos.ResponseRepo
	ModuleProgress    repos.ModuleProgressRepo
	TopicProgress     repos.TopicProgressRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:              repos.NewUserRepo(db, log),
		Course:            repos.NewCourseRepo(db, log),
		CourseDescription: repos.NewCourseDescriptionRepo(db, log),
		Module:            repos.NewModuleRepo(db, log),
		Topic:             repos.NewTopicRepo(db, log),
		Paragraph:         repos.NewParagraphRepo(db, log),
		Assessment:        repos.NewAssessmentRepo(db, log),
		Question:          repos.NewQuestionRepo(db, log),
		Enrollment:        repos.NewEnrollmentRepo(db, log),
		Attempt:           repos.NewAttemptRepo(db, log),
		Response:          repos.NewResponseRepo(db, log),
		ModuleProgress:    repos.NewModuleProgressRepo(db, log),
		TopicProgress:     repos.NewTopicProgressRepo(db, log),
	}
}
