package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/wappstudy/wappstudy-backend/internal/clients/openai"
	"github.com/wappstudy/wappstudy-backend/internal/pkg/logger"
	"github.com/wappstudy/wappstudy-backend/internal/services"
)

type Services struct {
	Catalog      services.CatalogService
	Content      services.ContentService
	Intent       services.IntentService
	Delivery     services.DeliveryService
	Assessment   services.AssessmentService
	Enrollment   services.EnrollmentService
	Certificate  services.CertificateService
	Notifier     services.NotifierService
	PostCourse   services.PostCourseService
	Orchestrator services.OrchestratorService
}

func wireServices(cfg Config, db *gorm.DB, log *logger.Logger, clients Clients, r Repos) (Services, error) {
	log.Info("Wiring services...")

	catalog := services.NewCatalogService(log, r.Course, r.CourseDescription, r.Module, r.Topic, r.Paragraph, r.Assessment, r.Question)
	content := services.NewContentService(db, log, r.Course, r.CourseDescription, r.Module, r.Topic, r.Paragraph, r.Assessment, r.Question)
	intent := services.NewIntentService(log, openai.WithModel(clients.OpenAI, cfg.IntentModel))
	delivery := services.NewDeliveryService(db, log, r.Module, r.Topic, r.Paragraph, r.ModuleProgress, r.TopicProgress)
	assessment := services.NewAssessmentService(db, log, clients.OpenAI, r.Question, r.Attempt, r.Response, r.Enrollment)
	enrollment := services.NewEnrollmentService(db, log, r.Course, r.Module, r.Enrollment, r.User, r.ModuleProgress)

	certificate, err := services.NewCertificateService(db, log, clients.Bucket, r.Enrollment)
	if err != nil {
		return Services{}, fmt.Errorf("init certificate service: %w", err)
	}
	notifier := services.NewNotifierService(log, clients.SendGrid, clients.Bucket)
	postCourse := services.NewPostCourseService(db, log, clients.OpenAI, clients.WhatsApp, r.Course, r.User, enrollment)

	orchestrator := services.NewOrchestratorService(
		db, log, clients.Locker, clients.WhatsApp, clients.OpenAI,
		r.User, r.Enrollment,
		catalog, intent, delivery, assessment, enrollment,
		certificate, notifier, postCourse,
	)

	return Services{
		Catalog:      catalog,
		Content:      content,
		Intent:       intent,
		Delivery:     delivery,
		Assessment:   assessment,
		Enrollment:   enrollment,
		Certificate:  certificate,
		Notifier:     notifier,
		PostCourse:   postCourse,
		Orchestrator: orchestrator,
	}, nil
}
