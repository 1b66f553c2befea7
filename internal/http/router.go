package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/wappstudy/wappstudy-backend/internal/http/handlers"
	httpMW "github.com/wappstudy/wappstudy-backend/internal/http/middleware"
	"github.com/wappstudy/wappstudy-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	HealthHandler  *httpH.HealthHandler
	WebhookHandler *httpH.WebhookHandler
	ContentHandler *httpH.ContentHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.CORS())
	r.Use(httpMW.RequestLogger(cfg.Log))

	r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)

	api := r.Group("/api/v1")
	{
		api.GET("/webhook", cfg.WebhookHandler.Verify)
		api.POST("/webhook", cfg.WebhookHandler.Receive)
	}

	admin := api.Group("/admin")
	{
		admin.POST("/courses", cfg.ContentHandler.CreateCourse)
		admin.POST("/courses/:courseID/activate", cfg.ContentHandler.ActivateCourse)
		admin.GET("/courses/:courseID/modules", cfg.ContentHandler.ListModules)
		admin.POST("/courses/:courseID/modules", cfg.ContentHandler.CreateModule)
		admin.DELETE("/modules/:moduleID", cfg.ContentHandler.DeleteModule)
		admin.POST("/modules/:moduleID/topics", cfg.ContentHandler.CreateTopic)
		admin.POST("/modules/:moduleID/assessments", cfg.ContentHandler.CreateAssessment)
		admin.PATCH("/topics/:topicID", cfg.ContentHandler.UpdateTopic)
		admin.POST("/topics/:topicID/reorder", cfg.ContentHandler.ReorderTopic)
		admin.DELETE("/topics/:topicID", cfg.ContentHandler.DeleteTopic)
		admin.POST("/topics/:topicID/paragraphs", cfg.ContentHandler.CreateParagraphs)
		admin.POST("/assessments/:assessmentID/activate", cfg.ContentHandler.SetAssessmentActive)
	}

	return r
}
