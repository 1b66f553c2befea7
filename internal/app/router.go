package app

import (
	"github.com/gin-gonic/gin"

	internalhttp "github.com/wappstudy/wappstudy-backend/internal/http"
	"github.com/wappstudy/wappstudy-backend/internal/pkg/logger"
)

func wireRouter(log *logger.Logger, handlers Handlers) *gin.Engine {
	return internalhttp.NewRouter(internalhttp.RouterConfig{
		Log:            log,
		HealthHandler:  handlers.Health,
		WebhookHandler: handlers.Webhook,
		ContentHandler: handlers.Content,
	})
}
