package app

import (
	httpH "github.com/wappstudy/wappstudy-backend/internal/http/handlers"
	"github.com/wappstudy/wappstudy-backend/internal/pkg/logger"
)

type Handlers struct {
	Health  *httpH.HealthHandler
	Webhook *httpH.WebhookHandler
	Content *httpH.ContentHandler
}

func wireHandlers(cfg Config, log *logger.Logger, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:  httpH.NewHealthHandler(),
		Webhook: httpH.NewWebhookHandler(log, cfg.WhatsappVerifyToken, services.Orchestrator),
		Content: httpH.NewContentHandler(log, services.Content, services.Catalog),
	}
}
