package app

import (
	"fmt"

	"github.com/wappstudy/wappstudy-backend/internal/clients/gcp"
	"github.com/wappstudy/wappstudy-backend/internal/clients/openai"
	"github.com/wappstudy/wappstudy-backend/internal/clients/redis"
	"github.com/wappstudy/wappstudy-backend/internal/clients/sendgrid"
	"github.com/wappstudy/wappstudy-backend/internal/clients/whatsapp"
	"github.com/wappstudy/wappstudy-backend/internal/pkg/logger"
)

type Clients struct {
	WhatsApp whatsapp.Client
	OpenAI   openai.Client
	SendGrid sendgrid.Client
	Bucket   gcp.BucketService
	Locker   redis.ConversationLocker
}

func wireClients(cfg Config, log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	wa, err := whatsapp.NewFromEnv(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init whatsapp client: %w", err)
	}
	ai, err := openai.NewClient(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}
	email, err := sendgrid.NewFromEnv(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init sendgrid client: %w", err)
	}
	bucket, err := gcp.NewBucketService(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init bucket service: %w", err)
	}

	// Redis backs the conversation lock when configured; single-instance
	// deployments fall back to the in-process locker.
	var locker redis.ConversationLocker
	if cfg.RedisAddr != "" {
		locker, err = redis.NewConversationLocker(log)
		if err != nil {
			return Clients{}, fmt.Errorf("init conversation locker: %w", err)
		}
	} else {
		log.Warn("REDIS_ADDR not set, using in-process conversation locker")
		locker = redis.NewLocalLocker()
	}

	return Clients{
		WhatsApp: wa,
		OpenAI:   ai,
		SendGrid: email,
		Bucket:   bucket,
		Locker:   locker,
	}, nil
}
