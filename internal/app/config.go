package app

import (
	"github.com/wappstudy/wappstudy-backend/internal/pkg/envutil"
)

type Config struct {
	Port                string
	WhatsappVerifyToken string
	RedisAddr           string

	// IntentModel, when set, runs intent classification on a cheaper model
	// than the rest of the AI calls.
	IntentModel string
}

func LoadConfig() Config {
	return Config{
		Port:                envutil.String("PORT", "8080"),
		WhatsappVerifyToken: envutil.String("WHATSAPP_VERIFY_TOKEN", ""),
		RedisAddr:           envutil.String("REDIS_ADDR", ""),
		IntentModel:         envutil.String("OPENAI_INTENT_MODEL", ""),
	}
}
