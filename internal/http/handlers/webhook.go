package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wappstudy/wappstudy-backend/internal/pkg/logger"
	"github.com/wappstudy/wappstudy-backend/internal/services"
)

// WebhookHandler terminates the Meta webhook. Verification is the standard
// hub.challenge echo; inbound messages go to the conversation orchestrator.
// The provider retries on non-200, so message handling always answers 200
// and keeps failures in the logs.
type WebhookHandler struct {
	log          *logger.Logger
	verifyToken  string
	orchestrator services.OrchestratorService
}

func NewWebhookHandler(log *logger.Logger, verifyToken string, orchestrator services.OrchestratorService) *WebhookHandler {
	return &WebhookHandler{
		log:          log.With("handler", "WebhookHandler"),
		verifyToken:  verifyToken,
		orchestrator: orchestrator,
	}
}

func (h *WebhookHandler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token != "" && token == h.verifyToken {
		c.String(http.StatusOK, challenge)
		return
	}
	h.log.Warn("webhook verification rejected", "mode", mode)
	c.Status(http.StatusForbidden)
}

type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Metadata struct {
					PhoneNumberID string `json:"phone_number_id"`
				} `json:"metadata"`
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []struct {
					From string `json:"from"`
					Type string `json:"type"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
					Interactive struct {
						Type        string `json:"type"`
						ButtonReply struct {
							ID    string `json:"id"`
							Title string `json:"title"`
						} `json:"button_reply"`
						ListReply struct {
							ID    string `json:"id"`
							Title string `json:"title"`
						} `json:"list_reply"`
					} `json:"interactive"`
				} `json:"messages"`
				Statuses []struct {
					ID     string `json:"id"`
					Status string `json:"status"`
				} `json:"statuses"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

func (h *WebhookHandler) Receive(c *gin.Context) {
	var payload webhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.log.Warn("undecodable webhook payload", "error", err)
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			value := change.Value

			for _, status := range value.Statuses {
				h.log.Debug("message status update", "message_id", status.ID, "status", status.Status)
			}

			profileName := ""
			if len(value.Contacts) > 0 {
				profileName = value.Contacts[0].Profile.Name
			}

			for _, msg := range value.Messages {
				text := msg.Text.Body
				if msg.Type == "interactive" {
					// Our outbound buttons and list rows carry routing IDs;
					// the title is only a display label.
					switch msg.Interactive.Type {
					case "button_reply":
						text = msg.Interactive.ButtonReply.ID
						if text == "" {
							text = msg.Interactive.ButtonReply.Title
						}
					case "list_reply":
						text = msg.Interactive.ListReply.ID
						if text == "" {
							text = msg.Interactive.ListReply.Title
						}
					}
				}
				if msg.From == "" || text == "" {
					h.log.Warn("skipping message without sender or body", "type", msg.Type)
					continue
				}

				if err := h.orchestrator.ProcessUserMessage(c.Request.Context(), msg.From, profileName, text); err != nil {
					h.log.Error("message processing failed", "whatsapp_id", msg.From, "error", err)
				}
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
