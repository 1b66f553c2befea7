package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/wappstudy/wappstudy-backend/internal/pkg/logger"
)

type recordedMessage struct {
	WhatsappID  string
	ProfileName string
	Text        string
}

type fakeOrchestrator struct {
	messages []recordedMessage
}

func (f *fakeOrchestrator) ProcessUserMessage(ctx context.Context, whatsappID string, profileName string, text string) error {
	f.messages = append(f.messages, recordedMessage{WhatsappID: whatsappID, ProfileName: profileName, Text: text})
	return nil
}

func webhookRouter(t *testing.T, orchestrator *fakeOrchestrator) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	h := NewWebhookHandler(log, "secret-token", orchestrator)
	r := gin.New()
	r.GET("/webhook", h.Verify)
	r.POST("/webhook", h.Receive)
	return r
}

func TestWebhookVerify(t *testing.T) {
	r := webhookRouter(t, &fakeOrchestrator{})

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "valid subscription",
			query:      "hub.mode=subscribe&hub.verify_token=secret-token&hub.challenge=12345",
			wantStatus: http.StatusOK,
			wantBody:   "12345",
		},
		{
			name:       "wrong token",
			query:      "hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "wrong mode",
			query:      "hub.mode=unsubscribe&hub.verify_token=secret-token&hub.challenge=12345",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "missing token",
			query:      "hub.mode=subscribe&hub.challenge=12345",
			wantStatus: http.StatusForbidden,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/webhook?"+tc.query, nil)
			r.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			if tc.wantBody != "" && w.Body.String() != tc.wantBody {
				t.Fatalf("body = %q, want %q", w.Body.String(), tc.wantBody)
			}
		})
	}
}

func TestWebhookReceiveTextMessage(t *testing.T) {
	orchestrator := &fakeOrchestrator{}
	r := webhookRouter(t, orchestrator)

	payload := `{
		"entry": [{
			"changes": [{
				"value": {
					"metadata": {"phone_number_id": "1234567890"},
					"contacts": [{"wa_id": "27821234567", "profile": {"name": "Thandi"}}],
					"messages": [{"from": "27821234567", "type": "text", "text": {"body": "continue"}}]
				}
			}]
		}]
	}`

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(orchestrator.messages) != 1 {
		t.Fatalf("dispatched %d messages, want 1", len(orchestrator.messages))
	}
	got := orchestrator.messages[0]
	if got.WhatsappID != "27821234567" || got.ProfileName != "Thandi" || got.Text != "continue" {
		t.Fatalf("dispatched %+v", got)
	}
}

func TestWebhookReceiveInteractiveReply(t *testing.T) {
	orchestrator := &fakeOrchestrator{}
	r := webhookRouter(t, orchestrator)

	payload := `{
		"entry": [{
			"changes": [{
				"value": {
					"metadata": {"phone_number_id": "1234567890"},
					"contacts": [{"wa_id": "27821234567", "profile": {"name": "Thandi"}}],
					"messages": [{
						"from": "27821234567",
						"type": "interactive",
						"interactive": {"type": "button_reply", "button_reply": {"id": "module", "title": "Module"}}
					}]
				}
			}]
		}]
	}`

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(orchestrator.messages) != 1 {
		t.Fatalf("dispatched %d messages, want 1", len(orchestrator.messages))
	}
	if orchestrator.messages[0].Text != "module" {
		t.Fatalf("interactive reply text = %q, want button reply ID", orchestrator.messages[0].Text)
	}
}

func TestWebhookReceiveListReplyUsesRowID(t *testing.T) {
	orchestrator := &fakeOrchestrator{}
	r := webhookRouter(t, orchestrator)

	payload := `{
		"entry": [{
			"changes": [{
				"value": {
					"metadata": {"phone_number_id": "1234567890"},
					"contacts": [{"wa_id": "27821234567", "profile": {"name": "Thandi"}}],
					"messages": [{
						"from": "27821234567",
						"type": "interactive",
						"interactive": {"type": "list_reply", "list_reply": {"id": "2", "title": "Intro to SQL"}}
					}]
				}
			}]
		}]
	}`

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(orchestrator.messages) != 1 {
		t.Fatalf("dispatched %d messages, want 1", len(orchestrator.messages))
	}
	if orchestrator.messages[0].Text != "2" {
		t.Fatalf("list reply text = %q, want the row ID", orchestrator.messages[0].Text)
	}
}

func TestWebhookReceiveStatusUpdateOnly(t *testing.T) {
	orchestrator := &fakeOrchestrator{}
	r := webhookRouter(t, orchestrator)

	payload := `{
		"entry": [{
			"changes": [{
				"value": {
					"metadata": {"phone_number_id": "1234567890"},
					"statuses": [{"id": "wamid.X", "status": "delivered"}]
				}
			}]
		}]
	}`

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(orchestrator.messages) != 0 {
		t.Fatalf("status update dispatched %d messages, want 0", len(orchestrator.messages))
	}
}

func TestWebhookReceiveMalformedPayloadStill200(t *testing.T) {
	orchestrator := &fakeOrchestrator{}
	r := webhookRouter(t, orchestrator)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(orchestrator.messages) != 0 {
		t.Fatalf("malformed payload dispatched messages")
	}
}
