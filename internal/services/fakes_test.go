package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/wappstudy/wappstudy-backend/internal/clients/whatsapp"
	"github.com/wappstudy/wappstudy-backend/internal/pkg/logger"
)

func testLogger(tb testing.TB) *logger.Logger {
	tb.Helper()
	log, err := logger.New("test")
	if err != nil {
		tb.Fatalf("logger: %v", err)
	}
	return log
}

// fakeAI returns canned payloads so AI-dependent paths are deterministic.
type fakeAI struct {
	jsonOut map[string]any
	jsonErr error
	textOut string
	textErr error

	mu        sync.Mutex
	jsonCalls int
	textCalls int
}

func (f *fakeAI) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	f.mu.Lock()
	f.jsonCalls++
	f.mu.Unlock()
	if f.jsonErr != nil {
		return nil, f.jsonErr
	}
	return f.jsonOut, nil
}

func (f *fakeAI) GenerateText(ctx context.Context, system, user string) (string, error) {
	f.mu.Lock()
	f.textCalls++
	f.mu.Unlock()
	if f.textErr != nil {
		return "", f.textErr
	}
	return f.textOut, nil
}

// fakeWhatsApp records outbound messages in order.
type fakeWhatsApp struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeWhatsApp) record(body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, body)
}

func (f *fakeWhatsApp) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.messages))
	copy(out, f.messages)
	return out
}

func (f *fakeWhatsApp) SendText(ctx context.Context, to string, body string) (*whatsapp.SendResult, error) {
	f.record(body)
	return &whatsapp.SendResult{MessageID: fmt.Sprintf("wamid.%d", len(f.messages))}, nil
}

func (f *fakeWhatsApp) SendDocument(ctx context.Context, to string, link string, filename string, caption string) (*whatsapp.SendResult, error) {
	f.record("document:" + link)
	return &whatsapp.SendResult{MessageID: "wamid.doc"}, nil
}

func (f *fakeWhatsApp) SendImages(ctx context.Context, to string, images []whatsapp.Image) error {
	for _, img := range images {
		f.record(fmt.Sprintf("image:%s|%s", img.URL, img.Caption))
	}
	return nil
}

func (f *fakeWhatsApp) SendInteractiveButtons(ctx context.Context, to string, body string, buttons []whatsapp.Button) (*whatsapp.SendResult, error) {
	f.record(body)
	return &whatsapp.SendResult{MessageID: "wamid.btn"}, nil
}

func (f *fakeWhatsApp) SendInteractiveList(ctx context.Context, to string, req whatsapp.ListRequest) (*whatsapp.SendResult, error) {
	f.record(req.Body)
	for _, row := range req.Rows {
		f.record(fmt.Sprintf("row:%s|%s", row.ID, row.Title))
	}
	return &whatsapp.SendResult{MessageID: "wamid.list"}, nil
}
