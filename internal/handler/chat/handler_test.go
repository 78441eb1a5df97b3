package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"

	"github.com/arkanum/ai-server/internal/analysis/emotion"
	"github.com/arkanum/ai-server/internal/memory"
	"github.com/arkanum/ai-server/internal/service/ai"
	"github.com/arkanum/ai-server/internal/service/chat"
	"github.com/arkanum/ai-server/internal/service/gigachat"
)

type stubModel struct {
	reply string
	err   error
}

var _ model.BaseChatModel = (*stubModel)(nil)

func (s *stubModel) Generate(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	return schema.AssistantMessage(s.reply, nil), nil
}

func (s *stubModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, s.err
}

func setupRouter(t *testing.T, stub *stubModel) *chi.Mux {
	t.Helper()

	store := memory.NewMemStore(100)
	aiSvc, err := ai.NewService(context.Background(), stub, false)
	if err != nil {
		t.Fatalf("ai.NewService err: %v", err)
	}
	chatSvc := chat.NewService(store, aiSvc, emotion.NewTracker(), 30)

	r := chi.NewRouter()
	New(chatSvc).RegisterRoutes(r)
	return r
}

func postJSON(t *testing.T, r http.Handler, path string, body map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestChatReturnsResponse(t *testing.T) {
	r := setupRouter(t, &stubModel{reply: "здравствуй"})

	resp := postJSON(t, r, "/chat", map[string]string{"message": "привет", "chat_id": "conv"})

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var decoded map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if decoded["response"] != "здравствуй" {
		t.Fatalf("got %q", decoded["response"])
	}
}

func TestChatMissingMessage(t *testing.T) {
	r := setupRouter(t, &stubModel{reply: "здравствуй"})

	resp := postJSON(t, r, "/chat", map[string]string{"chat_id": "conv"})

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestChatProviderFailure(t *testing.T) {
	r := setupRouter(t, &stubModel{err: &gigachat.UpstreamError{Status: 500, Body: "boom"}})

	resp := postJSON(t, r, "/chat", map[string]string{"message": "привет", "chat_id": "conv"})

	if resp.Code != http.StatusBadGateway && resp.Code != http.StatusServiceUnavailable && resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected provider failure status, got %d", resp.Code)
	}

	var decoded map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if decoded["error"] == "" {
		t.Fatal("expected error envelope")
	}
}

func TestChatHistoryRoundTrip(t *testing.T) {
	r := setupRouter(t, &stubModel{reply: "здравствуй"})

	if resp := postJSON(t, r, "/chat", map[string]string{"message": "привет", "chat_id": "conv"}); resp.Code != http.StatusOK {
		t.Fatalf("chat failed with %d", resp.Code)
	}

	resp := postJSON(t, r, "/chat_history", map[string]string{"chat_id": "conv"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var decoded struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(decoded.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(decoded.Messages))
	}
	if decoded.Messages[0].Role != "user" || decoded.Messages[1].Role != "assistant" {
		t.Fatalf("unexpected roles %+v", decoded.Messages)
	}
}

func TestChatResetClearsHistory(t *testing.T) {
	r := setupRouter(t, &stubModel{reply: "здравствуй"})

	if resp := postJSON(t, r, "/chat", map[string]string{"message": "привет", "chat_id": "conv"}); resp.Code != http.StatusOK {
		t.Fatalf("chat failed with %d", resp.Code)
	}
	if resp := postJSON(t, r, "/chat_reset", map[string]string{"chat_id": "conv"}); resp.Code != http.StatusOK {
		t.Fatalf("reset failed with %d", resp.Code)
	}

	resp := postJSON(t, r, "/chat_history", map[string]string{"chat_id": "conv"})
	var decoded struct {
		Messages []json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(decoded.Messages) != 0 {
		t.Fatalf("expected empty history after reset, got %d", len(decoded.Messages))
	}
}
