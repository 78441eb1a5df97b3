package stream

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/arkanum/ai-server/internal/analysis/emotion"
	"github.com/arkanum/ai-server/internal/memory"
	"github.com/arkanum/ai-server/internal/service/ai"
	"github.com/arkanum/ai-server/internal/service/chat"
	"github.com/arkanum/ai-server/internal/service/gigachat"
)

type stubModel struct {
	chunks []string
	err    error
}

var _ model.BaseChatModel = (*stubModel)(nil)

func (s *stubModel) Generate(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	return schema.AssistantMessage(strings.Join(s.chunks, ""), nil), nil
}

func (s *stubModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	if s.err != nil {
		return nil, s.err
	}

	sr, sw := schema.Pipe[*schema.Message](len(s.chunks))
	go func() {
		defer sw.Close()
		for _, chunk := range s.chunks {
			sw.Send(schema.AssistantMessage(chunk, nil), nil)
		}
	}()
	return sr, nil
}

func setupHandler(t *testing.T, stub *stubModel, streaming bool) (*Handler, *memory.MemStore) {
	t.Helper()

	store := memory.NewMemStore(100)
	aiSvc, err := ai.NewService(context.Background(), stub, streaming)
	if err != nil {
		t.Fatalf("ai.NewService err: %v", err)
	}
	chatSvc := chat.NewService(store, aiSvc, emotion.NewTracker(), 30)
	return New(chatSvc), store
}

func decodeEvents(t *testing.T, body string) []StreamResponse {
	t.Helper()

	var events []StreamResponse
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event StreamResponse
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			t.Fatalf("decode event %q: %v", line, err)
		}
		events = append(events, event)
	}
	return events
}

func TestStreamedTurnEmitsDeltasAndCommits(t *testing.T) {
	h, store := setupHandler(t, &stubModel{chunks: []string{"зд", "равствуй"}}, true)

	rec := httptest.NewRecorder()
	if err := h.HandleStreamRequest(context.Background(), rec, "conv", "привет"); err != nil {
		t.Fatalf("HandleStreamRequest err: %v", err)
	}

	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("unexpected content type %q", got)
	}

	events := decodeEvents(t, rec.Body.String())
	if len(events) < 4 {
		t.Fatalf("expected start/deltas/message/end, got %+v", events)
	}
	if events[0].Event != "start" {
		t.Fatalf("expected start event first, got %+v", events[0])
	}

	var deltas []string
	var finalMessage string
	for _, event := range events {
		switch event.Event {
		case "delta":
			deltas = append(deltas, event.Content)
		case "message":
			finalMessage = event.Content
		}
	}
	if strings.Join(deltas, "") != "здравствуй" {
		t.Fatalf("unexpected deltas %v", deltas)
	}
	if finalMessage != "здравствуй" {
		t.Fatalf("unexpected final message %q", finalMessage)
	}
	if events[len(events)-1].Event != "end" || !events[len(events)-1].Finished {
		t.Fatalf("expected finished end event, got %+v", events[len(events)-1])
	}

	messages, _ := store.History(context.Background(), "conv", 0)
	if len(messages) != 2 {
		t.Fatalf("expected committed exchange, got %d messages", len(messages))
	}
}

func TestNonStreamingFallbackEmitsSingleMessage(t *testing.T) {
	h, store := setupHandler(t, &stubModel{chunks: []string{"здравствуй"}}, false)

	rec := httptest.NewRecorder()
	if err := h.HandleStreamRequest(context.Background(), rec, "conv", "привет"); err != nil {
		t.Fatalf("HandleStreamRequest err: %v", err)
	}

	events := decodeEvents(t, rec.Body.String())
	var messageCount, deltaCount int
	for _, event := range events {
		switch event.Event {
		case "message":
			messageCount++
		case "delta":
			deltaCount++
		}
	}
	if messageCount != 1 || deltaCount != 0 {
		t.Fatalf("expected one message and no deltas, got %+v", events)
	}

	messages, _ := store.History(context.Background(), "conv", 0)
	if len(messages) != 2 {
		t.Fatalf("expected exactly one committed exchange, got %d messages", len(messages))
	}
}

func TestProviderFailureEmitsErrorEventAndWritesNothing(t *testing.T) {
	h, store := setupHandler(t, &stubModel{err: &gigachat.UpstreamError{Status: 500, Body: "boom"}}, true)

	rec := httptest.NewRecorder()
	if err := h.HandleStreamRequest(context.Background(), rec, "conv", "привет"); err == nil {
		t.Fatal("expected error from failed stream")
	}

	events := decodeEvents(t, rec.Body.String())
	sawError := false
	for _, event := range events {
		if event.Event == "error" {
			sawError = true
		}
	}
	if !sawError {
		t.Fatalf("expected error event, got %+v", events)
	}

	messages, _ := store.History(context.Background(), "conv", 0)
	if len(messages) != 0 {
		t.Fatalf("failed turn must not append messages, got %d", len(messages))
	}
}
