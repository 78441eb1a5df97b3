package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/cloudwego/eino/schema"

	chatservice "github.com/arkanum/ai-server/internal/service/chat"
	"github.com/arkanum/ai-server/pkg/utils"
)

// Handler delivers completion fragments over Server-Sent Events.
type Handler struct {
	chatSvc *chatservice.Service
}

// New creates a new stream handler.
func New(chatSvc *chatservice.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// StreamResponse is one SSE payload.
type StreamResponse struct {
	Event          string `json:"event"`
	Content        string `json:"content,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	Finished       bool   `json:"finished,omitempty"`
	Error          string `json:"error,omitempty"`
}

// HandleStreamRequest runs one streamed turn for a conversation. The
// exchange is committed to memory only after the stream finished cleanly; a
// client that disconnects mid-stream leaves no trace in the transcript.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, conversationID, userMessage string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)

	h.sendSSE(w, flusher, StreamResponse{
		Event:          "start",
		ConversationID: conversationID,
	})

	response, committed, err := h.dispatchResponse(ctx, w, flusher, conversationID, userMessage)
	if err != nil {
		h.sendSSEError(w, flusher, "ai provider unavailable, try again")
		return err
	}

	if !committed {
		h.chatSvc.CompleteTurn(ctx, conversationID, userMessage, response.Content)
	}

	h.sendSSE(w, flusher, StreamResponse{
		Event:          "end",
		ConversationID: conversationID,
		Finished:       true,
	})

	log.Printf("[stream] completed response for conversation=%s", conversationID)
	return nil
}

// dispatchResponse streams when the provider allows it and otherwise falls
// back to a single non-streamed completion event. The returned flag reports
// whether the exchange was already committed to memory.
func (h *Handler) dispatchResponse(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, conversationID, userMessage string) (*schema.Message, bool, error) {
	if h.chatSvc.StreamingEnabled() {
		response, err := h.streamResponse(ctx, w, flusher, conversationID, userMessage)
		return response, false, err
	}

	responseText, err := h.chatSvc.HandleTurn(ctx, conversationID, userMessage)
	if err != nil {
		return nil, false, err
	}

	response := schema.AssistantMessage(responseText, nil)
	h.sendSSE(w, flusher, StreamResponse{
		Event:          "message",
		ConversationID: conversationID,
		Content:        response.Content,
	})

	return response, true, nil
}

func (h *Handler) streamResponse(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, conversationID, userMessage string) (*schema.Message, error) {
	stream, err := h.chatSvc.OpenTurnStream(ctx, conversationID, userMessage)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)

	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return nil, recvErr
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if chunk.Content != "" {
			h.sendSSE(w, flusher, StreamResponse{
				Event:          "delta",
				ConversationID: conversationID,
				Content:        chunk.Content,
			})
		}
	}

	response, err := schema.ConcatMessages(chunks)
	if err != nil {
		return nil, err
	}

	h.sendSSE(w, flusher, StreamResponse{
		Event:          "message",
		ConversationID: conversationID,
		Content:        response.Content,
	})

	return response, nil
}

func (h *Handler) sendSSE(w http.ResponseWriter, flusher http.Flusher, response StreamResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		log.Printf("failed to marshal SSE response: %v", err)
		return
	}

	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

func (h *Handler) sendSSEError(w http.ResponseWriter, flusher http.Flusher, errorMsg string) {
	h.sendSSE(w, flusher, StreamResponse{
		Event: "error",
		Error: errorMsg,
	})
}
