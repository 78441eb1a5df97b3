package ws

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/arkanum/ai-server/internal/memory"
	chatservice "github.com/arkanum/ai-server/internal/service/chat"
)

// Handler delivers completion fragments over a websocket connection. One
// connection serves one conversation and accepts any number of sequential
// turns.
type Handler struct {
	chatSvc  *chatservice.Service
	upgrader websocket.Upgrader
}

// New creates the websocket handler.
func New(chatSvc *chatservice.Service) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the websocket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/chat/{conversationID}", h.handleWebSocket)
}

type inboundMessage struct {
	Message string `json:"message"`
}

type outgoingMessage struct {
	Type           string `json:"type"`
	Content        string `json:"content,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	Error          string `json:"error,omitempty"`
	Timestamp      int64  `json:"timestamp"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conversationID := memory.Resolve(chi.URLParam(r, "conversationID"))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[ws] connection opened for conversation=%s", conversationID)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[ws] connection lost for conversation=%s: %v", conversationID, err)
			}
			return
		}

		if inbound.Message == "" {
			h.send(conn, outgoingMessage{Type: "error", Error: "message is required", ConversationID: conversationID})
			continue
		}

		if err := h.runTurn(r.Context(), conn, conversationID, inbound.Message); err != nil {
			h.send(conn, outgoingMessage{Type: "error", Error: "ai provider unavailable, try again", ConversationID: conversationID})
		}
	}
}

// runTurn streams one completion over the connection and commits the
// exchange once the stream finished cleanly.
func (h *Handler) runTurn(ctx context.Context, conn *websocket.Conn, conversationID, userMessage string) error {
	if !h.chatSvc.StreamingEnabled() {
		responseText, err := h.chatSvc.HandleTurn(ctx, conversationID, userMessage)
		if err != nil {
			return err
		}
		h.send(conn, outgoingMessage{Type: "message", Content: responseText, ConversationID: conversationID})
		h.send(conn, outgoingMessage{Type: "end", ConversationID: conversationID})
		return nil
	}

	stream, err := h.chatSvc.OpenTurnStream(ctx, conversationID, userMessage)
	if err != nil {
		return err
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return recvErr
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}

		chunks = append(chunks, chunk)
		h.send(conn, outgoingMessage{Type: "delta", Content: chunk.Content, ConversationID: conversationID})
	}

	response, err := schema.ConcatMessages(chunks)
	if err != nil {
		return err
	}

	h.chatSvc.CompleteTurn(ctx, conversationID, userMessage, response.Content)
	h.send(conn, outgoingMessage{Type: "message", Content: response.Content, ConversationID: conversationID})
	h.send(conn, outgoingMessage{Type: "end", ConversationID: conversationID})
	return nil
}

func (h *Handler) send(conn *websocket.Conn, msg outgoingMessage) {
	msg.Timestamp = time.Now().UnixMilli()
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("[ws] write failed: %v", err)
	}
}
