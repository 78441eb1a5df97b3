package chat

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	chatservice "github.com/arkanum/ai-server/internal/service/chat"
	"github.com/arkanum/ai-server/internal/service/gigachat"
)

// Handler exposes the non-streaming chat surface.
type Handler struct {
	chatSvc *chatservice.Service
}

// New creates the chat handler.
func New(chatSvc *chatservice.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes mounts the chat endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Post("/chat_history", h.handleHistory)
	r.Post("/chat_reset", h.handleReset)
}

type chatRequest struct {
	Message string `json:"message"`
	ChatID  string `json:"chat_id"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload chatRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Message == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	response, err := h.chatSvc.HandleTurn(r.Context(), payload.ChatID, payload.Message)
	if err != nil {
		log.Printf("[chat] turn failed for conversation=%s: %v", payload.ChatID, err)
		respondError(w, providerStatus(err), "ai provider unavailable, try again")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"response": response})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	var payload chatRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	messages, err := h.chatSvc.History(r.Context(), payload.ChatID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	var payload chatRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.chatSvc.Reset(r.Context(), payload.ChatID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to reset conversation")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// providerStatus maps the error taxonomy onto transport statuses. Both
// credential and upstream failures are transient provider conditions the
// client may retry.
func providerStatus(err error) int {
	var credErr *gigachat.CredentialError
	if errors.As(err, &credErr) {
		return http.StatusServiceUnavailable
	}
	var upstreamErr *gigachat.UpstreamError
	if errors.As(err, &upstreamErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
