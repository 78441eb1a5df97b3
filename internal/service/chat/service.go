package chat

import (
	"context"
	"log"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/arkanum/ai-server/internal/analysis/emotion"
	"github.com/arkanum/ai-server/internal/memory"
	chatmodel "github.com/arkanum/ai-server/internal/model/chat"
	"github.com/arkanum/ai-server/internal/service/ai"
)

// Service orchestrates one conversation turn: it assembles layered context
// from the memory store and the emotional tracker, runs the completion, and
// records the exchange only after the completion succeeded. An aborted or
// failed turn leaves no partial writes behind.
type Service struct {
	store         memory.Store
	ai            *ai.Service
	emotions      *emotion.Tracker
	contextWindow int
}

// NewService wires the orchestrator. contextWindow caps how many stored
// messages are included per turn, independent of the store retention cap.
func NewService(store memory.Store, aiSvc *ai.Service, emotions *emotion.Tracker, contextWindow int) *Service {
	return &Service{
		store:         store,
		ai:            aiSvc,
		emotions:      emotions,
		contextWindow: contextWindow,
	}
}

// StreamingEnabled reports whether streamed turns are available.
func (s *Service) StreamingEnabled() bool {
	return s.ai.StreamingEnabled()
}

// HandleTurn runs one full non-streaming turn and returns the response text.
func (s *Service) HandleTurn(ctx context.Context, conversationID, userText string) (string, error) {
	conversationID = memory.Resolve(conversationID)

	blocks := s.assemble(ctx, conversationID, userText)
	response, err := s.ai.GenerateResponse(ctx, conversationID, blocks, userText)
	if err != nil {
		return "", err
	}

	s.CompleteTurn(ctx, conversationID, userText, response.Content)
	return response.Content, nil
}

// OpenTurnStream starts a streaming turn. The caller consumes the fragment
// stream and, once it has the full response, commits the exchange with
// CompleteTurn. Nothing is recorded for streams abandoned mid-flight.
func (s *Service) OpenTurnStream(ctx context.Context, conversationID, userText string) (*schema.StreamReader[*schema.Message], error) {
	conversationID = memory.Resolve(conversationID)

	blocks := s.assemble(ctx, conversationID, userText)
	return s.ai.StreamResponse(ctx, blocks, userText)
}

// CompleteTurn records a finished exchange: profile and long-term facts are
// extracted from the user turn, then both messages are appended. Storage
// failures are operational warnings, never turn failures.
func (s *Service) CompleteTurn(ctx context.Context, conversationID, userText, responseText string) {
	conversationID = memory.Resolve(conversationID)

	for _, update := range memory.ExtractProfile(userText) {
		if err := s.store.SetProfile(ctx, conversationID, update.Key, update.Value); err != nil {
			log.Printf("[chat] profile update dropped: %v", err)
		}
	}
	for _, update := range memory.ExtractLongTerm(userText) {
		if err := s.store.SetFact(ctx, conversationID, update.Key, update.Value); err != nil {
			log.Printf("[chat] long-term fact dropped: %v", err)
		}
	}

	now := time.Now().UTC()
	userMsg := chatmodel.Message{
		ID:        uuid.NewString(),
		Role:      chatmodel.RoleUser,
		Content:   userText,
		CreatedAt: now,
	}
	if err := s.store.Append(ctx, conversationID, userMsg); err != nil {
		log.Printf("[chat] user message append failed: %v", err)
	}

	assistantMsg := chatmodel.Message{
		ID:        uuid.NewString(),
		Role:      chatmodel.RoleAssistant,
		Content:   responseText,
		CreatedAt: now,
	}
	if err := s.store.Append(ctx, conversationID, assistantMsg); err != nil {
		log.Printf("[chat] assistant message append failed: %v", err)
	}
}

// History returns the stored transcript for a conversation, oldest first.
func (s *Service) History(ctx context.Context, conversationID string) ([]chatmodel.Message, error) {
	return s.store.History(ctx, memory.Resolve(conversationID), 0)
}

// Reset clears all stored and tracked state for a conversation.
func (s *Service) Reset(ctx context.Context, conversationID string) error {
	conversationID = memory.Resolve(conversationID)
	s.emotions.Reset(conversationID)
	return s.store.Clear(ctx, conversationID)
}

// assemble gathers the layered context for one turn. Every layer degrades to
// empty rather than failing, so a turn proceeds with whatever context is
// available.
func (s *Service) assemble(ctx context.Context, conversationID, userText string) []*schema.Message {
	profile, err := s.store.Profile(ctx, conversationID)
	if err != nil {
		log.Printf("[chat] profile read degraded to empty: %v", err)
		profile = nil
	}

	facts, err := s.store.Facts(ctx, conversationID)
	if err != nil {
		log.Printf("[chat] long-term memory read degraded to empty: %v", err)
		facts = nil
	}

	history, err := s.store.History(ctx, conversationID, s.contextWindow)
	if err != nil {
		log.Printf("[chat] history read degraded to empty: %v", err)
		history = nil
	}

	state := s.emotions.Update(conversationID, userText)
	return ai.BuildContext(profile, facts, history, state)
}
