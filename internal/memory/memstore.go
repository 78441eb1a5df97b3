package memory

import (
	"context"
	"sync"
	"time"

	"github.com/arkanum/ai-server/internal/model/chat"
)

// MemStore implements Store with in-process maps. It backs tests and
// deployments that run without a data directory.
type MemStore struct {
	retention int

	mu      sync.Mutex
	records map[string]*chat.Record
}

// NewMemStore returns an empty in-memory store. retention caps the message
// log per conversation; zero or negative means unbounded.
func NewMemStore(retention int) *MemStore {
	return &MemStore{
		retention: retention,
		records:   make(map[string]*chat.Record),
	}
}

func (s *MemStore) record(conversationID string) *chat.Record {
	id := Resolve(conversationID)
	rec, ok := s.records[id]
	if !ok {
		rec = chat.NewRecord(time.Now().UTC())
		s.records[id] = rec
	}
	return rec
}

// Append records a message and trims the log from the oldest end when the
// retention cap is exceeded.
func (s *MemStore) Append(_ context.Context, conversationID string, msg chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.record(conversationID)
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	rec.Messages = append(rec.Messages, msg)
	rec.Messages = trim(rec.Messages, s.retention)
	rec.Meta.LastUpdate = time.Now().UTC()
	return nil
}

// History returns the most recent limit messages, oldest first.
func (s *MemStore) History(_ context.Context, conversationID string, limit int) ([]chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := s.record(conversationID).Messages
	return tail(messages, limit), nil
}

// Profile returns a copy of the profile map.
func (s *MemStore) Profile(_ context.Context, conversationID string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile := s.record(conversationID).Profile
	copied := make(map[string]string, len(profile))
	for k, v := range profile {
		copied[k] = v
	}
	return copied, nil
}

// SetProfile overwrites one profile fact.
func (s *MemStore) SetProfile(_ context.Context, conversationID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.record(conversationID)
	rec.Profile[key] = value
	rec.Meta.LastUpdate = time.Now().UTC()
	return nil
}

// Facts returns a copy of the long-term fact layer.
func (s *MemStore) Facts(_ context.Context, conversationID string) (map[string]chat.Fact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	facts := s.record(conversationID).LongTerm
	copied := make(map[string]chat.Fact, len(facts))
	for k, v := range facts {
		copied[k] = v
	}
	return copied, nil
}

// SetFact overwrites one long-term fact with a fresh extraction time.
func (s *MemStore) SetFact(_ context.Context, conversationID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.record(conversationID)
	rec.LongTerm[key] = chat.Fact{Value: value, ExtractedAt: time.Now().UTC()}
	rec.Meta.LastUpdate = time.Now().UTC()
	return nil
}

// Clear discards all state for a conversation.
func (s *MemStore) Clear(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, Resolve(conversationID))
	return nil
}

// trim drops messages from the oldest end once the cap is exceeded.
func trim(messages []chat.Message, cap int) []chat.Message {
	if cap > 0 && len(messages) > cap {
		trimmed := make([]chat.Message, cap)
		copy(trimmed, messages[len(messages)-cap:])
		return trimmed
	}
	return messages
}

// tail returns the last limit messages in their stored order.
func tail(messages []chat.Message, limit int) []chat.Message {
	start := 0
	if limit > 0 && len(messages) > limit {
		start = len(messages) - limit
	}
	copied := make([]chat.Message, len(messages)-start)
	copy(copied, messages[start:])
	return copied
}
