package memory

import (
	"context"
	"fmt"

	"github.com/arkanum/ai-server/internal/model/chat"
)

// DefaultConversation is the partition used when the caller supplies no
// conversation identifier.
const DefaultConversation = "default"

// StorageError wraps a read or write failure against the backing store.
// It is recoverable by design: reads degrade to empty state and writes are
// surfaced as operational warnings, so a turn never fails on storage alone.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("memory storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Store persists per-conversation state: the append-only message log, the
// profile map and the long-term fact layer. Implementations serialize
// concurrent operations on the same conversation identifier so appends are
// never interleaved.
type Store interface {
	// Append records a message. The store trims the log from the oldest end
	// once it exceeds the configured retention cap.
	Append(ctx context.Context, conversationID string, msg chat.Message) error

	// History returns up to limit of the most recent messages in ascending
	// chronological order. limit <= 0 means no caller-side cap; the store
	// retention cap still applies silently. Read failures degrade to an
	// empty slice with a logged warning, never an error.
	History(ctx context.Context, conversationID string, limit int) ([]chat.Message, error)

	// Profile returns the current profile map. Read failures degrade to an
	// empty map.
	Profile(ctx context.Context, conversationID string) (map[string]string, error)

	// SetProfile overwrites a profile fact. Last write wins, no history.
	SetProfile(ctx context.Context, conversationID, key, value string) error

	// Facts returns the long-term fact layer. Read failures degrade to an
	// empty map.
	Facts(ctx context.Context, conversationID string) (map[string]chat.Fact, error)

	// SetFact overwrites a long-term fact, refreshing its extraction time.
	SetFact(ctx context.Context, conversationID, key, value string) error

	// Clear discards all state for a conversation.
	Clear(ctx context.Context, conversationID string) error
}

// Resolve maps an absent identifier onto the default partition.
func Resolve(conversationID string) string {
	if conversationID == "" {
		return DefaultConversation
	}
	return conversationID
}
