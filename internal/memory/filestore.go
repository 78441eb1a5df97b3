package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/arkanum/ai-server/internal/model/chat"
)

// FileStore implements Store with one JSON document per conversation under a
// data directory. Each conversation has its own lock so concurrent turns for
// the same user serialize while distinct conversations proceed independently.
type FileStore struct {
	dir       string
	retention int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFileStore prepares the data directory and returns a file-backed store.
func NewFileStore(dir string, retention int) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}
	return &FileStore{
		dir:       dir,
		retention: retention,
		locks:     make(map[string]*sync.Mutex),
	}, nil
}

func (s *FileStore) lock(conversationID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	mu, ok := s.locks[conversationID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[conversationID] = mu
	}
	return mu
}

func (s *FileStore) path(conversationID string) string {
	return filepath.Join(s.dir, "memory_"+safeName(conversationID)+".json")
}

// load reads the record for a conversation. A missing file yields an empty
// record; an unreadable or malformed file degrades to an empty record with a
// logged warning so a conversation never fails on history alone.
func (s *FileStore) load(conversationID string) *chat.Record {
	now := time.Now().UTC()

	data, err := os.ReadFile(s.path(conversationID))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[memory] %v", &StorageError{Op: "read", Err: err})
		}
		return chat.NewRecord(now)
	}

	var rec chat.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		log.Printf("[memory] %v", &StorageError{Op: "decode", Err: err})
		return chat.NewRecord(now)
	}
	rec.Normalize(now)
	return &rec
}

func (s *FileStore) save(conversationID string, rec *chat.Record) error {
	rec.Meta.LastUpdate = time.Now().UTC()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return &StorageError{Op: "encode", Err: err}
	}
	if err := os.WriteFile(s.path(conversationID), data, 0o644); err != nil {
		return &StorageError{Op: "write", Err: err}
	}
	return nil
}

// Append records a message and trims the log from the oldest end when the
// retention cap is exceeded.
func (s *FileStore) Append(_ context.Context, conversationID string, msg chat.Message) error {
	conversationID = Resolve(conversationID)
	mu := s.lock(conversationID)
	mu.Lock()
	defer mu.Unlock()

	rec := s.load(conversationID)
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	rec.Messages = append(rec.Messages, msg)
	rec.Messages = trim(rec.Messages, s.retention)
	return s.save(conversationID, rec)
}

// History returns the most recent limit messages, oldest first.
func (s *FileStore) History(_ context.Context, conversationID string, limit int) ([]chat.Message, error) {
	conversationID = Resolve(conversationID)
	mu := s.lock(conversationID)
	mu.Lock()
	defer mu.Unlock()

	return tail(s.load(conversationID).Messages, limit), nil
}

// Profile returns the current profile map.
func (s *FileStore) Profile(_ context.Context, conversationID string) (map[string]string, error) {
	conversationID = Resolve(conversationID)
	mu := s.lock(conversationID)
	mu.Lock()
	defer mu.Unlock()

	return s.load(conversationID).Profile, nil
}

// SetProfile overwrites one profile fact.
func (s *FileStore) SetProfile(_ context.Context, conversationID, key, value string) error {
	conversationID = Resolve(conversationID)
	mu := s.lock(conversationID)
	mu.Lock()
	defer mu.Unlock()

	rec := s.load(conversationID)
	rec.Profile[key] = value
	return s.save(conversationID, rec)
}

// Facts returns the long-term fact layer.
func (s *FileStore) Facts(_ context.Context, conversationID string) (map[string]chat.Fact, error) {
	conversationID = Resolve(conversationID)
	mu := s.lock(conversationID)
	mu.Lock()
	defer mu.Unlock()

	return s.load(conversationID).LongTerm, nil
}

// SetFact overwrites one long-term fact with a fresh extraction time.
func (s *FileStore) SetFact(_ context.Context, conversationID, key, value string) error {
	conversationID = Resolve(conversationID)
	mu := s.lock(conversationID)
	mu.Lock()
	defer mu.Unlock()

	rec := s.load(conversationID)
	rec.LongTerm[key] = chat.Fact{Value: value, ExtractedAt: time.Now().UTC()}
	return s.save(conversationID, rec)
}

// Clear removes the persisted document for a conversation.
func (s *FileStore) Clear(_ context.Context, conversationID string) error {
	conversationID = Resolve(conversationID)
	mu := s.lock(conversationID)
	mu.Lock()
	defer mu.Unlock()

	if err := os.Remove(s.path(conversationID)); err != nil && !os.IsNotExist(err) {
		return &StorageError{Op: "remove", Err: err}
	}
	return nil
}

// safeName maps an arbitrary conversation identifier onto a filesystem-safe
// name. Identifiers that needed rewriting get a hash suffix so distinct ids
// cannot collide on the sanitized form.
func safeName(conversationID string) string {
	var b strings.Builder
	changed := false
	for _, r := range conversationID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
			changed = true
		}
	}
	if !changed {
		return b.String()
	}
	h := fnv.New32a()
	h.Write([]byte(conversationID))
	return fmt.Sprintf("%s_%08x", b.String(), h.Sum32())
}
