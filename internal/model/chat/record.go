package chat

import "time"

// Fact is a durable extracted fact. Re-extraction overwrites both the value
// and the timestamp; prior values are not kept.
type Fact struct {
	Value       string    `json:"value"`
	ExtractedAt time.Time `json:"timestamp"`
}

// Meta tracks record lifecycle timestamps.
type Meta struct {
	Created    time.Time `json:"created"`
	LastUpdate time.Time `json:"lastUpdate"`
}

// Record is the full persisted state of one conversation: the short-term
// message log, the profile map and the long-term fact layer. A missing or
// partially shaped prior document deserializes into zero values and is
// normalized by the store.
type Record struct {
	Messages []Message         `json:"messages"`
	Profile  map[string]string `json:"profile"`
	LongTerm map[string]Fact   `json:"long_term_memory"`
	Meta     Meta              `json:"meta"`
}

// NewRecord returns an empty record stamped with the current time.
func NewRecord(now time.Time) *Record {
	return &Record{
		Messages: make([]Message, 0, 16),
		Profile:  make(map[string]string),
		LongTerm: make(map[string]Fact),
		Meta:     Meta{Created: now, LastUpdate: now},
	}
}

// Normalize repairs nil collections after deserializing a partial document.
func (r *Record) Normalize(now time.Time) {
	if r.Messages == nil {
		r.Messages = make([]Message, 0, 16)
	}
	if r.Profile == nil {
		r.Profile = make(map[string]string)
	}
	if r.LongTerm == nil {
		r.LongTerm = make(map[string]Fact)
	}
	if r.Meta.Created.IsZero() {
		r.Meta.Created = now
	}
	if r.Meta.LastUpdate.IsZero() {
		r.Meta.LastUpdate = now
	}
}
