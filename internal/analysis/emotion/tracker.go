package emotion

import "sync"

// Tracker keeps one evolving State per conversation for the lifetime of the
// process. Depth is not persisted across restarts.
type Tracker struct {
	mu     sync.Mutex
	states map[string]*State
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{states: make(map[string]*State)}
}

// Update applies the latest user utterance to the conversation's state and
// returns the resulting snapshot.
func (t *Tracker) Update(conversationID, text string) State {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.states[conversationID]
	if !ok {
		initial := NewState()
		state = &initial
		t.states[conversationID] = state
	}
	return state.Update(text)
}

// Reset discards the tracked state for a conversation.
func (t *Tracker) Reset(conversationID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.states, conversationID)
}
