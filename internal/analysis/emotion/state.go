package emotion

import (
	"fmt"
	"strings"
)

// Mood classifies the latest user utterance.
type Mood string

const (
	MoodNeutral Mood = "neutral"
	MoodInquiry Mood = "inquiry"
	MoodFragile Mood = "fragile"
	MoodOpen    Mood = "open"
)

// Focus describes where the dialogue currently sits on the
// surface-to-existential axis, derived from depth alone.
type Focus string

const (
	FocusSurface     Focus = "surface"
	FocusBalanced    Focus = "balanced"
	FocusExistential Focus = "existential"
)

const (
	depthFloor = 0.2
	depthCeil  = 1.0

	deepStep    = 0.1
	shallowStep = 0.05
)

var deepWords = []string{
	"смысл", "зачем", "почему", "кто я", "предназначение",
	"истина", "реальность", "осознан", "существование",
}

var shallowWords = []string{
	"привет", "ок", "понятно", "да", "нет",
}

var fearWords = []string{"страх", "боюсь", "тревога"}

var joyWords = []string{"рад", "счаст", "люблю"}

// State is the emotional annotation attached to every outbound context.
// Depth is the only value that persists between turns; mood and focus are
// recomputed fully on each update.
type State struct {
	Mood  Mood
	Depth float64
	Focus Focus
}

// NewState returns the neutral starting state.
func NewState() State {
	return State{Mood: MoodNeutral, Depth: 0.5, Focus: FocusBalanced}
}

// Update adjusts depth from trigger words in text, then recomputes mood and
// focus. Empty text leaves the state untouched. Deep triggers take priority
// over shallow ones when both are present.
func (s *State) Update(text string) State {
	if text == "" {
		return *s
	}

	lowered := strings.ToLower(text)

	switch {
	case containsAny(lowered, deepWords):
		s.Depth = min(depthCeil, s.Depth+deepStep)
	case containsAny(lowered, shallowWords):
		s.Depth = max(depthFloor, s.Depth-shallowStep)
	}

	switch {
	case strings.Contains(text, "?"):
		s.Mood = MoodInquiry
	case containsAny(lowered, fearWords):
		s.Mood = MoodFragile
	case containsAny(lowered, joyWords):
		s.Mood = MoodOpen
	default:
		s.Mood = MoodNeutral
	}

	switch {
	case s.Depth > 0.75:
		s.Focus = FocusExistential
	case s.Depth < 0.35:
		s.Focus = FocusSurface
	default:
		s.Focus = FocusBalanced
	}

	return *s
}

// Render serializes the state as the content of a system block for the
// completion provider.
func (s State) Render() string {
	return fmt.Sprintf(
		"Emotional modulation layer active.\nMood: %s\nDepth: %.2f\nFocus: %s\nAdjust response tone and depth accordingly.",
		s.Mood, s.Depth, s.Focus,
	)
}

func containsAny(text string, words []string) bool {
	for _, word := range words {
		if strings.Contains(text, word) {
			return true
		}
	}
	return false
}
