package ai

import (
	"sort"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/arkanum/ai-server/internal/analysis/emotion"
	"github.com/arkanum/ai-server/internal/model/chat"
)

// BuildContext composes the context blocks preceding the live user turn, in
// load-bearing order: profile summary, long-term facts, stored history
// (oldest first), then the emotional-state annotation. Empty profile and
// fact layers are omitted entirely rather than rendered blank.
func BuildContext(profile map[string]string, facts map[string]chat.Fact, history []chat.Message, state emotion.State) []*schema.Message {
	blocks := make([]*schema.Message, 0, len(history)+3)

	if len(profile) > 0 {
		blocks = append(blocks, schema.SystemMessage(renderProfile(profile)))
	}

	if len(facts) > 0 {
		blocks = append(blocks, schema.SystemMessage(renderFacts(facts)))
	}

	for _, msg := range history {
		switch msg.Role {
		case chat.RoleUser:
			blocks = append(blocks, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			blocks = append(blocks, schema.AssistantMessage(msg.Content, nil))
		case chat.RoleSystem:
			blocks = append(blocks, schema.SystemMessage(msg.Content))
		}
	}

	blocks = append(blocks, schema.SystemMessage(state.Render()))
	return blocks
}

func renderProfile(profile map[string]string) string {
	var b strings.Builder
	b.WriteString("User profile:\n")
	for _, key := range sortedKeys(profile) {
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(profile[key])
		b.WriteString("\n")
	}
	return b.String()
}

// renderFacts writes key and value only; extraction timestamps stay internal.
func renderFacts(facts map[string]chat.Fact) string {
	keys := make([]string, 0, len(facts))
	for key := range facts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("Long-term memory:\n")
	for _, key := range keys {
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(facts[key].Value)
		b.WriteString("\n")
	}
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
