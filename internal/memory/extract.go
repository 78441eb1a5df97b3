package memory

import "strings"

// Extraction is one key/value update produced by scanning user input.
type Extraction struct {
	Key   string
	Value string
}

// extractRule binds a fact key to its trigger phrases. Triggers are checked
// in order and the first match wins for that key; the value is everything
// after the trigger phrase, trimmed. Matching is deliberately crude substring
// matching: the trigger list and its priority order are contract, not an
// implementation detail to improve on.
type extractRule struct {
	key      string
	triggers []string
}

var profileRules = []extractRule{
	{key: "name", triggers: []string{"меня зовут", "my name is"}},
	{key: "interest", triggers: []string{"мне нравится", "i like"}},
	{key: "job", triggers: []string{"я работаю", "i work as"}},
}

var longTermRules = []extractRule{
	{key: "user_name", triggers: []string{"меня зовут", "my name is"}},
	{key: "user_goal", triggers: []string{"моя цель", "my goal is"}},
}

// ExtractProfile derives profile updates from free-form user input.
func ExtractProfile(text string) []Extraction {
	return applyRules(profileRules, text)
}

// ExtractLongTerm derives durable fact updates from free-form user input.
func ExtractLongTerm(text string) []Extraction {
	return applyRules(longTermRules, text)
}

func applyRules(rules []extractRule, text string) []Extraction {
	lowered := strings.ToLower(text)

	var updates []Extraction
	for _, rule := range rules {
		for _, trigger := range rule.triggers {
			idx := strings.Index(lowered, trigger)
			if idx < 0 {
				continue
			}
			// Slice the original text at the byte offset found in the
			// lowercase form; for the Latin and Cyrillic triggers in use
			// lowercasing preserves byte offsets.
			value := strings.TrimSpace(text[idx+len(trigger):])
			updates = append(updates, Extraction{Key: rule.key, Value: value})
			break
		}
	}
	return updates
}
