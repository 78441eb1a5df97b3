package memory_test

import (
	"testing"

	"github.com/arkanum/ai-server/internal/memory"
)

func findUpdate(updates []memory.Extraction, key string) (string, bool) {
	for _, update := range updates {
		if update.Key == key {
			return update.Value, true
		}
	}
	return "", false
}

func TestExtractProfileRussianName(t *testing.T) {
	updates := memory.ExtractProfile("меня зовут Аня")

	value, ok := findUpdate(updates, "name")
	if !ok {
		t.Fatal("expected name extraction")
	}
	if value != "Аня" {
		t.Fatalf("got %q want %q", value, "Аня")
	}
}

func TestExtractLongTermRussianName(t *testing.T) {
	updates := memory.ExtractLongTerm("меня зовут Аня")

	value, ok := findUpdate(updates, "user_name")
	if !ok {
		t.Fatal("expected user_name extraction")
	}
	if value != "Аня" {
		t.Fatalf("got %q want %q", value, "Аня")
	}
}

func TestExtractProfileTable(t *testing.T) {
	cases := []struct {
		name  string
		text  string
		key   string
		value string
	}{
		{"english name", "My name is Bob", "name", "Bob"},
		{"case insensitive trigger", "MY NAME IS BOB", "name", "BOB"},
		{"interest russian", "мне нравится музыка", "interest", "музыка"},
		{"interest english", "I like long walks", "interest", "long walks"},
		{"job russian", "я работаю врачом", "job", "врачом"},
		{"job english", "i work as a dj", "job", "a dj"},
		{"mid sentence match", "ну так вот, меня зовут Оля!", "name", "Оля!"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			value, ok := findUpdate(memory.ExtractProfile(tc.text), tc.key)
			if !ok {
				t.Fatalf("expected %s extraction from %q", tc.key, tc.text)
			}
			if value != tc.value {
				t.Fatalf("got %q want %q", value, tc.value)
			}
		})
	}
}

func TestExtractFirstTriggerWinsPerKey(t *testing.T) {
	// Both phrasings present: the higher-priority Russian trigger wins and
	// the remainder of the sentence becomes the value verbatim.
	updates := memory.ExtractProfile("меня зовут Аня, my name is Anna")

	value, ok := findUpdate(updates, "name")
	if !ok {
		t.Fatal("expected name extraction")
	}
	if value != "Аня, my name is Anna" {
		t.Fatalf("got %q", value)
	}
	if len(updates) != 1 {
		t.Fatalf("expected a single name update, got %d", len(updates))
	}
}

func TestExtractMultipleKeysFromOneUtterance(t *testing.T) {
	updates := memory.ExtractProfile("my name is Bob and i like jazz")

	if _, ok := findUpdate(updates, "name"); !ok {
		t.Fatal("expected name extraction")
	}
	if value, ok := findUpdate(updates, "interest"); !ok || value != "jazz" {
		t.Fatalf("expected interest extraction, got %q ok=%v", value, ok)
	}
}

func TestExtractTriggerOnlyInputYieldsEmptyValue(t *testing.T) {
	updates := memory.ExtractProfile("меня зовут")

	value, ok := findUpdate(updates, "name")
	if !ok {
		t.Fatal("expected name extraction even with empty value")
	}
	if value != "" {
		t.Fatalf("expected empty value, got %q", value)
	}
}

func TestExtractNoTriggersNoUpdates(t *testing.T) {
	if updates := memory.ExtractProfile("просто сообщение без фактов"); len(updates) != 0 {
		t.Fatalf("expected no updates, got %+v", updates)
	}
	if updates := memory.ExtractLongTerm("another plain message"); len(updates) != 0 {
		t.Fatalf("expected no updates, got %+v", updates)
	}
}

func TestExtractLongTermGoal(t *testing.T) {
	value, ok := findUpdate(memory.ExtractLongTerm("моя цель выучить Go"), "user_goal")
	if !ok || value != "выучить Go" {
		t.Fatalf("expected goal extraction, got %q ok=%v", value, ok)
	}

	value, ok = findUpdate(memory.ExtractLongTerm("my goal is to ship"), "user_goal")
	if !ok || value != "to ship" {
		t.Fatalf("expected goal extraction, got %q ok=%v", value, ok)
	}
}
