package persona

import "testing"

func TestSuggestionsFallsBackToDefault(t *testing.T) {
	store := NewMemoryStore(Seed())

	if got := Suggestions(store, "scientific"); len(got) == 0 || got[0] != "Summarize this theory" {
		t.Fatalf("unexpected scientific suggestions %v", got)
	}
	if got := Suggestions(store, "unknown"); len(got) == 0 || got[0] != "Help me understand this" {
		t.Fatalf("expected default suggestions, got %v", got)
	}
	if got := Suggestions(NewMemoryStore(nil), "code"); got != nil {
		t.Fatalf("expected nil for empty store, got %v", got)
	}
}
