package chat

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestSenderReadsLegacyValue(t *testing.T) {
	var msgs []Message
	raw := `[{"id":"1","text":"hi","sender":"user","timestamp":"10:00"},{"id":"2","text":"hello","sender":"ai","timestamp":"10:01"}]`
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		t.Fatalf("unmarshal err: %v", err)
	}
	if msgs[0].Sender != SenderUser || msgs[1].Sender != SenderAssistant {
		t.Fatalf("unexpected senders %q %q", msgs[0].Sender, msgs[1].Sender)
	}

	out, _ := json.Marshal(msgs[1])
	if string(out) != `{"id":"2","text":"hello","sender":"assistant","timestamp":"10:01"}` {
		t.Fatalf("unexpected encoding %s", out)
	}
}

func TestToHistory(t *testing.T) {
	msgs := []Message{
		{ID: "g", Text: "Systems Link Established.", Sender: SenderAssistant},
		{ID: "u", Text: "Hello", Sender: SenderUser, Image: "file.png"},
		{ID: "a", Text: "Hi there", Sender: SenderAssistant},
	}

	want := []HistoryTurn{
		{Role: RoleModel, Content: "Systems Link Established."},
		{Role: RoleUser, Content: "Hello"},
		{Role: RoleModel, Content: "Hi there"},
	}
	if got := ToHistory(msgs); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected history %+v", got)
	}
	if ToHistory(nil) != nil {
		t.Fatal("expected nil history for no messages")
	}
}

func TestConversationUpdatedAt(t *testing.T) {
	c := Conversation{Timestamp: "2025-01-02T03:04:05.678Z"}
	want := time.Date(2025, 1, 2, 3, 4, 5, 678_000_000, time.UTC)
	if !c.UpdatedAt().Equal(want) {
		t.Fatalf("unexpected time %v", c.UpdatedAt())
	}
	if !(Conversation{Timestamp: "yesterday"}).UpdatedAt().IsZero() {
		t.Fatal("expected zero time for an unparseable timestamp")
	}
}

func TestDisplayTime(t *testing.T) {
	if got := DisplayTime(time.Date(2025, 1, 1, 9, 5, 0, 0, time.UTC)); got != "09:05" {
		t.Fatalf("unexpected display time %q", got)
	}
}
