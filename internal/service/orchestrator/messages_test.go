package orchestrator

import (
	"testing"

	"github.com/zhouzirui/vanguard/backend/internal/model/chat"
)

func TestMessageLogUpdatesInPlace(t *testing.T) {
	l := newMessageLog([]chat.Message{
		{ID: "a", Text: "hello", Sender: chat.SenderUser},
		{ID: "b", Text: "Hi", Sender: chat.SenderAssistant},
	})
	l.append(chat.Message{ID: "c", Text: "next", Sender: chat.SenderUser})

	got, ok := l.update("b", func(m *chat.Message) { m.Text += " there" })
	if !ok || got.Text != "Hi there" {
		t.Fatalf("unexpected update result %+v ok=%v", got, ok)
	}
	if _, ok := l.update("missing", func(*chat.Message) {}); ok {
		t.Fatal("expected update of unknown id to fail")
	}

	snap := l.snapshot()
	if len(snap) != 3 || snap[1].ID != "b" || snap[1].Text != "Hi there" || snap[2].ID != "c" {
		t.Fatalf("order or content not preserved: %+v", snap)
	}

	snap[0].Text = "mutated"
	if again := l.snapshot(); again[0].Text != "hello" {
		t.Fatal("snapshot must not alias the log")
	}
}

func TestMessageLogAppendExistingIDReplaces(t *testing.T) {
	l := newMessageLog(nil)
	l.append(chat.Message{ID: "a", Text: "one"})
	l.append(chat.Message{ID: "a", Text: "two"})

	snap := l.snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected one message, got %d", len(snap))
	}
	if snap[0].Text != "two" {
		t.Fatalf("unexpected text %q", snap[0].Text)
	}
}
