package orchestrator

import "github.com/zhouzirui/vanguard/backend/internal/model/chat"

// messageLog keeps messages in display order and updates them in place by id.
type messageLog struct {
	items []chat.Message
	index map[string]int
}

func newMessageLog(messages []chat.Message) *messageLog {
	l := &messageLog{index: make(map[string]int, len(messages))}
	for _, msg := range messages {
		l.append(msg)
	}
	return l
}

func (l *messageLog) append(msg chat.Message) {
	if pos, ok := l.index[msg.ID]; ok {
		l.items[pos] = msg
		return
	}
	l.index[msg.ID] = len(l.items)
	l.items = append(l.items, msg)
}

// update applies fn to the message with id. It reports false for unknown ids.
func (l *messageLog) update(id string, fn func(*chat.Message)) (chat.Message, bool) {
	pos, ok := l.index[id]
	if !ok {
		return chat.Message{}, false
	}
	fn(&l.items[pos])
	return l.items[pos], true
}

func (l *messageLog) snapshot() []chat.Message {
	return append([]chat.Message(nil), l.items...)
}

func (l *messageLog) hasSender(sender chat.Sender) bool {
	for _, msg := range l.items {
		if msg.Sender == sender {
			return true
		}
	}
	return false
}
