package chat

import "time"

// Conversation is the persisted unit of the local history.
type Conversation struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	LastMessage  string    `json:"lastMessage"`
	Timestamp    string    `json:"timestamp"`
	Messages     []Message `json:"messages"`
	Category     string    `json:"category,omitempty"`
	SystemPrompt string    `json:"systemPrompt,omitempty"`
}

// UpdatedAt parses Timestamp. Unparseable values sort as the zero time.
func (c Conversation) UpdatedAt() time.Time {
	t, err := time.Parse(time.RFC3339Nano, c.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Clone returns a copy that shares no message storage with c.
func (c Conversation) Clone() Conversation {
	c.Messages = append([]Message(nil), c.Messages...)
	return c
}
