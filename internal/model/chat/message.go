package chat

import (
	"encoding/json"
	"time"
)

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"

	// legacy value written by earlier mobile builds
	senderLegacyAI Sender = "ai"
)

// UnmarshalJSON normalizes legacy sender values.
func (s *Sender) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if Sender(raw) == senderLegacyAI {
		raw = string(SenderAssistant)
	}
	*s = Sender(raw)
	return nil
}

// DisplayTimeLayout 消息展示用的时间格式（时:分）。
const DisplayTimeLayout = "15:04"

// Message 一条对话消息，助手消息在流式输出期间按 ID 原地更新。
type Message struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Sender    Sender `json:"sender"`
	Timestamp string `json:"timestamp"`
	Image     string `json:"image,omitempty"`
}

// DisplayTime formats t for Message.Timestamp.
func DisplayTime(t time.Time) string {
	return t.Format(DisplayTimeLayout)
}
