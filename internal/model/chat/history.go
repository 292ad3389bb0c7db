package chat

// Role is the provider-facing author of a history turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// HistoryTurn is the wire form of a message sent to the relay.
type HistoryTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ToHistory maps messages to history turns, dropping images and timestamps.
func ToHistory(messages []Message) []HistoryTurn {
	if len(messages) == 0 {
		return nil
	}

	history := make([]HistoryTurn, 0, len(messages))
	for _, msg := range messages {
		role := RoleModel
		if msg.Sender == SenderUser {
			role = RoleUser
		}
		history = append(history, HistoryTurn{Role: role, Content: msg.Text})
	}
	return history
}
