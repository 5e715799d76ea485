package chat

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single conversation turn. Immutable once appended.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// History is the ordered rolling window of prior turns kept per session.
type History []Message

// Append adds a turn to the end of the history.
func (h History) Append(role Role, content string) History {
	return append(h, Message{Role: role, Content: content})
}

// Trim drops the oldest entries until the history holds at most max turns.
func (h History) Trim(max int) History {
	if max <= 0 || len(h) <= max {
		return h
	}
	return h[len(h)-max:]
}
