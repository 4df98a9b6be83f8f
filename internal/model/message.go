package model

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one transcript entry of a conversation.
type Message struct {
	MessageID string       `json:"message_id"`
	Role      string       `json:"role"`
	Content   string       `json:"content"`
	Sources   []SourceInfo `json:"sources,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// Conversation is the summary metadata kept per (user, conversation).
type Conversation struct {
	ConversationID string    `json:"conversation_id"`
	Title          string    `json:"title"`
	MessageCount   int       `json:"message_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
