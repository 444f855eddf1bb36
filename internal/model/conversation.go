package model

import (
	"encoding/json"
	"time"
)

// DefaultConversationTitle is shown for conversations without a title.
const DefaultConversationTitle = "New conversation"

// Conversation is a chat thread with the task assistant.
type Conversation struct {
	ID           ID
	UserID       ID
	Title        *string
	MessageCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DisplayTitle returns the title or the default placeholder.
func (c Conversation) DisplayTitle() string {
	if c.Title == nil || *c.Title == "" {
		return DefaultConversationTitle
	}
	return *c.Title
}

// UnreadCount is always zero: the client does not track server-side
// unread state.
func (c Conversation) UnreadCount() int { return 0 }

type conversationWire struct {
	ID           ID      `json:"id"`
	UserID       ID      `json:"user_id"`
	Title        *string `json:"title"`
	MessageCount int     `json:"message_count"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

// UnmarshalJSON decodes the wire form of a conversation.
func (c *Conversation) UnmarshalJSON(data []byte) error {
	var w conversationWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*c = Conversation{
		ID:           w.ID,
		UserID:       w.UserID,
		Title:        w.Title,
		MessageCount: w.MessageCount,
		CreatedAt:    parseTime(w.CreatedAt),
		UpdatedAt:    parseTime(w.UpdatedAt),
	}
	return nil
}

// CreateConversationInput is the body of POST /api/v1/chat/conversations.
type CreateConversationInput struct {
	Title *string `json:"title,omitempty"`
}
