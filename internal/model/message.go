package model

import (
	"encoding/json"
	"time"
)

// Role identifies the sender of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageID identifies a message either by a client-generated temporary
// id (not yet known to the server) or by the server-assigned id. The two
// spaces never compare equal, even when their text matches.
type MessageID struct {
	local bool
	value string
}

// LocalID returns a temporary client-side message id.
func LocalID(v string) MessageID {
	return MessageID{local: true, value: v}
}

// PersistedID returns a server-assigned message id.
func PersistedID(id ID) MessageID {
	return MessageID{value: string(id)}
}

// IsLocal reports whether the id was generated on the client.
func (m MessageID) IsLocal() bool { return m.local }

// IsZero reports whether the id is unset.
func (m MessageID) IsZero() bool { return m.value == "" }

// Value returns the id text without its origin tag.
func (m MessageID) Value() string { return m.value }

func (m MessageID) String() string {
	if m.local {
		return "local:" + m.value
	}
	return m.value
}

// ToolCall records a tool the assistant invoked while producing a reply.
// It is informational only.
type ToolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Message is a single chat message.
type Message struct {
	ID             MessageID
	ConversationID ID
	Role           Role
	Content        string
	CreatedAt      time.Time

	// IsLoading marks the assistant placeholder shown while a reply is
	// pending. It never comes from or goes to the server.
	IsLoading bool

	ToolCalls []ToolCall
}

type messageWire struct {
	ID             ID         `json:"id"`
	ConversationID ID         `json:"conversation_id"`
	Role           Role       `json:"role"`
	Content        string     `json:"content"`
	CreatedAt      string     `json:"created_at"`
	ToolCalls      []ToolCall `json:"tool_calls"`
}

// UnmarshalJSON decodes a server message; its id is always persisted.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w messageWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*m = Message{
		ID:             PersistedID(w.ID),
		ConversationID: w.ConversationID,
		Role:           w.Role,
		Content:        w.Content,
		CreatedAt:      parseTime(w.CreatedAt),
		ToolCalls:      w.ToolCalls,
	}
	return nil
}

// SendMessageInput is the body of POST .../conversations/{id}/messages.
type SendMessageInput struct {
	Content string `json:"content"`
}
