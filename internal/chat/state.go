package chat

import "github.com/nhle/taskpilot/internal/model"

// State is an immutable snapshot of the chat session. Controller hands out
// copies; mutating one has no effect on the controller.
type State struct {
	Conversations []model.Conversation
	// ActiveID is empty when no conversation is selected.
	ActiveID model.ID
	// Messages belong to the active conversation, oldest first.
	Messages []model.Message
	// MessagesFor is the conversation whose history Messages holds. It
	// differs from ActiveID until the active conversation's messages load.
	MessagesFor model.ID

	// Loading is set while at least one send is in flight.
	Loading              bool
	LoadingMessages      bool
	LoadingConversations bool

	Error    string
	DarkMode bool

	// HasMore is always false; older-message backfill is not implemented.
	HasMore bool
}

// ActiveConversation returns the selected conversation, if it is in the list.
func (s State) ActiveConversation() (model.Conversation, bool) {
	if s.ActiveID.IsZero() {
		return model.Conversation{}, false
	}
	i := indexOfConversation(s.Conversations, s.ActiveID)
	if i < 0 {
		return model.Conversation{}, false
	}
	return s.Conversations[i], true
}

// clone copies the slices so the result shares no backing arrays with s.
func (s State) clone() State {
	out := s
	out.Conversations = append([]model.Conversation(nil), s.Conversations...)
	out.Messages = make([]model.Message, len(s.Messages))
	for i, m := range s.Messages {
		m.ToolCalls = append([]model.ToolCall(nil), m.ToolCalls...)
		out.Messages[i] = m
	}
	return out
}
