package chat

import (
	"slices"

	"github.com/nhle/taskpilot/internal/model"
)

// The apply* functions are the chat state machine. Each takes a state and
// returns the next one without touching its input.

// applyUserMessageSent appends the user's message and the pending
// assistant placeholder.
func applyUserMessageSent(s State, user, placeholder model.Message) State {
	s = s.clone()
	placeholder.IsLoading = true
	s.Messages = append(s.Messages, user, placeholder)
	s.Loading = true
	return s
}

// applyAssistantResolved swaps the placeholder for the reply at the same
// position and counts both messages on the conversation. If the
// placeholder is gone (the user switched away) only the count changes.
func applyAssistantResolved(s State, conversationID model.ID, placeholder model.MessageID, reply model.Message) State {
	s = s.clone()
	reply.IsLoading = false
	if i := indexOfMessage(s.Messages, placeholder); i >= 0 {
		s.Messages[i] = reply
	}
	if i := indexOfConversation(s.Conversations, conversationID); i >= 0 {
		s.Conversations[i].MessageCount += 2
	}
	s.Error = ""
	return s
}

// applyAssistantFailed drops the placeholder. The user's message stays.
func applyAssistantFailed(s State, placeholder model.MessageID, errMsg string) State {
	s = s.clone()
	if i := indexOfMessage(s.Messages, placeholder); i >= 0 {
		s.Messages = slices.Delete(s.Messages, i, i+1)
	}
	s.Error = errMsg
	return s
}

// applyConversationCreated puts conv first and makes it active with an
// empty message list.
func applyConversationCreated(s State, conv model.Conversation) State {
	s = s.clone()
	s.Conversations = append([]model.Conversation{conv}, s.Conversations...)
	s.ActiveID = conv.ID
	s.Messages = []model.Message{}
	s.MessagesFor = conv.ID
	return s
}

// applyConversationSelected activates id and clears the messages of the
// previous conversation.
func applyConversationSelected(s State, id model.ID) State {
	s = s.clone()
	s.ActiveID = id
	s.Messages = []model.Message{}
	s.MessagesFor = ""
	return s
}

// applyMessagesLoaded replaces the message list with a page fetched for
// conversationID. Pages arrive newest first and are stored oldest first.
// Messages added after the fetch started (ids not in before) are kept after
// the page unless the page already holds them; a local user message counts
// as held when the page has a user message with the same content. A page
// for a conversation that is no longer active is discarded.
func applyMessagesLoaded(s State, conversationID model.ID, newestFirst []model.Message, before map[model.MessageID]bool) State {
	if s.ActiveID != conversationID {
		return s
	}
	s = s.clone()
	msgs := make([]model.Message, len(newestFirst), len(newestFirst)+len(s.Messages))
	for i, m := range newestFirst {
		msgs[len(newestFirst)-1-i] = m
	}
	for _, m := range s.Messages {
		if before[m.ID] || indexOfMessage(msgs, m.ID) >= 0 || echoed(msgs, m) {
			continue
		}
		msgs = append(msgs, m)
	}
	s.Messages = msgs
	s.MessagesFor = conversationID
	s.HasMore = false
	return s
}

// echoed reports whether a local user message came back from the server.
func echoed(page []model.Message, m model.Message) bool {
	if !m.ID.IsLocal() || m.Role != model.RoleUser {
		return false
	}
	return slices.ContainsFunc(page, func(p model.Message) bool {
		return !p.ID.IsLocal() && p.Role == model.RoleUser && p.Content == m.Content
	})
}

// applyConversationDeleted removes id; deleting the active conversation
// leaves nothing selected.
func applyConversationDeleted(s State, id model.ID) State {
	s = s.clone()
	if i := indexOfConversation(s.Conversations, id); i >= 0 {
		s.Conversations = slices.Delete(s.Conversations, i, i+1)
	}
	if s.ActiveID == id {
		s.ActiveID = ""
		s.Messages = []model.Message{}
		s.MessagesFor = ""
	}
	return s
}

// applyConversationsRefetched replaces the list. An active id missing from
// the new list falls back to the first conversation, or to none.
func applyConversationsRefetched(s State, convs []model.Conversation) State {
	s = s.clone()
	s.Conversations = append([]model.Conversation(nil), convs...)
	if s.ActiveID.IsZero() || indexOfConversation(s.Conversations, s.ActiveID) >= 0 {
		return s
	}

	if len(s.Conversations) > 0 {
		s.ActiveID = s.Conversations[0].ID
	} else {
		s.ActiveID = ""
	}
	s.Messages = []model.Message{}
	s.MessagesFor = ""
	return s
}

func indexOfMessage(msgs []model.Message, id model.MessageID) int {
	return slices.IndexFunc(msgs, func(m model.Message) bool { return m.ID == id })
}

func indexOfConversation(convs []model.Conversation, id model.ID) int {
	return slices.IndexFunc(convs, func(c model.Conversation) bool { return c.ID == id })
}
