package service

import (
	"context"
	"encoding/json"

	"github.com/nhle/taskpilot/internal/model"
)

const conversationsPath = "/api/v1/chat/conversations"

// ChatService talks to the task assistant endpoints.
type ChatService struct {
	api Requester
}

// NewChatService creates a ChatService.
func NewChatService(api Requester) *ChatService {
	return &ChatService{api: api}
}

func conversationPath(id model.ID) string {
	return conversationsPath + "/" + seg(id)
}

func messagesPath(id model.ID) string {
	return conversationPath(id) + "/messages"
}

func listQuery(path string, limit, offset int) string {
	params := map[string]int{}
	if limit > 0 {
		params["limit"] = limit
	}
	if offset > 0 {
		params["offset"] = offset
	}
	return withQuery(path, params)
}

// ListConversations returns the user's conversations, most recent first.
func (s *ChatService) ListConversations(ctx context.Context, limit, offset int) (*model.Page[model.Conversation], error) {
	var out model.Page[model.Conversation]
	if err := s.api.Get(ctx, listQuery(conversationsPath, limit, offset), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetConversation returns one conversation.
func (s *ChatService) GetConversation(ctx context.Context, id model.ID) (*model.Conversation, error) {
	var out model.Conversation
	if err := s.api.Get(ctx, conversationPath(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateConversation starts a new conversation. A nil title lets the
// server choose.
func (s *ChatService) CreateConversation(ctx context.Context, title *string) (*model.Conversation, error) {
	var out model.Conversation
	in := model.CreateConversationInput{Title: title}
	if err := s.api.Post(ctx, conversationsPath, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteConversation removes a conversation and its messages.
func (s *ChatService) DeleteConversation(ctx context.Context, id model.ID) error {
	return s.api.Delete(ctx, conversationPath(id))
}

// ListMessages returns messages of a conversation, newest first.
func (s *ChatService) ListMessages(ctx context.Context, id model.ID, limit, offset int) (*model.Page[model.Message], error) {
	var out model.Page[model.Message]
	if err := s.api.Get(ctx, listQuery(messagesPath(id), limit, offset), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// sendResult accepts either {"assistant_message": {...}} or the assistant
// message itself.
type sendResult struct {
	message model.Message
}

func (r *sendResult) UnmarshalJSON(data []byte) error {
	var wrapped struct {
		AssistantMessage *model.Message `json:"assistant_message"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.AssistantMessage != nil {
		r.message = *wrapped.AssistantMessage
		return nil
	}
	return json.Unmarshal(data, &r.message)
}

// SendMessage posts a user message and returns the assistant's reply.
func (s *ChatService) SendMessage(ctx context.Context, id model.ID, content string) (*model.Message, error) {
	var out sendResult
	in := model.SendMessageInput{Content: content}
	if err := s.api.Post(ctx, messagesPath(id), in, &out); err != nil {
		return nil, err
	}
	msg := out.message
	if msg.Role == "" {
		msg.Role = model.RoleAssistant
	}
	if msg.ConversationID.IsZero() {
		msg.ConversationID = id
	}
	return &msg, nil
}

// DeleteMessage removes a single message.
func (s *ChatService) DeleteMessage(ctx context.Context, conversationID, messageID model.ID) error {
	return s.api.Delete(ctx, messagesPath(conversationID)+"/"+seg(messageID))
}
