package service_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskpilot/internal/api"
	"github.com/nhle/taskpilot/internal/model"
	"github.com/nhle/taskpilot/internal/service"
)

type staticTokens struct{ token string }

func (s *staticTokens) Get() (string, bool) { return s.token, s.token != "" }
func (s *staticTokens) Save(t string) error { s.token = t; return nil }
func (s *staticTokens) Remove() error       { s.token = ""; return nil }

type recorded struct {
	method string
	uri    string
	body   map[string]any
}

// newServer answers every request with the given data payload and records
// what it received.
func newServer(t *testing.T, status int, data string) (*api.Client, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.uri = r.URL.RequestURI()
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			assert.NoError(t, json.Unmarshal(raw, &rec.body))
		}
		w.WriteHeader(status)
		if data != "" {
			_, _ = io.WriteString(w, `{"data":`+data+`,"error":null}`)
		}
	}))
	t.Cleanup(srv.Close)
	return api.NewClient(srv.URL, &staticTokens{token: "tok"}), rec
}

func TestAuthServiceLogin(t *testing.T) {
	client, rec := newServer(t, http.StatusOK,
		`{"user":{"id":7,"email":"a@b.c","name":"Ann"},"token":"jwt"}`)

	res, err := service.NewAuthService(client).Login(t.Context(), model.LoginInput{
		Email: "a@b.c", Password: "secret",
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "/api/auth/login", rec.uri)
	assert.Equal(t, "a@b.c", rec.body["email"])
	assert.Equal(t, model.ID("7"), res.User.ID)
	assert.Equal(t, "Ann", res.User.DisplayName())
	assert.Equal(t, "jwt", res.Token)
}

func TestAuthServiceSignupPropagatesError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"data":null,"error":{"code":"EMAIL_EXISTS","message":"Email already registered"}}`)
	}))
	defer srv.Close()

	_, err := service.NewAuthService(api.NewClient(srv.URL, &staticTokens{})).
		Signup(t.Context(), model.SignupInput{Email: "a@b.c", Password: "x"})
	apiErr, ok := api.AsError(err)
	require.True(t, ok)
	assert.Equal(t, api.KindValidation, apiErr.Kind)
	assert.Equal(t, "EMAIL_EXISTS", apiErr.Code)
}

func TestTaskServiceList(t *testing.T) {
	client, rec := newServer(t, http.StatusOK, `{
		"items": [
			{"id": 1, "user_id": 9, "title": "a", "priority": "high", "tags": "x, y", "completed": false,
			 "created_at": "2026-01-01T00:00:00Z", "updated_at": "2026-01-01T00:00:00Z"}
		],
		"pagination": {"limit": 10, "offset": 10, "total": 21, "has_more": true}
	}`)

	page, err := service.NewTaskService(client).List(t.Context(), "9", 2, 10)
	require.NoError(t, err)

	assert.Equal(t, "/api/users/9/tasks?limit=10&page=2", rec.uri)
	require.Len(t, page.Tasks, 1)
	assert.Equal(t, []string{"x", "y"}, page.Tasks[0].Tags)
	assert.Equal(t, model.PriorityHigh, page.Tasks[0].Priority)
	assert.Equal(t, model.Pagination{
		Page: 2, Limit: 10, Offset: 10, Total: 21, TotalPages: 3, HasMore: true,
	}, page.Pagination)
}

func TestTaskServiceListBareArray(t *testing.T) {
	client, _ := newServer(t, http.StatusOK, `[{"id":1,"title":"a"},{"id":2,"title":"b"}]`)

	page, err := service.NewTaskService(client).List(t.Context(), "9", 1, 10)
	require.NoError(t, err)
	assert.Len(t, page.Tasks, 2)
	assert.Equal(t, 2, page.Pagination.Total)
	assert.False(t, page.Pagination.HasMore)
}

func TestTaskServiceMutations(t *testing.T) {
	taskJSON := `{"id":5,"user_id":9,"title":"Write tests","priority":"low","completed":true}`

	t.Run("create", func(t *testing.T) {
		client, rec := newServer(t, http.StatusCreated, taskJSON)
		task, err := service.NewTaskService(client).Create(t.Context(), "9", model.TaskInput{
			Title: "  Write tests ", Priority: model.PriorityLow, Tags: []string{"go", "ci"},
		})
		require.NoError(t, err)
		assert.Equal(t, http.MethodPost, rec.method)
		assert.Equal(t, "/api/users/9/tasks", rec.uri)
		assert.Equal(t, "Write tests", rec.body["title"])
		assert.Equal(t, "go,ci", rec.body["tags"])
		assert.Nil(t, rec.body["description"])
		assert.Equal(t, model.ID("5"), task.ID)
	})

	t.Run("update", func(t *testing.T) {
		client, rec := newServer(t, http.StatusOK, taskJSON)
		_, err := service.NewTaskService(client).Update(t.Context(), "9", "5", model.TaskInput{Title: "x"})
		require.NoError(t, err)
		assert.Equal(t, http.MethodPatch, rec.method)
		assert.Equal(t, "/api/users/9/tasks/5", rec.uri)
	})

	t.Run("complete", func(t *testing.T) {
		client, rec := newServer(t, http.StatusOK, taskJSON)
		task, err := service.NewTaskService(client).SetCompleted(t.Context(), "9", "5", true)
		require.NoError(t, err)
		assert.Equal(t, http.MethodPatch, rec.method)
		assert.Equal(t, "/api/users/9/tasks/5/complete", rec.uri)
		assert.Equal(t, true, rec.body["completed"])
		assert.True(t, task.Completed)
	})

	t.Run("delete", func(t *testing.T) {
		client, rec := newServer(t, http.StatusNoContent, "")
		require.NoError(t, service.NewTaskService(client).Delete(t.Context(), "9", "5"))
		assert.Equal(t, http.MethodDelete, rec.method)
		assert.Equal(t, "/api/users/9/tasks/5", rec.uri)
	})
}

func TestChatServiceListMessages(t *testing.T) {
	client, rec := newServer(t, http.StatusOK, `{
		"items": [
			{"id": 2, "conversation_id": 3, "role": "assistant", "content": "hello"},
			{"id": 1, "conversation_id": 3, "role": "user", "content": "hi"}
		],
		"pagination": {"limit": 50, "offset": 0, "total": 2, "has_more": false}
	}`)

	page, err := service.NewChatService(client).ListMessages(t.Context(), "3", 50, 0)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/chat/conversations/3/messages?limit=50", rec.uri)
	require.Len(t, page.Items, 2)
	assert.Equal(t, model.PersistedID("2"), page.Items[0].ID)
	assert.Equal(t, 2, page.Pagination.Total)
}

func TestChatServiceSendMessage(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"wrapped", `{"user_message":{"id":1,"role":"user","content":"hi"},"assistant_message":{"id":2,"role":"assistant","content":"hello","tool_calls":[{"name":"list_tasks"}]}}`},
		{"bare", `{"id":2,"role":"assistant","content":"hello","tool_calls":[{"name":"list_tasks"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, rec := newServer(t, http.StatusCreated, tt.data)
			msg, err := service.NewChatService(client).SendMessage(t.Context(), "3", "hi")
			require.NoError(t, err)

			assert.Equal(t, "/api/v1/chat/conversations/3/messages", rec.uri)
			assert.Equal(t, "hi", rec.body["content"])
			assert.Equal(t, "hello", msg.Content)
			assert.Equal(t, model.RoleAssistant, msg.Role)
			assert.Equal(t, model.ID("3"), msg.ConversationID)
			require.Len(t, msg.ToolCalls, 1)
			assert.Equal(t, "list_tasks", msg.ToolCalls[0].Name)
		})
	}
}

func TestChatServiceConversations(t *testing.T) {
	client, rec := newServer(t, http.StatusCreated,
		`{"id":"c1","user_id":9,"title":null,"message_count":0}`)

	conv, err := service.NewChatService(client).CreateConversation(t.Context(), nil)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/chat/conversations", rec.uri)
	assert.Equal(t, model.ID("c1"), conv.ID)
	assert.Equal(t, model.DefaultConversationTitle, conv.DisplayTitle())

	client, rec = newServer(t, http.StatusNoContent, "")
	require.NoError(t, service.NewChatService(client).DeleteConversation(t.Context(), "c1"))
	assert.Equal(t, http.MethodDelete, rec.method)
	assert.Equal(t, "/api/v1/chat/conversations/c1", rec.uri)
}
