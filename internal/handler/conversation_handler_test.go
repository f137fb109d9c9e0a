package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"apin-chat-go/internal/model"
	"apin-chat-go/internal/service"
	"apin-chat-go/pkg/llm"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct{}

func (stubProvider) Availability(ctx context.Context) llm.Availability {
	return llm.Availability{Available: true}
}
func (stubProvider) CreateSession(conversationID string) {}
func (stubProvider) RemoveSession(conversationID string) {}
func (stubProvider) GenerateResponse(ctx context.Context, conversationID, prompt string) (string, error) {
	return "stub answer", nil
}

type stubStore struct{}

func (stubStore) Load(ctx context.Context) ([]*model.Conversation, error) { return nil, nil }
func (stubStore) Save(ctx context.Context, conversations []*model.Conversation) error {
	return nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T) (*gin.Engine, *service.Manager) {
	gin.SetMode(gin.TestMode)
	manager := service.NewManager(stubProvider{}, stubStore{}, nil)
	h := NewConversationHandler(manager, nil)

	r := gin.New()
	r.GET("/conversations", h.GetState)
	r.POST("/conversations", h.CreateConversation)
	r.PUT("/conversations/:id/select", h.SelectConversation)
	r.DELETE("/conversations/:id", h.DeleteConversation)
	r.GET("/conversations/:id/history", h.GetHistory)
	r.GET("/availability", h.GetAvailability)
	return r, manager
}

func doRequest(t *testing.T, r *gin.Engine, method, path string) envelope {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Equal(t, http.StatusOK, env.Code)
	return env
}

func TestConversationLifecycleOverREST(t *testing.T) {
	r, _ := newTestRouter(t)

	// 创建两个对话
	var first, second model.Conversation
	env := doRequest(t, r, http.MethodPost, "/conversations")
	require.NoError(t, json.Unmarshal(env.Data, &first))
	env = doRequest(t, r, http.MethodPost, "/conversations")
	require.NoError(t, json.Unmarshal(env.Data, &second))

	// 快照：最新的在最前且被选中
	env = doRequest(t, r, http.MethodGet, "/conversations")
	var snap service.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	require.Len(t, snap.Conversations, 2)
	assert.Equal(t, second.ID, snap.Conversations[0].ID)
	assert.Equal(t, second.ID, snap.SelectedID)

	// 切换选中
	env = doRequest(t, r, http.MethodPut, "/conversations/"+first.ID+"/select")
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, first.ID, snap.SelectedID)

	// 删除选中的对话后选择移交
	env = doRequest(t, r, http.MethodDelete, "/conversations/"+first.ID)
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	require.Len(t, snap.Conversations, 1)
	assert.Equal(t, second.ID, snap.SelectedID)
}

func TestGetAvailabilityOverREST(t *testing.T) {
	r, _ := newTestRouter(t)

	env := doRequest(t, r, http.MethodGet, "/availability")
	var data struct {
		Available     bool   `json:"available"`
		StatusMessage string `json:"statusMessage"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.True(t, data.Available)
	assert.Equal(t, "AI Ready", data.StatusMessage)
}

func TestGetHistoryWithoutArchive(t *testing.T) {
	r, _ := newTestRouter(t)

	env := doRequest(t, r, http.MethodGet, "/conversations/whatever/history")
	var records []model.ExchangeRecord
	require.NoError(t, json.Unmarshal(env.Data, &records))
	assert.Empty(t, records)
}
