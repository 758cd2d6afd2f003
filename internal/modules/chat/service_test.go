package chat

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ybq204116/LLM-Chat/internal/domain"
)

type mockConversationRepo struct {
	mock.Mock
}

func (m *mockConversationRepo) Create(ctx context.Context, conv *domain.Conversation) error {
	args := m.Called(ctx, conv)
	return args.Error(0)
}

func (m *mockConversationRepo) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *mockConversationRepo) ListByUser(ctx context.Context, userID string) ([]domain.Conversation, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Conversation), args.Error(1)
}

func (m *mockConversationRepo) UpdateTitle(ctx context.Context, id string, title string) (*domain.Conversation, error) {
	args := m.Called(ctx, id, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *mockConversationRepo) Touch(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockConversationRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockMessageRepo struct {
	mock.Mock
}

func (m *mockMessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *mockMessageRepo) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

func (m *mockMessageRepo) ListByConversation(ctx context.Context, conversationID string) ([]domain.Message, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Message), args.Error(1)
}

func (m *mockMessageRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockMessageRepo) DeleteByConversation(ctx context.Context, conversationID string) error {
	args := m.Called(ctx, conversationID)
	return args.Error(0)
}

type mockUpstream struct {
	mock.Mock
}

func (m *mockUpstream) ChatCompletions(ctx context.Context, payload map[string]any) (*http.Response, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*http.Response), args.Error(1)
}

func (m *mockUpstream) ImageGenerations(ctx context.Context, payload map[string]any) (*http.Response, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*http.Response), args.Error(1)
}

func (m *mockUpstream) Download(ctx context.Context, url string) ([]byte, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func newTestService(t *testing.T, convs *mockConversationRepo, msgs *mockMessageRepo, up *mockUpstream) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	return NewService(convs, msgs, up, dir, zap.NewNop()), dir
}

func TestService_CreateConversation_DefaultTitle(t *testing.T) {
	convs := new(mockConversationRepo)
	convs.On("Create", mock.Anything, mock.Anything).Return(nil)

	service, _ := newTestService(t, convs, new(mockMessageRepo), new(mockUpstream))

	conv, err := service.CreateConversation(context.Background(), "u-1", "   ", "deepseek-ai/DeepSeek-V3")

	assert.NoError(t, err)
	assert.Equal(t, "新对话", conv.Title)
	assert.Equal(t, "u-1", conv.UserID)
}

func TestService_RenameConversation_NotFound(t *testing.T) {
	convs := new(mockConversationRepo)
	convs.On("UpdateTitle", mock.Anything, "missing", "New title").Return(nil, gorm.ErrRecordNotFound)

	service, _ := newTestService(t, convs, new(mockMessageRepo), new(mockUpstream))

	_, err := service.RenameConversation(context.Background(), "missing", "New title")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestService_SaveMessage_TouchFailureDoesNotFail(t *testing.T) {
	convs := new(mockConversationRepo)
	msgs := new(mockMessageRepo)

	msgs.On("Create", mock.Anything, mock.Anything).Return(nil)
	convs.On("Touch", mock.Anything, "c-1").Return(gorm.ErrInvalidDB)

	service, _ := newTestService(t, convs, msgs, new(mockUpstream))

	msg, err := service.SaveMessage(context.Background(), "c-1", domain.RoleUser, "hello", "")

	assert.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
}

func TestService_DeleteConversation_SweepsLocalImages(t *testing.T) {
	convs := new(mockConversationRepo)
	msgs := new(mockMessageRepo)

	service, dir := newTestService(t, convs, msgs, new(mockUpstream))

	kept := filepath.Join(dir, "kept.png")
	swept := filepath.Join(dir, "123-abc.png")
	assert.NoError(t, os.WriteFile(kept, []byte("x"), 0o644))
	assert.NoError(t, os.WriteFile(swept, []byte("x"), 0o644))

	msgs.On("ListByConversation", mock.Anything, "c-1").Return([]domain.Message{
		{ID: "m-1", Content: "here you go ![pic](http://localhost:3000/uploads/123-abc.png)"},
		{ID: "m-2", Content: "plain text, no images"},
	}, nil)
	convs.On("Delete", mock.Anything, "c-1").Return(nil)
	msgs.On("DeleteByConversation", mock.Anything, "c-1").Return(nil)

	assert.NoError(t, service.DeleteConversation(context.Background(), "c-1"))

	_, err := os.Stat(swept)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(kept)
	assert.NoError(t, err)

	convs.AssertExpectations(t)
	msgs.AssertExpectations(t)
}

func TestService_DeleteMessage_SweepsImagesAndMapsNotFound(t *testing.T) {
	msgs := new(mockMessageRepo)
	service, dir := newTestService(t, new(mockConversationRepo), msgs, new(mockUpstream))

	img := filepath.Join(dir, "456-def.jpg")
	assert.NoError(t, os.WriteFile(img, []byte("x"), 0o644))

	msgs.On("GetByID", mock.Anything, "m-1").Return(&domain.Message{
		ID:      "m-1",
		Content: "![generated](http://localhost:3000/uploads/456-def.jpg)",
	}, nil)
	msgs.On("Delete", mock.Anything, "m-1").Return(nil)

	assert.NoError(t, service.DeleteMessage(context.Background(), "m-1"))
	_, err := os.Stat(img)
	assert.True(t, os.IsNotExist(err))

	msgs.On("GetByID", mock.Anything, "gone").Return(nil, gorm.ErrRecordNotFound)
	assert.ErrorIs(t, service.DeleteMessage(context.Background(), "gone"), ErrMessageNotFound)
}

func TestService_DeleteMessage_MissingFileIsSkipped(t *testing.T) {
	msgs := new(mockMessageRepo)
	service, _ := newTestService(t, new(mockConversationRepo), msgs, new(mockUpstream))

	msgs.On("GetByID", mock.Anything, "m-1").Return(&domain.Message{
		ID:      "m-1",
		Content: "![generated](http://localhost:3000/uploads/already-gone.png)",
	}, nil)
	msgs.On("Delete", mock.Anything, "m-1").Return(nil)

	assert.NoError(t, service.DeleteMessage(context.Background(), "m-1"))
}

func TestService_LocalizeImages_RewritesURLs(t *testing.T) {
	up := new(mockUpstream)
	service, dir := newTestService(t, new(mockConversationRepo), new(mockMessageRepo), up)

	up.On("Download", mock.Anything, "https://cdn.example.com/img/one.png").Return([]byte("png-bytes"), nil)

	data := map[string]any{
		"images": []any{
			map[string]any{"url": "https://cdn.example.com/img/one.png"},
		},
	}
	service.LocalizeImages(context.Background(), data, "http://localhost:3000")

	item := data["images"].([]any)[0].(map[string]any)
	local := item["url"].(string)
	assert.Contains(t, local, "http://localhost:3000/uploads/")
	assert.Contains(t, local, ".png")

	entries, err := os.ReadDir(dir)
	assert.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestService_LocalizeImages_FailedDownloadKeepsRemoteURL(t *testing.T) {
	up := new(mockUpstream)
	service, _ := newTestService(t, new(mockConversationRepo), new(mockMessageRepo), up)

	up.On("Download", mock.Anything, "https://cdn.example.com/bad.png").Return(nil, assert.AnError)
	up.On("Download", mock.Anything, "https://cdn.example.com/good.png").Return([]byte("png-bytes"), nil)

	data := map[string]any{
		"data": []any{
			map[string]any{"url": "https://cdn.example.com/bad.png"},
			map[string]any{"url": "https://cdn.example.com/good.png"},
		},
	}
	service.LocalizeImages(context.Background(), data, "http://localhost:3000")

	items := data["data"].([]any)
	assert.Equal(t, "https://cdn.example.com/bad.png", items[0].(map[string]any)["url"])
	assert.Contains(t, items[1].(map[string]any)["url"].(string), "/uploads/")
}

func TestService_LocalizeImages_NoImageArray(t *testing.T) {
	service, _ := newTestService(t, new(mockConversationRepo), new(mockMessageRepo), new(mockUpstream))

	data := map[string]any{"created": float64(1700000000)}
	service.LocalizeImages(context.Background(), data, "http://localhost:3000")

	assert.Equal(t, map[string]any{"created": float64(1700000000)}, data)
}
