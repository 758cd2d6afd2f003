package chat

import (
	"context"
	"net/http"

	"github.com/ybq204116/LLM-Chat/internal/domain"
)

// ConversationRepositoryInterface — only the methods the chat service uses.
type ConversationRepositoryInterface interface {
	Create(ctx context.Context, conv *domain.Conversation) error
	GetByID(ctx context.Context, id string) (*domain.Conversation, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Conversation, error)
	UpdateTitle(ctx context.Context, id string, title string) (*domain.Conversation, error)
	Touch(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type MessageRepositoryInterface interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	ListByConversation(ctx context.Context, conversationID string) ([]domain.Message, error)
	Delete(ctx context.Context, id string) error
	DeleteByConversation(ctx context.Context, conversationID string) error
}

// Upstream is the LLM provider seen as a black box. ChatCompletions and
// ImageGenerations return the raw response so the proxy can relay status,
// headers, and (for streams) the body as it arrives; the caller owns
// closing the body.
type Upstream interface {
	ChatCompletions(ctx context.Context, payload map[string]any) (*http.Response, error)
	ImageGenerations(ctx context.Context, payload map[string]any) (*http.Response, error)
	Download(ctx context.Context, url string) ([]byte, error)
}
