package chat

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ybq204116/LLM-Chat/internal/domain"
)

const defaultConversationTitle = "新对话"

// Markdown image links pointing at our own uploads dir.
var uploadedImageRegexp = regexp.MustCompile(`!\[.*?\]\((.*?/uploads/.*?)\)`)

// Service contains conversation/message persistence and local image
// lifecycle management for the chat module.
type Service struct {
	conversations ConversationRepositoryInterface
	messages      MessageRepositoryInterface
	upstream      Upstream
	uploadsDir    string
	logger        *zap.Logger
}

func NewService(
	conversations ConversationRepositoryInterface,
	messages MessageRepositoryInterface,
	upstream Upstream,
	uploadsDir string,
	logger *zap.Logger,
) *Service {
	return &Service{
		conversations: conversations,
		messages:      messages,
		upstream:      upstream,
		uploadsDir:    uploadsDir,
		logger:        logger,
	}
}

func (s *Service) Conversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	return s.conversations.ListByUser(ctx, userID)
}

func (s *Service) CreateConversation(ctx context.Context, userID, title, model string) (*domain.Conversation, error) {
	if strings.TrimSpace(title) == "" {
		title = defaultConversationTitle
	}
	conv := &domain.Conversation{
		UserID: userID,
		Title:  title,
		Model:  model,
	}
	if err := s.conversations.Create(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *Service) RenameConversation(ctx context.Context, id, title string) (*domain.Conversation, error) {
	conv, err := s.conversations.UpdateTitle(ctx, id, title)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return conv, nil
}

// DeleteConversation removes the conversation and all its messages,
// sweeping any locally stored generated images referenced from message
// bodies first. Per-file sweep failures are logged and do not abort the
// deletion.
func (s *Service) DeleteConversation(ctx context.Context, id string) error {
	msgs, err := s.messages.ListByConversation(ctx, id)
	if err != nil {
		return err
	}
	for i := range msgs {
		s.removeUploadedImages(msgs[i].Content)
	}

	if err := s.conversations.Delete(ctx, id); err != nil {
		return err
	}
	return s.messages.DeleteByConversation(ctx, id)
}

func (s *Service) Messages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	return s.messages.ListByConversation(ctx, conversationID)
}

func (s *Service) SaveMessage(ctx context.Context, conversationID string, role domain.MessageRole, content, reasoningContent string) (*domain.Message, error) {
	msg := &domain.Message{
		ConversationID:   conversationID,
		Role:             role,
		Content:          content,
		ReasoningContent: reasoningContent,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	if err := s.conversations.Touch(ctx, conversationID); err != nil {
		s.logger.Warn("failed to touch conversation", zap.String("conversation_id", conversationID), zap.Error(err))
	}
	return msg, nil
}

func (s *Service) DeleteMessage(ctx context.Context, id string) error {
	msg, err := s.messages.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMessageNotFound
		}
		return err
	}

	if err := s.messages.Delete(ctx, id); err != nil {
		return err
	}
	s.removeUploadedImages(msg.Content)
	return nil
}

// removeUploadedImages deletes local files behind ![..](../uploads/..)
// links in message content. Unparsable or already-missing files are
// logged and skipped.
func (s *Service) removeUploadedImages(content string) {
	for _, match := range uploadedImageRegexp.FindAllStringSubmatch(content, -1) {
		imageURL := match[1]
		parsed, err := url.Parse(imageURL)
		if err != nil {
			s.logger.Warn("unparsable image url in message", zap.String("url", imageURL), zap.Error(err))
			continue
		}
		filename := path.Base(parsed.Path)
		if filename == "" || filename == "." || filename == "/" {
			continue
		}
		filePath := filepath.Join(s.uploadsDir, filename)
		if err := os.Remove(filePath); err != nil {
			if !os.IsNotExist(err) {
				s.logger.Warn("failed to delete local image", zap.String("file", filePath), zap.Error(err))
			}
			continue
		}
		s.logger.Info("deleted local image", zap.String("file", filename))
	}
}

// LocalizeImages downloads each generated image in an upstream reply and
// rewrites its URL to a locally served path. The provider returns either
// an `images` array or the OpenAI-style `data` array. A failed download
// leaves that item's remote URL untouched; siblings still succeed.
func (s *Service) LocalizeImages(ctx context.Context, data map[string]any, publicBaseURL string) {
	items, ok := data["images"].([]any)
	if !ok {
		items, ok = data["data"].([]any)
	}
	if !ok {
		return
	}

	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		remoteURL, ok := item["url"].(string)
		if !ok || remoteURL == "" {
			continue
		}

		localURL, err := s.saveImage(ctx, remoteURL, publicBaseURL)
		if err != nil {
			s.logger.Error("failed to download and save image", zap.String("url", remoteURL), zap.Error(err))
			continue
		}
		item["url"] = localURL
	}
}

func (s *Service) saveImage(ctx context.Context, remoteURL, publicBaseURL string) (string, error) {
	body, err := s.upstream.Download(ctx, remoteURL)
	if err != nil {
		return "", err
	}

	parsed, err := url.Parse(remoteURL)
	if err != nil {
		return "", err
	}
	ext := path.Ext(parsed.Path)
	if ext == "" {
		ext = ".png"
	}

	if err := os.MkdirAll(s.uploadsDir, 0o755); err != nil {
		return "", err
	}
	filename := fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), uuid.NewString(), ext)
	if err := os.WriteFile(filepath.Join(s.uploadsDir, filename), body, 0o644); err != nil {
		return "", err
	}

	return publicBaseURL + "/uploads/" + filename, nil
}
