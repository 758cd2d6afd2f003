package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ybq204116/LLM-Chat/internal/domain"
)

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(conv).Error
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListByUser returns the user's conversations, most recently updated first.
func (r *ConversationRepository) ListByUser(ctx context.Context, userID string) ([]domain.Conversation, error) {
	var convs []domain.Conversation
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&convs).Error
	return convs, err
}

func (r *ConversationRepository) UpdateTitle(ctx context.Context, id string, title string) (*domain.Conversation, error) {
	tx := r.db.WithContext(ctx).Model(&domain.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]any{"title": title, "updated_at": time.Now()})
	if tx.Error != nil {
		return nil, tx.Error
	}
	if tx.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.GetByID(ctx, id)
}

// Touch bumps updated_at so the conversation sorts to the top of the list.
func (r *ConversationRepository) Touch(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&domain.Conversation{}).
		Where("id = ?", id).
		Update("updated_at", time.Now()).Error
}

func (r *ConversationRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Conversation{}).Error
}
