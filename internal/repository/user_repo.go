package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ybq204116/LLM-Chat/internal/domain"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Username = strings.TrimSpace(u.Username)
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).
		Where("username = ?", strings.TrimSpace(username)).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("username = ?", strings.TrimSpace(username)).
		Count(&count).Error
	return count > 0, err
}

func (r *UserRepository) ExistsByPhoneNumber(ctx context.Context, phoneNumber string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("phone_number = ?", strings.TrimSpace(phoneNumber)).
		Count(&count).Error
	return count > 0, err
}

// SetRefreshToken overwrites the stored refresh token unconditionally.
// Concurrent logins for the same user invalidate each other; that is the
// intended single-session-per-refresh-chain model.
func (r *UserRepository) SetRefreshToken(ctx context.Context, userID string, refreshToken string) error {
	return r.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", userID).
		Update("refresh_token", refreshToken).Error
}

func (r *UserRepository) GetRefreshToken(ctx context.Context, userID string) (string, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Select("refresh_token").
		Where("id = ?", userID).First(&u).Error
	if err != nil {
		return "", err
	}
	return u.RefreshToken, nil
}

func (r *UserRepository) ClearRefreshToken(ctx context.Context, userID string) error {
	return r.SetRefreshToken(ctx, userID, "")
}
