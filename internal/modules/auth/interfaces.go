package auth

import (
	"context"

	"github.com/ybq204116/LLM-Chat/internal/domain"
	"github.com/ybq204116/LLM-Chat/internal/pkg/token"
)

// UserRepositoryInterface — only the methods the auth service uses.
type UserRepositoryInterface interface {
	Create(ctx context.Context, u *domain.User) error
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByPhoneNumber(ctx context.Context, phoneNumber string) (bool, error)
	SetRefreshToken(ctx context.Context, userID string, refreshToken string) error
	ClearRefreshToken(ctx context.Context, userID string) error
}

type tokenIssuer interface {
	IssueAccess(userID, username string) (string, error)
	IssueRefresh(userID, username string) (string, error)
	Verify(tokenStr string, kind token.Kind) (*token.Claims, error)
}
