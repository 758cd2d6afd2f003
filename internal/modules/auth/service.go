package auth

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/ybq204116/LLM-Chat/internal/domain"
	"github.com/ybq204116/LLM-Chat/internal/pkg/token"
)

// Mainland-China mobile numbers: 11 digits starting 13-19.
var phoneRegexp = regexp.MustCompile(`^1[3-9]\d{9}$`)

// Service contains all business logic for authentication.
type Service struct {
	users  UserRepositoryInterface
	tokens tokenIssuer
	// rotateWindow is the remaining-lifetime threshold below which Refresh
	// rotates the refresh token (sliding-window renewal).
	rotateWindow time.Duration
}

type LoginResult struct {
	User         *domain.User
	AccessToken  string
	RefreshToken string
}

// RefreshResult carries the new access token and, only when rotation
// happened, a replacement refresh token.
type RefreshResult struct {
	User         *domain.User
	AccessToken  string
	RefreshToken string
}

func NewService(users UserRepositoryInterface, tokens tokenIssuer, rotateWindow time.Duration) *Service {
	return &Service{
		users:        users,
		tokens:       tokens,
		rotateWindow: rotateWindow,
	}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	username := strings.TrimSpace(req.Username)
	phone := strings.TrimSpace(req.PhoneNumber)

	if len([]rune(username)) < 3 {
		return nil, ErrUsernameTooShort
	}
	if len(req.Password) < 6 {
		return nil, ErrPasswordTooShort
	}
	if !phoneRegexp.MatchString(phone) {
		return nil, ErrInvalidPhoneNumber
	}

	taken, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrUsernameTaken
	}

	taken, err = s.users.ExistsByPhoneNumber(ctx, phone)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrPhoneNumberTaken
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:    username,
		Password:    string(hashed),
		PhoneNumber: phone,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrWrongPassword
	}

	accessToken, err := s.tokens.IssueAccess(user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.tokens.IssueRefresh(user.ID, user.Username)
	if err != nil {
		return nil, err
	}

	// Overwrites any previously stored token: logging in on a second
	// device invalidates the first device's refresh chain.
	if err := s.users.SetRefreshToken(ctx, user.ID, refreshToken); err != nil {
		return nil, err
	}

	return &LoginResult{User: user, AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Refresh exchanges a valid refresh token for a new access token. The
// presented token must equal the single stored value for the identity;
// a correctly signed but superseded token is rejected. When remaining
// lifetime drops below the rotate window a replacement refresh token is
// minted and stored, otherwise RefreshToken stays empty.
func (s *Service) Refresh(ctx context.Context, presented string) (*RefreshResult, error) {
	claims, err := s.tokens.Verify(presented, token.KindRefresh)
	if err != nil {
		return nil, ErrRefreshTokenInvalid
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRefreshTokenInvalid
		}
		return nil, err
	}
	if user.RefreshToken != presented {
		return nil, ErrRefreshTokenInvalid
	}

	accessToken, err := s.tokens.IssueAccess(user.ID, user.Username)
	if err != nil {
		return nil, err
	}

	result := &RefreshResult{User: user, AccessToken: accessToken}

	if time.Until(claims.ExpiresAt.Time) < s.rotateWindow {
		newRefresh, err := s.tokens.IssueRefresh(user.ID, user.Username)
		if err != nil {
			return nil, err
		}
		if err := s.users.SetRefreshToken(ctx, user.ID, newRefresh); err != nil {
			return nil, err
		}
		result.RefreshToken = newRefresh
	}

	return result, nil
}

func (s *Service) CurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// Logout drops the stored refresh token so it can never be exchanged
// again. The access token stays valid until natural expiry.
func (s *Service) Logout(ctx context.Context, userID string) error {
	return s.users.ClearRefreshToken(ctx, userID)
}
