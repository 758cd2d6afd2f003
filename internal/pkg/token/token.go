package token

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Kind selects which signing secret a token is bound to. Access and
// refresh tokens use distinct secrets, so a leaked access key cannot
// forge refresh tokens.
type Kind int

const (
	KindAccess Kind = iota
	KindRefresh
)

var (
	ErrExpired = errors.New("token expired")
	ErrInvalid = errors.New("token invalid")
)

type Service struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

type Claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	jwtlib.RegisteredClaims
}

func New(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// IssueAccess signs a short-lived access token for the identity.
func (s *Service) IssueAccess(userID, username string) (string, error) {
	return s.issue(userID, username, s.accessSecret, s.accessTTL)
}

// IssueRefresh signs a long-lived refresh token for the identity.
func (s *Service) IssueRefresh(userID, username string) (string, error) {
	return s.issue(userID, username, s.refreshSecret, s.refreshTTL)
}

func (s *Service) issue(userID, username string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwtlib.RegisteredClaims{
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	}
	t := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

// Verify validates signature and expiry against the kind-specific secret.
// Expired tokens return ErrExpired; everything else (bad signature,
// malformed input, wrong kind) returns ErrInvalid. Callers rely on the
// distinction for 401 vs 403 semantics.
func (s *Service) Verify(tokenStr string, kind Kind) (*Claims, error) {
	secret := s.accessSecret
	if kind == KindRefresh {
		secret = s.refreshSecret
	}

	parsed, err := jwtlib.ParseWithClaims(tokenStr, &Claims{}, func(t *jwtlib.Token) (any, error) {
		return secret, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}
	if parsed == nil || !parsed.Valid {
		return nil, ErrInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.UserID == "" {
		return nil, ErrInvalid
	}
	return claims, nil
}
