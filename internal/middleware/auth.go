package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ybq204116/LLM-Chat/internal/domain"
	"github.com/ybq204116/LLM-Chat/internal/pkg/response"
	"github.com/ybq204116/LLM-Chat/internal/pkg/token"
)

// UserResolver is the slice of the user repository the gate needs.
type UserResolver interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// Auth validates the bearer access token on every protected request and
// resolves it to the caller identity. Status mapping: missing token is
// 401, a token that fails verification is 403, and a valid token whose
// user no longer exists is 401 (forces client logout instead of a
// silent refresh retry).
func Auth(tokens *token.Service, users UserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.AbortError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing Authorization header")
			return
		}

		tokenStr := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if tokenStr == "" || tokenStr == header {
			response.AbortError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid Authorization header")
			return
		}

		claims, err := tokens.Verify(tokenStr, token.KindAccess)
		if err != nil {
			response.AbortError(c, http.StatusForbidden, "TOKEN_INVALID", "Token is invalid or expired")
			return
		}

		user, err := users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				response.AbortError(c, http.StatusUnauthorized, "USER_GONE", "User no longer exists")
				return
			}
			response.AbortError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to resolve user")
			return
		}

		c.Set("user_id", user.ID)
		c.Set("username", user.Username)
		c.Next()
	}
}
