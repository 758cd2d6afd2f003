package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ybq204116/LLM-Chat/internal/pkg/response"
)

// Handler manages all HTTP interactions for authentication.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts public auth endpoints and the gated /me and
// /logout under /auth.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup, authGate gin.HandlerFunc) {
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh-token", h.RefreshToken)
		authGroup.GET("/me", authGate, h.GetMe)
		authGroup.POST("/logout", authGate, h.Logout)
	}
}

// Register creates a new account.
// @Summary	Register a new user
// @Param	request	body	RegisterRequest	true	"username, password, phoneNumber"
// @Success	201	{object}	map[string]interface{}
// @Failure	400	{object}	map[string]interface{}
// @Router	/auth/register [POST]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Username, password and phone number are required")
		return
	}

	user, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrUsernameTooShort):
			response.Error(c, http.StatusBadRequest, "USERNAME_TOO_SHORT", "Username must be at least 3 characters")
		case errors.Is(err, ErrPasswordTooShort):
			response.Error(c, http.StatusBadRequest, "PASSWORD_TOO_SHORT", "Password must be at least 6 characters")
		case errors.Is(err, ErrInvalidPhoneNumber):
			response.Error(c, http.StatusBadRequest, "INVALID_PHONE_NUMBER", "Please provide a valid phone number")
		case errors.Is(err, ErrUsernameTaken):
			response.Error(c, http.StatusBadRequest, "USERNAME_EXISTS", "This username is already taken")
		case errors.Is(err, ErrPhoneNumberTaken):
			response.Error(c, http.StatusBadRequest, "PHONE_EXISTS", "This phone number is already registered")
		default:
			response.Error(c, http.StatusInternalServerError, "REGISTRATION_FAILED", "Failed to register")
		}
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"user": user.Public()})
}

// Login verifies credentials and issues an access/refresh token pair.
// @Summary	Log in
// @Param	request	body	LoginRequest	true	"username, password"
// @Success	200	{object}	map[string]interface{}
// @Failure	400	{object}	map[string]interface{}
// @Router	/auth/login [POST]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Username and password are required")
		return
	}

	result, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrUserNotFound):
			response.Error(c, http.StatusBadRequest, "USER_NOT_FOUND", "User does not exist")
		case errors.Is(err, ErrWrongPassword):
			response.Error(c, http.StatusBadRequest, "WRONG_PASSWORD", "Password is incorrect")
		default:
			response.Error(c, http.StatusInternalServerError, "LOGIN_FAILED", "Failed to login")
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token":        result.AccessToken,
		"refreshToken": result.RefreshToken,
		"user":         result.User.Public(),
	})
}

// RefreshToken exchanges a refresh token for a new access token,
// rotating the refresh token when it nears expiry.
// @Summary	Refresh the access token
// @Param	request	body	RefreshRequest	true	"refreshToken"
// @Success	200	{object}	map[string]interface{}
// @Failure	403	{object}	map[string]interface{}
// @Router	/auth/refresh-token [POST]
func (h *Handler) RefreshToken(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		response.Error(c, http.StatusUnauthorized, "REFRESH_TOKEN_REQUIRED", "Please provide a refresh token")
		return
	}

	result, err := h.service.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrRefreshTokenInvalid) {
			response.Error(c, http.StatusForbidden, "REFRESH_TOKEN_INVALID", "Refresh token is invalid or expired")
			return
		}
		response.Error(c, http.StatusInternalServerError, "REFRESH_FAILED", "Failed to refresh token")
		return
	}

	data := gin.H{
		"token": result.AccessToken,
		"user":  result.User.Public(),
	}
	if result.RefreshToken != "" {
		data["refreshToken"] = result.RefreshToken
	}
	response.Success(c, http.StatusOK, data)
}

// GetMe returns the current user without the password field.
// @Summary	Current user profile
// @Security	BearerAuth
// @Success	200	{object}	map[string]interface{}
// @Failure	404	{object}	map[string]interface{}
// @Router	/auth/me [GET]
func (h *Handler) GetMe(c *gin.Context) {
	userID := c.GetString("user_id")

	user, err := h.service.CurrentUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			response.Error(c, http.StatusNotFound, "USER_NOT_FOUND", "User does not exist")
			return
		}
		response.Error(c, http.StatusInternalServerError, "PROFILE_FAILED", "Failed to load profile")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": user.Public()})
}

// Logout invalidates the stored refresh token server-side.
func (h *Handler) Logout(c *gin.Context) {
	userID := c.GetString("user_id")

	if err := h.service.Logout(c.Request.Context(), userID); err != nil {
		response.Error(c, http.StatusInternalServerError, "LOGOUT_FAILED", "Failed to logout")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "logged out"})
}
