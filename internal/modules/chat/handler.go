package chat

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ybq204116/LLM-Chat/internal/domain"
	"github.com/ybq204116/LLM-Chat/internal/pkg/response"
)

// Handler manages all HTTP interactions for the chat module. All routes
// sit behind the auth gate.
type Handler struct {
	service       *Service
	upstream      Upstream
	publicBaseURL string
	logger        *zap.Logger
}

func NewHandler(service *Service, upstream Upstream, publicBaseURL string, logger *zap.Logger) *Handler {
	return &Handler{
		service:       service,
		upstream:      upstream,
		publicBaseURL: publicBaseURL,
		logger:        logger,
	}
}

func (h *Handler) RegisterRoutes(chatGroup *gin.RouterGroup) {
	chatGroup.POST("/completions", h.ProxyChat)
	chatGroup.POST("/images/generations", h.ProxyImageGeneration)
	chatGroup.GET("/conversations", h.ListConversations)
	chatGroup.POST("/conversations", h.CreateConversation)
	chatGroup.PATCH("/conversations/:conversationId", h.UpdateConversation)
	chatGroup.DELETE("/conversations/:conversationId", h.DeleteConversation)
	chatGroup.GET("/conversations/:conversationId/messages", h.ListMessages)
	chatGroup.POST("/messages", h.SaveMessage)
	chatGroup.DELETE("/messages/:messageId", h.DeleteMessage)
}

// ProxyChat forwards a completion request to the upstream provider.
// Unknown payload fields pass through untouched. With stream=true the
// upstream SSE body is forwarded chunk by chunk; the deferred close and
// the request context cover cleanup on upstream error, consumer
// disconnect, and normal completion alike.
func (h *Handler) ProxyChat(c *gin.Context) {
	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	stream, _ := payload["stream"].(bool)

	resp, err := h.upstream.ChatCompletions(c.Request.Context(), payload)
	if err != nil {
		response.Error(c, http.StatusBadGateway, "UPSTREAM_ERROR", "Proxy request failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		h.relayUpstreamError(c, resp)
		return
	}

	if !stream {
		c.DataFromReader(resp.StatusCode, resp.ContentLength, "application/json", resp.Body, nil)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := c.Writer.Write(buf[:n]); writeErr != nil {
				// Consumer went away; the deferred close tears down upstream.
				return
			}
			c.Writer.Flush()
		}
		if readErr != nil {
			if !errors.Is(readErr, io.EOF) && c.Request.Context().Err() == nil {
				h.logger.Error("upstream stream error", zap.Error(readErr))
			}
			return
		}
	}
}

// ProxyImageGeneration forwards an image request, then downloads each
// returned image and rewrites its URL to a locally served path before
// responding.
func (h *Handler) ProxyImageGeneration(c *gin.Context) {
	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	resp, err := h.upstream.ImageGenerations(c.Request.Context(), payload)
	if err != nil {
		response.Error(c, http.StatusBadGateway, "UPSTREAM_ERROR", "Proxy request failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		h.relayUpstreamError(c, resp)
		return
	}

	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		response.Error(c, http.StatusBadGateway, "UPSTREAM_ERROR", "Invalid upstream response")
		return
	}

	h.service.LocalizeImages(c.Request.Context(), data, h.baseURL(c))
	c.JSON(http.StatusOK, data)
}

// relayUpstreamError propagates the upstream status and message instead
// of masking provider failures. Never retried automatically.
func (h *Handler) relayUpstreamError(c *gin.Context, resp *http.Response) {
	message := "Proxy request failed"
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil && len(body) > 0 {
		var parsed struct {
			Message string `json:"message"`
			Error   struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &parsed) == nil {
			if parsed.Message != "" {
				message = parsed.Message
			} else if parsed.Error.Message != "" {
				message = parsed.Error.Message
			}
		}
	}
	h.logger.Warn("upstream request failed", zap.Int("status", resp.StatusCode), zap.String("message", message))
	response.Error(c, resp.StatusCode, "UPSTREAM_ERROR", message)
}

func (h *Handler) baseURL(c *gin.Context) string {
	if h.publicBaseURL != "" {
		return h.publicBaseURL
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}

func (h *Handler) ListConversations(c *gin.Context) {
	userID := c.GetString("user_id")

	convs, err := h.service.Conversations(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "CONVERSATIONS_FAILED", "Failed to list conversations")
		return
	}
	response.Success(c, http.StatusOK, convs)
}

func (h *Handler) CreateConversation(c *gin.Context) {
	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	conv, err := h.service.CreateConversation(c.Request.Context(), c.GetString("user_id"), req.Title, req.Model)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "CONVERSATION_CREATE_FAILED", "Failed to create conversation")
		return
	}
	response.Success(c, http.StatusCreated, conv)
}

func (h *Handler) UpdateConversation(c *gin.Context) {
	var req UpdateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	conv, err := h.service.RenameConversation(c.Request.Context(), c.Param("conversationId"), req.Title)
	if err != nil {
		if errors.Is(err, ErrConversationNotFound) {
			response.Error(c, http.StatusNotFound, "CONVERSATION_NOT_FOUND", "Conversation does not exist")
			return
		}
		response.Error(c, http.StatusInternalServerError, "CONVERSATION_UPDATE_FAILED", "Failed to update conversation")
		return
	}
	response.Success(c, http.StatusOK, conv)
}

func (h *Handler) DeleteConversation(c *gin.Context) {
	if err := h.service.DeleteConversation(c.Request.Context(), c.Param("conversationId")); err != nil {
		response.Error(c, http.StatusInternalServerError, "CONVERSATION_DELETE_FAILED", "Failed to delete conversation")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "conversation deleted"})
}

func (h *Handler) ListMessages(c *gin.Context) {
	msgs, err := h.service.Messages(c.Request.Context(), c.Param("conversationId"))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "MESSAGES_FAILED", "Failed to list messages")
		return
	}
	response.Success(c, http.StatusOK, msgs)
}

func (h *Handler) SaveMessage(c *gin.Context) {
	var req SaveMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	msg, err := h.service.SaveMessage(c.Request.Context(), req.ConversationID, domain.MessageRole(req.Role), req.Content, req.ReasoningContent)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "MESSAGE_SAVE_FAILED", "Failed to save message")
		return
	}
	response.Success(c, http.StatusCreated, msg)
}

func (h *Handler) DeleteMessage(c *gin.Context) {
	messageID := c.Param("messageId")

	if err := h.service.DeleteMessage(c.Request.Context(), messageID); err != nil {
		if errors.Is(err, ErrMessageNotFound) {
			response.Error(c, http.StatusNotFound, "MESSAGE_NOT_FOUND", "Message does not exist")
			return
		}
		response.Error(c, http.StatusInternalServerError, "MESSAGE_DELETE_FAILED", "Failed to delete message")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "message deleted", "id": messageID})
}
