package chat

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func upstreamResponse(status int, contentType, body string) *http.Response {
	return &http.Response{
		StatusCode:    status,
		Header:        http.Header{"Content-Type": []string{contentType}},
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
	}
}

func newChatRouter(t *testing.T, up *mockUpstream) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	service := NewService(new(mockConversationRepo), new(mockMessageRepo), up, t.TempDir(), zap.NewNop())
	handler := NewHandler(service, up, "http://localhost:3000", zap.NewNop())

	router := gin.New()
	handler.RegisterRoutes(router.Group("/api/chat"))
	return router
}

func TestProxyChat_NonStreamRelaysRawJSON(t *testing.T) {
	up := new(mockUpstream)
	upstreamBody := `{"id":"cmpl-1","choices":[{"message":{"content":"hi"}}]}`
	up.On("ChatCompletions", mock.Anything, mock.Anything).
		Return(upstreamResponse(http.StatusOK, "application/json", upstreamBody), nil)

	router := newChatRouter(t, up)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/chat/completions",
		strings.NewReader(`{"model":"deepseek-ai/DeepSeek-V3","messages":[],"stream":false}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	// No envelope: the upstream reply passes through untouched.
	assert.JSONEq(t, upstreamBody, w.Body.String())
}

func TestProxyChat_StreamRelaysSSE(t *testing.T) {
	up := new(mockUpstream)
	sse := "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n" +
		"data: [DONE]\n\n"
	up.On("ChatCompletions", mock.Anything, mock.Anything).
		Return(upstreamResponse(http.StatusOK, "text/event-stream", sse), nil)

	router := newChatRouter(t, up)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/chat/completions",
		strings.NewReader(`{"model":"deepseek-ai/DeepSeek-V3","messages":[],"stream":true}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, sse, w.Body.String())
}

func TestProxyChat_RelaysUpstreamErrorStatus(t *testing.T) {
	up := new(mockUpstream)
	up.On("ChatCompletions", mock.Anything, mock.Anything).
		Return(upstreamResponse(http.StatusTooManyRequests, "application/json",
			`{"message":"rate limit exceeded"}`), nil)

	router := newChatRouter(t, up)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/chat/completions",
		strings.NewReader(`{"model":"deepseek-ai/DeepSeek-V3","messages":[]}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "UPSTREAM_ERROR")
	assert.Contains(t, w.Body.String(), "rate limit exceeded")
}

func TestProxyChat_UpstreamUnreachable(t *testing.T) {
	up := new(mockUpstream)
	up.On("ChatCompletions", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	router := newChatRouter(t, up)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/chat/completions",
		strings.NewReader(`{"model":"deepseek-ai/DeepSeek-V3","messages":[]}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "UPSTREAM_ERROR")
}

func TestProxyImageGeneration_LocalizesURLs(t *testing.T) {
	up := new(mockUpstream)
	up.On("ImageGenerations", mock.Anything, mock.Anything).
		Return(upstreamResponse(http.StatusOK, "application/json",
			`{"images":[{"url":"https://cdn.example.com/img/gen.png"}],"seed":42}`), nil)
	up.On("Download", mock.Anything, "https://cdn.example.com/img/gen.png").
		Return([]byte("png-bytes"), nil)

	router := newChatRouter(t, up)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/chat/images/generations",
		strings.NewReader(`{"model":"Kwai-Kolors/Kolors","prompt":"a cat"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	images := body["images"].([]any)
	assert.Contains(t, images[0].(map[string]any)["url"], "/uploads/")
	// Non-image fields of the upstream reply survive.
	assert.Equal(t, float64(42), body["seed"])
}
