// Package apiclient is the Go client for the LLM-Chat API. It handles
// bearer-token injection, transparent single-flight token refresh with
// replay, and consumption of streamed completion responses.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNotAuthenticated is returned when a refresh is needed but no
// refresh token is held.
var ErrNotAuthenticated = errors.New("apiclient: not authenticated")

// Error is an API-level failure decoded from the server's error envelope.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("apiclient: %d %s: %s", e.Status, e.Code, e.Message)
}

type User struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	PhoneNumber string    `json:"phoneNumber"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Session struct {
	User         User
	AccessToken  string
	RefreshToken string
}

type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Message struct {
	ID               string    `json:"id"`
	ConversationID   string    `json:"conversationId"`
	Role             string    `json:"role"`
	Content          string    `json:"content"`
	ReasoningContent string    `json:"reasoning_content,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// Client is a stateful API client. The refresh gate it owns is the only
// shared mutable state; it guarantees at most one in-flight refresh per
// Client no matter how many requests fail authorization at once.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger

	mu           sync.Mutex
	accessToken  string
	refreshToken string

	gate refreshGate
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTokens seeds a previously persisted token pair.
func WithTokens(access, refresh string) Option {
	return func(c *Client) {
		c.accessToken = access
		c.refreshToken = refresh
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tokens returns the currently held token pair.
func (c *Client) Tokens() (access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken, c.refreshToken
}

// SetTokens replaces the held token pair.
func (c *Client) SetTokens(access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = access
	c.refreshToken = refresh
}

func (c *Client) clearTokens() {
	c.SetTokens("", "")
}

func (c *Client) Register(ctx context.Context, username, password, phoneNumber string) error {
	in := map[string]string{"username": username, "password": password, "phoneNumber": phoneNumber}
	return c.do(ctx, http.MethodPost, "/api/auth/register", in, nil)
}

func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	in := map[string]string{"username": username, "password": password}
	var data struct {
		Token        string `json:"token"`
		RefreshToken string `json:"refreshToken"`
		User         User   `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", in, &data); err != nil {
		return nil, err
	}
	c.SetTokens(data.Token, data.RefreshToken)
	return &Session{User: data.User, AccessToken: data.Token, RefreshToken: data.RefreshToken}, nil
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var data struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &data); err != nil {
		return nil, err
	}
	return &data.User, nil
}

// Logout invalidates the refresh token server-side and always wipes
// local credentials, even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	c.clearTokens()
	return err
}

func (c *Client) Conversations(ctx context.Context) ([]Conversation, error) {
	var convs []Conversation
	if err := c.do(ctx, http.MethodGet, "/api/chat/conversations", nil, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

func (c *Client) CreateConversation(ctx context.Context, title, model string) (*Conversation, error) {
	in := map[string]string{"title": title, "model": model}
	var conv Conversation
	if err := c.do(ctx, http.MethodPost, "/api/chat/conversations", in, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *Client) RenameConversation(ctx context.Context, id, title string) (*Conversation, error) {
	in := map[string]string{"title": title}
	var conv Conversation
	if err := c.do(ctx, http.MethodPatch, "/api/chat/conversations/"+id, in, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/chat/conversations/"+id, nil, nil)
}

func (c *Client) Messages(ctx context.Context, conversationID string) ([]Message, error) {
	var msgs []Message
	if err := c.do(ctx, http.MethodGet, "/api/chat/conversations/"+conversationID+"/messages", nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (c *Client) SaveMessage(ctx context.Context, conversationID, role, content string) (*Message, error) {
	in := map[string]string{"conversationId": conversationID, "role": role, "content": content}
	var msg Message
	if err := c.do(ctx, http.MethodPost, "/api/chat/messages", in, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/chat/messages/"+id, nil, nil)
}

// Complete performs a non-streaming completion; the upstream JSON is
// relayed as-is by the server, so the reply is decoded into a generic map.
func (c *Client) Complete(ctx context.Context, payload map[string]any) (map[string]any, error) {
	return c.doRaw(ctx, "/api/chat/completions", payload)
}

// GenerateImages requests image generation; returned URLs point at the
// server's local uploads path.
func (c *Client) GenerateImages(ctx context.Context, payload map[string]any) (map[string]any, error) {
	return c.doRaw(ctx, "/api/chat/images/generations", payload)
}

// StreamCompletion performs a streaming completion and folds the SSE
// deltas through onUpdate; see ProcessStream for the accumulation
// contract.
func (c *Client) StreamCompletion(ctx context.Context, payload map[string]any, onUpdate UpdateFunc) error {
	cloned := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		cloned[k] = v
	}
	cloned["stream"] = true

	body, err := json.Marshal(cloned)
	if err != nil {
		return err
	}
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/chat/completions", body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return decodeAPIError(resp)
	}
	return ProcessStream(ctx, resp.Body, onUpdate, c.logger)
}

func (c *Client) doRaw(ctx context.Context, path string, payload map[string]any) (map[string]any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	resp, err := c.doRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeAPIError(resp)
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// do sends a JSON request through the refresh-and-retry layer and
// decodes the server envelope.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return err
		}
	}

	resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &Error{Status: resp.StatusCode, Code: "BAD_RESPONSE", Message: http.StatusText(resp.StatusCode)}
	}
	if !env.Success {
		apiErr := &Error{Status: resp.StatusCode, Code: "UNKNOWN", Message: http.StatusText(resp.StatusCode)}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil && env.Data != nil {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

// doRequest sends the request with the current access token. On an
// authorization failure it obtains a fresh token (joining an in-flight
// refresh rather than starting a second one) and replays exactly once;
// a second authorization failure goes back to the caller.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if !isAuthFailure(resp.StatusCode) {
		return resp, nil
	}

	io.Copy(io.Discard, resp.Body) //nolint:errcheck
	resp.Body.Close()

	if _, err := c.refreshAccess(ctx); err != nil {
		return nil, err
	}
	return c.send(ctx, method, path, body)
}

func (c *Client) send(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if access, _ := c.Tokens(); access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}
	return c.httpClient.Do(req)
}

func isAuthFailure(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var env envelope
	if json.Unmarshal(raw, &env) == nil && env.Error != nil {
		return &Error{Status: resp.StatusCode, Code: env.Error.Code, Message: env.Error.Message}
	}
	return &Error{Status: resp.StatusCode, Code: "UNKNOWN", Message: http.StatusText(resp.StatusCode)}
}
