package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// UpstreamClient talks to an OpenAI-compatible completion/image API with
// a server-held key. The zero-timeout client is deliberate: streaming
// completions keep the connection open for as long as generation runs,
// and cancellation flows through the request context instead.
type UpstreamClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewUpstreamClient(baseURL, apiKey string, httpClient *http.Client) *UpstreamClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &UpstreamClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

func (u *UpstreamClient) ChatCompletions(ctx context.Context, payload map[string]any) (*http.Response, error) {
	return u.post(ctx, "/chat/completions", payload)
}

func (u *UpstreamClient) ImageGenerations(ctx context.Context, payload map[string]any) (*http.Response, error) {
	return u.post(ctx, "/images/generations", payload)
}

func (u *UpstreamClient) post(ctx context.Context, path string, payload map[string]any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode upstream payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+u.apiKey)
	req.Header.Set("Content-Type", "application/json")

	return u.httpClient.Do(req)
}

// Download fetches a generated image so it can be persisted locally.
func (u *UpstreamClient) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image download returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
