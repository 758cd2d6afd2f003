package apiclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
)

type refreshOutcome struct {
	accessToken string
	err         error
}

// refreshGate serializes token refreshes. The first caller to find the
// gate idle performs the refresh; everyone arriving while it is in
// flight waits on a channel and is settled with the same outcome.
type refreshGate struct {
	refreshing bool
	waiters    []chan refreshOutcome
}

// refreshAccess returns a usable access token, performing at most one
// server round-trip regardless of how many goroutines call it
// concurrently. On failure the client's credentials are wiped, so
// every waiter observes the logged-out state.
func (c *Client) refreshAccess(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.gate.refreshing {
		ch := make(chan refreshOutcome, 1)
		c.gate.waiters = append(c.gate.waiters, ch)
		c.mu.Unlock()
		select {
		case out := <-ch:
			return out.accessToken, out.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	c.gate.refreshing = true
	c.mu.Unlock()

	access, err := c.callRefresh(ctx)

	c.mu.Lock()
	c.gate.refreshing = false
	waiters := c.gate.waiters
	c.gate.waiters = nil
	c.mu.Unlock()

	for _, w := range waiters {
		w <- refreshOutcome{accessToken: access, err: err}
	}
	return access, err
}

func (c *Client) callRefresh(ctx context.Context) (string, error) {
	_, refresh := c.Tokens()
	if refresh == "" {
		c.clearTokens()
		return "", ErrNotAuthenticated
	}

	body, err := json.Marshal(map[string]string{"refreshToken": refresh})
	if err != nil {
		return "", err
	}
	resp, err := c.send(ctx, http.MethodPost, "/api/auth/refresh-token", body)
	if err != nil {
		c.clearTokens()
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := decodeAPIError(resp)
		c.clearTokens()
		return "", apiErr
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.clearTokens()
		return "", err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.clearTokens()
		return "", err
	}
	var data struct {
		Token        string `json:"token"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		c.clearTokens()
		return "", err
	}

	c.mu.Lock()
	c.accessToken = data.Token
	if data.RefreshToken != "" {
		// Rotated near expiry; otherwise the old one stays valid.
		c.refreshToken = data.RefreshToken
	}
	c.mu.Unlock()

	return data.Token, nil
}
