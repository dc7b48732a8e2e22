package biotime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Controllers differ in which field carries the token
type loginResponse struct {
	Token       string `json:"token"`
	Access      string `json:"access"`
	AccessToken string `json:"access_token"`
}

func (r loginResponse) value() string {
	switch {
	case r.Token != "":
		return r.Token
	case r.Access != "":
		return r.Access
	default:
		return r.AccessToken
	}
}

// Login authenticates against the controller, caches the token for the
// configured TTL and returns it. Concurrent callers share one request.
func (c *Client) Login(ctx context.Context) (string, error) {
	return c.coalescedLogin(ctx, false)
}

// coalescedLogin runs at most one login at a time. With reuseValid, a caller
// that queued behind a login which has just finished takes the fresh token
// instead of starting another one.
func (c *Client) coalescedLogin(ctx context.Context, reuseValid bool) (string, error) {
	v, err, shared := c.logins.Do("login", func() (interface{}, error) {
		if reuseValid {
			if token, _, ok := c.cached(); ok {
				return token, nil
			}
		}
		// Coalesced callers must not fail because the first caller went away;
		// the HTTP timeout still bounds the request.
		return c.login(context.WithoutCancel(ctx))
	})
	if err != nil {
		return "", err
	}
	if shared {
		slog.Debug("BioTime: joined in-flight login")
	}
	return v.(string), nil
}

func (c *Client) login(ctx context.Context) (string, error) {
	body, err := json.Marshal(loginRequest{Username: c.username, Password: c.password})
	if err != nil {
		return "", fmt.Errorf("failed to encode login request: %w", err)
	}

	u := c.endpoint(loginPath, nil)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	httpClient := &http.Client{Timeout: c.timeout, Transport: c.transport}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", &ExternalServiceError{Path: u.Path, Message: "login request failed", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest ||
		resp.StatusCode == http.StatusUnauthorized ||
		resp.StatusCode == http.StatusForbidden:
		return "", &AuthenticationError{StatusCode: resp.StatusCode, Message: readSnippet(resp.Body)}
	case resp.StatusCode != http.StatusOK:
		return "", &ExternalServiceError{StatusCode: resp.StatusCode, Path: u.Path, Message: readSnippet(resp.Body)}
	}

	var out loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &ExternalServiceError{StatusCode: resp.StatusCode, Path: u.Path, Message: "invalid login response", Err: err}
	}
	token := out.value()
	if token == "" {
		return "", &AuthenticationError{StatusCode: resp.StatusCode, Message: "login succeeded but no token returned"}
	}

	c.mu.Lock()
	c.token = token
	c.expiresAt = c.now().Add(c.tokenTTL)
	c.mu.Unlock()

	slog.Info("BioTime: login successful", "user", c.username)
	return token, nil
}

func (c *Client) cached() (string, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiresAt) {
		return c.token, c.expiresAt, true
	}
	return "", time.Time{}, false
}

// currentToken returns the cached token, logging in when it is missing or expired.
func (c *Client) currentToken(ctx context.Context) (string, time.Time, error) {
	if token, expiresAt, ok := c.cached(); ok {
		return token, expiresAt, nil
	}

	token, err := c.coalescedLogin(ctx, true)
	if err != nil {
		return "", time.Time{}, err
	}

	c.mu.Lock()
	expiresAt := c.expiresAt
	c.mu.Unlock()
	return token, expiresAt, nil
}

// invalidate drops the cached token if it is still the rejected one. A token
// another caller already replaced is kept.
func (c *Client) invalidate(rejected string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if rejected == "" || c.token == rejected {
		c.token = ""
		c.expiresAt = time.Time{}
	}
}
