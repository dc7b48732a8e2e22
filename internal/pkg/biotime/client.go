package biotime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	loginPath        = "/jwt-api-token-auth/"
	transactionsPath = "/iclock/api/transactions/"
	employeesPath    = "/personnel/api/employees/"

	// Controller accepts "JWT <token>" on its REST API
	tokenType = "JWT"
)

// Config configures a Client.
type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
	TokenTTL time.Duration
	PageSize int
	MaxPages int
	Location *time.Location
}

// Client talks to a BioTime device controller. It owns the auth token cache:
// the token lives on the client, expiry is judged with an injectable clock and
// concurrent re-logins are coalesced into one request.
type Client struct {
	baseURL   *url.URL
	username  string
	password  string
	timeout   time.Duration
	tokenTTL  time.Duration
	pageSize  int
	maxPages  int
	loc       *time.Location
	transport http.RoundTripper
	now       func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	logins    singleflight.Group
}

type Option func(*Client)

// WithClock replaces time.Now for token expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithTransport sets the base round tripper used for every request.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.transport = rt }
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid biotime base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid biotime base url %q: scheme and host are required", cfg.BaseURL)
	}

	c := &Client{
		baseURL:   base,
		username:  cfg.Username,
		password:  cfg.Password,
		timeout:   cfg.Timeout,
		tokenTTL:  cfg.TokenTTL,
		pageSize:  cfg.PageSize,
		maxPages:  cfg.MaxPages,
		loc:       cfg.Location,
		transport: http.DefaultTransport,
		now:       time.Now,
	}
	if c.timeout <= 0 {
		c.timeout = 15 * time.Second
	}
	if c.tokenTTL <= 0 {
		c.tokenTTL = 25 * time.Minute
	}
	if c.pageSize <= 0 {
		c.pageSize = 200
	}
	if c.maxPages <= 0 {
		c.maxPages = 100
	}
	if c.loc == nil {
		c.loc = time.UTC
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Location is the timezone the controller reports wall-clock times in.
func (c *Client) Location() *time.Location {
	return c.loc
}

func (c *Client) endpoint(path string, query url.Values) *url.URL {
	u := *c.baseURL
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return &u
}

// tokenSource hands the cached token to oauth2.Transport and remembers which
// token it issued for this one request.
type tokenSource struct {
	ctx    context.Context
	client *Client
	issued string
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	tok, expiresAt, err := ts.client.currentToken(ts.ctx)
	if err != nil {
		return nil, err
	}
	ts.issued = tok
	return &oauth2.Token{AccessToken: tok, TokenType: tokenType, Expiry: expiresAt}, nil
}

// getJSON performs an authenticated GET. An unauthorized response drops the
// rejected token, re-authenticates once and retries once.
func (c *Client) getJSON(ctx context.Context, u *url.URL, out interface{}) error {
	err := c.getOnce(ctx, u, out)

	var unauth *unauthorizedError
	if !errors.As(err, &unauth) {
		return err
	}

	slog.Warn("BioTime: request unauthorized, re-authenticating", "path", u.Path, "status", unauth.status)
	c.invalidate(unauth.token)

	err = c.getOnce(ctx, u, out)
	if errors.As(err, &unauth) {
		return &AuthenticationError{StatusCode: unauth.status, Message: "request rejected after re-login"}
	}
	return err
}

func (c *Client) getOnce(ctx context.Context, u *url.URL, out interface{}) error {
	ts := &tokenSource{ctx: ctx, client: c}
	httpClient := &http.Client{
		Timeout:   c.timeout,
		Transport: &oauth2.Transport{Source: ts, Base: c.transport},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		var authErr *AuthenticationError
		if errors.As(err, &authErr) {
			return authErr
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		var svcErr *ExternalServiceError
		if errors.As(err, &svcErr) {
			return svcErr
		}
		return &ExternalServiceError{Path: u.Path, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		_, _ = io.Copy(io.Discard, resp.Body)
		return &unauthorizedError{status: resp.StatusCode, token: ts.issued}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &ExternalServiceError{StatusCode: resp.StatusCode, Path: u.Path, Message: readSnippet(resp.Body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ExternalServiceError{StatusCode: resp.StatusCode, Path: u.Path, Message: "invalid response body", Err: err}
	}
	return nil
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(b))
}
