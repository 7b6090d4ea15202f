// Package apiclient talks to the SnapReel HTTP API. A Client holds one
// signed-in session and notifies subscribers whenever it changes.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/go-querystring/query"
	"golang.org/x/sync/singleflight"

	"github.com/snapreel/backend/internal/logging"
	"github.com/snapreel/backend/internal/models"
)

// ErrNotSignedIn is returned by calls that need a session when there is none.
var ErrNotSignedIn = errors.New("not signed in")

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client

	// refreshes collapses concurrent refreshes of one refresh token; the
	// server rotates it on first use.
	refreshes singleflight.Group
	now       func() time.Time

	mu      sync.Mutex
	tokens  models.SessionTokens
	account *models.Account
	subs    map[int]func(*models.Account)
	nextSub int
}

// expirySkew renews access tokens slightly before the server would reject them.
const expirySkew = 5 * time.Second

// New validates cfg and returns a signed-out Client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("apiclient: base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("apiclient: invalid base url %q: %w", base, err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = time.Minute
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{baseURL: base, http: httpClient, now: time.Now, subs: make(map[int]func(*models.Account))}, nil
}

// Subscribe registers fn for account changes. fn is called once immediately
// with the current account (nil when signed out) and then after every
// sign-in or sign-out. The returned func unsubscribes.
func (c *Client) Subscribe(fn func(*models.Account)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	current := copyAccount(c.account)
	c.mu.Unlock()

	fn(current)
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Account returns the signed-in account, if any.
func (c *Client) Account() *models.Account {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyAccount(c.account)
}

func (c *Client) setSession(account *models.Account, tokens models.SessionTokens) {
	c.mu.Lock()
	c.account = copyAccount(account)
	c.tokens = tokens
	subs := make([]func(*models.Account), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(copyAccount(account))
	}
}

func copyAccount(a *models.Account) *models.Account {
	if a == nil {
		return nil
	}
	out := *a
	return &out
}

func (c *Client) accessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens.AccessToken
}

func (c *Client) refreshToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens.RefreshToken
}

// call sends a JSON request and decodes a JSON response into out (when
// non-nil). Authenticated calls that get a 401 refresh the session once and
// retry.
func (c *Client) call(ctx context.Context, method, path string, params any, body any, out any, authed bool) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	target := c.baseURL + path
	if params != nil {
		values, err := query.Values(params)
		if err != nil {
			return fmt.Errorf("encode query: %w", err)
		}
		if encoded := values.Encode(); encoded != "" {
			target += "?" + encoded
		}
	}

	// attempt returns the access token it sent so a 401 can be matched to it.
	attempt := func() (*http.Response, string, error) {
		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
		if err != nil {
			return nil, "", err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		var token string
		if authed {
			if token = c.accessToken(); token == "" {
				return nil, "", ErrNotSignedIn
			}
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := c.http.Do(req)
		return resp, token, err
	}

	if authed {
		if err := c.ensureFresh(ctx); err != nil {
			return err
		}
	}
	resp, sent, err := attempt()
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if authed && resp.StatusCode == http.StatusUnauthorized && c.refreshToken() != "" {
		drain(resp)
		if err := c.renew(ctx, sent); err != nil {
			return err
		}
		if resp, _, err = attempt(); err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
	}
	return decodeResponse(resp, out)
}

// ensureFresh renews an access token that is about to expire.
func (c *Client) ensureFresh(ctx context.Context) error {
	c.mu.Lock()
	tokens := c.tokens
	c.mu.Unlock()
	if tokens.AccessToken == "" || tokens.RefreshToken == "" || tokens.AccessExpiresAt.IsZero() {
		return nil
	}
	if c.now().Add(expirySkew).Before(tokens.AccessExpiresAt) {
		return nil
	}
	return c.renew(ctx, tokens.AccessToken)
}

// renew refreshes the session after rejected was turned down, unless another
// call has already replaced it.
func (c *Client) renew(ctx context.Context, rejected string) error {
	if current := c.accessToken(); current != "" && current != rejected {
		return nil
	}
	return c.Refresh(ctx)
}

func decodeResponse(resp *http.Response, out any) error {
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)
		return &APIError{Status: resp.StatusCode, Message: body.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

type authResponse struct {
	Account models.Account       `json:"account"`
	Tokens  models.SessionTokens `json:"tokens"`
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (models.Account, error) {
	var resp authResponse
	if err := c.call(ctx, http.MethodPost, path, nil, body, &resp, false); err != nil {
		return models.Account{}, err
	}
	c.setSession(&resp.Account, resp.Tokens)
	logging.FromContext(ctx).Debug("session established", "userId", resp.Account.UID)
	return resp.Account, nil
}

// SignIn authenticates with email and password.
func (c *Client) SignIn(ctx context.Context, email, password string) (models.Account, error) {
	return c.authenticate(ctx, "/api/v1/auth/login", map[string]string{"email": email, "password": password})
}

// SignUp creates an account and signs it in.
func (c *Client) SignUp(ctx context.Context, email, password, name string) (models.Account, error) {
	return c.authenticate(ctx, "/api/v1/auth/signup", map[string]string{"email": email, "password": password, "name": name})
}

// SignInWithGoogle redeems an OAuth authorization code.
func (c *Client) SignInWithGoogle(ctx context.Context, code string) (models.Account, error) {
	return c.authenticate(ctx, "/api/v1/auth/google", map[string]string{"code": code})
}

// Refresh rotates the session tokens. Concurrent callers holding the same
// refresh token share one request. A rejected refresh signs the client out.
func (c *Client) Refresh(ctx context.Context) error {
	token := c.refreshToken()
	if token == "" {
		return ErrNotSignedIn
	}
	_, err, _ := c.refreshes.Do(token, func() (any, error) {
		return nil, c.rotate(context.WithoutCancel(ctx), token)
	})
	return err
}

func (c *Client) rotate(ctx context.Context, token string) error {
	var resp authResponse
	err := c.call(ctx, http.MethodPost, "/api/v1/auth/refresh", nil, map[string]string{"refreshToken": token}, &resp, false)
	if err != nil {
		if StatusOf(err) == http.StatusUnauthorized && c.refreshToken() == token {
			c.setSession(nil, models.SessionTokens{})
		}
		return err
	}
	c.setSession(&resp.Account, resp.Tokens)
	return nil
}

// SignOut revokes the refresh token and clears the session. The local
// session is cleared even when the server call fails.
func (c *Client) SignOut(ctx context.Context) error {
	token := c.refreshToken()
	defer c.setSession(nil, models.SessionTokens{})
	if token == "" {
		return nil
	}
	return c.call(ctx, http.MethodPost, "/api/v1/auth/logout", nil, map[string]string{"refreshToken": token}, nil, false)
}
