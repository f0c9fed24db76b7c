// Package client is the storefront's HTTP layer. It attaches the bearer and CSRF
// tokens, and tears the session down when the API reports an expired session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"luxio/locale"
	"luxio/models"
	"luxio/session"
	"luxio/storage"
)

const HeaderCSRFToken = "X-CSRF-Token"

var ErrSessionExpired = errors.New("session expired")

// SessionListener is told when the API invalidated the session. redirectURL is the
// login prompt for the current language.
type SessionListener interface {
	SessionExpired(ctx context.Context, redirectURL string)
}

type SessionListenerFunc func(ctx context.Context, redirectURL string)

func (f SessionListenerFunc) SessionExpired(ctx context.Context, redirectURL string) {
	f(ctx, redirectURL)
}

type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

var sessionCodes = map[string]bool{
	models.CodeJWTExpired:     true,
	models.CodeSessionExpired: true,
	models.CodeInvalidToken:   true,
	models.CodeTokenMissing:   true,
	models.CodeUserNotFound:   true,
}

func isCSRFCode(code string) bool {
	return code == models.CodeCSRFMissing || code == models.CodeCSRFInvalid
}

type Client struct {
	baseURL  string
	http     *http.Client
	tokens   *session.Tokens
	csrf     *session.CSRFCache
	session  storage.Store
	listener SessionListener
	location func() string

	csrfMaxAge time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithSessionListener(l SessionListener) Option {
	return func(c *Client) { c.listener = l }
}

// WithLocation supplies the current page path, used to keep the language prefix on
// the login redirect.
func WithLocation(fn func() string) Option {
	return func(c *Client) { c.location = fn }
}

func WithCSRFMaxAge(d time.Duration) Option {
	return func(c *Client) { c.csrfMaxAge = d }
}

// defaultHTTPClient keeps cookies, since CSRF tokens are only honoured together with
// the cookie set when they were fetched.
func defaultHTTPClient() *http.Client {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return &http.Client{Timeout: 15 * time.Second}
	}
	return &http.Client{Timeout: 15 * time.Second, Jar: jar}
}

// New builds a client persisting tokens in local and clearing sessionStore on
// teardown.
func New(baseURL string, local, sessionStore storage.Store, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     defaultHTTPClient(),
		tokens:   session.NewTokens(local),
		session:  sessionStore,
		location: func() string { return "/" },
	}
	for _, opt := range opts {
		opt(c)
	}
	c.csrf = session.NewCSRFCache(local, c.csrfMaxAge)
	return c
}

func (c *Client) Tokens() *session.Tokens {
	return c.tokens
}

func (c *Client) Teardown(ctx context.Context) {
	session.Teardown(ctx, c.tokens, c.csrf, c.session)
}

func isMutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

func (c *Client) csrfToken(ctx context.Context) (string, error) {
	if token, ok := c.csrf.Get(ctx); ok {
		return token, nil
	}
	var resp struct {
		CSRFToken string `json:"csrfToken"`
	}
	if err := c.send(ctx, http.MethodGet, "/api/csrf-token", nil, &resp, ""); err != nil {
		return "", fmt.Errorf("fetch csrf token: %w", err)
	}
	if resp.CSRFToken == "" {
		return "", errors.New("fetch csrf token: empty token")
	}
	c.csrf.Put(ctx, resp.CSRFToken)
	return resp.CSRFToken, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var csrf string
	if isMutating(method) {
		token, err := c.csrfToken(ctx)
		if err != nil {
			return err
		}
		csrf = token
	}
	return c.send(ctx, method, path, body, out, csrf)
}

func (c *Client) send(ctx context.Context, method, path string, body, out any, csrf string) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, ok := c.tokens.Get(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if csrf != "" {
		req.Header.Set(HeaderCSRFToken, csrf)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
		return nil
	}

	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var payload models.ErrorResponse
	if data, err := io.ReadAll(resp.Body); err == nil && json.Unmarshal(data, &payload) == nil {
		if payload.Error != "" {
			apiErr.Message = payload.Error
		}
		apiErr.Code = payload.Code
	}
	return c.handleError(ctx, apiErr)
}

func (c *Client) handleError(ctx context.Context, apiErr *APIError) error {
	if (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden) && isCSRFCode(apiErr.Code) {
		c.csrf.Reset(ctx)
		return apiErr
	}
	if apiErr.Status == http.StatusUnauthorized && sessionCodes[apiErr.Code] {
		log.Printf("client: session ended by server (%s), logging out", apiErr.Code)
		c.Teardown(ctx)
		if c.listener != nil {
			c.listener.SessionExpired(ctx, locale.LoginPromptURL(c.location(), true))
		}
		return fmt.Errorf("%w: %w", ErrSessionExpired, apiErr)
	}
	return apiErr
}
