// Package apiclient is the authenticated HTTP client every storefront
// operation goes through.
//
// Each request carries the stored bearer token. When the backend answers with
// the configured token-expired application code, the client refreshes the
// token pair once and retries the original request once. If that does not
// succeed the stored credentials are cleared, the sign-out hook runs and the
// call fails with apperr.ErrSessionExpired.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"storefront-bff/internal/apperr"
	"storefront-bff/internal/telemetry"
	"storefront-bff/internal/tokenstore"
)

const (
	refreshPath    = "/api/auth/refresh-token"
	refreshTimeout = 15 * time.Second
	maxBodySize    = 4 << 20
)

// errSignedOut means the session was already cleared, so there is nothing
// to refresh and no sign-out to announce.
var errSignedOut = errors.New("not signed in")

type Client struct {
	baseURL   string
	http      *http.Client
	store     tokenstore.Store
	authCode  string
	onSignOut func()
	refresh   singleflight.Group
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSignOutHook sets the function run after credentials are cleared
// because the session could not be refreshed.
func WithSignOutHook(fn func()) Option {
	return func(c *Client) { c.onSignOut = fn }
}

// WithAuthExpiredCode sets the application error code that marks an expired
// or invalid bearer token.
func WithAuthExpiredCode(code string) Option {
	return func(c *Client) { c.authCode = code }
}

func New(baseURL string, store tokenstore.Store, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   10 * time.Second,
			Transport: telemetry.Transport(nil),
		},
		store:    store,
		authCode: "TOKEN_EXPIRED",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Store() tokenstore.Store {
	return c.store
}

// errorBody is the backend's error envelope.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

type response struct {
	status int
	body   []byte
	errorBody
}

func (r *response) ok() bool {
	return r.status >= 200 && r.status < 300
}

func (r *response) authExpired(code string) bool {
	return r.status >= 400 && r.Code == code
}

func (r *response) apiError() *apperr.APIError {
	reason := r.Message
	if reason == "" {
		reason = r.Error
	}
	if reason == "" {
		reason = http.StatusText(r.status)
	}
	return &apperr.APIError{Status: r.status, Code: r.Code, Reason: reason}
}

// Get is Do with GET and no body.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, nil, body, out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// Do sends one backend request and decodes a 2xx JSON response into out
// (skipped when out is nil).
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
	}

	tokens, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	resp, err := c.send(ctx, method, path, query, payload, tokens.Token)
	if err != nil {
		return err
	}

	if resp.authExpired(c.authCode) {
		slog.Info("Bearer token rejected, refreshing", "path", path)

		fresh, err := c.refreshTokens(ctx, tokens)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("%s %s: %w", method, path, ctxErr)
			}
			return fmt.Errorf("%s %s: %w", method, path, apperr.ErrSessionExpired)
		}

		resp, err = c.send(ctx, method, path, query, payload, fresh.Token)
		if err != nil {
			return err
		}
		if resp.authExpired(c.authCode) {
			slog.Warn("Retried request rejected after refresh", "path", path)
			c.signOut(ctx)
			return fmt.Errorf("%s %s: %w", method, path, apperr.ErrSessionExpired)
		}
	}

	if !resp.ok() {
		return resp.apiError()
	}

	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, payload []byte, token string) (*response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, errors.Join(apperr.ErrUnavailable, err))
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read %s %s response: %w", method, path, err)
	}

	r := &response{status: res.StatusCode, body: data}
	if res.StatusCode >= 400 {
		_ = json.Unmarshal(data, &r.errorBody)
	}
	return r, nil
}

// refreshTokens exchanges the stored refresh token for a new pair. Requests
// failing together share one exchange; a request whose token was already
// replaced by a concurrent refresh reuses the new pair.
//
// The exchange is detached from any one caller, so a caller that gives up
// only stops waiting. A failed exchange signs out once for all waiters.
func (c *Client) refreshTokens(ctx context.Context, used tokenstore.Tokens) (tokenstore.Tokens, error) {
	ch := c.refresh.DoChan("refresh", func() (interface{}, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		fresh, err := c.renew(rctx, used)
		if err != nil && !errors.Is(err, errSignedOut) {
			slog.Warn("Token refresh failed", "error", err)
			c.signOut(rctx)
		}
		return fresh, err
	})

	select {
	case <-ctx.Done():
		return tokenstore.Tokens{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return tokenstore.Tokens{}, res.Err
		}
		return res.Val.(tokenstore.Tokens), nil
	}
}

func (c *Client) renew(ctx context.Context, used tokenstore.Tokens) (tokenstore.Tokens, error) {
	current, err := c.store.Load(ctx)
	if err != nil {
		return tokenstore.Tokens{}, err
	}
	if current.Empty() {
		return tokenstore.Tokens{}, errSignedOut
	}
	if current.Token != used.Token {
		return current, nil
	}
	if current.RefreshToken == "" {
		return tokenstore.Tokens{}, errors.New("no refresh token stored")
	}
	fresh, err := c.exchange(ctx, current.RefreshToken)
	telemetry.RecordRefresh(err == nil)
	return fresh, err
}

func (c *Client) exchange(ctx context.Context, refreshToken string) (tokenstore.Tokens, error) {
	payload, err := json.Marshal(map[string]string{tokenstore.KeyRefreshToken: refreshToken})
	if err != nil {
		return tokenstore.Tokens{}, err
	}

	resp, err := c.send(ctx, http.MethodPost, refreshPath, nil, payload, "")
	if err != nil {
		return tokenstore.Tokens{}, err
	}
	if !resp.ok() {
		return tokenstore.Tokens{}, resp.apiError()
	}

	var fresh tokenstore.Tokens
	if err := json.Unmarshal(resp.body, &fresh); err != nil {
		return tokenstore.Tokens{}, fmt.Errorf("decode refresh response: %w", err)
	}
	if fresh.Token == "" {
		return tokenstore.Tokens{}, errors.New("refresh response carried no token")
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = refreshToken
	}
	if err := c.store.Save(ctx, fresh); err != nil {
		return tokenstore.Tokens{}, fmt.Errorf("save refreshed session: %w", err)
	}
	return fresh, nil
}

func (c *Client) signOut(ctx context.Context) {
	if err := c.store.Clear(ctx); err != nil {
		slog.Error("Failed to clear session", "error", err)
	}
	if c.onSignOut != nil {
		c.onSignOut()
	}
}
