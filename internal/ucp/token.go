package ucp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"
)

// DefaultTokenURL is the client-credentials endpoint for catalog and checkout
// access tokens.
const DefaultTokenURL = "https://api.shopify.com/auth/access_token"

// refreshMargin is how much validity a cached token must have left to be
// handed out without a refresh.
const refreshMargin = 60 * time.Second

// defaultTokenLifetime applies when the token endpoint omits expires_in.
const defaultTokenLifetime = 10 * time.Minute

// TokenSource supplies bearer tokens. TokenManager is the production
// implementation.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenSourceFunc lifts bare functions into TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, error)

// Token calls f.
func (f TokenSourceFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

type tokenState struct {
	value     string
	expiresAt time.Time
}

// TokenManager acquires and caches a single bearer token for the process.
// Concurrent refreshes collapse into one exchange.
type TokenManager struct {
	clientID     string
	clientSecret string
	endpoint     string
	http         *http.Client
	timeout      time.Duration
	now          func() time.Time

	mu    sync.RWMutex
	state tokenState

	refresh singleflight.Group
}

// TokenOption customizes a TokenManager.
type TokenOption func(*TokenManager)

// WithTokenURL overrides DefaultTokenURL.
func WithTokenURL(u string) TokenOption {
	return func(m *TokenManager) {
		if u != "" {
			m.endpoint = u
		}
	}
}

// WithTokenHTTPClient replaces the HTTP client used for the exchange.
func WithTokenHTTPClient(c *http.Client) TokenOption {
	return func(m *TokenManager) { m.http = c }
}

// WithTokenTimeout bounds each exchange.
func WithTokenTimeout(d time.Duration) TokenOption {
	return func(m *TokenManager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// withTokenClock provides deterministic time in tests.
func withTokenClock(fn func() time.Time) TokenOption {
	return func(m *TokenManager) { m.now = fn }
}

// NewTokenManager builds a manager for the given client credentials. Empty
// credentials produce a manager whose Token always returns ErrUnconfigured.
func NewTokenManager(clientID, clientSecret string, opts ...TokenOption) *TokenManager {
	m := &TokenManager{
		clientID:     clientID,
		clientSecret: clientSecret,
		endpoint:     DefaultTokenURL,
		http:         &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		timeout:      10 * time.Second,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Configured reports whether client credentials are present.
func (m *TokenManager) Configured() bool {
	return m != nil && m.clientID != "" && m.clientSecret != ""
}

// Token returns a cached token with more than a minute of validity left, or
// performs a client-credentials exchange. Callers waiting on the same refresh
// share its token or its error.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	if !m.Configured() {
		return "", ErrUnconfigured
	}
	if tok, ok := m.cached(); ok {
		return tok, nil
	}

	ch := m.refresh.DoChan("token", func() (any, error) {
		// A refresh that finished between cached() and DoChan already
		// populated the state.
		if tok, ok := m.cached(); ok {
			return tok, nil
		}
		return m.exchange(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", unavailable("token exchange", ctx.Err())
	}
}

// ExpiresAt returns the expiry of the cached token, zero if none.
func (m *TokenManager) ExpiresAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.expiresAt
}

func (m *TokenManager) cached() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state.value == "" {
		return "", false
	}
	if m.state.expiresAt.Sub(m.now()) <= refreshMargin {
		return "", false
	}
	return m.state.value, true
}

type tokenReply struct {
	AccessToken string  `json:"access_token"`
	ExpiresIn   float64 `json:"expires_in"`
	Error       string  `json:"error"`
	Description string  `json:"error_description"`
}

func (m *TokenManager) exchange(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	body, _ := json.Marshal(map[string]string{
		"client_id":     m.clientID,
		"client_secret": m.clientSecret,
		"grant_type":    "client_credentials",
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build token request: %v", ErrUnconfigured, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return "", unavailable("token exchange", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", unavailable("token exchange", err)
	}
	var reply tokenReply
	decodeErr := json.Unmarshal(raw, &reply)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && reply.Description != "" {
			msg = reply.Description
		} else if decodeErr == nil && reply.Error != "" {
			msg = reply.Error
		}
		return "", &AuthError{Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return "", &AuthError{Status: resp.StatusCode, Message: "token endpoint returned malformed JSON"}
	}
	if reply.AccessToken == "" {
		return "", &AuthError{Status: resp.StatusCode, Message: "token endpoint returned no access_token"}
	}

	lifetime := time.Duration(reply.ExpiresIn * float64(time.Second))
	if lifetime <= 0 {
		lifetime = defaultTokenLifetime
	}
	// Expiry is anchored on when the reply arrived, not when it was sent.
	expiresAt := m.now().Add(lifetime)

	m.mu.Lock()
	m.state = tokenState{value: reply.AccessToken, expiresAt: expiresAt}
	m.mu.Unlock()
	return reply.AccessToken, nil
}
