package ucp

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// Embedded checkout query parameters.
const (
	ParamVersion  = "ec_version"
	ParamAuth     = "ec_auth"
	ParamDelegate = "ec_delegate"
	ParamSkipShop = "skip_shop_pay"
)

// DelegateAddressChange is the only capability handed back to the agent.
// Payment stays inside the embedded flow.
const DelegateAddressChange = "fulfillment.address_change"

// EmbeddedURLBuilder turns a continuation URL into an embedded checkout URL
// carrying delegation parameters.
type EmbeddedURLBuilder struct {
	tokens  TokenSource
	version string
}

// NewEmbeddedURLBuilder returns a builder that authenticates with tokens.
func NewEmbeddedURLBuilder(tokens TokenSource) *EmbeddedURLBuilder {
	return &EmbeddedURLBuilder{tokens: tokens, version: ProtocolVersion}
}

// Build appends the four delegation parameters to continuation, keeping its
// path and existing query. Repeated calls differ only in the token.
func (b *EmbeddedURLBuilder) Build(ctx context.Context, continuation string) (string, error) {
	u, err := url.Parse(continuation)
	if err != nil {
		return "", fmt.Errorf("%w: continuation url: %v", ErrInvalidInput, err)
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return "", fmt.Errorf("%w: continuation url %q is not absolute", ErrInvalidInput, continuation)
	}
	if b == nil || b.tokens == nil {
		return "", ErrUnconfigured
	}
	token, err := b.tokens.Token(ctx)
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set(ParamVersion, b.version)
	q.Set(ParamAuth, token)
	q.Set(ParamDelegate, DelegateAddressChange)
	// Without this flag the embedded flow bounces through a wallet sign-in
	// that redirects back to itself.
	q.Set(ParamSkipShop, "true")

	// The merchant's own query is kept byte for byte; only stale copies of
	// the delegation parameters are dropped.
	kept := withoutParams(u.RawQuery, ParamVersion, ParamAuth, ParamDelegate, ParamSkipShop)
	if kept != "" {
		u.RawQuery = kept + "&" + q.Encode()
	} else {
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// withoutParams removes the pairs whose key is one of keys from a raw query,
// leaving every other pair untouched.
func withoutParams(rawQuery string, keys ...string) string {
	if rawQuery == "" {
		return ""
	}
	pairs := strings.Split(rawQuery, "&")
	out := pairs[:0]
	for _, pair := range pairs {
		key, _, _ := strings.Cut(pair, "=")
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if !slices.Contains(keys, key) {
			out = append(out, pair)
		}
	}
	return strings.Join(out, "&")
}
