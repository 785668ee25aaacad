package ucp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultCardVaultURL is the card tokenization endpoint. It is not a
// merchant endpoint and takes no bearer token.
const DefaultCardVaultURL = "https://checkout.pci.shopifyinc.com/sessions"

const mcpPath = "/api/ucp/mcp"

// maxReplyBytes caps how much of a remote reply is read.
const maxReplyBytes = 4 << 20

// Client speaks the checkout protocol to merchant endpoints.
type Client struct {
	tokens    TokenSource
	http      *http.Client
	timeout   time.Duration
	scheme    string
	vaultURL  string
	logger    *log.Logger
	requestID atomic.Int64
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client used for merchant and vault calls.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.http = c }
}

// WithTimeout bounds every outbound call.
func WithTimeout(d time.Duration) ClientOption {
	return func(cl *Client) {
		if d > 0 {
			cl.timeout = d
		}
	}
}

// WithCardVaultURL overrides DefaultCardVaultURL.
func WithCardVaultURL(u string) ClientOption {
	return func(cl *Client) {
		if u != "" {
			cl.vaultURL = u
		}
	}
}

// WithLogger sets the logger for request summaries.
func WithLogger(l *log.Logger) ClientOption {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// WithEndpointScheme overrides the https scheme of merchant endpoints, for
// local merchant stubs.
func WithEndpointScheme(s string) ClientOption {
	return func(cl *Client) { cl.scheme = s }
}

// NewClient returns a Client drawing bearer tokens from tokens.
func NewClient(tokens TokenSource, opts ...ClientOption) *Client {
	c := &Client{
		tokens:   tokens,
		http:     &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		timeout:  30 * time.Second,
		scheme:   "https",
		vaultURL: DefaultCardVaultURL,
		logger:   log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateCheckout sends a create_checkout envelope to merchant.
func (c *Client) CreateCheckout(ctx context.Context, env Envelope, merchant string) (*Result, error) {
	if env.Method() != MethodCreateCheckout {
		return nil, invalidRequest("envelope method %q is not %s", env.Method(), MethodCreateCheckout)
	}
	return c.call(ctx, env, merchant)
}

// CompleteCheckout sends a complete_checkout envelope to merchant.
func (c *Client) CompleteCheckout(ctx context.Context, env Envelope, merchant string) (*Result, error) {
	if env.Method() != MethodCompleteCheckout {
		return nil, invalidRequest("envelope method %q is not %s", env.Method(), MethodCompleteCheckout)
	}
	if args, ok := env.Payload().(*CompleteArgs); !ok || args.CheckoutID == "" {
		return nil, invalidRequest("checkout id is required")
	}
	return c.call(ctx, env, merchant)
}

func (c *Client) call(ctx context.Context, env Envelope, merchant string) (*Result, error) {
	host, err := MerchantHost(merchant)
	if err != nil {
		return nil, err
	}
	if env.IdempotencyKey() == "" {
		return nil, invalidRequest("envelope has no idempotency key")
	}
	if c.tokens == nil {
		return nil, ErrUnconfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	body, err := env.encode(c.requestID.Add(1))
	if err != nil {
		return nil, invalidRequest("encode envelope: %v", err)
	}

	endpoint := c.scheme + "://" + host + mcpPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, invalidRequest("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Idempotency-Key", env.IdempotencyKey())

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Printf("[ucp] %s merchant=%s key=%s transport error: %v", env.Method(), host, env.IdempotencyKey(), err)
		return nil, unavailable(env.Method(), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, unavailable(env.Method(), err)
	}
	c.logger.Printf("[ucp] %s merchant=%s key=%s status=%d in %s", env.Method(), host, env.IdempotencyKey(), resp.StatusCode, time.Since(start).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// JSON-RPC errors may ride on non-2xx replies; prefer their detail.
		if perr := rpcErrorFrom(raw); perr != nil {
			return nil, perr
		}
		return nil, &ProtocolError{
			Message:   fmt.Sprintf("merchant returned HTTP %d", resp.StatusCode),
			Code:      fmt.Sprint(resp.StatusCode),
			RawDetail: truncate(string(raw)),
		}
	}
	return Parse(raw)
}

// Card holds raw card fields for a single tokenization call. Its String form
// is masked.
type Card struct {
	Number            string
	Name              string
	Month             int
	Year              int
	VerificationValue string
}

func (c Card) String() string {
	digits := strings.ReplaceAll(c.Number, " ", "")
	if len(digits) < 4 {
		return "card(****)"
	}
	return "card(****" + digits[len(digits)-4:] + ")"
}

func (c Card) GoString() string { return c.String() }

func (c Card) validate() error {
	switch {
	case strings.TrimSpace(c.Number) == "":
		return invalidRequest("card number is required")
	case c.Month < 1 || c.Month > 12:
		return invalidRequest("card month must be 1-12")
	case c.Year < 2000:
		return invalidRequest("card year must be four digits")
	case strings.TrimSpace(c.VerificationValue) == "":
		return invalidRequest("card verification value is required")
	}
	return nil
}

// TokenizeCard exchanges raw card data for a session id scoped to merchant.
// The card is not retained and never appears in returned errors.
func (c *Client) TokenizeCard(ctx context.Context, card Card, merchant string) (string, error) {
	host, err := MerchantHost(merchant)
	if err != nil {
		return "", err
	}
	if err := card.validate(); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(map[string]any{
		"credit_card": map[string]any{
			"number":             strings.ReplaceAll(card.Number, " ", ""),
			"name":               card.Name,
			"month":              card.Month,
			"year":               card.Year,
			"verification_value": card.VerificationValue,
		},
		"payment_session_scope": host,
	})
	if err != nil {
		return "", invalidRequest("encode card session")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.vaultURL, bytes.NewReader(body))
	if err != nil {
		return "", invalidRequest("build card session request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	clear(body)
	if err != nil {
		return "", unavailable("tokenize card", err)
	}
	defer resp.Body.Close()

	var reply struct {
		ID    string `json:"id"`
		Error string `json:"error"`
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", unavailable("tokenize card", err)
	}
	decodeErr := json.Unmarshal(raw, &reply)
	ok := resp.StatusCode >= 200 && resp.StatusCode < 300

	if ok && decodeErr != nil {
		c.logger.Printf("[ucp] tokenize card scope=%s status=%d malformed reply", host, resp.StatusCode)
		return "", &ProtocolError{Message: "card vault returned a malformed reply", Code: fmt.Sprint(resp.StatusCode)}
	}
	if !ok || reply.ID == "" {
		msg := reply.Error
		switch {
		case msg != "":
		case ok:
			msg = "card vault returned no session id"
		default:
			msg = "card tokenization failed"
		}
		c.logger.Printf("[ucp] tokenize card scope=%s status=%d", host, resp.StatusCode)
		return "", &ProtocolError{Message: msg, Code: fmt.Sprint(resp.StatusCode)}
	}
	c.logger.Printf("[ucp] tokenize card scope=%s ok", host)
	return reply.ID, nil
}

// MerchantHost normalizes a merchant endpoint to a bare host, accepting an
// optional scheme and trailing slash.
func MerchantHost(merchant string) (string, error) {
	m := strings.TrimSpace(merchant)
	m = strings.TrimPrefix(m, "https://")
	m = strings.TrimPrefix(m, "http://")
	m = strings.TrimRight(m, "/")
	if m == "" {
		return "", invalidRequest("merchant endpoint is required")
	}
	if strings.ContainsAny(m, "/?# ") {
		return "", invalidRequest("merchant endpoint %q must be a host name", merchant)
	}
	return m, nil
}
