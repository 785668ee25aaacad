// Package catalog proxies product search to the remote catalog and falls
// back to a built-in product list when the catalog cannot be reached.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/AnthonyGillesRudolfo/group-checkout/internal/ucp"
)

const (
	SourceRemote = "catalog"
	SourceMock   = "mock"

	defaultLimit = 20
	maxLimit     = 100
)

// Price is an amount in minor units.
type Price struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// Product is one purchasable variant.
type Product struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Merchant  string `json:"merchant"`
	Price     Price  `json:"price"`
	Available bool   `json:"available"`
	ImageURL  string `json:"image_url,omitempty"`
	URL       string `json:"url,omitempty"`
}

// Query filters a search. Prices are in minor units; zero means unbounded.
type Query struct {
	Text          string
	MinPrice      int64
	MaxPrice      int64
	AvailableOnly bool
	Limit         int
}

// Results is a page of products and where they came from.
type Results struct {
	Products []Product `json:"products"`
	Source   string    `json:"source"`
}

// Searcher is the read interface used by the HTTP layer.
type Searcher interface {
	Search(ctx context.Context, q Query) (*Results, error)
}

type Catalog struct {
	searchURL string
	tokens    ucp.TokenSource
	http      *http.Client
	timeout   time.Duration
	fallback  []Product
	logger    *log.Logger
}

type Option func(*Catalog)

func WithHTTPClient(c *http.Client) Option { return func(cat *Catalog) { cat.http = c } }

func WithTimeout(d time.Duration) Option {
	return func(cat *Catalog) {
		if d > 0 {
			cat.timeout = d
		}
	}
}

func WithLogger(l *log.Logger) Option { return func(cat *Catalog) { cat.logger = l } }

// WithFallback replaces the built-in product list.
func WithFallback(products []Product) Option {
	return func(cat *Catalog) { cat.fallback = products }
}

// New returns a catalog that queries searchURL. An empty searchURL always
// serves the fallback list.
func New(searchURL string, tokens ucp.TokenSource, opts ...Option) *Catalog {
	c := &Catalog{
		searchURL: strings.TrimSpace(searchURL),
		tokens:    tokens,
		http:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		timeout:   10 * time.Second,
		fallback:  mockProducts,
		logger:    log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search queries the remote catalog. Any failure to reach it, including
// missing credentials, degrades to the fallback list rather than an error.
func (c *Catalog) Search(ctx context.Context, q Query) (*Results, error) {
	q = normalize(q)
	if c.searchURL == "" || c.tokens == nil {
		return c.mock(q), nil
	}
	products, err := c.remote(ctx, q)
	if err != nil {
		if errors.Is(err, ucp.ErrUnconfigured) {
			c.logger.Printf("[catalog] credentials not configured, serving mock catalog")
		} else {
			c.logger.Printf("[catalog] search failed, serving mock catalog: %v", err)
		}
		return c.mock(q), nil
	}
	return &Results{Products: filter(products, q), Source: SourceRemote}, nil
}

type searchReply struct {
	Products []Product `json:"products"`
}

func (c *Catalog) remote(ctx context.Context, q Query) ([]Product, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u, err := url.Parse(c.searchURL)
	if err != nil {
		return nil, fmt.Errorf("parse search url: %w", err)
	}
	params := u.Query()
	if q.Text != "" {
		params.Set("query", q.Text)
	}
	if q.MinPrice > 0 {
		params.Set("min_price", strconv.FormatInt(q.MinPrice, 10))
	}
	if q.MaxPrice > 0 {
		params.Set("max_price", strconv.FormatInt(q.MaxPrice, 10))
	}
	if q.AvailableOnly {
		params.Set("available", "true")
	}
	params.Set("limit", strconv.Itoa(q.Limit))
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("search returned HTTP %d", resp.StatusCode)
	}
	var reply searchReply
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&reply); err != nil {
		return nil, fmt.Errorf("decode search reply: %w", err)
	}
	return reply.Products, nil
}

func (c *Catalog) mock(q Query) *Results {
	return &Results{Products: filter(c.fallback, q), Source: SourceMock}
}

func normalize(q Query) Query {
	q.Text = strings.TrimSpace(q.Text)
	switch {
	case q.Limit <= 0:
		q.Limit = defaultLimit
	case q.Limit > maxLimit:
		q.Limit = maxLimit
	}
	return q
}

// filter applies q locally. The remote catalog is not trusted to honour
// every filter, so its results pass through here too.
func filter(products []Product, q Query) []Product {
	text := strings.ToLower(q.Text)
	out := make([]Product, 0, min(len(products), q.Limit))
	for _, p := range products {
		if len(out) == q.Limit {
			break
		}
		if text != "" && !strings.Contains(strings.ToLower(p.Title), text) {
			continue
		}
		if q.MinPrice > 0 && p.Price.Amount < q.MinPrice {
			continue
		}
		if q.MaxPrice > 0 && p.Price.Amount > q.MaxPrice {
			continue
		}
		if q.AvailableOnly && !p.Available {
			continue
		}
		out = append(out, p)
	}
	return out
}
