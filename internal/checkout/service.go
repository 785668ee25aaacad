// Package checkout drives a group's purchase through the checkout protocol:
// it snapshots the group, builds envelopes, calls the merchant and publishes
// lifecycle events addressed to the group lead.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/AnthonyGillesRudolfo/group-checkout/internal/events"
	"github.com/AnthonyGillesRudolfo/group-checkout/internal/group"
	"github.com/AnthonyGillesRudolfo/group-checkout/internal/ucp"
)

// Groups is the read side of the group store.
type Groups interface {
	Get(id string) (group.Group, error)
}

// Protocol is the remote checkout protocol.
type Protocol interface {
	CreateCheckout(ctx context.Context, env ucp.Envelope, merchant string) (*ucp.Result, error)
	CompleteCheckout(ctx context.Context, env ucp.Envelope, merchant string) (*ucp.Result, error)
	TokenizeCard(ctx context.Context, card ucp.Card, merchant string) (string, error)
}

// EmbeddedURLs builds embedded checkout links.
type EmbeddedURLs interface {
	Build(ctx context.Context, continuation string) (string, error)
}

// CreateRequest starts a checkout for a group.
type CreateRequest struct {
	GroupID  string
	ItemID   string
	Quantity int
	Merchant string
	// IdempotencyKey is set only when retrying an earlier attempt.
	IdempotencyKey string
}

// CompleteRequest pays for a checkout with an already tokenized card.
type CompleteRequest struct {
	GroupID        string
	CheckoutID     string
	SessionToken   string
	Billing        ucp.Address
	Merchant       string
	IdempotencyKey string
}

// PayRequest tokenizes a card and completes the checkout with it.
type PayRequest struct {
	GroupID    string
	CheckoutID string
	Card       ucp.Card
	Billing    ucp.Address
	Merchant   string
}

// Outcome is a checkout result plus the idempotency key that produced it,
// which callers need to retry safely.
type Outcome struct {
	*ucp.Result
	IdempotencyKey string `json:"idempotency_key"`
}

type Service struct {
	groups    Groups
	builder   *ucp.Builder
	protocol  Protocol
	embedded  EmbeddedURLs
	publisher events.Publisher
	logger    *log.Logger
}

func NewService(groups Groups, builder *ucp.Builder, protocol Protocol, embedded EmbeddedURLs, publisher events.Publisher, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if publisher == nil {
		publisher = events.LogPublisher{Logger: logger}
	}
	return &Service{
		groups:    groups,
		builder:   builder,
		protocol:  protocol,
		embedded:  embedded,
		publisher: publisher,
		logger:    logger,
	}
}

// Create validates the request against a snapshot of the group, then asks
// the merchant to open a checkout shipping to the recipient and billed to
// the lead.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Outcome, error) {
	if strings.TrimSpace(req.GroupID) == "" {
		return nil, invalid("group id is required")
	}
	g, err := s.groups.Get(req.GroupID)
	if err != nil {
		return nil, err
	}
	switch {
	case g.Recipient == nil:
		return nil, invalid("group %s has no recipient", g.ID)
	case ucp.StripItemID(req.ItemID) == "":
		return nil, invalid("item id is required")
	case req.Quantity < 1:
		return nil, invalid("quantity must be at least 1")
	case strings.TrimSpace(req.Merchant) == "":
		return nil, invalid("merchant is required")
	}

	r := g.Recipient
	env := s.builder.BuildCreate(
		ucp.Buyer{Email: g.Lead.Email, Phone: g.Lead.Phone, FirstName: g.Lead.FirstName, LastName: g.Lead.LastName},
		ucp.LineItem{ItemID: req.ItemID, Quantity: req.Quantity},
		ucp.Address{Name: r.Name, Street: r.Street, Locality: r.City, Region: r.Region, PostalCode: r.PostalCode, Country: r.Country},
	).WithIdempotencyKey(req.IdempotencyKey)

	res, err := s.protocol.CreateCheckout(ctx, env, req.Merchant)
	if err != nil {
		s.logFailure("create", g.ID, env.IdempotencyKey(), err)
		return nil, err
	}
	s.logger.Printf("[checkout] created group=%s checkout=%s status=%s", g.ID, res.CheckoutID, res.Status)
	s.publish(ctx, events.CheckoutCreated, g, req.Merchant, res)
	return &Outcome{Result: res, IdempotencyKey: env.IdempotencyKey()}, nil
}

// Complete finishes a checkout with a tokenized payment session.
func (s *Service) Complete(ctx context.Context, req CompleteRequest) (*Outcome, error) {
	switch {
	case strings.TrimSpace(req.CheckoutID) == "":
		return nil, invalid("checkout id is required")
	case strings.TrimSpace(req.SessionToken) == "":
		return nil, invalid("payment session token is required")
	case strings.TrimSpace(req.Merchant) == "":
		return nil, invalid("merchant is required")
	}
	var g *group.Group
	if req.GroupID != "" {
		snap, err := s.groups.Get(req.GroupID)
		if err != nil {
			return nil, err
		}
		g = &snap
	}

	env := s.builder.BuildComplete(req.CheckoutID, req.SessionToken, req.Billing).
		WithIdempotencyKey(req.IdempotencyKey)
	res, err := s.protocol.CompleteCheckout(ctx, env, req.Merchant)
	if err != nil {
		s.logFailure("complete", req.GroupID, env.IdempotencyKey(), err)
		return nil, err
	}
	s.logger.Printf("[checkout] completed checkout=%s status=%s", req.CheckoutID, res.Status)
	if g != nil {
		s.publish(ctx, events.CheckoutCompleted, *g, req.Merchant, res)
	}
	return &Outcome{Result: res, IdempotencyKey: env.IdempotencyKey()}, nil
}

// Pay tokenizes the card and completes the checkout. Only the session id
// outlives the tokenization call.
func (s *Service) Pay(ctx context.Context, req PayRequest) (*Outcome, error) {
	if strings.TrimSpace(req.CheckoutID) == "" {
		return nil, invalid("checkout id is required")
	}
	session, err := s.protocol.TokenizeCard(ctx, req.Card, req.Merchant)
	if err != nil {
		s.logFailure("tokenize", req.GroupID, "", err)
		return nil, err
	}
	return s.Complete(ctx, CompleteRequest{
		GroupID:      req.GroupID,
		CheckoutID:   req.CheckoutID,
		SessionToken: session,
		Billing:      req.Billing,
		Merchant:     req.Merchant,
	})
}

// EmbeddedURL decorates a continuation URL for the embedded checkout flow.
func (s *Service) EmbeddedURL(ctx context.Context, continuation string) (string, error) {
	return s.embedded.Build(ctx, continuation)
}

func (s *Service) publish(ctx context.Context, eventType string, g group.Group, merchant string, res *ucp.Result) {
	evt := events.NewCheckoutEvent(eventType, events.Checkout{
		GroupID:     g.ID,
		CheckoutID:  res.CheckoutID,
		Status:      res.Status,
		Merchant:    merchant,
		LeadName:    strings.TrimSpace(g.Lead.FirstName + " " + g.Lead.LastName),
		LeadEmail:   g.Lead.Email,
		ContinueURL: res.ContinuationURL,
	})
	if err := s.publisher.Publish(ctx, events.TopicCheckouts, g.ID, evt); err != nil {
		s.logger.Printf("[checkout] publish %s for group %s failed: %v", eventType, g.ID, err)
	}
}

func (s *Service) logFailure(op, groupID, key string, err error) {
	switch {
	case ucp.IsAccessDisabled(err):
		s.logger.Printf("[checkout] %s group=%s key=%s: merchant disabled agent checkout", op, groupID, key)
	case errors.Is(err, ucp.ErrRemoteUnavailable):
		s.logger.Printf("[checkout] %s group=%s key=%s unavailable (retry with same key): %v", op, groupID, key, err)
	default:
		s.logger.Printf("[checkout] %s group=%s key=%s failed: %v", op, groupID, key, err)
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ucp.ErrInvalidRequest, fmt.Sprintf(format, args...))
}
