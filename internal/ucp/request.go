package ucp

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// ProtocolVersion is the checkout protocol revision this client speaks.
const ProtocolVersion = "2026-01-11"

// Tool names carried in the tools/call envelope.
const (
	MethodCreateCheckout   = "create_checkout"
	MethodCompleteCheckout = "complete_checkout"
)

// CardHandlerID identifies the card payment handler on complete_checkout.
const CardHandlerID = "shopify.card"

// Buyer is the contact identity the merchant sends transactional email to.
type Buyer struct {
	Email     string `json:"email"`
	Phone     string `json:"phone_number,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Address is a postal address as entered by a user. Country may be a free
// form name; it is normalized when embedded in an envelope.
type Address struct {
	Name       string
	Street     string
	Locality   string
	Region     string
	PostalCode string
	Country    string
}

// LineItem is one catalog item and its quantity.
type LineItem struct {
	ItemID   string
	Quantity int
}

// Envelope is an immutable checkout tool call. Retrying the same logical
// operation means resending the same Envelope so the idempotency key is
// reused.
type Envelope struct {
	protocolVersion string
	method          string
	idempotencyKey  string
	profileURL      string
	payload         any
}

func (e Envelope) ProtocolVersion() string { return e.protocolVersion }
func (e Envelope) Method() string          { return e.method }
func (e Envelope) IdempotencyKey() string  { return e.idempotencyKey }

// Payload returns *CreateArgs or *CompleteArgs.
func (e Envelope) Payload() any { return e.payload }

// WithIdempotencyKey returns a copy of e carrying key, for callers retrying
// an operation they issued earlier.
func (e Envelope) WithIdempotencyKey(key string) Envelope {
	if key != "" {
		e.idempotencyKey = key
	}
	return e
}

// CreateArgs is the checkout body of create_checkout.
type CreateArgs struct {
	Buyer       Buyer           `json:"buyer"`
	Currency    string          `json:"currency"`
	LineItems   []wireLineItem  `json:"line_items"`
	Fulfillment wireFulfillment `json:"fulfillment"`
}

// Destination returns the single shipping destination.
func (a *CreateArgs) Destination() WireAddress {
	return a.Fulfillment.Methods[0].Destinations[0]
}

// CompleteArgs is the body of complete_checkout.
type CompleteArgs struct {
	CheckoutID string      `json:"-"`
	Payment    wirePayment `json:"payment"`
}

type wireLineItem struct {
	Item     wireItem `json:"item"`
	Quantity int      `json:"quantity"`
}

type wireItem struct {
	ID string `json:"id"`
}

type wireFulfillment struct {
	Methods []wireFulfillmentMethod `json:"methods"`
}

type wireFulfillmentMethod struct {
	Type         string        `json:"type"`
	Destinations []WireAddress `json:"destinations"`
}

// WireAddress is an address as the checkout protocol encodes it.
type WireAddress struct {
	FullName        string `json:"full_name,omitempty"`
	StreetAddress   string `json:"street_address"`
	AddressLocality string `json:"address_locality"`
	AddressRegion   string `json:"address_region,omitempty"`
	PostalCode      string `json:"postal_code"`
	AddressCountry  string `json:"address_country"`
}

type wirePayment struct {
	Instruments []wireInstrument `json:"instruments"`
}

type wireInstrument struct {
	ID             string         `json:"id"`
	HandlerID      string         `json:"handler_id"`
	Type           string         `json:"type"`
	Credential     wireCredential `json:"credential"`
	BillingAddress WireAddress    `json:"billing_address"`
}

type wireCredential struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// Builder composes checkout envelopes. It performs no I/O.
type Builder struct {
	profileURL string
	currency   string
	version    string
	newKey     func() string
}

// NewBuilder returns a Builder that stamps every envelope with the agent
// profile URL and settles in currency.
func NewBuilder(profileURL, currency string) *Builder {
	if currency == "" {
		currency = "USD"
	}
	return &Builder{
		profileURL: profileURL,
		currency:   strings.ToUpper(currency),
		version:    ProtocolVersion,
		newKey:     uuid.NewString,
	}
}

// BuildCreate composes a create_checkout envelope. buyer is the group lead;
// dest is the recipient's shipping address. The recipient is never used as
// the buyer contact.
func (b *Builder) BuildCreate(buyer Buyer, item LineItem, dest Address) Envelope {
	args := &CreateArgs{
		Buyer:    buyer,
		Currency: b.currency,
		LineItems: []wireLineItem{{
			Item:     wireItem{ID: StripItemID(item.ItemID)},
			Quantity: item.Quantity,
		}},
		Fulfillment: wireFulfillment{Methods: []wireFulfillmentMethod{{
			Type:         "shipping",
			Destinations: []WireAddress{toWire(dest)},
		}}},
	}
	return b.envelope(MethodCreateCheckout, args)
}

// BuildComplete composes a complete_checkout envelope paying with a
// tokenized card session.
func (b *Builder) BuildComplete(checkoutID, sessionToken string, billing Address) Envelope {
	args := &CompleteArgs{
		CheckoutID: checkoutID,
		Payment: wirePayment{Instruments: []wireInstrument{{
			ID:             "instr_" + b.newKey(),
			HandlerID:      CardHandlerID,
			Type:           "card",
			Credential:     wireCredential{Type: "token", Token: sessionToken},
			BillingAddress: toWire(billing),
		}}},
	}
	return b.envelope(MethodCompleteCheckout, args)
}

func (b *Builder) envelope(method string, payload any) Envelope {
	return Envelope{
		protocolVersion: b.version,
		method:          method,
		idempotencyKey:  b.newKey(),
		profileURL:      b.profileURL,
		payload:         payload,
	}
}

// StripItemID drops any query-string suffix from a catalog item identifier.
func StripItemID(id string) string {
	id = strings.TrimSpace(id)
	if i := strings.IndexByte(id, '?'); i >= 0 {
		return id[:i]
	}
	return id
}

// CountryCode maps a country name to its two-letter code. Only the United
// States and Canada are recognized; everything else maps to "US".
func CountryCode(country string) string {
	switch strings.ToLower(strings.TrimSpace(country)) {
	case "united states", "united states of america", "usa", "us":
		return "US"
	case "canada", "ca":
		return "CA"
	default:
		return "US"
	}
}

func toWire(a Address) WireAddress {
	return WireAddress{
		FullName:        a.Name,
		StreetAddress:   a.Street,
		AddressLocality: a.Locality,
		AddressRegion:   a.Region,
		PostalCode:      a.PostalCode,
		AddressCountry:  CountryCode(a.Country),
	}
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      int64     `json:"id"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
}

type rpcParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// encode renders e as a JSON-RPC 2.0 tools/call request with the given id.
func (e Envelope) encode(id int64) ([]byte, error) {
	args := map[string]any{
		"meta": map[string]any{
			"ucp-agent": map[string]string{
				"profile": e.profileURL,
				"version": e.protocolVersion,
			},
			"idempotency-key": e.idempotencyKey,
		},
	}
	switch p := e.payload.(type) {
	case *CreateArgs:
		args["checkout"] = p
	case *CompleteArgs:
		args["id"] = p.CheckoutID
		args["checkout"] = p
	}
	return json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "tools/call",
		Params:  rpcParams{Name: e.method, Arguments: args},
	})
}
