package ucp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBuilder() *Builder {
	return NewBuilder("https://agent.example/.well-known/ucp-agent.json", "usd")
}

func TestCountryCode(t *testing.T) {
	cases := map[string]string{
		"United States": "US",
		"united states": "US",
		"USA":           "US",
		"Canada":        "CA",
		" canada ":      "CA",
		"Germany":       "US",
		"":              "US",
	}
	for in, want := range cases {
		assert.Equal(t, want, CountryCode(in), "country %q", in)
	}
}

func TestBuildCreateShipsToRecipientButBillsLead(t *testing.T) {
	env := testBuilder().BuildCreate(
		Buyer{Email: "lead@x.com", FirstName: "A", LastName: "B"},
		LineItem{ItemID: "abc123?shop=999", Quantity: 2},
		Address{Name: "Rae Recipient", Street: "1 Main St", Locality: "Toronto", Region: "ON", PostalCode: "M5V", Country: "Canada"},
	)

	require.Equal(t, MethodCreateCheckout, env.Method())
	assert.Equal(t, ProtocolVersion, env.ProtocolVersion())
	assert.NotEmpty(t, env.IdempotencyKey())

	args, ok := env.Payload().(*CreateArgs)
	require.True(t, ok)
	assert.Equal(t, "lead@x.com", args.Buyer.Email)
	assert.Equal(t, "USD", args.Currency)
	require.Len(t, args.LineItems, 1)
	assert.Equal(t, "abc123", args.LineItems[0].Item.ID)
	assert.Equal(t, 2, args.LineItems[0].Quantity)

	dest := args.Destination()
	assert.Equal(t, "CA", dest.AddressCountry)
	assert.Equal(t, "Rae Recipient", dest.FullName)
	assert.Equal(t, "Toronto", dest.AddressLocality)
}

func TestBuildCreateUnmappedCountryDefaultsToUS(t *testing.T) {
	env := testBuilder().BuildCreate(Buyer{Email: "a@x.com"}, LineItem{ItemID: "v1", Quantity: 1}, Address{Country: "Germany"})
	assert.Equal(t, "US", env.Payload().(*CreateArgs).Destination().AddressCountry)
}

func TestBuildFreshIdempotencyKeys(t *testing.T) {
	b := testBuilder()
	seen := map[string]bool{}
	for range 50 {
		env := b.BuildCreate(Buyer{Email: "a@x.com"}, LineItem{ItemID: "v1", Quantity: 1}, Address{})
		require.False(t, seen[env.IdempotencyKey()])
		seen[env.IdempotencyKey()] = true
	}
	env := b.BuildComplete("chk_1", "sess_1", Address{})
	assert.False(t, seen[env.IdempotencyKey()])
}

func TestWithIdempotencyKeyCopies(t *testing.T) {
	env := testBuilder().BuildCreate(Buyer{Email: "a@x.com"}, LineItem{ItemID: "v1", Quantity: 1}, Address{})
	orig := env.IdempotencyKey()
	retry := env.WithIdempotencyKey("retry-key")
	assert.Equal(t, "retry-key", retry.IdempotencyKey())
	assert.Equal(t, orig, env.IdempotencyKey())
	assert.Equal(t, orig, env.WithIdempotencyKey("").IdempotencyKey())
}

func TestEncodeCreateEnvelope(t *testing.T) {
	env := testBuilder().BuildCreate(Buyer{Email: "a@x.com"}, LineItem{ItemID: "v1", Quantity: 3}, Address{Country: "United States"})
	body, err := env.encode(7)
	require.NoError(t, err)

	var wire struct {
		JSONRPC string `json:"jsonrpc"`
		ID      int64  `json:"id"`
		Method  string `json:"method"`
		Params  struct {
			Name      string `json:"name"`
			Arguments struct {
				Meta struct {
					Agent struct {
						Profile string `json:"profile"`
						Version string `json:"version"`
					} `json:"ucp-agent"`
					IdempotencyKey string `json:"idempotency-key"`
				} `json:"meta"`
				Checkout struct {
					Buyer     Buyer `json:"buyer"`
					LineItems []struct {
						Item     struct{ ID string } `json:"item"`
						Quantity int                 `json:"quantity"`
					} `json:"line_items"`
				} `json:"checkout"`
			} `json:"arguments"`
		} `json:"params"`
	}
	require.NoError(t, json.Unmarshal(body, &wire))

	assert.Equal(t, "2.0", wire.JSONRPC)
	assert.EqualValues(t, 7, wire.ID)
	assert.Equal(t, "tools/call", wire.Method)
	assert.Equal(t, MethodCreateCheckout, wire.Params.Name)
	assert.Equal(t, "https://agent.example/.well-known/ucp-agent.json", wire.Params.Arguments.Meta.Agent.Profile)
	assert.Equal(t, ProtocolVersion, wire.Params.Arguments.Meta.Agent.Version)
	assert.Equal(t, env.IdempotencyKey(), wire.Params.Arguments.Meta.IdempotencyKey)
	assert.Equal(t, "a@x.com", wire.Params.Arguments.Checkout.Buyer.Email)
	require.Len(t, wire.Params.Arguments.Checkout.LineItems, 1)
	assert.Equal(t, "v1", wire.Params.Arguments.Checkout.LineItems[0].Item.ID)
	assert.Equal(t, 3, wire.Params.Arguments.Checkout.LineItems[0].Quantity)
}

func TestEncodeCompleteEnvelope(t *testing.T) {
	env := testBuilder().BuildComplete("chk_9", "sess_abc", Address{Name: "A B", Street: "1 St", Locality: "NYC", PostalCode: "10001", Country: "United States"})
	body, err := env.encode(1)
	require.NoError(t, err)

	var wire struct {
		Params struct {
			Name      string `json:"name"`
			Arguments struct {
				ID       string `json:"id"`
				Checkout struct {
					Payment struct {
						Instruments []struct {
							HandlerID  string `json:"handler_id"`
							Credential struct {
								Token string `json:"token"`
							} `json:"credential"`
							BillingAddress WireAddress `json:"billing_address"`
						} `json:"instruments"`
					} `json:"payment"`
				} `json:"checkout"`
			} `json:"arguments"`
		} `json:"params"`
	}
	require.NoError(t, json.Unmarshal(body, &wire))
	assert.Equal(t, MethodCompleteCheckout, wire.Params.Name)
	assert.Equal(t, "chk_9", wire.Params.Arguments.ID)
	require.Len(t, wire.Params.Arguments.Checkout.Payment.Instruments, 1)
	instr := wire.Params.Arguments.Checkout.Payment.Instruments[0]
	assert.Equal(t, CardHandlerID, instr.HandlerID)
	assert.Equal(t, "sess_abc", instr.Credential.Token)
	assert.Equal(t, "US", instr.BillingAddress.AddressCountry)
}
