package ucp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticToken(tok string) TokenSource {
	return TokenSourceFunc(func(context.Context) (string, error) { return tok, nil })
}

type merchantStub struct {
	srv   *httptest.Server
	host  string
	calls atomic.Int32
	last  atomic.Pointer[capturedRequest]
}

type capturedRequest struct {
	path    string
	auth    string
	idemKey string
	body    map[string]any
}

func newMerchantStub(t *testing.T, reply func(w http.ResponseWriter)) *merchantStub {
	t.Helper()
	ms := &merchantStub{}
	ms.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ms.calls.Add(1)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		ms.last.Store(&capturedRequest{
			path:    r.URL.Path,
			auth:    r.Header.Get("Authorization"),
			idemKey: r.Header.Get("Idempotency-Key"),
			body:    body,
		})
		reply(w)
	}))
	t.Cleanup(ms.srv.Close)
	u, _ := url.Parse(ms.srv.URL)
	ms.host = u.Host
	return ms
}

func replyText(text string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0", "id": 1,
			"result": map[string]any{"content": []map[string]string{{"type": "text", "text": text}}},
		})
	}
}

func TestCreateCheckoutSendsEnvelope(t *testing.T) {
	ms := newMerchantStub(t, replyText(`{"id":"chk_1","status":"incomplete","continue_url":"https://shop.example/checkouts/chk_1"}`))
	c := NewClient(staticToken("bearer-1"), WithEndpointScheme("http"))

	env := testBuilder().BuildCreate(Buyer{Email: "a@x.com"}, LineItem{ItemID: "v1", Quantity: 2}, Address{Country: "United States"})
	res, err := c.CreateCheckout(context.Background(), env, ms.host)
	require.NoError(t, err)
	assert.Equal(t, "chk_1", res.CheckoutID)
	assert.Equal(t, "incomplete", res.Status)
	assert.Equal(t, "https://shop.example/checkouts/chk_1", res.ContinuationURL)

	got := ms.last.Load()
	require.NotNil(t, got)
	assert.Equal(t, "/api/ucp/mcp", got.path)
	assert.Equal(t, "Bearer bearer-1", got.auth)
	assert.Equal(t, env.IdempotencyKey(), got.idemKey)
	assert.Equal(t, "tools/call", got.body["method"])
}

func TestRetryReusesIdempotencyKey(t *testing.T) {
	ms := newMerchantStub(t, replyText(`{"id":"chk_1","status":"incomplete"}`))
	c := NewClient(staticToken("t"), WithEndpointScheme("http"))
	env := testBuilder().BuildCreate(Buyer{Email: "a@x.com"}, LineItem{ItemID: "v1", Quantity: 1}, Address{})

	_, err := c.CreateCheckout(context.Background(), env, ms.host)
	require.NoError(t, err)
	first := ms.last.Load().idemKey
	_, err = c.CreateCheckout(context.Background(), env, ms.host)
	require.NoError(t, err)
	assert.Equal(t, first, ms.last.Load().idemKey)
}

func TestCreateCheckoutRejectsBeforeNetwork(t *testing.T) {
	ms := newMerchantStub(t, replyText(`{}`))
	c := NewClient(staticToken("t"), WithEndpointScheme("http"))
	b := testBuilder()
	create := b.BuildCreate(Buyer{Email: "a@x.com"}, LineItem{ItemID: "v1", Quantity: 1}, Address{})

	_, err := c.CreateCheckout(context.Background(), create, "")
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = c.CreateCheckout(context.Background(), create, "shop.example/path")
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = c.CreateCheckout(context.Background(), b.BuildComplete("chk", "s", Address{}), ms.host)
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = c.CompleteCheckout(context.Background(), b.BuildComplete("", "s", Address{}), ms.host)
	require.ErrorIs(t, err, ErrInvalidRequest)

	assert.EqualValues(t, 0, ms.calls.Load())
}

func TestCreateCheckoutUnconfigured(t *testing.T) {
	ms := newMerchantStub(t, replyText(`{}`))
	c := NewClient(NewTokenManager("", ""), WithEndpointScheme("http"))
	env := testBuilder().BuildCreate(Buyer{Email: "a@x.com"}, LineItem{ItemID: "v1", Quantity: 1}, Address{})

	_, err := c.CreateCheckout(context.Background(), env, ms.host)
	require.ErrorIs(t, err, ErrUnconfigured)
	assert.EqualValues(t, 0, ms.calls.Load())
}

func TestCreateCheckoutTransportFailure(t *testing.T) {
	ms := newMerchantStub(t, replyText(`{}`))
	host := ms.host
	ms.srv.Close()
	c := NewClient(staticToken("t"), WithEndpointScheme("http"))
	env := testBuilder().BuildCreate(Buyer{Email: "a@x.com"}, LineItem{ItemID: "v1", Quantity: 1}, Address{})

	_, err := c.CreateCheckout(context.Background(), env, host)
	require.ErrorIs(t, err, ErrRemoteUnavailable)
}

func TestCreateCheckoutTimeout(t *testing.T) {
	ms := newMerchantStub(t, func(w http.ResponseWriter) { time.Sleep(500 * time.Millisecond) })
	c := NewClient(staticToken("t"), WithEndpointScheme("http"), WithTimeout(50*time.Millisecond))
	env := testBuilder().BuildCreate(Buyer{Email: "a@x.com"}, LineItem{ItemID: "v1", Quantity: 1}, Address{})

	_, err := c.CreateCheckout(context.Background(), env, ms.host)
	require.ErrorIs(t, err, ErrRemoteUnavailable)
}

func TestCreateCheckoutHTTPErrorCarriesRPCDetail(t *testing.T) {
	ms := newMerchantStub(t, func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"jsonrpc":"2.0","id":1,"error":{"code":-32001,"message":"Forbidden","data":"Access disabled."}}`)
	})
	c := NewClient(staticToken("t"), WithEndpointScheme("http"))
	env := testBuilder().BuildCreate(Buyer{Email: "a@x.com"}, LineItem{ItemID: "v1", Quantity: 1}, Address{})

	_, err := c.CreateCheckout(context.Background(), env, ms.host)
	require.ErrorIs(t, err, ErrRemoteRejected)
	assert.True(t, IsAccessDisabled(err))
}

func TestCreateCheckoutHTTPErrorWithoutRPC(t *testing.T) {
	ms := newMerchantStub(t, func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "upstream down")
	})
	c := NewClient(staticToken("t"), WithEndpointScheme("http"))
	env := testBuilder().BuildCreate(Buyer{Email: "a@x.com"}, LineItem{ItemID: "v1", Quantity: 1}, Address{})

	_, err := c.CreateCheckout(context.Background(), env, ms.host)
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "502", perr.Code)
	assert.Equal(t, "upstream down", perr.RawDetail)
}

func TestCompleteCheckout(t *testing.T) {
	ms := newMerchantStub(t, replyText(`{"id":"chk_1","status":"completed","order":{"id":"ord_1"}}`))
	c := NewClient(staticToken("t"), WithEndpointScheme("http"))

	res, err := c.CompleteCheckout(context.Background(), testBuilder().BuildComplete("chk_1", "sess", Address{}), "http://"+ms.host+"/")
	require.NoError(t, err)
	assert.Equal(t, "completed", res.Status)

	params := ms.last.Load().body["params"].(map[string]any)
	assert.Equal(t, MethodCompleteCheckout, params["name"])
}

func TestTokenizeCard(t *testing.T) {
	var got map[string]any
	var auth string
	vault := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"id":"east-abc123"}`)
	}))
	defer vault.Close()

	c := NewClient(staticToken("t"), WithCardVaultURL(vault.URL))
	card := Card{Number: "4242 4242 4242 4242", Name: "A B", Month: 12, Year: 2030, VerificationValue: "123"}
	id, err := c.TokenizeCard(context.Background(), card, "https://shop.example")
	require.NoError(t, err)
	assert.Equal(t, "east-abc123", id)
	assert.Empty(t, auth)
	assert.Equal(t, "shop.example", got["payment_session_scope"])
	cc := got["credit_card"].(map[string]any)
	assert.Equal(t, "4242424242424242", cc["number"])
	assert.EqualValues(t, 12, cc["month"])
}

func TestTokenizeCardFailureOmitsCardData(t *testing.T) {
	vault := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"error":"card declined"}`)
	}))
	defer vault.Close()

	c := NewClient(staticToken("t"), WithCardVaultURL(vault.URL))
	card := Card{Number: "4000000000000002", Month: 1, Year: 2031, VerificationValue: "999"}
	_, err := c.TokenizeCard(context.Background(), card, "shop.example")
	require.ErrorIs(t, err, ErrRemoteRejected)
	assert.NotContains(t, err.Error(), "4000000000000002")
	assert.NotContains(t, err.Error(), "999")
	assert.Contains(t, err.Error(), "card declined")
}

func TestTokenizeCardMalformedVaultReply(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"not json", `<html>ok</html>`, "card vault returned a malformed reply"},
		{"no session id", `{}`, "card vault returned no session id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			vault := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tc.body)
			}))
			defer vault.Close()

			c := NewClient(staticToken("t"), WithCardVaultURL(vault.URL))
			card := Card{Number: "4242424242424242", Month: 1, Year: 2031, VerificationValue: "321"}
			_, err := c.TokenizeCard(context.Background(), card, "shop.example")
			require.ErrorIs(t, err, ErrRemoteRejected)

			var perr *ProtocolError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tc.want, perr.Message)
			assert.Equal(t, "200", perr.Code)
			assert.NotContains(t, err.Error(), "4242424242424242")
		})
	}
}

func TestTokenizeCardValidation(t *testing.T) {
	c := NewClient(staticToken("t"), WithCardVaultURL("http://127.0.0.1:1"))
	_, err := c.TokenizeCard(context.Background(), Card{Number: "4242", Month: 13, Year: 2030, VerificationValue: "1"}, "shop.example")
	require.ErrorIs(t, err, ErrInvalidRequest)
	_, err = c.TokenizeCard(context.Background(), Card{Number: "4242", Month: 1, Year: 2030, VerificationValue: "1"}, "")
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestCardStringIsMasked(t *testing.T) {
	card := Card{Number: "4242 4242 4242 4242", VerificationValue: "123"}
	assert.Equal(t, "card(****4242)", card.String())
	assert.False(t, strings.Contains(card.GoString(), "4242 4242"))
}

func TestMerchantHost(t *testing.T) {
	for in, want := range map[string]string{
		"shop.example":          "shop.example",
		"https://shop.example/": "shop.example",
		" http://shop.example ": "shop.example",
	} {
		got, err := MerchantHost(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}
