package api

import (
	"context"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/AnthonyGillesRudolfo/group-checkout/internal/checkout"
	"github.com/AnthonyGillesRudolfo/group-checkout/internal/ucp"
)

// Checkouts is the checkout orchestration the API exposes.
type Checkouts interface {
	Create(ctx context.Context, req checkout.CreateRequest) (*checkout.Outcome, error)
	Complete(ctx context.Context, req checkout.CompleteRequest) (*checkout.Outcome, error)
	Pay(ctx context.Context, req checkout.PayRequest) (*checkout.Outcome, error)
	EmbeddedURL(ctx context.Context, continuation string) (string, error)
}

type createCheckoutBody struct {
	GroupID        string `json:"group_id" validate:"required"`
	ItemID         string `json:"item_id" validate:"required"`
	Quantity       int    `json:"quantity" validate:"gte=1"`
	Merchant       string `json:"merchant" validate:"required"`
	IdempotencyKey string `json:"idempotency_key"`
}

type addressBody struct {
	Name       string `json:"name"`
	Street     string `json:"street"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

func (a addressBody) address() ucp.Address {
	return ucp.Address{Name: a.Name, Street: a.Street, Locality: a.City, Region: a.Region, PostalCode: a.PostalCode, Country: a.Country}
}

type completeCheckoutBody struct {
	GroupID        string      `json:"group_id"`
	CheckoutID     string      `json:"checkout_id" validate:"required"`
	SessionToken   string      `json:"session_token" validate:"required"`
	Merchant       string      `json:"merchant" validate:"required"`
	Billing        addressBody `json:"billing"`
	IdempotencyKey string      `json:"idempotency_key"`
}

type cardBody struct {
	Number string `json:"number" validate:"required,min=12,max=23"`
	Name   string `json:"name"`
	Month  int    `json:"month" validate:"gte=1,lte=12"`
	Year   int    `json:"year" validate:"gte=2000"`
	CVV    string `json:"cvv" validate:"required,min=3,max=4"`
}

type payCheckoutBody struct {
	GroupID    string      `json:"group_id"`
	CheckoutID string      `json:"checkout_id" validate:"required"`
	Merchant   string      `json:"merchant" validate:"required"`
	Card       cardBody    `json:"card"`
	Billing    addressBody `json:"billing"`
}

type embeddedURLBody struct {
	URL string `json:"url" validate:"required"`
}

// RegisterCheckoutRoutes wires the checkout lifecycle endpoints. Card data
// posted to /api/checkout/pay is handed to tokenization and not retained.
func RegisterCheckoutRoutes(mux *http.ServeMux, svc Checkouts) {
	handle := func(pattern, name string, fn http.HandlerFunc) {
		mux.Handle(pattern, otelhttp.NewHandler(fn, name))
	}

	handle("POST /api/checkout", "checkout-create", func(w http.ResponseWriter, r *http.Request) {
		var body createCheckoutBody
		if err := decode(r, &body); err != nil {
			writeError(w, err)
			return
		}
		out, err := svc.Create(r.Context(), checkout.CreateRequest(body))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	})

	handle("POST /api/checkout/complete", "checkout-complete", func(w http.ResponseWriter, r *http.Request) {
		var body completeCheckoutBody
		if err := decode(r, &body); err != nil {
			writeError(w, err)
			return
		}
		out, err := svc.Complete(r.Context(), checkout.CompleteRequest{
			GroupID:        body.GroupID,
			CheckoutID:     body.CheckoutID,
			SessionToken:   body.SessionToken,
			Billing:        body.Billing.address(),
			Merchant:       body.Merchant,
			IdempotencyKey: body.IdempotencyKey,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	})

	handle("POST /api/checkout/pay", "checkout-pay", func(w http.ResponseWriter, r *http.Request) {
		var body payCheckoutBody
		if err := decode(r, &body); err != nil {
			writeError(w, err)
			return
		}
		out, err := svc.Pay(r.Context(), checkout.PayRequest{
			GroupID:    body.GroupID,
			CheckoutID: body.CheckoutID,
			Merchant:   body.Merchant,
			Billing:    body.Billing.address(),
			Card: ucp.Card{
				Number:            body.Card.Number,
				Name:              body.Card.Name,
				Month:             body.Card.Month,
				Year:              body.Card.Year,
				VerificationValue: body.Card.CVV,
			},
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	})

	handle("POST /api/checkout/embedded-url", "checkout-embedded-url", func(w http.ResponseWriter, r *http.Request) {
		var body embeddedURLBody
		if err := decode(r, &body); err != nil {
			writeError(w, err)
			return
		}
		u, err := svc.EmbeddedURL(r.Context(), body.URL)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"url": u})
	})
}
