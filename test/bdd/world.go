package bdd

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sync"
	"testing"

	"github.com/cucumber/godog"
	"github.com/stretchr/testify/mock"

	"github.com/AnthonyGillesRudolfo/group-checkout/internal/api"
	"github.com/AnthonyGillesRudolfo/group-checkout/internal/catalog"
	"github.com/AnthonyGillesRudolfo/group-checkout/internal/checkout"
	"github.com/AnthonyGillesRudolfo/group-checkout/internal/events"
	"github.com/AnthonyGillesRudolfo/group-checkout/internal/group"
	"github.com/AnthonyGillesRudolfo/group-checkout/internal/ucp"
)

const accessToken = "bdd-access-token"

// recordingPublisher captures events through testify/mock.
type recordingPublisher struct{ mock.Mock }

func (p *recordingPublisher) Publish(ctx context.Context, topic, key string, evt events.Envelope) error {
	return p.Called(ctx, topic, key, evt).Error(0)
}

// CheckoutWorld runs the whole service in-process against stub merchant and
// token endpoints.
type CheckoutWorld struct {
	t *testing.T

	tokenSrv    *httptest.Server
	merchantSrv *httptest.Server
	apiSrv      *httptest.Server
	publisher   *recordingPublisher

	mu             sync.Mutex
	merchantCalls  int
	merchantBodies []map[string]any
	merchantRaw    [][]byte
	accessDisabled bool

	groupID string

	httpStatus int
	httpJSON   map[string]any
}

func NewCheckoutWorld(t *testing.T) *CheckoutWorld {
	return &CheckoutWorld{t: t}
}

func (w *CheckoutWorld) Register(sc *godog.ScenarioContext) {
	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		w.start()
		return ctx, nil
	})
	sc.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		w.stop()
		return ctx, nil
	})

	w.registerGroupSteps(sc)
	w.registerCheckoutSteps(sc)
}

func (w *CheckoutWorld) start() {
	w.merchantCalls = 0
	w.merchantBodies = nil
	w.merchantRaw = nil
	w.accessDisabled = false
	w.groupID = ""
	w.httpStatus = 0
	w.httpJSON = nil

	w.tokenSrv = httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(rw).Encode(map[string]any{"access_token": accessToken, "expires_in": 3600})
	}))
	w.merchantSrv = httptest.NewServer(http.HandlerFunc(w.serveMerchant))

	logger := log.New(io.Discard, "", 0)
	if os.Getenv("BDD_DEBUG") != "" {
		logger = log.New(os.Stderr, "[bdd] ", log.Lmicroseconds)
	}

	tm := ucp.NewTokenManager("bdd-client", "bdd-secret", ucp.WithTokenURL(w.tokenSrv.URL))
	client := ucp.NewClient(tm, ucp.WithEndpointScheme("http"), ucp.WithLogger(logger))
	store := group.NewStore()
	w.publisher = &recordingPublisher{}
	w.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := checkout.NewService(store,
		ucp.NewBuilder("https://agent.example"+ucp.ProfilePath, "USD"),
		client, ucp.NewEmbeddedURLBuilder(tm), w.publisher, logger)

	mux := http.NewServeMux()
	api.RegisterGroupRoutes(mux, store)
	api.RegisterProductRoutes(mux, catalog.New("", tm, catalog.WithLogger(logger)))
	api.RegisterCheckoutRoutes(mux, svc)
	api.RegisterProfileRoutes(mux)
	w.apiSrv = httptest.NewServer(mux)
}

func (w *CheckoutWorld) stop() {
	for _, srv := range []*httptest.Server{w.apiSrv, w.merchantSrv, w.tokenSrv} {
		if srv != nil {
			srv.Close()
		}
	}
}

func (w *CheckoutWorld) serveMerchant(rw http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)

	w.mu.Lock()
	w.merchantCalls++
	w.merchantBodies = append(w.merchantBodies, body)
	w.merchantRaw = append(w.merchantRaw, raw)
	disabled := w.accessDisabled
	w.mu.Unlock()

	rw.Header().Set("Content-Type", "application/json")
	if disabled {
		_ = json.NewEncoder(rw).Encode(map[string]any{
			"jsonrpc": "2.0", "id": body["id"],
			"error": map[string]any{"code": -32001, "message": "Forbidden", "data": ucp.AccessDisabledDetail},
		})
		return
	}
	text, _ := json.Marshal(map[string]any{
		"id":           "chk_bdd",
		"status":       "requires_escalation",
		"continue_url": "https://shop.example/checkouts/chk_bdd",
	})
	_ = json.NewEncoder(rw).Encode(map[string]any{
		"jsonrpc": "2.0", "id": body["id"],
		"result": map[string]any{"content": []map[string]any{{"type": "text", "text": string(text)}}},
	})
}

func (w *CheckoutWorld) merchantHost() string {
	u, _ := url.Parse(w.merchantSrv.URL)
	return u.Host
}

func (w *CheckoutWorld) lastMerchantBody() map[string]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.merchantBodies) == 0 {
		return nil
	}
	return w.merchantBodies[len(w.merchantBodies)-1]
}
