package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	appconfig "github.com/AnthonyGillesRudolfo/group-checkout/internal/config"
	"github.com/AnthonyGillesRudolfo/group-checkout/internal/events"
	"github.com/AnthonyGillesRudolfo/group-checkout/internal/group"
	"github.com/AnthonyGillesRudolfo/group-checkout/internal/ucp"
)

func TestWithCORS(t *testing.T) {
	h := withCORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/groups", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/groups", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestGraphResolves(t *testing.T) {
	cfg := appconfig.Config{
		ServiceName: "test",
		HTTP:        appconfig.HTTPConfig{Addr: "127.0.0.1:0", WebDir: t.TempDir()},
		UCP:         appconfig.UCPConfig{TokenURL: ucp.DefaultTokenURL, Currency: "USD"},
	}
	var srv *http.Server
	var pub events.Publisher
	app := fxtest.New(t,
		fx.Supply(cfg, log.New(io.Discard, "", 0)),
		fx.Provide(newTokenManager, newUCPClient, newBuilder, newCatalog, newPublisher, group.NewStore, newCheckoutService, newWebServer),
		fx.Populate(&srv, &pub),
	)
	app.RequireStart()
	defer app.RequireStop()

	require.NotNil(t, srv)
	_, isLog := pub.(events.LogPublisher)
	assert.True(t, isLog, "no brokers configured")

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, ucp.ProfilePath, nil).WithContext(context.Background()))
	assert.Equal(t, http.StatusOK, rec.Code)
}
