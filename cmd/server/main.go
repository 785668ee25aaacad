package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"

	internalapi "github.com/AnthonyGillesRudolfo/group-checkout/internal/api"
	"github.com/AnthonyGillesRudolfo/group-checkout/internal/catalog"
	"github.com/AnthonyGillesRudolfo/group-checkout/internal/checkout"
	appconfig "github.com/AnthonyGillesRudolfo/group-checkout/internal/config"
	"github.com/AnthonyGillesRudolfo/group-checkout/internal/events"
	"github.com/AnthonyGillesRudolfo/group-checkout/internal/group"
	"github.com/AnthonyGillesRudolfo/group-checkout/internal/secrets"
	"github.com/AnthonyGillesRudolfo/group-checkout/internal/telemetry"
	"github.com/AnthonyGillesRudolfo/group-checkout/internal/ucp"
)

func newLogger(cfg appconfig.Config) *log.Logger {
	prefix := ""
	if cfg.ServiceName != "" {
		prefix = fmt.Sprintf("[%s] ", cfg.ServiceName)
	}
	logger := log.New(os.Stdout, prefix, log.LstdFlags|log.Lmicroseconds)
	log.SetOutput(os.Stdout)
	log.SetFlags(logger.Flags())
	log.SetPrefix(prefix)
	return logger
}

func setupTelemetry(lc fx.Lifecycle, cfg appconfig.Config, logger *log.Logger) {
	var shutdown func(context.Context) error
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var err error
			shutdown, err = telemetry.InitTracer(ctx, cfg.ServiceName)
			if err != nil {
				// Tracing is optional; run without it.
				logger.Printf("tracing disabled: %v", err)
				return nil
			}
			logger.Printf("OpenTelemetry initialized for service: %s", cfg.ServiceName)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if shutdown == nil {
				return nil
			}
			return shutdown(ctx)
		},
	})
}

func newTokenManager(cfg appconfig.Config, logger *log.Logger) *ucp.TokenManager {
	tm := ucp.NewTokenManager(cfg.UCP.ClientID, cfg.UCP.ClientSecret,
		ucp.WithTokenURL(cfg.UCP.TokenURL),
		ucp.WithTokenTimeout(cfg.UCP.Timeout),
	)
	if !tm.Configured() {
		logger.Printf("WARNING: UCP_CLIENT_ID/UCP_CLIENT_SECRET not set; checkout is disabled and the catalog serves mock data")
	}
	return tm
}

func newUCPClient(cfg appconfig.Config, tm *ucp.TokenManager, logger *log.Logger) *ucp.Client {
	return ucp.NewClient(tm,
		ucp.WithTimeout(cfg.UCP.Timeout),
		ucp.WithCardVaultURL(cfg.UCP.CardVaultURL),
		ucp.WithLogger(logger),
	)
}

func newBuilder(cfg appconfig.Config) *ucp.Builder {
	return ucp.NewBuilder(cfg.UCP.ProfileURL, cfg.UCP.Currency)
}

func newCatalog(cfg appconfig.Config, tm *ucp.TokenManager, logger *log.Logger) *catalog.Catalog {
	return catalog.New(cfg.Catalog.SearchURL, tm, catalog.WithLogger(logger))
}

// newPublisher returns a Kafka producer bound to the Fx lifecycle, or a
// logging publisher when no brokers are configured.
func newPublisher(cfg appconfig.Config, lc fx.Lifecycle, logger *log.Logger) events.Publisher {
	if !cfg.Kafka.Enabled() {
		logger.Printf("KAFKA_BROKERS not set; checkout events are logged only")
		return events.LogPublisher{Logger: logger}
	}
	prod := events.NewProducerWithBrokers(cfg.Kafka.Brokers)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return prod.Close()
		},
	})
	return prod
}

func newCheckoutService(store *group.Store, builder *ucp.Builder, client *ucp.Client, tm *ucp.TokenManager, pub events.Publisher, logger *log.Logger) *checkout.Service {
	return checkout.NewService(store, builder, client, ucp.NewEmbeddedURLBuilder(tm), pub, logger)
}

func newWebServer(cfg appconfig.Config, logger *log.Logger, store *group.Store, cat *catalog.Catalog, svc *checkout.Service) *http.Server {
	mux := http.NewServeMux()
	internalapi.RegisterGroupRoutes(mux, store)
	internalapi.RegisterProductRoutes(mux, cat)
	internalapi.RegisterCheckoutRoutes(mux, svc)
	internalapi.RegisterProfileRoutes(mux)
	if !internalapi.RegisterStatic(mux, cfg.HTTP.WebDir) {
		logger.Printf("WEB_DIR %q not found; serving API only", cfg.HTTP.WebDir)
	}
	return &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           withCORS(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func registerWebServer(lc fx.Lifecycle, cfg appconfig.Config, logger *log.Logger, shutdowner fx.Shutdowner, httpServer *http.Server) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				var err error
				if cfg.HTTP.TLSEnabled() {
					logger.Printf("HTTPS listening on %s", cfg.HTTP.Addr)
					err = httpServer.ListenAndServeTLS(cfg.HTTP.CertFile, cfg.HTTP.KeyFile)
				} else {
					logger.Printf("HTTP listening on %s", cfg.HTTP.Addr)
					err = httpServer.ListenAndServe()
				}
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Printf("web server error: %v", err)
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Simple permissive CORS for local testing
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	_ = godotenv.Load()
	if set, err := secrets.BootstrapFromOpenBao(context.Background(), secrets.ConfigFromEnv()); err != nil {
		log.Printf("WARNING: OpenBao bootstrap failed: %v", err)
	} else if len(set) > 0 {
		log.Printf("loaded %d secrets from OpenBao", len(set))
	}

	app := fx.New(
		fx.Provide(
			appconfig.Load,
			newLogger,
			newTokenManager,
			newUCPClient,
			newBuilder,
			newCatalog,
			newPublisher,
			group.NewStore,
			newCheckoutService,
			newWebServer,
		),
		fx.Invoke(
			func(logger *log.Logger, cfg appconfig.Config) {
				logger.Printf("Starting %s...", cfg.ServiceName)
			},
			setupTelemetry,
			registerWebServer,
		),
	)

	app.Run()
}
