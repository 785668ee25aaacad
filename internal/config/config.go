package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AnthonyGillesRudolfo/group-checkout/internal/ucp"
)

// Config aggregates runtime configuration grouped by concern.
type Config struct {
	ServiceName string
	HTTP        HTTPConfig
	UCP         UCPConfig
	Catalog     CatalogConfig
	Kafka       KafkaConfig
	Email       EmailConfig
}

type HTTPConfig struct {
	Addr     string
	CertFile string
	KeyFile  string
	WebDir   string
	// PublicBaseURL is where this service is reachable; the agent profile
	// URL is derived from it when not set explicitly.
	PublicBaseURL string
}

// TLSEnabled reports whether both halves of a certificate pair are set.
func (h HTTPConfig) TLSEnabled() bool { return h.CertFile != "" && h.KeyFile != "" }

type UCPConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	CardVaultURL string
	ProfileURL   string
	Currency     string
	Timeout      time.Duration
}

type CatalogConfig struct {
	SearchURL string
}

type KafkaConfig struct {
	Brokers        []string
	CheckoutsTopic string
	EmailGroup     string
}

// Enabled reports whether any brokers are configured.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

type EmailConfig struct {
	SMTPHost string
	SMTPPort string
	From     string
}

// Load reads configuration from environment variables, applying sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		ServiceName: getEnv("SERVICE_NAME", "group-checkout"),
		HTTP: HTTPConfig{
			Addr:          getEnv("HTTP_LISTEN_ADDR", ":3000"),
			CertFile:      getEnv("TLS_CERT_FILE", ""),
			KeyFile:       getEnv("TLS_KEY_FILE", ""),
			WebDir:        getEnv("WEB_DIR", "web"),
			PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
		},
		UCP: UCPConfig{
			ClientID:     getEnv("UCP_CLIENT_ID", ""),
			ClientSecret: getEnv("UCP_CLIENT_SECRET", ""),
			TokenURL:     getEnv("UCP_TOKEN_URL", ucp.DefaultTokenURL),
			CardVaultURL: getEnv("UCP_CARD_VAULT_URL", ucp.DefaultCardVaultURL),
			ProfileURL:   getEnv("UCP_AGENT_PROFILE_URL", ""),
			Currency:     strings.ToUpper(getEnv("UCP_CURRENCY", "USD")),
		},
		Catalog: CatalogConfig{
			SearchURL: getEnv("CATALOG_SEARCH_URL", ""),
		},
		Kafka: KafkaConfig{
			Brokers:        splitAndTrim(getEnv("KAFKA_BROKERS", "")),
			CheckoutsTopic: getEnv("KAFKA_CHECKOUTS_TOPIC", "checkouts.v1"),
			EmailGroup:     getEnv("KAFKA_EMAIL_GROUP_ID", "email-workers"),
		},
		Email: EmailConfig{
			SMTPHost: getEnv("SMTP_HOST", "localhost"),
			SMTPPort: getEnv("SMTP_PORT", "1025"),
			From:     getEnv("SMTP_FROM", "no-reply@example.local"),
		},
	}

	if (cfg.HTTP.CertFile == "") != (cfg.HTTP.KeyFile == "") {
		return Config{}, fmt.Errorf("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}

	timeoutStr := getEnv("UCP_TIMEOUT_SECONDS", "30")
	secs, err := strconv.Atoi(timeoutStr)
	if err != nil || secs <= 0 {
		return Config{}, fmt.Errorf("parse UCP_TIMEOUT_SECONDS: %q is not a positive integer", timeoutStr)
	}
	cfg.UCP.Timeout = time.Duration(secs) * time.Second

	if cfg.UCP.ProfileURL == "" {
		cfg.UCP.ProfileURL = cfg.HTTP.PublicBaseURL + ucp.ProfilePath
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
