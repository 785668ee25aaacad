package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnthonyGillesRudolfo/group-checkout/internal/ucp"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"KAFKA_BROKERS", "UCP_CLIENT_ID", "UCP_AGENT_PROFILE_URL", "PUBLIC_BASE_URL", "TLS_CERT_FILE", "TLS_KEY_FILE", "UCP_TIMEOUT_SECONDS"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Kafka.Enabled())
	assert.Equal(t, "checkouts.v1", cfg.Kafka.CheckoutsTopic)
	assert.Equal(t, ucp.DefaultTokenURL, cfg.UCP.TokenURL)
	assert.Equal(t, 30*time.Second, cfg.UCP.Timeout)
	assert.Equal(t, "http://localhost:3000/.well-known/ucp-agent.json", cfg.UCP.ProfileURL)
	assert.False(t, cfg.HTTP.TLSEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("PUBLIC_BASE_URL", "https://agent.example/")
	t.Setenv("UCP_CURRENCY", "cad")
	t.Setenv("UCP_TIMEOUT_SECONDS", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "https://agent.example/.well-known/ucp-agent.json", cfg.UCP.ProfileURL)
	assert.Equal(t, "CAD", cfg.UCP.Currency)
	assert.Equal(t, 5*time.Second, cfg.UCP.Timeout)
}

func TestLoadRejectsHalfTLS(t *testing.T) {
	t.Setenv("TLS_CERT_FILE", "cert.pem")
	t.Setenv("TLS_KEY_FILE", "")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsBadTimeout(t *testing.T) {
	t.Setenv("TLS_CERT_FILE", "")
	t.Setenv("UCP_TIMEOUT_SECONDS", "soon")
	_, err := Load()
	assert.Error(t, err)
}
