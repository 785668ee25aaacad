package secrets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrapDisabledIsNoop(t *testing.T) {
	set, err := BootstrapFromOpenBao(context.Background(), Config{})
	require.NoError(t, err)
	assert.Empty(t, set)
}

func TestBootstrapExportsSecrets(t *testing.T) {
	var token, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token = r.Header.Get("X-Vault-Token")
		path = r.URL.Path
		_, _ = w.Write([]byte(`{"data":{"data":{"UCP_CLIENT_SECRET":"s3cret","UCP_TIMEOUT_SECONDS":15,"UCP_CLIENT_ID":"from-bao","nested":{"x":1}}}}`))
	}))
	defer srv.Close()

	t.Setenv("UCP_CLIENT_ID", "from-env")
	t.Setenv("UCP_CLIENT_SECRET", "")
	t.Setenv("UCP_TIMEOUT_SECONDS", "")
	os.Unsetenv("UCP_CLIENT_SECRET")
	os.Unsetenv("UCP_TIMEOUT_SECONDS")

	set, err := BootstrapFromOpenBao(context.Background(), Config{Addr: srv.URL, Token: "root", Mount: "secret", SecretPath: "group-checkout"})
	require.NoError(t, err)
	assert.Equal(t, "root", token)
	assert.Equal(t, "/v1/secret/data/group-checkout", path)
	assert.Equal(t, []string{"UCP_CLIENT_SECRET", "UCP_TIMEOUT_SECONDS"}, set)
	assert.Equal(t, "s3cret", os.Getenv("UCP_CLIENT_SECRET"))
	assert.Equal(t, "15", os.Getenv("UCP_TIMEOUT_SECONDS"))
	assert.Equal(t, "from-env", os.Getenv("UCP_CLIENT_ID"))
}

func TestBootstrapNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := BootstrapFromOpenBao(context.Background(), Config{Addr: srv.URL, Token: "t", Mount: "secret", SecretPath: "missing"})
	assert.ErrorIs(t, err, ErrOpenBaoSecretNotFound)
}
