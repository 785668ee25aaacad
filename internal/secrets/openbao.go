// Package secrets exports credentials held in an OpenBao KV v2 mount into
// the process environment before configuration is loaded.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var ErrOpenBaoSecretNotFound = errors.New("openbao secret path not found")

// Config locates one KV v2 secret.
type Config struct {
	Addr       string
	Token      string
	Mount      string
	SecretPath string
	Namespace  string
}

// Enabled reports whether enough is set to reach OpenBao.
func (c Config) Enabled() bool {
	return c.Addr != "" && c.Token != "" && c.SecretPath != ""
}

// ConfigFromEnv reads OPENBAO_* variables.
func ConfigFromEnv() Config {
	mount := strings.Trim(strings.TrimSpace(os.Getenv("OPENBAO_MOUNT")), "/")
	if mount == "" {
		mount = "secret"
	}
	return Config{
		Addr:       strings.TrimRight(strings.TrimSpace(os.Getenv("OPENBAO_ADDR")), "/"),
		Token:      os.Getenv("OPENBAO_TOKEN"),
		Mount:      mount,
		SecretPath: strings.Trim(strings.TrimSpace(os.Getenv("OPENBAO_SECRET_PATH")), "/"),
		Namespace:  strings.TrimSpace(os.Getenv("OPENBAO_NAMESPACE")),
	}
}

// BootstrapFromOpenBao exports the secret's string values as environment
// variables and returns the names it set. Variables already present in the
// environment win. Disabled configuration is a no-op.
func BootstrapFromOpenBao(ctx context.Context, cfg Config) ([]string, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	values, err := readSecrets(ctx, cfg)
	if err != nil {
		return nil, err
	}
	var set []string
	for k, v := range values {
		if _, ok := os.LookupEnv(k); ok {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			return set, fmt.Errorf("export %s: %w", k, err)
		}
		set = append(set, k)
	}
	sort.Strings(set)
	return set, nil
}

func readSecrets(ctx context.Context, cfg Config) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		fmt.Sprintf("%s/v1/%s/data/%s", cfg.Addr, cfg.Mount, cfg.SecretPath),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create OpenBao request: %w", err)
	}
	req.Header.Set("X-Vault-Token", cfg.Token)
	if cfg.Namespace != "" {
		req.Header.Set("X-Vault-Namespace", cfg.Namespace)
	}

	client := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call OpenBao: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrOpenBaoSecretNotFound
	default:
		return nil, fmt.Errorf("openbao request failed: status=%d", resp.StatusCode)
	}

	var payload struct {
		Data struct {
			Data map[string]any `json:"data"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode OpenBao response: %w", err)
	}

	out := make(map[string]string, len(payload.Data.Data))
	for k, v := range payload.Data.Data {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			out[k] = strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", val), "0"), ".")
		case bool:
			out[k] = fmt.Sprint(val)
		default:
			// nested values are not exported
		}
	}
	return out, nil
}
