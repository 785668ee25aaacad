package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEndpoint(t *testing.T) {
	cases := []struct {
		raw      string
		host     string
		path     string
		insecure bool
	}{
		{"", "localhost:4318", "/v1/traces", true},
		{"collector:4318", "collector:4318", "/v1/traces", true},
		{"https://otel.example/custom", "otel.example", "/custom", false},
		{"http://otel.example", "otel.example", "/v1/traces", true},
	}
	for _, tc := range cases {
		host, path, insecure := Endpoint(tc.raw)
		assert.Equal(t, tc.host, host, tc.raw)
		assert.Equal(t, tc.path, path, tc.raw)
		assert.Equal(t, tc.insecure, insecure, tc.raw)
	}
}
