package api

import (
	"net/http"
	"os"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/AnthonyGillesRudolfo/group-checkout/internal/ucp"
)

// RegisterProfileRoutes serves the agent profile merchants fetch to
// authorize this agent.
func RegisterProfileRoutes(mux *http.ServeMux) {
	profile := ucp.AgentProfile()
	mux.Handle("GET "+ucp.ProfilePath, otelhttp.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=300")
		writeJSON(w, http.StatusOK, profile)
	}), "agent-profile"))
}

// RegisterStatic serves the web frontend from dir at "/". A missing dir is
// skipped so API-only deployments still start.
func RegisterStatic(mux *http.ServeMux, dir string) bool {
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		return false
	}
	mux.Handle("GET /", http.FileServer(http.Dir(dir)))
	return true
}
