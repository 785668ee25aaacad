package api

import (
	"fmt"
	"net/http"
	"strconv"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/AnthonyGillesRudolfo/group-checkout/internal/catalog"
	"github.com/AnthonyGillesRudolfo/group-checkout/internal/ucp"
)

// RegisterProductRoutes exposes catalog search.
// GET /api/products?q=&min_price=&max_price=&available=&limit=
func RegisterProductRoutes(mux *http.ServeMux, search catalog.Searcher) {
	mux.Handle("GET /api/products", otelhttp.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q, err := parseQuery(r)
		if err != nil {
			writeError(w, err)
			return
		}
		res, err := search.Search(r.Context(), q)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}), "products-search"))
}

func parseQuery(r *http.Request) (catalog.Query, error) {
	v := r.URL.Query()
	q := catalog.Query{Text: v.Get("q")}
	var err error
	if q.MinPrice, err = intParam(v.Get("min_price")); err != nil {
		return q, fmt.Errorf("%w: min_price %v", ucp.ErrInvalidRequest, err)
	}
	if q.MaxPrice, err = intParam(v.Get("max_price")); err != nil {
		return q, fmt.Errorf("%w: max_price %v", ucp.ErrInvalidRequest, err)
	}
	limit, err := intParam(v.Get("limit"))
	if err != nil {
		return q, fmt.Errorf("%w: limit %v", ucp.ErrInvalidRequest, err)
	}
	q.Limit = int(limit)
	if raw := v.Get("available"); raw != "" {
		if q.AvailableOnly, err = strconv.ParseBool(raw); err != nil {
			return q, fmt.Errorf("%w: available must be a boolean", ucp.ErrInvalidRequest)
		}
	}
	return q, nil
}

func intParam(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return n, nil
}
