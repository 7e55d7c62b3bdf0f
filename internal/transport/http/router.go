// Package httptransport assembles the HTTP surface: public health and
// metrics endpoints, and the authenticated API the domain handlers mount
// onto.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	cataloghandler "libris/internal/catalog/handler"
	lendinghandler "libris/internal/lending/handler"
	"libris/pkg/platform/middleware/auth"
	"libris/pkg/platform/middleware/metadata"
	"libris/pkg/platform/middleware/requestid"
	"libris/pkg/platform/middleware/requesttime"
)

// NewRouter wires middleware and routes. Every API route runs behind
// request ID, client metadata, request time, and authentication; health
// and metrics stay public.
func NewRouter(
	validator auth.TokenValidator,
	lendingH *lendinghandler.Handler,
	catalogH *cataloghandler.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(requestid.RequestID)
		r.Use(metadata.ClientMetadata)
		r.Use(requesttime.RequestTime)
		r.Use(auth.RequireAuth(validator, logger))

		lendingH.Register(r)
		catalogH.Register(r)
	})

	return r
}
