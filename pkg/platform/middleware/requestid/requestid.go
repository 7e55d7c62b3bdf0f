package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"libris/pkg/requestcontext"
)

const headerName = "X-Request-ID"

// RequestID assigns a correlation ID to every request, honoring a caller
// provided X-Request-ID so gateways can stitch traces across services.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(headerName)
		if reqID == "" {
			reqID = uuid.NewString()
		}

		w.Header().Set(headerName, reqID)
		ctx := requestcontext.WithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
