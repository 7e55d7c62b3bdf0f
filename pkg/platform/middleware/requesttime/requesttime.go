package requesttime

import (
	"net/http"
	"time"

	"libris/pkg/requestcontext"
)

// RequestTime pins one observation of the clock to the request context.
// Borrow timestamps, due dates, and return timestamps all derive from it,
// so a single request never sees the clock move between checks.
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
