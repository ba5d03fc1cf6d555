// Package trace attaches a trace id to each request's context, generating
// one if the caller didn't supply X-Trace-ID.
package trace

import (
	"net/http"

	"github.com/qabel/blockserver/pkg/appctx"
)

// New returns a new HTTP middleware that stores a trace id in the context.
func New() func(http.Handler) http.Handler {
	return handler
}

func handler(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = appctx.NewTrace()
		}
		ctx = appctx.WithTrace(ctx, traceID)
		w.Header().Set("X-Trace-ID", traceID)

		r = r.WithContext(ctx)
		h.ServeHTTP(w, r)
	})
}
