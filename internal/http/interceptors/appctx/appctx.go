// Package appctx attaches a per-request logger, already carrying the trace
// id set by the trace middleware, to the request context.
package appctx

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/qabel/blockserver/pkg/appctx"
)

// New returns a new HTTP middleware that stores a logger enriched with the
// request's trace id in the context.
func New(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return handler(log, h)
	}
}

func handler(log zerolog.Logger, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sub := log.With().Str("traceid", appctx.GetTrace(ctx)).Logger()
		ctx = appctx.WithLogger(ctx, &sub)

		r = r.WithContext(ctx)
		h.ServeHTTP(w, r)
	})
}
