// Package auth resolves the caller's Authorization header against the
// configured auth.Resolver and attaches the outcome to the request context.
// It never rejects a request by itself: some routes (public downloads)
// permit an unresolved caller, so the decision to require a user is left to
// the handler via auth.ContextGetUser.
package auth

import (
	"net/http"

	"github.com/qabel/blockserver/pkg/appctx"
	"github.com/qabel/blockserver/pkg/auth"
)

// New returns a new HTTP middleware that resolves the Authorization header
// against resolver and stores the result in the request context.
func New(resolver auth.Resolver) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			header := r.Header.Get(appctx.TokenHeader)

			if header == "" {
				r = r.WithContext(auth.ContextSetUser(ctx, "", auth.User{}, errNoHeader))
				h.ServeHTTP(w, r)
				return
			}

			u, err := resolver.Auth(ctx, header)
			ctx = auth.ContextSetUser(ctx, header, u, err)
			if err != nil {
				appctx.GetLogger(ctx).Debug().Err(err).Msg("auth resolver rejected header")
			}
			r = r.WithContext(ctx)
			h.ServeHTTP(w, r)
		})
	}
}

var errNoHeader = errNoAuthHeader{}

type errNoAuthHeader struct{}

func (errNoAuthHeader) Error() string { return "no Authorization header present" }
