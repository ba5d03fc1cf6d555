package auth

import "context"

type userKey struct{}

type resolved struct {
	user   User
	header string
	ok     bool
	err    error
}

// ContextSetUser stores the outcome of resolving header in ctx: either a
// User on success, or the error the resolver returned. Handlers that permit
// anonymous access (e.g. public downloads) can still read header/err; those
// that require a user call ContextGetUser and fail closed when ok is false.
func ContextSetUser(ctx context.Context, header string, u User, err error) context.Context {
	return context.WithValue(ctx, userKey{}, resolved{user: u, header: header, ok: err == nil, err: err})
}

// ContextGetUser returns the User resolved for this request's Authorization
// header, the header itself, and whether resolution succeeded.
func ContextGetUser(ctx context.Context) (u User, header string, ok bool) {
	r, _ := ctx.Value(userKey{}).(resolved)
	return r.user, r.header, r.ok
}

// ContextGetAuthError returns the error the resolver produced, if any.
func ContextGetAuthError(ctx context.Context) error {
	r, _ := ctx.Value(userKey{}).(resolved)
	return r.err
}
