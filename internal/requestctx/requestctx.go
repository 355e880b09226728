// Package requestctx carries the authenticated principal through a single
// request. The principal is captured once by the auth middleware and read
// by the route guard, the object-scope check and the storage row-security
// predicate. It is never bound to connection or session state, so pooled
// connections can never leak one principal's branch into another request.
package requestctx

import "context"

// Principal identifies who is acting in the current request.
type Principal struct {
	UserID   int64
	RoleID   int64
	BranchID *int64 // nil only for branch-less admins
	IsAdmin  bool
}

type containerKey struct{}

type container struct {
	principal    *Principal
	requestID    string
	system       bool
	systemReason string
}

func getContainer(ctx context.Context) container {
	if c, ok := ctx.Value(containerKey{}).(container); ok {
		return c
	}
	return container{}
}

func withContainer(ctx context.Context, c container) context.Context {
	return context.WithValue(ctx, containerKey{}, c)
}

// WithPrincipal stores the principal for the lifetime of the request.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	c := getContainer(ctx)
	c.principal = &p
	return withContainer(ctx, c)
}

// GetPrincipal retrieves the request principal, if one was captured.
func GetPrincipal(ctx context.Context) (Principal, bool) {
	c := getContainer(ctx)
	if c.principal == nil {
		return Principal{}, false
	}
	return *c.principal, true
}

// WithRequestID stores the request correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	c := getContainer(ctx)
	c.requestID = id
	return withContainer(ctx, c)
}

// GetRequestID retrieves the request correlation id.
func GetRequestID(ctx context.Context) (string, bool) {
	c := getContainer(ctx)
	return c.requestID, c.requestID != ""
}

// WithSystem marks the context as an internal operation (seed, reporter,
// payload application) that bypasses row security. reason must be a
// stable identifier suitable for audit logs, e.g. "seed" or
// "access-review".
func WithSystem(ctx context.Context, reason string) context.Context {
	c := getContainer(ctx)
	c.system = true
	c.systemReason = reason
	return withContainer(ctx, c)
}

// IsSystem reports whether the context is an internal operation, and the
// reason it was marked as one.
func IsSystem(ctx context.Context) (string, bool) {
	c := getContainer(ctx)
	return c.systemReason, c.system
}
