package policy

import "context"

type decisionKey struct{}

// WithDecision attaches the route-level decision to the request context
// so object-scope middlewares and handlers reuse it without
// re-resolving.
func WithDecision(ctx context.Context, d Decision) context.Context {
	return context.WithValue(ctx, decisionKey{}, d)
}

// DecisionFromContext retrieves the attached route-level decision.
func DecisionFromContext(ctx context.Context) (Decision, bool) {
	d, ok := ctx.Value(decisionKey{}).(Decision)
	return d, ok
}
