package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vahri/branchguard/internal/models"
	"github.com/vahri/branchguard/internal/objects"
	"github.com/vahri/branchguard/internal/policy"
	"github.com/vahri/branchguard/internal/requestctx"
)

// AbortError maps an engine error onto the wire taxonomy. Messages stay
// generic; details go to the server log, never to the client.
func AbortError(c *gin.Context, err error) {
	_ = c.Error(err)

	switch {
	case errors.Is(err, policy.ErrUnauthenticated):
		c.AbortWithStatusJSON(http.StatusUnauthorized,
			objects.Fail(objects.CodeUnauthenticated, "authentication required"))
	case errors.Is(err, policy.ErrForbidden):
		c.AbortWithStatusJSON(http.StatusForbidden,
			objects.Fail(objects.CodeForbidden, "permission denied"))
	case errors.Is(err, policy.ErrConflict):
		c.AbortWithStatusJSON(http.StatusConflict,
			objects.Fail(objects.CodeConflict, "request was already reviewed"))
	case errors.Is(err, policy.ErrInvalidOverridePayload):
		c.AbortWithStatusJSON(http.StatusBadRequest,
			objects.Fail(objects.CodeInvalidPayload, "invalid override payload"))
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError,
			objects.Fail(objects.CodeInternal, "internal error"))
	}
}

// scopelessAllow reports whether the route decision allows the action
// but over no rows at all. List handlers short-circuit to an empty
// result: allow/none passes the route guard yet must never surface a
// concrete row.
func scopelessAllow(c *gin.Context) bool {
	d, ok := policy.DecisionFromContext(c.Request.Context())
	return ok && d.Scope() == models.ScopeNone
}

// mustPrincipal returns the request principal; the auth middleware
// guarantees it is present on protected routes.
func mustPrincipal(c *gin.Context) (requestctx.Principal, bool) {
	p, ok := requestctx.GetPrincipal(c.Request.Context())
	if !ok {
		AbortError(c, policy.ErrUnauthenticated)
	}
	return p, ok
}
