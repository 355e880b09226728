package policy

import (
	"github.com/vahri/branchguard/internal/models"
	"github.com/vahri/branchguard/internal/requestctx"
)

// Target is a concrete row an object-scope check runs against. Business
// entities implement it; the engine never looks at anything else.
type Target interface {
	OwnerID() int64
	TargetBranchID() *int64
}

// CheckScope decides whether the principal may act on this specific row
// under the given decision. It runs in addition to the route-level check
// and to the storage predicate.
func CheckScope(d Decision, p requestctx.Principal, target Target) bool {
	if !d.Allowed() {
		return false
	}

	switch d.Scope() {
	case models.ScopeAll:
		return true
	case models.ScopeBranch:
		tb := target.TargetBranchID()
		return tb != nil && p.BranchID != nil && *tb == *p.BranchID
	case models.ScopeOwn:
		return target.OwnerID() == p.UserID
	case models.ScopeNone:
		// An allow with no scope is a no-op allow at the object level.
		return false
	default:
		return false
	}
}
