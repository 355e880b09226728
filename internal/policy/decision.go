package policy

import "github.com/vahri/branchguard/internal/models"

// Decision is the outcome of resolving (principal, resource, action).
// It is a closed type: a denial can never carry a scope, so "scope is
// meaningless on deny" holds by construction rather than by convention.
type Decision struct {
	allowed bool
	scope   models.Scope
}

// Deny returns the denying decision. It is also the fail-closed default
// when neither an override nor a role grant exists.
func Deny() Decision {
	return Decision{}
}

// Allow returns an allowing decision with the given visibility scope.
// Note that Allow(ScopeNone) still denies every concrete row at the
// object level; it is an allow that cannot touch data.
func Allow(scope models.Scope) Decision {
	return Decision{allowed: true, scope: scope}
}

// Allowed reports whether the route-level action is permitted at all.
func (d Decision) Allowed() bool { return d.allowed }

// Scope returns the visibility scope of an allowing decision, or
// ScopeNone for a denial.
func (d Decision) Scope() models.Scope {
	if !d.allowed {
		return models.ScopeNone
	}
	return d.scope
}

func (d Decision) String() string {
	if !d.allowed {
		return "deny"
	}
	return "allow/" + string(d.scope)
}

// fromGrant builds the decision encoded by a stored grant or override.
// The stored scope is ignored on deny rows regardless of how the writer
// encoded them.
func fromGrant(effect models.Effect, scope models.Scope) Decision {
	if effect != models.EffectAllow {
		return Deny()
	}
	return Allow(scope)
}
