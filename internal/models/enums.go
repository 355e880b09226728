package models

// Effect is the outcome of a grant or override.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

func (e Effect) Valid() bool {
	return e == EffectAllow || e == EffectDeny
}

// Scope is the data-visibility breadth of an allowed action.
// It is only meaningful when the effect is allow.
type Scope string

const (
	ScopeNone   Scope = "none"
	ScopeOwn    Scope = "own"
	ScopeBranch Scope = "branch"
	ScopeAll    Scope = "all"
)

func (s Scope) Valid() bool {
	switch s {
	case ScopeNone, ScopeOwn, ScopeBranch, ScopeAll:
		return true
	}
	return false
}

type ResourceType string

const (
	ResourcePage    ResourceType = "page"
	ResourceAPI     ResourceType = "api"
	ResourceMenu    ResourceType = "menu"
	ResourceFeature ResourceType = "feature"
)

type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserDisabled UserStatus = "disabled"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)
