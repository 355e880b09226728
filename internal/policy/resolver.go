package policy

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/vahri/branchguard/internal/models"
	"github.com/vahri/branchguard/internal/requestctx"
)

// Resolver answers "may this principal perform this action on this
// resource, and over which rows". It is a pure read over the policy
// store: a user override for the exact triple wins verbatim, otherwise
// the role grant applies, otherwise the default is deny.
//
// There is no admin shortcut here. An admin role gets its reach from
// explicit allow/all grants; the is_admin flag only matters to the
// storage row-security predicate.
type Resolver struct {
	DB *gorm.DB
}

type grantRow struct {
	Effect models.Effect
	Scope  models.Scope
}

// Resolve returns the decision for (principal, resourceKey, actionKey).
// A store failure propagates as ErrPolicyStoreUnavailable together with
// a deny decision; callers must treat it as a denial, never an allow.
func (r Resolver) Resolve(ctx context.Context, p requestctx.Principal, resourceKey, actionKey string) (Decision, error) {
	var row grantRow

	err := r.DB.WithContext(ctx).
		Table("user_overrides uo").
		Select("uo.effect, uo.scope").
		Joins("JOIN resources res ON res.id = uo.resource_id AND res.resource_key = ?", resourceKey).
		Joins("JOIN actions a ON a.id = uo.action_id AND a.action_key = ?", actionKey).
		Where("uo.user_id = ?", p.UserID).
		Take(&row).Error
	if err == nil {
		return fromGrant(row.Effect, row.Scope), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Deny(), fmt.Errorf("%w: override lookup: %v", ErrPolicyStoreUnavailable, err)
	}

	err = r.DB.WithContext(ctx).
		Table("role_grants rg").
		Select("rg.effect, rg.scope").
		Joins("JOIN resources res ON res.id = rg.resource_id AND res.resource_key = ?", resourceKey).
		Joins("JOIN actions a ON a.id = rg.action_id AND a.action_key = ?", actionKey).
		Where("rg.role_id = ?", p.RoleID).
		Take(&row).Error
	if err == nil {
		return fromGrant(row.Effect, row.Scope), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Deny(), fmt.Errorf("%w: grant lookup: %v", ErrPolicyStoreUnavailable, err)
	}

	// Fail closed: no override, no grant.
	return Deny(), nil
}

// Key composes the canonical "resource:action" form used in logs.
func Key(resource, action string) string { return resource + ":" + action }
