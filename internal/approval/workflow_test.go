package approval_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vahri/branchguard/internal/approval"
	"github.com/vahri/branchguard/internal/audit"
	"github.com/vahri/branchguard/internal/db/dbtest"
	"github.com/vahri/branchguard/internal/models"
	"github.com/vahri/branchguard/internal/policy"
	"github.com/vahri/branchguard/internal/requestctx"
)

func newService(gdb *gorm.DB) approval.Service {
	return approval.Service{
		DB:    gdb,
		Audit: audit.Recorder{Log: zap.NewNop()},
		Log:   zap.NewNop(),
	}
}

func fixtures(t *testing.T, gdb *gorm.DB) (target, requester, reviewer models.User) {
	branch := dbtest.Branch(t, gdb, "central")
	target = dbtest.User(t, gdb, "target@example.com", "employee", &branch.ID)
	requester = dbtest.User(t, gdb, "requester@example.com", "manager", &branch.ID)
	reviewer = dbtest.User(t, gdb, "reviewer@example.com", "admin", &branch.ID)
	return target, requester, reviewer
}

// pctx builds a request-style context for the acting user so audit
// writes land in the actor's branch.
func pctx(u models.User) context.Context {
	return dbtest.PrincipalCtx(requestctx.Principal{
		UserID: u.ID, RoleID: u.RoleID, BranchID: u.BranchID,
	})
}

func riskyPayload() []approval.PayloadGrant {
	return []approval.PayloadGrant{
		{ResourceKey: "orders", ActionKey: models.ActionDelete, Effect: models.EffectAllow, Scope: models.ScopeAll},
	}
}

func TestRequestComputesRiskFlags(t *testing.T) {
	gdb := dbtest.OpenSeeded(t)
	svc := newService(gdb)
	target, requester, _ := fixtures(t, gdb)

	req, err := svc.Request(pctx(requester), target.ID, requester.ID, riskyPayload(), "temporary cleanup duty")
	require.NoError(t, err)

	var flags []string
	require.NoError(t, json.Unmarshal(req.RiskFlags, &flags))
	assert.ElementsMatch(t, []string{approval.RiskDeleteGrant, approval.RiskGlobalScope}, flags)
	assert.Equal(t, models.ApprovalPending, req.Status)
}

func TestRequestLowRiskHasNoFlags(t *testing.T) {
	gdb := dbtest.OpenSeeded(t)
	svc := newService(gdb)
	target, requester, _ := fixtures(t, gdb)

	payload := []approval.PayloadGrant{
		{ResourceKey: "orders", ActionKey: models.ActionView, Effect: models.EffectAllow, Scope: models.ScopeBranch},
		// A deny of delete is not risky; only allows are flagged.
		{ResourceKey: "orders", ActionKey: models.ActionDelete, Effect: models.EffectDeny, Scope: models.ScopeNone},
	}
	req, err := svc.Request(pctx(requester), target.ID, requester.ID, payload, "view neighbouring orders")
	require.NoError(t, err)

	var flags []string
	require.NoError(t, json.Unmarshal(req.RiskFlags, &flags))
	assert.Empty(t, flags)
}

func TestRequestRejectsInvalidPayload(t *testing.T) {
	gdb := dbtest.OpenSeeded(t)
	svc := newService(gdb)
	target, requester, _ := fixtures(t, gdb)

	_, err := svc.Request(pctx(requester), target.ID, requester.ID, nil, "empty")
	assert.ErrorIs(t, err, policy.ErrInvalidOverridePayload)

	bad := []approval.PayloadGrant{
		{ResourceKey: "no-such-resource", ActionKey: models.ActionView, Effect: models.EffectAllow, Scope: models.ScopeOwn},
	}
	_, err = svc.Request(pctx(requester), target.ID, requester.ID, bad, "bad resource")
	assert.ErrorIs(t, err, policy.ErrInvalidOverridePayload)

	bad = []approval.PayloadGrant{
		{ResourceKey: "orders", ActionKey: models.ActionView, Effect: "maybe", Scope: models.ScopeOwn},
	}
	_, err = svc.Request(pctx(requester), target.ID, requester.ID, bad, "bad effect")
	assert.ErrorIs(t, err, policy.ErrInvalidOverridePayload)
}

func TestSelfReviewForbidden(t *testing.T) {
	gdb := dbtest.OpenSeeded(t)
	svc := newService(gdb)
	target, requester, _ := fixtures(t, gdb)

	req, err := svc.Request(pctx(requester), target.ID, requester.ID, riskyPayload(), "reason")
	require.NoError(t, err)

	err = svc.Approve(pctx(requester), req.ID, requester.ID, "approving my own request")
	assert.ErrorIs(t, err, policy.ErrForbidden)

	var reloaded models.OverrideApprovalRequest
	require.NoError(t, gdb.First(&reloaded, req.ID).Error)
	assert.Equal(t, models.ApprovalPending, reloaded.Status)
}

func TestApproveAppliesPayloadExactlyOnce(t *testing.T) {
	gdb := dbtest.OpenSeeded(t)
	svc := newService(gdb)
	target, requester, reviewer := fixtures(t, gdb)

	req, err := svc.Request(pctx(requester), target.ID, requester.ID, riskyPayload(), "reason")
	require.NoError(t, err)

	require.NoError(t, svc.Approve(pctx(reviewer), req.ID, reviewer.ID, "justified"))

	var overrides []models.UserOverride
	require.NoError(t, gdb.Where("user_id = ?", target.ID).Find(&overrides).Error)
	require.Len(t, overrides, 1)
	assert.Equal(t, models.EffectAllow, overrides[0].Effect)
	assert.Equal(t, models.ScopeAll, overrides[0].Scope)

	// The second reviewer loses the race and gets a conflict, and the
	// payload is not re-applied.
	err = svc.Approve(pctx(reviewer), req.ID, reviewer.ID, "again")
	assert.ErrorIs(t, err, policy.ErrConflict)

	require.NoError(t, gdb.Where("user_id = ?", target.ID).Find(&overrides).Error)
	assert.Len(t, overrides, 1)

	var reloaded models.OverrideApprovalRequest
	require.NoError(t, gdb.First(&reloaded, req.ID).Error)
	assert.Equal(t, models.ApprovalApproved, reloaded.Status)
	require.NotNil(t, reloaded.ReviewedByUserID)
	assert.Equal(t, reviewer.ID, *reloaded.ReviewedByUserID)
	assert.NotNil(t, reloaded.ReviewedAt)
}

func TestApproveAuditsExistingOverrideID(t *testing.T) {
	gdb := dbtest.OpenSeeded(t)
	svc := newService(gdb)
	target, requester, reviewer := fixtures(t, gdb)

	// The target already holds an override for the same triple, so the
	// approval takes the update path of the upsert.
	existing := models.UserOverride{
		UserID:     target.ID,
		ResourceID: dbtest.ResourceID(t, gdb, "orders"),
		ActionID:   dbtest.ActionID(t, gdb, models.ActionDelete),
		Effect:     models.EffectDeny,
		Scope:      models.ScopeNone,
	}
	require.NoError(t, gdb.Create(&existing).Error)

	req, err := svc.Request(pctx(requester), target.ID, requester.ID, riskyPayload(), "reason")
	require.NoError(t, err)
	require.NoError(t, svc.Approve(pctx(reviewer), req.ID, reviewer.ID, "ok"))

	var reloaded models.UserOverride
	require.NoError(t, gdb.Where("user_id = ?", target.ID).Take(&reloaded).Error)
	assert.Equal(t, existing.ID, reloaded.ID)
	assert.Equal(t, models.EffectAllow, reloaded.Effect)

	var entry models.AuditEntry
	require.NoError(t, gdb.WithContext(dbtest.SystemCtx()).
		Where("action_type = ?", audit.ActionOverrideCreated).
		Take(&entry).Error)
	assert.Equal(t, existing.ID, entry.TargetID)
}

func TestRejectNeverTouchesOverrides(t *testing.T) {
	gdb := dbtest.OpenSeeded(t)
	svc := newService(gdb)
	target, requester, reviewer := fixtures(t, gdb)

	req, err := svc.Request(pctx(requester), target.ID, requester.ID, riskyPayload(), "reason")
	require.NoError(t, err)

	require.NoError(t, svc.Reject(pctx(reviewer), req.ID, reviewer.ID, "too broad"))

	var count int64
	require.NoError(t, gdb.Model(&models.UserOverride{}).Where("user_id = ?", target.ID).Count(&count).Error)
	assert.Zero(t, count)

	// A rejected request cannot be approved afterwards.
	err = svc.Approve(pctx(reviewer), req.ID, reviewer.ID, "changed my mind")
	assert.ErrorIs(t, err, policy.ErrConflict)
}

func TestReviewIsAudited(t *testing.T) {
	gdb := dbtest.OpenSeeded(t)
	svc := newService(gdb)
	target, requester, reviewer := fixtures(t, gdb)

	req, err := svc.Request(pctx(requester), target.ID, requester.ID, riskyPayload(), "reason")
	require.NoError(t, err)
	require.NoError(t, svc.Approve(pctx(reviewer), req.ID, reviewer.ID, "ok"))

	sys := dbtest.SystemCtx()
	var actions []string
	require.NoError(t, gdb.WithContext(sys).Model(&models.AuditEntry{}).
		Order("id").Pluck("action_type", &actions).Error)
	assert.Contains(t, actions, audit.ActionApprovalRequested)
	assert.Contains(t, actions, audit.ActionApprovalApproved)
	assert.Contains(t, actions, audit.ActionOverrideCreated)
}
