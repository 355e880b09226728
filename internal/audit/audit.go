// Package audit is the append-only trail behind every policy mutation.
// Entries are inserted and never touched again; there is no update or
// delete path anywhere in the engine.
package audit

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vahri/branchguard/internal/models"
	"github.com/vahri/branchguard/internal/requestctx"
)

// Action types recorded against audit entries.
const (
	ActionGrantUpserted     = "role_grant.upserted"
	ActionGrantDeleted      = "role_grant.deleted"
	ActionOverrideCreated   = "user_override.created"
	ActionOverrideRevoked   = "user_override.revoked"
	ActionApprovalRequested = "override_approval.requested"
	ActionApprovalApproved  = "override_approval.approved"
	ActionApprovalRejected  = "override_approval.rejected"
	ActionUserDisabled      = "user.disabled"
	ActionUserOffboarded    = "user.offboarded"
	ActionPolicySeeded      = "policy.seeded"
)

// Target types recorded against audit entries.
const (
	TargetRoleGrant    = "role_grant"
	TargetUserOverride = "user_override"
	TargetApproval     = "override_approval_request"
	TargetUser         = "user"
	TargetPolicy       = "policy_version"
)

type Recorder struct {
	Log *zap.Logger
}

// Record appends one entry. The actor's branch and the request id come
// from the context; db may be a transaction so the entry commits or
// rolls back with the mutation it describes.
func (r Recorder) Record(ctx context.Context, db *gorm.DB, actorUserID int64, targetType string, targetID int64, actionType, reason string, metadata map[string]any) error {
	entry := models.AuditEntry{
		ActorUserID: actorUserID,
		TargetType:  targetType,
		TargetID:    targetID,
		ActionType:  actionType,
		Reason:      reason,
	}

	if p, ok := requestctx.GetPrincipal(ctx); ok {
		entry.BranchID = p.BranchID
	}
	if id, ok := requestctx.GetRequestID(ctx); ok {
		entry.RequestID = id
	}
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		entry.Metadata = raw
	}

	if err := db.WithContext(ctx).Create(&entry).Error; err != nil {
		if r.Log != nil {
			r.Log.Error("audit write failed",
				zap.String("action", actionType),
				zap.String("target", targetType),
				zap.Error(err))
		}
		return err
	}
	return nil
}
