// Package approval runs the override approval state machine:
// pending -> approved | rejected, terminal, one-way. The payload of an
// approved request is applied to user overrides exactly once; a losing
// concurrent reviewer gets a conflict, never a silent overwrite.
package approval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vahri/branchguard/internal/audit"
	"github.com/vahri/branchguard/internal/models"
	"github.com/vahri/branchguard/internal/policy"
)

// Risk flags computed from the payload at request time.
const (
	RiskDeleteGrant = "delete_grant"
	RiskGlobalScope = "global_scope"
)

// PayloadGrant is one override the request asks for.
type PayloadGrant struct {
	ResourceKey string        `json:"resource_key"`
	ActionKey   string        `json:"action_key"`
	Effect      models.Effect `json:"effect"`
	Scope       models.Scope  `json:"scope"`
}

type Service struct {
	DB    *gorm.DB
	Audit audit.Recorder
	Log   *zap.Logger
}

// RiskFlags inspects a payload and returns the high-risk markers: any
// allow of the delete action, and any allow with global scope.
func RiskFlags(payload []PayloadGrant) []string {
	var flags []string
	seen := map[string]bool{}
	for _, g := range payload {
		if g.Effect != models.EffectAllow {
			continue
		}
		if g.ActionKey == models.ActionDelete && !seen[RiskDeleteGrant] {
			flags = append(flags, RiskDeleteGrant)
			seen[RiskDeleteGrant] = true
		}
		if g.Scope == models.ScopeAll && !seen[RiskGlobalScope] {
			flags = append(flags, RiskGlobalScope)
			seen[RiskGlobalScope] = true
		}
	}
	return flags
}

// validate resolves every payload entry against the catalog, returning
// the (resource, action) id pairs the apply step will need. db is the
// handle the reads run on, so a validation inside a transaction stays
// on that transaction.
func (s Service) validate(ctx context.Context, db *gorm.DB, payload []PayloadGrant) (map[int]struct{ ResourceID, ActionID int64 }, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", policy.ErrInvalidOverridePayload)
	}

	ids := make(map[int]struct{ ResourceID, ActionID int64 }, len(payload))
	for i, g := range payload {
		if !g.Effect.Valid() || !g.Scope.Valid() {
			return nil, fmt.Errorf("%w: entry %d: bad effect or scope", policy.ErrInvalidOverridePayload, i)
		}

		var res models.Resource
		if err := db.WithContext(ctx).Where("resource_key = ?", g.ResourceKey).First(&res).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: entry %d: unknown resource %q", policy.ErrInvalidOverridePayload, i, g.ResourceKey)
			}
			return nil, fmt.Errorf("%w: %v", policy.ErrPolicyStoreUnavailable, err)
		}

		var act models.Action
		if err := db.WithContext(ctx).Where("action_key = ?", g.ActionKey).First(&act).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: entry %d: unknown action %q", policy.ErrInvalidOverridePayload, i, g.ActionKey)
			}
			return nil, fmt.Errorf("%w: %v", policy.ErrPolicyStoreUnavailable, err)
		}

		ids[i] = struct{ ResourceID, ActionID int64 }{res.ID, act.ID}
	}
	return ids, nil
}

// Request creates a pending approval request, computing risk flags from
// the payload at creation time.
func (s Service) Request(ctx context.Context, targetUserID, requestedBy int64, payload []PayloadGrant, reason string) (*models.OverrideApprovalRequest, error) {
	if _, err := s.validate(ctx, s.DB, payload); err != nil {
		return nil, err
	}

	rawPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", policy.ErrInvalidOverridePayload, err)
	}
	rawFlags, err := json.Marshal(RiskFlags(payload))
	if err != nil {
		return nil, err
	}

	req := models.OverrideApprovalRequest{
		TargetUserID:       targetUserID,
		RequestedByUserID:  requestedBy,
		Status:             models.ApprovalPending,
		Reason:             reason,
		RiskFlags:          rawFlags,
		PermissionsPayload: rawPayload,
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&req).Error; err != nil {
			return err
		}
		return s.Audit.Record(ctx, tx, requestedBy, audit.TargetApproval, req.ID,
			audit.ActionApprovalRequested, reason,
			map[string]any{"target_user_id": targetUserID, "risk_flags": RiskFlags(payload)})
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("override approval requested",
		zap.Int64("request_id", req.ID),
		zap.Int64("target_user_id", targetUserID),
		zap.Int64("requested_by", requestedBy),
		zap.Strings("risk_flags", RiskFlags(payload)))

	return &req, nil
}

// Approve transitions a pending request to approved and applies its
// payload to user overrides, atomically. The reviewer must differ from
// the requester. If another reviewer already resolved the request the
// conditional update affects zero rows and Approve returns ErrConflict.
func (s Service) Approve(ctx context.Context, id, reviewedBy int64, reviewReason string) error {
	return s.review(ctx, id, reviewedBy, reviewReason, models.ApprovalApproved)
}

// Reject transitions a pending request to rejected. It never touches
// user overrides.
func (s Service) Reject(ctx context.Context, id, reviewedBy int64, reviewReason string) error {
	return s.review(ctx, id, reviewedBy, reviewReason, models.ApprovalRejected)
}

func (s Service) review(ctx context.Context, id, reviewedBy int64, reviewReason string, terminal models.ApprovalStatus) error {
	var req models.OverrideApprovalRequest
	if err := s.DB.WithContext(ctx).First(&req, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return policy.ErrForbidden
		}
		return fmt.Errorf("%w: %v", policy.ErrPolicyStoreUnavailable, err)
	}

	if req.RequestedByUserID == reviewedBy {
		return fmt.Errorf("%w: a request cannot be reviewed by its own requester", policy.ErrForbidden)
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&models.OverrideApprovalRequest{}).
			Where("id = ? AND status = ?", id, models.ApprovalPending).
			Updates(map[string]any{
				"status":              terminal,
				"reviewed_by_user_id": reviewedBy,
				"review_reason":       reviewReason,
				"reviewed_at":         now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race: the request is already terminal.
			return policy.ErrConflict
		}

		auditAction := audit.ActionApprovalRejected
		if terminal == models.ApprovalApproved {
			auditAction = audit.ActionApprovalApproved
			if err := s.apply(ctx, tx, req); err != nil {
				return err
			}
		}

		return s.Audit.Record(ctx, tx, reviewedBy, audit.TargetApproval, req.ID,
			auditAction, reviewReason,
			map[string]any{"target_user_id": req.TargetUserID})
	})
}

// apply upserts every payload grant as a user override for the target
// user. It runs inside the approval transaction.
func (s Service) apply(ctx context.Context, tx *gorm.DB, req models.OverrideApprovalRequest) error {
	var payload []PayloadGrant
	if err := json.Unmarshal(req.PermissionsPayload, &payload); err != nil {
		return fmt.Errorf("%w: %v", policy.ErrInvalidOverridePayload, err)
	}

	ids, err := s.validate(ctx, tx, payload)
	if err != nil {
		return err
	}

	for i := range payload {
		ov := models.UserOverride{
			UserID:     req.TargetUserID,
			ResourceID: ids[i].ResourceID,
			ActionID:   ids[i].ActionID,
			Effect:     payload[i].Effect,
			Scope:      payload[i].Scope,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "resource_id"}, {Name: "action_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"effect", "scope", "updated_at"}),
		}).Create(&ov).Error
		if err != nil {
			return err
		}
		if ov.ID == 0 {
			// The conflict path updates the existing row in place and
			// leaves the id unset; re-read it so the audit entry points
			// at the refreshed override.
			err := tx.Where("user_id = ? AND resource_id = ? AND action_id = ?",
				req.TargetUserID, ids[i].ResourceID, ids[i].ActionID).
				Take(&ov).Error
			if err != nil {
				return err
			}
		}

		if err := s.Audit.Record(ctx, tx, req.RequestedByUserID, audit.TargetUserOverride, ov.ID,
			audit.ActionOverrideCreated, "applied from approval request",
			map[string]any{"request_id": req.ID, "user_id": req.TargetUserID}); err != nil {
			return err
		}
	}
	return nil
}
