package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vahri/branchguard/internal/audit"
	"github.com/vahri/branchguard/internal/models"
	"github.com/vahri/branchguard/internal/objects"
	"github.com/vahri/branchguard/internal/policy"
)

type grantInput struct {
	RoleKey     string        `json:"role_key" binding:"required"`
	ResourceKey string        `json:"resource_key" binding:"required"`
	ActionKey   string        `json:"action_key" binding:"required"`
	Effect      models.Effect `json:"effect" binding:"required"`
	Scope       models.Scope  `json:"scope" binding:"required"`
	Reason      string        `json:"reason"`
}

// resolveGrantKeys turns the (role, resource, action) keys of a grant
// body into ids, rejecting unknown keys and bad enums.
func resolveGrantKeys(db *gorm.DB, in grantInput) (roleID, resourceID, actionID int64, err error) {
	if !in.Effect.Valid() || !in.Scope.Valid() {
		return 0, 0, 0, fmt.Errorf("%w: bad effect or scope", policy.ErrInvalidOverridePayload)
	}

	var role models.Role
	if err := db.Where("role_key = ?", in.RoleKey).First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, 0, 0, fmt.Errorf("%w: unknown role %q", policy.ErrInvalidOverridePayload, in.RoleKey)
		}
		return 0, 0, 0, err
	}

	var res models.Resource
	if err := db.Where("resource_key = ?", in.ResourceKey).First(&res).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, 0, 0, fmt.Errorf("%w: unknown resource %q", policy.ErrInvalidOverridePayload, in.ResourceKey)
		}
		return 0, 0, 0, err
	}

	var act models.Action
	if err := db.Where("action_key = ?", in.ActionKey).First(&act).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, 0, 0, fmt.Errorf("%w: unknown action %q", policy.ErrInvalidOverridePayload, in.ActionKey)
		}
		return 0, 0, 0, err
	}

	return role.ID, res.ID, act.ID, nil
}

// ListRoleGrants lists the role-grant matrix.
func ListRoleGrants(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if scopelessAllow(c) {
			c.JSON(http.StatusOK, objects.OK([]models.RoleGrant{}))
			return
		}

		var grants []models.RoleGrant
		query := db.WithContext(c.Request.Context()).
			Preload("Role").Preload("Resource").Preload("Action")
		if roleKey := c.Query("role"); roleKey != "" {
			query = query.Joins("JOIN roles ON roles.id = role_grants.role_id AND roles.role_key = ?", roleKey)
		}
		if err := query.Find(&grants).Error; err != nil {
			AbortError(c, err)
			return
		}
		c.JSON(http.StatusOK, objects.OK(grants))
	}
}

// UpsertRoleGrant creates or replaces one cell of the role-grant
// matrix and audits the edit.
func UpsertRoleGrant(db *gorm.DB, rec audit.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := mustPrincipal(c)
		if !ok {
			return
		}

		var input grantInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, objects.Fail(objects.CodeBadRequest, "malformed grant body"))
			return
		}

		roleID, resourceID, actionID, err := resolveGrantKeys(db, input)
		if err != nil {
			AbortError(c, err)
			return
		}

		grant := models.RoleGrant{
			RoleID:     roleID,
			ResourceID: resourceID,
			ActionID:   actionID,
			Effect:     input.Effect,
			Scope:      input.Scope,
		}

		ctx := c.Request.Context()
		err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "role_id"}, {Name: "resource_id"}, {Name: "action_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"effect", "scope", "updated_at"}),
			}).Create(&grant).Error
			if err != nil {
				return err
			}
			return rec.Record(ctx, tx, p.UserID, audit.TargetRoleGrant, grant.ID,
				audit.ActionGrantUpserted, input.Reason, map[string]any{
					"role":     input.RoleKey,
					"resource": input.ResourceKey,
					"action":   input.ActionKey,
					"effect":   input.Effect,
					"scope":    input.Scope,
				})
		})
		if err != nil {
			AbortError(c, err)
			return
		}
		c.JSON(http.StatusOK, objects.OK(grant))
	}
}

// DeleteRoleGrant removes one grant row and audits the removal.
func DeleteRoleGrant(db *gorm.DB, rec audit.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := mustPrincipal(c)
		if !ok {
			return
		}
		id, ok := paramID(c)
		if !ok {
			c.JSON(http.StatusBadRequest, objects.Fail(objects.CodeBadRequest, "bad id"))
			return
		}

		ctx := c.Request.Context()
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Delete(&models.RoleGrant{}, id)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return policy.ErrForbidden
			}
			return rec.Record(ctx, tx, p.UserID, audit.TargetRoleGrant, id,
				audit.ActionGrantDeleted, c.Query("reason"), nil)
		})
		if err != nil {
			AbortError(c, err)
			return
		}
		c.JSON(http.StatusOK, objects.OK(gin.H{"deleted": id}))
	}
}
