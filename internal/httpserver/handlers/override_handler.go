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

// ListUserOverrides lists live overrides, optionally for one user.
func ListUserOverrides(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if scopelessAllow(c) {
			c.JSON(http.StatusOK, objects.OK([]models.UserOverride{}))
			return
		}

		query := db.WithContext(c.Request.Context()).
			Preload("User").Preload("Resource").Preload("Action")
		if user := c.Query("user_id"); user != "" {
			query = query.Where("user_id = ?", user)
		}

		var overrides []models.UserOverride
		if err := query.Find(&overrides).Error; err != nil {
			AbortError(c, err)
			return
		}
		c.JSON(http.StatusOK, objects.OK(overrides))
	}
}

// CreateUserOverride is the direct admin edit path for low-risk
// exceptions. Risky grants are expected to go through the approval
// workflow instead, but the engine does not forbid a direct edit; it
// audits it and the access review report counts its risk.
func CreateUserOverride(db *gorm.DB, rec audit.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := mustPrincipal(c)
		if !ok {
			return
		}

		var input struct {
			UserID      int64         `json:"user_id" binding:"required"`
			ResourceKey string        `json:"resource_key" binding:"required"`
			ActionKey   string        `json:"action_key" binding:"required"`
			Effect      models.Effect `json:"effect" binding:"required"`
			Scope       models.Scope  `json:"scope" binding:"required"`
			Reason      string        `json:"reason"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, objects.Fail(objects.CodeInvalidPayload, "malformed override body"))
			return
		}
		if !input.Effect.Valid() || !input.Scope.Valid() {
			AbortError(c, fmt.Errorf("%w: bad effect or scope", policy.ErrInvalidOverridePayload))
			return
		}

		var res models.Resource
		if err := db.Where("resource_key = ?", input.ResourceKey).First(&res).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				AbortError(c, fmt.Errorf("%w: unknown resource %q", policy.ErrInvalidOverridePayload, input.ResourceKey))
				return
			}
			AbortError(c, err)
			return
		}
		var act models.Action
		if err := db.Where("action_key = ?", input.ActionKey).First(&act).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				AbortError(c, fmt.Errorf("%w: unknown action %q", policy.ErrInvalidOverridePayload, input.ActionKey))
				return
			}
			AbortError(c, err)
			return
		}

		ov := models.UserOverride{
			UserID:     input.UserID,
			ResourceID: res.ID,
			ActionID:   act.ID,
			Effect:     input.Effect,
			Scope:      input.Scope,
		}

		ctx := c.Request.Context()
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "resource_id"}, {Name: "action_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"effect", "scope", "updated_at"}),
			}).Create(&ov).Error
			if err != nil {
				return err
			}
			return rec.Record(ctx, tx, p.UserID, audit.TargetUserOverride, ov.ID,
				audit.ActionOverrideCreated, input.Reason, map[string]any{
					"user_id":  input.UserID,
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
		c.JSON(http.StatusCreated, objects.OK(ov))
	}
}

// RevokeUserOverride deletes one override and audits the revocation.
func RevokeUserOverride(db *gorm.DB, rec audit.Recorder) gin.HandlerFunc {
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
			res := tx.Delete(&models.UserOverride{}, id)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return policy.ErrForbidden
			}
			return rec.Record(ctx, tx, p.UserID, audit.TargetUserOverride, id,
				audit.ActionOverrideRevoked, c.Query("reason"), nil)
		})
		if err != nil {
			AbortError(c, err)
			return
		}
		c.JSON(http.StatusOK, objects.OK(gin.H{"revoked": id}))
	}
}
