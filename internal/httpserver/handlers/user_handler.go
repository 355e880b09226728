package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vahri/branchguard/internal/audit"
	"github.com/vahri/branchguard/internal/models"
	"github.com/vahri/branchguard/internal/objects"
	"github.com/vahri/branchguard/internal/policy"
)

// userTarget adapts a user row to the object-scope contract: acting on
// a user is "own" when it is yourself, "branch" when they share your
// branch.
type userTarget struct{ user models.User }

func (t userTarget) OwnerID() int64         { return t.user.ID }
func (t userTarget) TargetBranchID() *int64 { return t.user.BranchID }

// LoadUserTarget fetches the user for the object-scope check on
// user-directed mutations.
func LoadUserTarget(c *gin.Context, db *gorm.DB, id int64) (policy.Target, error) {
	var user models.User
	if err := db.WithContext(c.Request.Context()).First(&user, id).Error; err != nil {
		return nil, err
	}
	return userTarget{user: user}, nil
}

// ListUsers lists users visible under the resolved scope.
func ListUsers(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := mustPrincipal(c)
		if !ok {
			return
		}
		if scopelessAllow(c) {
			c.JSON(http.StatusOK, objects.OK([]models.User{}))
			return
		}

		query := db.WithContext(c.Request.Context()).Model(&models.User{}).Preload("Role").Order("id")
		if d, ok := policy.DecisionFromContext(c.Request.Context()); ok {
			switch d.Scope() {
			case models.ScopeOwn:
				query = query.Where("id = ?", p.UserID)
			case models.ScopeBranch:
				if p.BranchID == nil {
					AbortError(c, policy.ErrForbidden)
					return
				}
				query = query.Where("branch_id = ?", *p.BranchID)
			}
		}

		var users []models.User
		if err := query.Find(&users).Error; err != nil {
			AbortError(c, err)
			return
		}
		c.JSON(http.StatusOK, objects.OK(users))
	}
}

// DisableUser marks the target user disabled. Overrides stay in
// place: the access review report surfaces them as revoke candidates
// until an explicit revoke or offboarding.
func DisableUser(db *gorm.DB, rec audit.Recorder, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := mustPrincipal(c)
		if !ok {
			return
		}
		target, ok := c.MustGet(TargetKey).(policy.Target)
		if !ok {
			AbortError(c, policy.ErrForbidden)
			return
		}
		targetID := target.OwnerID()

		ctx := c.Request.Context()
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&models.User{}).Where("id = ?", targetID).
				Update("status", models.UserDisabled)
			if res.Error != nil {
				return res.Error
			}
			return rec.Record(ctx, tx, p.UserID, audit.TargetUser, targetID,
				audit.ActionUserDisabled, c.Query("reason"), nil)
		})
		if err != nil {
			AbortError(c, err)
			return
		}

		logger.Info("user disabled", zap.Int64("user_id", targetID), zap.Int64("actor", p.UserID))
		c.JSON(http.StatusOK, objects.OK(gin.H{"disabled": targetID}))
	}
}

// OffboardUser disables the user and revokes every live override,
// auditing each revocation.
func OffboardUser(db *gorm.DB, rec audit.Recorder, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := mustPrincipal(c)
		if !ok {
			return
		}
		target, ok := c.MustGet(TargetKey).(policy.Target)
		if !ok {
			AbortError(c, policy.ErrForbidden)
			return
		}
		targetID := target.OwnerID()

		ctx := c.Request.Context()
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var overrides []models.UserOverride
			if err := tx.Where("user_id = ?", targetID).Find(&overrides).Error; err != nil {
				return err
			}
			for _, ov := range overrides {
				if err := tx.Delete(&models.UserOverride{}, ov.ID).Error; err != nil {
					return err
				}
				if err := rec.Record(ctx, tx, p.UserID, audit.TargetUserOverride, ov.ID,
					audit.ActionOverrideRevoked, "offboarding", nil); err != nil {
					return err
				}
			}

			res := tx.Model(&models.User{}).Where("id = ?", targetID).
				Update("status", models.UserDisabled)
			if res.Error != nil {
				return res.Error
			}
			return rec.Record(ctx, tx, p.UserID, audit.TargetUser, targetID,
				audit.ActionUserOffboarded, c.Query("reason"), nil)
		})
		if err != nil {
			AbortError(c, err)
			return
		}

		logger.Info("user offboarded", zap.Int64("user_id", targetID), zap.Int64("actor", p.UserID))
		c.JSON(http.StatusOK, objects.OK(gin.H{"offboarded": targetID}))
	}
}
