package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vahri/branchguard/internal/models"
	"github.com/vahri/branchguard/internal/objects"
	"github.com/vahri/branchguard/internal/policy"
)

// TargetKey is where the object-scope middleware stashes the loaded row
// so handlers do not query it twice.
const TargetKey = "branchguard.target"

// LoadOrderTarget fetches the order for the object-scope check. Row
// security has already filtered the read, so a cross-branch id comes
// back as not found.
func LoadOrderTarget(c *gin.Context, db *gorm.DB, id int64) (policy.Target, error) {
	var order models.Order
	if err := db.WithContext(c.Request.Context()).First(&order, id).Error; err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrders lists orders visible under the resolved scope. Row
// security already restricts the query to the principal's branch; an
// own-scoped decision narrows it further to the caller's rows.
func ListOrders(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := mustPrincipal(c)
		if !ok {
			return
		}
		if scopelessAllow(c) {
			c.JSON(http.StatusOK, objects.OK([]models.Order{}))
			return
		}

		query := db.WithContext(c.Request.Context()).Model(&models.Order{}).Order("id DESC")
		if d, ok := policy.DecisionFromContext(c.Request.Context()); ok && d.Scope() == models.ScopeOwn {
			query = query.Where("owner_user_id = ?", p.UserID)
		}

		var orders []models.Order
		if err := query.Limit(100).Find(&orders).Error; err != nil {
			AbortError(c, err)
			return
		}
		c.JSON(http.StatusOK, objects.OK(orders))
	}
}

// GetOrder returns the order loaded by the object-scope middleware.
func GetOrder(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, ok := c.MustGet(TargetKey).(models.Order)
		if !ok {
			AbortError(c, policy.ErrForbidden)
			return
		}
		c.JSON(http.StatusOK, objects.OK(order))
	}
}

// CreateOrder creates an order owned by the caller in the caller's
// branch.
func CreateOrder(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := mustPrincipal(c)
		if !ok {
			return
		}
		if p.BranchID == nil {
			AbortError(c, policy.ErrForbidden)
			return
		}

		var input struct {
			Reference string `json:"reference" binding:"required"`
			Total     int64  `json:"total"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, objects.Fail(objects.CodeBadRequest, "reference required"))
			return
		}

		order := models.Order{
			BranchID:    *p.BranchID,
			OwnerUserID: p.UserID,
			Reference:   input.Reference,
			Total:       input.Total,
		}
		if err := db.WithContext(c.Request.Context()).Create(&order).Error; err != nil {
			AbortError(c, err)
			return
		}
		c.JSON(http.StatusCreated, objects.OK(order))
	}
}

// UpdateOrder mutates the order that already passed the object-scope
// check.
func UpdateOrder(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, ok := c.MustGet(TargetKey).(models.Order)
		if !ok {
			AbortError(c, policy.ErrForbidden)
			return
		}

		var input struct {
			Reference *string `json:"reference"`
			Total     *int64  `json:"total"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, objects.Fail(objects.CodeBadRequest, "malformed body"))
			return
		}

		updates := map[string]any{}
		if input.Reference != nil {
			updates["reference"] = *input.Reference
		}
		if input.Total != nil {
			updates["total"] = *input.Total
		}
		if len(updates) == 0 {
			c.JSON(http.StatusOK, objects.OK(order))
			return
		}

		err := db.WithContext(c.Request.Context()).
			Model(&models.Order{}).
			Where("id = ?", order.ID).
			Updates(updates).Error
		if err != nil {
			AbortError(c, err)
			return
		}
		c.JSON(http.StatusOK, objects.OK(gin.H{"updated": order.ID}))
	}
}

// DeleteOrder removes the order that already passed the object-scope
// check.
func DeleteOrder(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, ok := c.MustGet(TargetKey).(models.Order)
		if !ok {
			AbortError(c, policy.ErrForbidden)
			return
		}

		err := db.WithContext(c.Request.Context()).Delete(&models.Order{}, order.ID).Error
		if err != nil {
			AbortError(c, err)
			return
		}
		c.JSON(http.StatusOK, objects.OK(gin.H{"deleted": order.ID}))
	}
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
