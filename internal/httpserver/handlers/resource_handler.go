package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vahri/branchguard/internal/models"
	"github.com/vahri/branchguard/internal/objects"
)

// ListResources returns the active resource catalog in menu order.
func ListResources(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if scopelessAllow(c) {
			c.JSON(http.StatusOK, objects.OK([]models.Resource{}))
			return
		}

		var resources []models.Resource
		err := db.WithContext(c.Request.Context()).
			Where("is_active = ?", true).
			Order("sort_order").
			Find(&resources).Error
		if err != nil {
			AbortError(c, err)
			return
		}
		c.JSON(http.StatusOK, objects.OK(resources))
	}
}
