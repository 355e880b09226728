package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vahri/branchguard/internal/models"
	"github.com/vahri/branchguard/internal/objects"
)

// ListAuditEntries pages through the audit trail newest-first. Branch
// visibility is not filtered here: the row-security predicate narrows
// the read to the caller's branch, and a branch-less admin sees
// everything.
func ListAuditEntries(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if scopelessAllow(c) {
			c.JSON(http.StatusOK, objects.OK(gin.H{
				"entries":     []models.AuditEntry{},
				"next_cursor": nil,
			}))
			return
		}

		limit := 20
		if limitStr := c.Query("limit"); limitStr != "" {
			if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 100 {
				limit = parsed
			}
		}

		var afterID int64
		if cursorStr := c.Query("after_id"); cursorStr != "" {
			if parsed, err := strconv.ParseInt(cursorStr, 10, 64); err == nil && parsed > 0 {
				afterID = parsed
			}
		}

		query := db.WithContext(c.Request.Context()).
			Model(&models.AuditEntry{}).
			Order("id DESC")
		if afterID > 0 {
			query = query.Where("id < ?", afterID)
		}
		if search := strings.TrimSpace(c.Query("q")); search != "" {
			like := "%" + search + "%"
			query = query.Where("(action_type LIKE ? OR target_type LIKE ? OR reason LIKE ?)",
				like, like, like)
		}

		var entries []models.AuditEntry
		if err := query.Limit(limit + 1).Find(&entries).Error; err != nil {
			AbortError(c, err)
			return
		}

		var nextCursor *int64
		if len(entries) > limit {
			entries = entries[:limit]
			// The next page resumes below the last returned id.
			next := entries[limit-1].ID
			nextCursor = &next
		}

		c.JSON(http.StatusOK, objects.OK(gin.H{
			"entries":     entries,
			"next_cursor": nextCursor,
		}))
	}
}
