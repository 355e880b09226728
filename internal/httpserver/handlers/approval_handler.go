package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vahri/branchguard/internal/approval"
	"github.com/vahri/branchguard/internal/models"
	"github.com/vahri/branchguard/internal/objects"
)

// ListApprovalRequests lists approval requests, optionally by status.
func ListApprovalRequests(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if scopelessAllow(c) {
			c.JSON(http.StatusOK, objects.OK([]models.OverrideApprovalRequest{}))
			return
		}

		query := db.WithContext(c.Request.Context()).
			Preload("TargetUser").Preload("RequestedBy").Preload("ReviewedBy").
			Order("created_at DESC")
		if status := c.Query("status"); status != "" {
			query = query.Where("status = ?", status)
		}

		var requests []models.OverrideApprovalRequest
		if err := query.Limit(100).Find(&requests).Error; err != nil {
			AbortError(c, err)
			return
		}
		c.JSON(http.StatusOK, objects.OK(requests))
	}
}

// CreateApprovalRequest opens a pending override request on behalf of
// the caller.
func CreateApprovalRequest(svc approval.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := mustPrincipal(c)
		if !ok {
			return
		}

		var input struct {
			TargetUserID int64                   `json:"target_user_id" binding:"required"`
			Reason       string                  `json:"reason" binding:"required"`
			Payload      []approval.PayloadGrant `json:"payload" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, objects.Fail(objects.CodeInvalidPayload, "malformed approval request"))
			return
		}

		req, err := svc.Request(c.Request.Context(), input.TargetUserID, p.UserID, input.Payload, input.Reason)
		if err != nil {
			AbortError(c, err)
			return
		}
		c.JSON(http.StatusCreated, objects.OK(req))
	}
}

// ApproveRequest resolves a pending request as approved, applying its
// payload.
func ApproveRequest(svc approval.Service) gin.HandlerFunc {
	return reviewHandler(svc.Approve)
}

// RejectRequest resolves a pending request as rejected.
func RejectRequest(svc approval.Service) gin.HandlerFunc {
	return reviewHandler(svc.Reject)
}

func reviewHandler(review func(ctx context.Context, id, reviewedBy int64, reason string) error) gin.HandlerFunc {
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

		var input struct {
			ReviewReason string `json:"review_reason"`
		}
		// The body is optional; a missing reason is recorded as empty.
		_ = c.ShouldBindJSON(&input)

		if err := review(c.Request.Context(), id, p.UserID, input.ReviewReason); err != nil {
			AbortError(c, err)
			return
		}
		c.JSON(http.StatusOK, objects.OK(gin.H{"id": id}))
	}
}
