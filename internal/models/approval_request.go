package models

import (
	"time"

	"gorm.io/datatypes"
)

// OverrideApprovalRequest tracks a requested set of user overrides through
// the pending -> approved|rejected state machine. The payload is applied
// to user_overrides only on approval, and exactly once.
type OverrideApprovalRequest struct {
	ID                 int64          `gorm:"primaryKey"`
	TargetUserID       int64          `gorm:"index;not null"`
	RequestedByUserID  int64          `gorm:"index;not null"`
	ReviewedByUserID   *int64         `gorm:"index"`
	Status             ApprovalStatus `gorm:"size:16;not null;default:pending;index"`
	Reason             string         `gorm:"size:500;not null"`
	ReviewReason       string         `gorm:"size:500"`
	RiskFlags          datatypes.JSON `gorm:"type:json"`
	PermissionsPayload datatypes.JSON `gorm:"type:json;not null"`
	CreatedAt          time.Time
	ReviewedAt         *time.Time

	TargetUser  *User `gorm:"foreignKey:TargetUserID"`
	RequestedBy *User `gorm:"foreignKey:RequestedByUserID"`
	ReviewedBy  *User `gorm:"foreignKey:ReviewedByUserID"`
}
