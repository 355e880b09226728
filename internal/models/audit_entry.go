package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditEntry is append-only: no update or delete path exists anywhere.
// Entries carry the actor's branch so audit reads go through the same
// row-security predicate as business data.
type AuditEntry struct {
	ID          int64          `gorm:"primaryKey"`
	BranchID    *int64         `gorm:"index"`
	ActorUserID int64          `gorm:"index;not null"`
	TargetType  string         `gorm:"size:64;not null"` // e.g. "role_grant", "user_override"
	TargetID    int64          `gorm:"index"`
	ActionType  string         `gorm:"size:64;not null"`
	Reason      string         `gorm:"size:500"`
	Metadata    datatypes.JSON `gorm:"type:json"`
	RequestID   string         `gorm:"size:64;index"`
	CreatedAt   time.Time      `gorm:"index"`

	Actor *User `gorm:"foreignKey:ActorUserID"`
}

// BranchColumn marks audit entries as branch-owned for row security.
func (AuditEntry) BranchColumn() string { return "branch_id" }
