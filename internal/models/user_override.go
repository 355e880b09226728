package models

import "time"

// UserOverride is a per-principal exception with the same shape as a
// RoleGrant. When present for a triple it replaces the role grant
// entirely, widening or narrowing it. Overrides are removed on explicit
// revoke or offboarding only; disabling a user leaves them in place,
// which the access review report surfaces as a revoke candidate.
type UserOverride struct {
	ID         int64  `gorm:"primaryKey"`
	UserID     int64  `gorm:"uniqueIndex:uq_user_override;not null"`
	ResourceID int64  `gorm:"uniqueIndex:uq_user_override;not null"`
	ActionID   int64  `gorm:"uniqueIndex:uq_user_override;not null"`
	Effect     Effect `gorm:"size:8;not null"`
	Scope      Scope  `gorm:"size:8;not null;default:none"`
	Condition  string `gorm:"type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time

	User     *User     `gorm:"foreignKey:UserID"`
	Resource *Resource `gorm:"foreignKey:ResourceID"`
	Action   *Action   `gorm:"foreignKey:ActionID"`
}
