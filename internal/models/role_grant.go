package models

import "time"

// RoleGrant maps (role, resource, action) to an effect and scope. The
// conventional encoding stores scope=none alongside effect=deny, but
// readers must derive the decision from the effect alone.
type RoleGrant struct {
	ID         int64  `gorm:"primaryKey"`
	RoleID     int64  `gorm:"uniqueIndex:uq_role_grant;not null"`
	ResourceID int64  `gorm:"uniqueIndex:uq_role_grant;not null"`
	ActionID   int64  `gorm:"uniqueIndex:uq_role_grant;not null"`
	Effect     Effect `gorm:"size:8;not null"`
	Scope      Scope  `gorm:"size:8;not null;default:none"`
	Condition  string `gorm:"type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Role     *Role     `gorm:"foreignKey:RoleID"`
	Resource *Resource `gorm:"foreignKey:ResourceID"`
	Action   *Action   `gorm:"foreignKey:ActionID"`
}
