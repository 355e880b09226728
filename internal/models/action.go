package models

import "time"

// Action is one of the fixed verbs a grant can target. The set is closed
// (access, view, create, update, delete) and immutable after seeding.
type Action struct {
	ID        int64  `gorm:"primaryKey"`
	ActionKey string `gorm:"size:32;uniqueIndex;not null"`
	CreatedAt time.Time
}

const (
	ActionAccess = "access"
	ActionView   = "view"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// ActionKeys lists the closed action set in seed order.
func ActionKeys() []string {
	return []string{ActionAccess, ActionView, ActionCreate, ActionUpdate, ActionDelete}
}
