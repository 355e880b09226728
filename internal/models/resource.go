package models

import "time"

// Resource is a protectable surface of the application: a page, an API
// group, a menu entry or a feature toggle. Resources are created by the
// versioned seed baseline and soft-deactivated, never hard-deleted while
// grants reference them.
type Resource struct {
	ID           int64        `gorm:"primaryKey"`
	ResourceKey  string       `gorm:"size:100;uniqueIndex;not null"`
	Name         string       `gorm:"size:200;not null"`
	RoutePattern string       `gorm:"size:255"`
	Type         ResourceType `gorm:"size:16;not null"`
	ParentID     *int64       `gorm:"index"`
	SortOrder    int          `gorm:"default:0"`
	IsActive     bool         `gorm:"default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Parent *Resource `gorm:"foreignKey:ParentID"`
}
