package models

import "time"

// PolicyVersion records which declarative seed baseline produced the
// current role-grant matrix.
type PolicyVersion struct {
	ID          int64  `gorm:"primaryKey"`
	VersionKey  string `gorm:"size:100;uniqueIndex;not null"`
	Description string `gorm:"size:500"`
	CreatedAt   time.Time
}
