package db

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/vahri/branchguard/internal/models"
)

// Connect opens the MySQL connection and verifies it is reachable.
func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("db: unwrap: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("db: ping: %w", err)
	}

	return gdb, nil
}

// AutoMigrate creates or updates the schema for every engine table.
func AutoMigrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.Branch{},
		&models.Role{},
		&models.User{},
		&models.Resource{},
		&models.Action{},
		&models.RoleGrant{},
		&models.UserOverride{},
		&models.OverrideApprovalRequest{},
		&models.AuditEntry{},
		&models.PolicyVersion{},
		&models.Order{},
		&models.OrderItem{},
	)
}
