// Package dbtest provides the in-memory database used across the test
// suites: sqlite with the full schema and the row-security plugin
// registered, optionally seeded with the default policy baseline.
package dbtest

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vahri/branchguard/internal/db"
	"github.com/vahri/branchguard/internal/models"
	"github.com/vahri/branchguard/internal/requestctx"
	"github.com/vahri/branchguard/internal/seed"
)

// Open returns a migrated in-memory database with row security active.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// Every pooled connection to :memory: is its own empty database;
	// pin the pool to one so all sessions share the schema.
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, gdb.Use(db.RowSecurity{Log: zap.NewNop()}))
	require.NoError(t, db.AutoMigrate(gdb))

	return gdb
}

// OpenSeeded is Open plus the default policy baseline.
func OpenSeeded(t *testing.T) *gorm.DB {
	t.Helper()

	gdb := Open(t)
	require.NoError(t, seed.Apply(context.Background(), gdb, seed.Default(), zap.NewNop()))
	return gdb
}

// SystemCtx returns a context that bypasses row security, for fixture
// setup.
func SystemCtx() context.Context {
	return requestctx.WithSystem(context.Background(), "test-fixture")
}

// PrincipalCtx returns a context carrying the given principal.
func PrincipalCtx(p requestctx.Principal) context.Context {
	return requestctx.WithPrincipal(context.Background(), p)
}

// Branch creates a branch fixture.
func Branch(t *testing.T, gdb *gorm.DB, code string) models.Branch {
	t.Helper()

	branch := models.Branch{Code: code, Name: code, IsActive: true}
	require.NoError(t, gdb.WithContext(SystemCtx()).Where("code = ?", code).FirstOrCreate(&branch).Error)
	return branch
}

// User creates a user fixture in the given role and branch.
func User(t *testing.T, gdb *gorm.DB, email, roleKey string, branchID *int64) models.User {
	t.Helper()

	var role models.Role
	require.NoError(t, gdb.Where("role_key = ?", roleKey).First(&role).Error)

	user := models.User{
		Email:    email,
		Name:     email,
		RoleID:   role.ID,
		BranchID: branchID,
		Status:   models.UserActive,
	}
	require.NoError(t, gdb.WithContext(SystemCtx()).Where("email = ?", email).FirstOrCreate(&user).Error)
	return user
}

// ResourceID looks up a catalog resource id by key.
func ResourceID(t *testing.T, gdb *gorm.DB, key string) int64 {
	t.Helper()

	var res models.Resource
	require.NoError(t, gdb.Where("resource_key = ?", key).First(&res).Error)
	return res.ID
}

// ActionID looks up an action id by key.
func ActionID(t *testing.T, gdb *gorm.DB, key string) int64 {
	t.Helper()

	var act models.Action
	require.NoError(t, gdb.Where("action_key = ?", key).First(&act).Error)
	return act.ID
}
