package seed_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/glebarez/sqlite"

	"github.com/vahri/branchguard/internal/db"
	"github.com/vahri/branchguard/internal/models"
	"github.com/vahri/branchguard/internal/requestctx"
	"github.com/vahri/branchguard/internal/seed"
)

// open builds the schema without dbtest to avoid an import cycle
// (dbtest seeds through this package).
func open(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, gdb.Use(db.RowSecurity{Log: zap.NewNop()}))
	require.NoError(t, db.AutoMigrate(gdb))
	return gdb
}

func TestApplyBuildsBaseline(t *testing.T) {
	gdb := open(t)
	require.NoError(t, seed.Apply(context.Background(), gdb, seed.Default(), zap.NewNop()))

	var roles, resources, grants, actions int64
	require.NoError(t, gdb.Model(&models.Role{}).Count(&roles).Error)
	require.NoError(t, gdb.Model(&models.Resource{}).Count(&resources).Error)
	require.NoError(t, gdb.Model(&models.RoleGrant{}).Count(&grants).Error)
	require.NoError(t, gdb.Model(&models.Action{}).Count(&actions).Error)

	assert.EqualValues(t, 3, roles)
	assert.EqualValues(t, 8, resources)
	assert.EqualValues(t, len(seed.Default().Grants), grants)
	assert.EqualValues(t, len(models.ActionKeys()), actions)

	var version models.PolicyVersion
	require.NoError(t, gdb.Where("version_key = ?", "baseline-2026.08").First(&version).Error)

	sysCtx := requestctx.WithSystem(context.Background(), "test")
	var audits int64
	require.NoError(t, gdb.WithContext(sysCtx).Model(&models.AuditEntry{}).
		Where("action_type = ?", "policy.seeded").Count(&audits).Error)
	assert.EqualValues(t, 1, audits)
}

func TestApplySeedsBranchlessAdmin(t *testing.T) {
	gdb := open(t)
	b := seed.Default()
	require.NoError(t, seed.Apply(context.Background(), gdb, b, zap.NewNop()))

	var admin models.User
	require.NoError(t, gdb.Where("email = ?", b.AdminUser.Email).First(&admin).Error)
	assert.True(t, admin.IsAdmin)
	assert.Nil(t, admin.BranchID)
	assert.Equal(t, models.UserActive, admin.Status)
	assert.NoError(t, bcrypt.CompareHashAndPassword(
		[]byte(admin.PasswordHash), []byte(b.AdminUser.Password)))
}

func TestApplyIsIdempotent(t *testing.T) {
	gdb := open(t)
	b := seed.Default()
	require.NoError(t, seed.Apply(context.Background(), gdb, b, zap.NewNop()))

	// An operator edit made after the baseline shipped must survive a
	// restart.
	var role models.Role
	require.NoError(t, gdb.Where("role_key = ?", "employee").First(&role).Error)
	var res models.Resource
	require.NoError(t, gdb.Where("resource_key = ?", "orders").First(&res).Error)
	var act models.Action
	require.NoError(t, gdb.Where("action_key = ?", models.ActionDelete).First(&act).Error)

	require.NoError(t, gdb.Model(&models.RoleGrant{}).
		Where("role_id = ? AND resource_id = ? AND action_id = ?", role.ID, res.ID, act.ID).
		Updates(map[string]any{"effect": models.EffectAllow, "scope": models.ScopeOwn}).Error)

	require.NoError(t, seed.Apply(context.Background(), gdb, b, zap.NewNop()))

	var grant models.RoleGrant
	require.NoError(t, gdb.
		Where("role_id = ? AND resource_id = ? AND action_id = ?", role.ID, res.ID, act.ID).
		First(&grant).Error)
	assert.Equal(t, models.EffectAllow, grant.Effect)
	assert.Equal(t, models.ScopeOwn, grant.Scope)

	var versions int64
	require.NoError(t, gdb.Model(&models.PolicyVersion{}).Count(&versions).Error)
	assert.EqualValues(t, 1, versions)
}
