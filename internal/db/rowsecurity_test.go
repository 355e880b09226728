package db_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vahri/branchguard/internal/db/dbtest"
	"github.com/vahri/branchguard/internal/models"
	"github.com/vahri/branchguard/internal/requestctx"
)

func seedTwoBranches(t *testing.T, gdb *gorm.DB) (a, b models.Branch) {
	t.Helper()

	a = dbtest.Branch(t, gdb, "branch-a")
	b = dbtest.Branch(t, gdb, "branch-b")

	sys := dbtest.SystemCtx()
	orders := []models.Order{
		{BranchID: a.ID, OwnerUserID: 1, Reference: "A-1"},
		{BranchID: a.ID, OwnerUserID: 2, Reference: "A-2"},
		{BranchID: b.ID, OwnerUserID: 3, Reference: "B-1"},
	}
	require.NoError(t, gdb.WithContext(sys).Create(&orders).Error)

	items := []models.OrderItem{
		{OrderID: orders[0].ID, SKU: "sku-a", Qty: 1},
		{OrderID: orders[2].ID, SKU: "sku-b", Qty: 2},
	}
	require.NoError(t, gdb.WithContext(sys).Create(&items).Error)
	return a, b
}

func TestQueryScopedToPrincipalBranch(t *testing.T) {
	gdb := dbtest.Open(t)
	a, _ := seedTwoBranches(t, gdb)

	ctx := dbtest.PrincipalCtx(requestctx.Principal{UserID: 1, BranchID: &a.ID})

	var orders []models.Order
	require.NoError(t, gdb.WithContext(ctx).Find(&orders).Error)
	require.Len(t, orders, 2)
	for _, o := range orders {
		assert.Equal(t, a.ID, o.BranchID)
	}
}

func TestForeignKeyChainNeverLeaksOtherBranch(t *testing.T) {
	gdb := dbtest.Open(t)
	a, _ := seedTwoBranches(t, gdb)

	ctx := dbtest.PrincipalCtx(requestctx.Principal{UserID: 1, BranchID: &a.ID})

	// order_items has no branch column; the predicate walks the FK to
	// orders. Branch B's item must be invisible.
	var items []models.OrderItem
	require.NoError(t, gdb.WithContext(ctx).Find(&items).Error)
	require.Len(t, items, 1)
	assert.Equal(t, "sku-a", items[0].SKU)
}

func TestBranchlessAdminSeesAllRows(t *testing.T) {
	gdb := dbtest.Open(t)
	seedTwoBranches(t, gdb)

	ctx := dbtest.PrincipalCtx(requestctx.Principal{UserID: 99, IsAdmin: true})

	var orders []models.Order
	require.NoError(t, gdb.WithContext(ctx).Find(&orders).Error)
	assert.Len(t, orders, 3)
}

func TestMissingPrincipalFailsClosed(t *testing.T) {
	gdb := dbtest.Open(t)
	seedTwoBranches(t, gdb)

	var orders []models.Order
	require.NoError(t, gdb.Find(&orders).Error)
	assert.Empty(t, orders)
}

func TestUpdateAndDeleteScopedToBranch(t *testing.T) {
	gdb := dbtest.Open(t)
	a, b := seedTwoBranches(t, gdb)

	ctx := dbtest.PrincipalCtx(requestctx.Principal{UserID: 1, BranchID: &a.ID})

	var foreign models.Order
	require.NoError(t, gdb.WithContext(dbtest.SystemCtx()).
		Where("branch_id = ?", b.ID).First(&foreign).Error)

	// A branch-A principal updating or deleting a branch-B row affects
	// nothing.
	res := gdb.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", foreign.ID).Update("total", 500)
	require.NoError(t, res.Error)
	assert.Zero(t, res.RowsAffected)

	res = gdb.WithContext(ctx).Delete(&models.Order{}, foreign.ID)
	require.NoError(t, res.Error)
	assert.Zero(t, res.RowsAffected)
}

func TestCreateOutsideBranchRejected(t *testing.T) {
	gdb := dbtest.Open(t)
	a, b := seedTwoBranches(t, gdb)

	ctx := dbtest.PrincipalCtx(requestctx.Principal{UserID: 1, BranchID: &a.ID})

	err := gdb.WithContext(ctx).Create(&models.Order{
		BranchID: b.ID, OwnerUserID: 1, Reference: "X-1",
	}).Error
	assert.Error(t, err)

	// In the principal's own branch the insert goes through.
	err = gdb.WithContext(ctx).Create(&models.Order{
		BranchID: a.ID, OwnerUserID: 1, Reference: "A-3",
	}).Error
	assert.NoError(t, err)
}

func TestCreateChildOutsideBranchRejected(t *testing.T) {
	gdb := dbtest.Open(t)
	a, b := seedTwoBranches(t, gdb)

	ctx := dbtest.PrincipalCtx(requestctx.Principal{UserID: 1, BranchID: &a.ID})

	var foreign models.Order
	require.NoError(t, gdb.WithContext(dbtest.SystemCtx()).
		Where("branch_id = ?", b.ID).First(&foreign).Error)

	err := gdb.WithContext(ctx).Create(&models.OrderItem{
		OrderID: foreign.ID, SKU: "smuggled", Qty: 1,
	}).Error
	assert.Error(t, err)
}

func TestAuditEntriesAreBranchScoped(t *testing.T) {
	gdb := dbtest.Open(t)
	a, b := seedTwoBranches(t, gdb)

	sys := dbtest.SystemCtx()
	entries := []models.AuditEntry{
		{BranchID: &a.ID, ActorUserID: 1, TargetType: "user_override", ActionType: "user_override.created"},
		{BranchID: &b.ID, ActorUserID: 3, TargetType: "user_override", ActionType: "user_override.created"},
	}
	require.NoError(t, gdb.WithContext(sys).Create(&entries).Error)

	ctx := dbtest.PrincipalCtx(requestctx.Principal{UserID: 1, BranchID: &a.ID})
	var visible []models.AuditEntry
	require.NoError(t, gdb.WithContext(ctx).Find(&visible).Error)
	require.Len(t, visible, 1)
	assert.Equal(t, a.ID, *visible[0].BranchID)

	admin := dbtest.PrincipalCtx(requestctx.Principal{UserID: 99, IsAdmin: true})
	require.NoError(t, gdb.WithContext(admin).Find(&visible).Error)
	assert.Len(t, visible, 2)
}
