package db

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vahri/branchguard/internal/requestctx"
)

// BranchOwned is implemented by models that carry their own branch
// column.
type BranchOwned interface {
	BranchColumn() string
}

// BranchLinked is implemented by models without a branch column; row
// security walks the declared foreign key to a branch-bearing parent.
type BranchLinked interface {
	BranchParent() (parentTable, localKey, parentKey, branchColumn string)
}

// RowSecurity is a gorm plugin enforcing the branch predicate on every
// read and write of a protected table, independently of handler code:
//
//	allow row iff row.branch = principal.branch
//	            or (principal.is_admin and principal.branch is null)
//
// The principal comes from the per-call context, never from connection
// or session state, so pooled connections carry nothing between
// requests. A protected query without a principal matches no rows.
type RowSecurity struct {
	Log *zap.Logger
}

func (RowSecurity) Name() string { return "branchguard:row_security" }

func (rs RowSecurity) Initialize(gdb *gorm.DB) error {
	if rs.Log == nil {
		rs.Log = zap.NewNop()
	}

	cb := gdb.Callback()
	if err := cb.Query().Before("gorm:query").Register("branchguard:rs_query", rs.applyPredicate); err != nil {
		return err
	}
	if err := cb.Row().Before("gorm:row").Register("branchguard:rs_row", rs.applyPredicate); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("branchguard:rs_update", rs.applyPredicate); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("branchguard:rs_delete", rs.applyPredicate); err != nil {
		return err
	}
	return cb.Create().Before("gorm:create").Register("branchguard:rs_create", rs.checkCreate)
}

// protection resolves the protection mode of the statement's model.
func protection(tx *gorm.DB) (owned BranchOwned, linked BranchLinked) {
	if tx.Statement.Schema == nil {
		return nil, nil
	}
	zero := reflect.New(tx.Statement.Schema.ModelType).Elem().Interface()
	if o, ok := zero.(BranchOwned); ok {
		return o, nil
	}
	if l, ok := zero.(BranchLinked); ok {
		return nil, l
	}
	return nil, nil
}

func (rs RowSecurity) applyPredicate(tx *gorm.DB) {
	owned, linked := protection(tx)
	if owned == nil && linked == nil {
		return
	}

	ctx := tx.Statement.Context
	if reason, ok := requestctx.IsSystem(ctx); ok {
		rs.Log.Debug("row security bypass", zap.String("reason", reason),
			zap.String("table", tx.Statement.Schema.Table))
		return
	}

	p, ok := requestctx.GetPrincipal(ctx)
	if !ok || (p.BranchID == nil && !p.IsAdmin) {
		// Fail closed: protected table, no usable principal.
		tx.Where("1 = 0")
		return
	}
	if p.IsAdmin && p.BranchID == nil {
		// The one explicit bypass: a branch-less admin sees all rows.
		return
	}

	table := tx.Statement.Table
	if table == "" {
		table = tx.Statement.Schema.Table
	}

	if owned != nil {
		tx.Where(fmt.Sprintf("`%s`.`%s` = ?", table, owned.BranchColumn()), *p.BranchID)
		return
	}

	parent, localKey, parentKey, branchCol := linked.BranchParent()
	tx.Where(fmt.Sprintf(
		"EXISTS (SELECT 1 FROM `%s` WHERE `%s`.`%s` = `%s`.`%s` AND `%s`.`%s` = ?)",
		parent, parent, parentKey, table, localKey, parent, branchCol,
	), *p.BranchID)
}

// checkCreate rejects inserts that would place a row outside the
// principal's branch.
func (rs RowSecurity) checkCreate(tx *gorm.DB) {
	owned, linked := protection(tx)
	if owned == nil && linked == nil {
		return
	}

	ctx := tx.Statement.Context
	if _, ok := requestctx.IsSystem(ctx); ok {
		return
	}

	p, ok := requestctx.GetPrincipal(ctx)
	if !ok {
		_ = tx.AddError(gorm.ErrInvalidData)
		return
	}
	if p.IsAdmin && p.BranchID == nil {
		return
	}
	if p.BranchID == nil {
		_ = tx.AddError(gorm.ErrInvalidData)
		return
	}

	if owned != nil {
		field := tx.Statement.Schema.LookUpField(owned.BranchColumn())
		if field == nil {
			_ = tx.AddError(fmt.Errorf("row security: %s has no column %s",
				tx.Statement.Schema.Table, owned.BranchColumn()))
			return
		}
		eachRow(tx.Statement.ReflectValue, func(row reflect.Value) {
			v, isZero := field.ValueOf(ctx, row)
			if isZero {
				_ = tx.AddError(fmt.Errorf("row security: insert without branch"))
				return
			}
			if !branchMatches(v, *p.BranchID) {
				_ = tx.AddError(fmt.Errorf("row security: insert outside principal branch"))
			}
		})
		return
	}

	parent, localKey, parentKey, branchCol := linked.BranchParent()
	field := tx.Statement.Schema.LookUpField(localKey)
	if field == nil {
		_ = tx.AddError(fmt.Errorf("row security: %s has no column %s",
			tx.Statement.Schema.Table, localKey))
		return
	}
	eachRow(tx.Statement.ReflectValue, func(row reflect.Value) {
		fk, isZero := field.ValueOf(ctx, row)
		if isZero {
			_ = tx.AddError(fmt.Errorf("row security: insert without parent key"))
			return
		}
		var count int64
		err := tx.Session(&gorm.Session{NewDB: true, SkipHooks: true}).
			Table(parent).
			Where(fmt.Sprintf("`%s` = ? AND `%s` = ?", parentKey, branchCol), fk, *p.BranchID).
			Count(&count).Error
		if err != nil {
			_ = tx.AddError(err)
			return
		}
		if count == 0 {
			_ = tx.AddError(fmt.Errorf("row security: insert outside principal branch"))
		}
	})
}

func eachRow(rv reflect.Value, fn func(reflect.Value)) {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			fn(reflect.Indirect(rv.Index(i)))
		}
	default:
		fn(rv)
	}
}

func branchMatches(v any, branchID int64) bool {
	switch b := v.(type) {
	case int64:
		return b == branchID
	case *int64:
		return b != nil && *b == branchID
	default:
		return false
	}
}
