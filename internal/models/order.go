package models

import "time"

// Order is a branch-owned business row used by scoped handlers. The
// permission engine treats business entities as opaque targets; Order
// exists so scope checks and the storage predicate have something real
// to enforce against.
type Order struct {
	ID          int64  `gorm:"primaryKey"`
	BranchID    int64  `gorm:"index;not null"`
	OwnerUserID int64  `gorm:"index;not null"`
	Reference   string `gorm:"size:64;not null"`
	Total       int64  `gorm:"not null;default:0"` // minor currency units
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Branch *Branch     `gorm:"foreignKey:BranchID"`
	Items  []OrderItem `gorm:"foreignKey:OrderID"`
}

// BranchColumn marks orders as branch-owned for row security.
func (Order) BranchColumn() string { return "branch_id" }

// OwnerID implements the object-scope target contract.
func (o Order) OwnerID() int64 { return o.OwnerUserID }

// TargetBranchID implements the object-scope target contract.
func (o Order) TargetBranchID() *int64 { return &o.BranchID }

// OrderItem has no branch column of its own; row security reaches its
// branch through the parent order.
type OrderItem struct {
	ID        int64  `gorm:"primaryKey"`
	OrderID   int64  `gorm:"index;not null"`
	SKU       string `gorm:"size:64;not null"`
	Qty       int    `gorm:"not null;default:1"`
	CreatedAt time.Time

	Order *Order `gorm:"foreignKey:OrderID"`
}

// BranchParent declares the foreign-key path row security walks to find
// the owning branch: order_items.order_id -> orders.id, orders.branch_id.
func (OrderItem) BranchParent() (parentTable, localKey, parentKey, branchColumn string) {
	return "orders", "order_id", "id", "branch_id"
}
