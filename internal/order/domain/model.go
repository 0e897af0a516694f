package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusPicking   Status = "picking"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
)

type Origin string

const (
	OriginInternal Origin = "internal"
	OriginCatalog  Origin = "catalog"
)

type Order struct {
	ID          int64           `gorm:"primaryKey"`
	OrgID       int64           `gorm:"column:org_id;not null;uniqueIndex:ux_orders_org_number,priority:1;index:ix_orders_org_status,priority:1"`
	Number      string          `gorm:"type:text;not null;uniqueIndex:ux_orders_org_number,priority:2"`
	CustomerID  *int64          `gorm:"index"`
	Status      Status          `gorm:"type:text;not null;index:ix_orders_org_status,priority:2"`
	Origin      Origin          `gorm:"type:text;not null"`
	Total       decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	Notes       *string         `gorm:"type:text"`
	CreatedBy   *string         `gorm:"type:text"`
	ConfirmedAt *time.Time
	RejectedAt  *time.Time
	CancelledAt *time.Time
	ShippedAt   *time.Time
	DeliveredAt *time.Time
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (Order) TableName() string { return "orders" }

// Item is one order line referencing exactly one product or one kit.
type Item struct {
	ID        int64           `gorm:"primaryKey"`
	OrgID     int64           `gorm:"column:org_id;not null"`
	OrderID   int64           `gorm:"not null;index"`
	ProductID *int64          `gorm:"index;check:chk_order_items_line,(product_id IS NULL) <> (kit_id IS NULL)"`
	KitID     *int64          `gorm:"index"`
	Quantity  int64           `gorm:"not null;check:chk_order_items_quantity,quantity > 0"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	Discount  decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	Subtotal  decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	CreatedAt time.Time       `gorm:"not null"`
}

func (Item) TableName() string { return "order_items" }

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusRejected, StatusCancelled,
		StatusPicking, StatusShipped, StatusDelivered:
		return true
	default:
		return false
	}
}

// Approved reports whether stock has already been debited for the order.
func (s Status) Approved() bool {
	switch s {
	case StatusConfirmed, StatusPicking, StatusShipped, StatusDelivered:
		return true
	default:
		return false
	}
}

var fulfillmentRank = map[Status]int{
	StatusConfirmed: 1,
	StatusPicking:   2,
	StatusShipped:   3,
	StatusDelivered: 4,
}

// CanAdvance reports whether a fulfillment step from -> to moves forward.
// Steps may be skipped but never reversed.
func CanAdvance(from, to Status) bool {
	fromRank, ok := fulfillmentRank[from]
	if !ok {
		return false
	}
	toRank, ok := fulfillmentRank[to]
	if !ok || to == StatusConfirmed {
		return false
	}
	return toRank > fromRank
}
