package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

type Quote struct {
	ID          int64           `gorm:"primaryKey"`
	OrgID       int64           `gorm:"column:org_id;not null;uniqueIndex:ux_quotes_org_number,priority:1;index:ix_quotes_org_status,priority:1"`
	Number      string          `gorm:"type:text;not null;uniqueIndex:ux_quotes_org_number,priority:2"`
	CustomerID  *int64          `gorm:"index"`
	Status      Status          `gorm:"type:text;not null;index:ix_quotes_org_status,priority:2"`
	Total       decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	Notes       *string         `gorm:"type:text"`
	ValidUntil  *time.Time
	CreatedBy   *string `gorm:"type:text"`
	SaleID      *int64
	ApprovedAt  *time.Time
	RejectedAt  *time.Time
	CancelledAt *time.Time
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (Quote) TableName() string { return "quotes" }

// Item is one quote line referencing exactly one product or one kit.
type Item struct {
	ID        int64           `gorm:"primaryKey"`
	OrgID     int64           `gorm:"column:org_id;not null"`
	QuoteID   int64           `gorm:"not null;index"`
	ProductID *int64          `gorm:"index;check:chk_quote_items_line,(product_id IS NULL) <> (kit_id IS NULL)"`
	KitID     *int64          `gorm:"index"`
	Quantity  int64           `gorm:"not null;check:chk_quote_items_quantity,quantity > 0"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	Discount  decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	Subtotal  decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	CreatedAt time.Time       `gorm:"not null"`
}

func (Item) TableName() string { return "quote_items" }

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return true
	default:
		return false
	}
}
