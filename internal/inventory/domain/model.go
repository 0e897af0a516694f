package domain

import "time"

type MovementType string

const (
	MovementIn     MovementType = "in"
	MovementOut    MovementType = "out"
	MovementAdjust MovementType = "adjust"
)

const (
	ReferenceOrder   = "order"
	ReferenceQuote   = "quote"
	ReferenceProduct = "product"
	ReferenceManual  = "manual"
)

// StockMovement is an append-only ledger row for every stock change.
type StockMovement struct {
	ID            int64        `json:"id" gorm:"primaryKey"`
	OrgID         int64        `json:"organization_id" gorm:"column:org_id;not null;index:ix_stock_movements_org_product,priority:1"`
	ProductID     int64        `json:"product_id" gorm:"not null;index:ix_stock_movements_org_product,priority:2"`
	Type          MovementType `json:"type" gorm:"type:text;not null"`
	Quantity      int64        `json:"quantity" gorm:"not null"`
	BalanceAfter  int64        `json:"balance_after" gorm:"not null"`
	ReferenceType string       `json:"reference_type" gorm:"type:text;not null"`
	ReferenceID   *int64       `json:"reference_id,omitempty" gorm:"index"`
	Note          *string      `json:"note,omitempty" gorm:"type:text"`
	ActorID       *string      `json:"actor_id,omitempty" gorm:"type:text"`
	CreatedAt     time.Time    `json:"created_at" gorm:"not null"`
}

func (StockMovement) TableName() string { return "stock_movements" }

func (t MovementType) Valid() bool {
	switch t {
	case MovementIn, MovementOut, MovementAdjust:
		return true
	default:
		return false
	}
}
