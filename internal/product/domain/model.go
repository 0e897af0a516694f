package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Product struct {
	ID          int64             `json:"id" gorm:"primaryKey"`
	OrgID       int64             `json:"organization_id" gorm:"column:org_id;not null;uniqueIndex:ux_products_org_code,priority:1"`
	Code        string            `json:"code" gorm:"type:text;not null;uniqueIndex:ux_products_org_code,priority:2"`
	Name        string            `json:"name" gorm:"type:text;not null"`
	Description *string           `json:"description,omitempty" gorm:"type:text"`
	Unit        string            `json:"unit" gorm:"type:text;not null;default:'un'"`
	UnitPrice   decimal.Decimal   `json:"unit_price" gorm:"type:numeric(14,2);not null;default:0"`
	Cost        decimal.Decimal   `json:"cost" gorm:"type:numeric(14,2);not null;default:0"`
	Weight      *decimal.Decimal  `json:"weight,omitempty" gorm:"type:numeric(12,3)"`
	Quantity    int64             `json:"quantity" gorm:"not null;default:0;check:chk_products_quantity,quantity >= 0"`
	MinQuantity int64             `json:"min_quantity" gorm:"not null;default:0;check:chk_products_min_quantity,min_quantity >= 0"`
	Active      bool              `json:"active" gorm:"not null"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt   time.Time         `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time         `json:"updated_at" gorm:"not null"`
}

func (Product) TableName() string { return "products" }

// LowStock reports whether on-hand stock is at or below the reorder threshold.
func (p Product) LowStock() bool {
	return p.Quantity <= p.MinQuantity
}
