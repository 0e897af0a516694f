package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Kit struct {
	ID          int64             `json:"id" gorm:"primaryKey"`
	OrgID       int64             `json:"organization_id" gorm:"column:org_id;not null;uniqueIndex:ux_kits_org_code,priority:1"`
	Code        string            `json:"code" gorm:"type:text;not null;uniqueIndex:ux_kits_org_code,priority:2"`
	Name        string            `json:"name" gorm:"type:text;not null"`
	Description *string           `json:"description,omitempty" gorm:"type:text"`
	SalePrice   decimal.Decimal   `json:"sale_price" gorm:"type:numeric(14,2);not null;default:0"`
	Active      bool              `json:"active" gorm:"not null"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt   time.Time         `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time         `json:"updated_at" gorm:"not null"`
}

func (Kit) TableName() string { return "kits" }

// Component is one bill-of-materials edge: Quantity units of ProductID per kit.
type Component struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	OrgID     int64     `json:"organization_id" gorm:"column:org_id;not null;index"`
	KitID     int64     `json:"kit_id" gorm:"not null;uniqueIndex:ux_kit_components_kit_product,priority:1"`
	ProductID int64     `json:"product_id" gorm:"not null;uniqueIndex:ux_kit_components_kit_product,priority:2;index"`
	Quantity  int64     `json:"quantity" gorm:"not null;check:chk_kit_components_quantity,quantity > 0"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`
}

func (Component) TableName() string { return "kit_components" }
