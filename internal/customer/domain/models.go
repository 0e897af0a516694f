package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Customer struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID      `gorm:"column:org_id;not null;index;uniqueIndex:ux_customers_org_document,priority:1" json:"organization_id"`
	Name      string            `gorm:"type:text;not null" json:"name"`
	Document  *string           `gorm:"type:text;uniqueIndex:ux_customers_org_document,priority:2" json:"document,omitempty"`
	Email     *string           `gorm:"type:text" json:"email,omitempty"`
	Phone     *string           `gorm:"type:text" json:"phone,omitempty"`
	Address   *string           `gorm:"type:text" json:"address,omitempty"`
	City      *string           `gorm:"type:text" json:"city,omitempty"`
	State     *string           `gorm:"type:text" json:"state,omitempty"`
	ZipCode   *string           `gorm:"type:text" json:"zip_code,omitempty"`
	Notes     *string           `gorm:"type:text" json:"notes,omitempty"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null" json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }
