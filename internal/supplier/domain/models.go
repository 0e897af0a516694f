package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Supplier struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID `gorm:"column:org_id;not null;index" json:"organization_id"`
	Name        string       `gorm:"type:text;not null" json:"name"`
	Document    *string      `gorm:"type:text" json:"document,omitempty"`
	ContactName *string      `gorm:"type:text" json:"contact_name,omitempty"`
	Email       *string      `gorm:"type:text" json:"email,omitempty"`
	Phone       *string      `gorm:"type:text" json:"phone,omitempty"`
	Address     *string      `gorm:"type:text" json:"address,omitempty"`
	Notes       *string      `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`
}

func (Supplier) TableName() string { return "suppliers" }
