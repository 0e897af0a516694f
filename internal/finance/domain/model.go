package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

type TransactionStatus string

const (
	TransactionPending TransactionStatus = "pending"
	TransactionPaid    TransactionStatus = "paid"
)

const SaleCompleted = "completed"

// Sale is the commercial record created when a quote is approved.
type Sale struct {
	ID         snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrgID      snowflake.ID    `gorm:"column:org_id;not null;uniqueIndex:ux_sales_org_number,priority:1" json:"organization_id"`
	Number     string          `gorm:"type:text;not null;uniqueIndex:ux_sales_org_number,priority:2" json:"number"`
	QuoteID    *snowflake.ID   `gorm:"uniqueIndex" json:"quote_id,omitempty"`
	CustomerID *snowflake.ID   `gorm:"index" json:"customer_id,omitempty"`
	Total      decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"total"`
	Status     string          `gorm:"type:text;not null" json:"status"`
	SoldAt     time.Time       `gorm:"not null" json:"sold_at"`
	CreatedAt  time.Time       `gorm:"not null" json:"created_at"`
}

func (Sale) TableName() string { return "sales" }

type Transaction struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID      `gorm:"column:org_id;not null;index" json:"organization_id"`
	Type        TransactionType   `gorm:"type:text;not null" json:"type"`
	Category    string            `gorm:"type:text;not null" json:"category"`
	Description string            `gorm:"type:text;not null" json:"description"`
	Amount      decimal.Decimal   `gorm:"type:numeric(14,2);not null" json:"amount"`
	Status      TransactionStatus `gorm:"type:text;not null" json:"status"`
	SaleID      *snowflake.ID     `gorm:"index" json:"sale_id,omitempty"`
	OccurredOn  time.Time         `gorm:"not null" json:"occurred_on"`
	PaidAt      *time.Time        `json:"paid_at,omitempty"`
	CreatedAt   time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null" json:"updated_at"`
}

func (Transaction) TableName() string { return "financial_transactions" }

func (t TransactionType) Valid() bool {
	return t == TransactionIncome || t == TransactionExpense
}

func (s TransactionStatus) Valid() bool {
	return s == TransactionPending || s == TransactionPaid
}
