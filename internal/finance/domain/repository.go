package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TransactionFilter struct {
	OrgID   int64
	Type    TransactionType
	Status  TransactionStatus
	From    *time.Time
	To      *time.Time
	AfterID int64
	Limit   int
}

type SaleFilter struct {
	OrgID   int64
	AfterID int64
	Limit   int
}

// Total is an amount grouped by transaction type and status.
type Total struct {
	Type   TransactionType
	Status TransactionStatus
	Amount decimal.Decimal
}

type Repository interface {
	InsertSale(ctx context.Context, db *gorm.DB, sale *Sale) error
	InsertTransaction(ctx context.Context, db *gorm.DB, txn *Transaction) error
	FindTransaction(ctx context.Context, db *gorm.DB, orgID, id int64) (*Transaction, error)
	MarkPaid(ctx context.Context, db *gorm.DB, orgID, id int64, at time.Time) (int64, error)
	ListTransactions(ctx context.Context, db *gorm.DB, filter TransactionFilter) ([]*Transaction, error)
	ListSales(ctx context.Context, db *gorm.DB, filter SaleFilter) ([]*Sale, error)
	Totals(ctx context.Context, db *gorm.DB, orgID int64, from, to *time.Time) ([]Total, error)
}
