package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/kitstock/pkg/db/pagination"
	"gorm.io/gorm"
)

type Service interface {
	CreateTransaction(ctx context.Context, req CreateTransactionRequest) (*Transaction, error)
	SettleTransaction(ctx context.Context, id string) (*Transaction, error)
	ListTransactions(ctx context.Context, req ListTransactionsRequest) (ListTransactionsResponse, error)
	ListSales(ctx context.Context, req ListSalesRequest) (ListSalesResponse, error)
	Summary(ctx context.Context, req SummaryRequest) (*Summary, error)
	// RecordSale writes a sale and its pending income inside tx.
	RecordSale(ctx context.Context, tx *gorm.DB, req RecordSaleRequest) (*Sale, error)
}

type CreateTransactionRequest struct {
	Type        TransactionType   `json:"type"`
	Category    string            `json:"category"`
	Description string            `json:"description"`
	Amount      decimal.Decimal   `json:"amount"`
	Status      TransactionStatus `json:"status"`
	OccurredOn  *time.Time        `json:"occurred_on"`
}

type ListTransactionsRequest struct {
	pagination.Pagination
	Type   string     `form:"type"`
	Status string     `form:"status"`
	From   *time.Time `form:"from" time_format:"2006-01-02"`
	To     *time.Time `form:"to" time_format:"2006-01-02"`
}

type ListTransactionsResponse struct {
	pagination.PageInfo
	Transactions []Transaction `json:"transactions"`
}

type ListSalesRequest struct {
	pagination.Pagination
}

type ListSalesResponse struct {
	pagination.PageInfo
	Sales []Sale `json:"sales"`
}

type SummaryRequest struct {
	From *time.Time `form:"from" time_format:"2006-01-02"`
	To   *time.Time `form:"to" time_format:"2006-01-02"`
}

// Summary reports settled cash flow and what is still open.
type Summary struct {
	Income             decimal.Decimal `json:"income"`
	Expense            decimal.Decimal `json:"expense"`
	Balance            decimal.Decimal `json:"balance"`
	PendingReceivables decimal.Decimal `json:"pending_receivables"`
	PendingPayables    decimal.Decimal `json:"pending_payables"`
}

type RecordSaleRequest struct {
	OrgID       int64
	QuoteID     *snowflake.ID
	CustomerID  *snowflake.ID
	Total       decimal.Decimal
	Description string
	At          time.Time
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidType         = errors.New("invalid_type")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidCategory     = errors.New("invalid_category")
	ErrInvalidTimeRange    = errors.New("invalid_time_range")
	ErrAlreadyPaid         = errors.New("already_paid")
	ErrNotFound            = errors.New("not_found")
)
