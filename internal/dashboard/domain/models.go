package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Stats is the landing page snapshot of an organization.
type Stats struct {
	Products        int64            `json:"products"`
	Kits            int64            `json:"kits"`
	LowStock        int64            `json:"low_stock"`
	Customers       int64            `json:"customers"`
	PendingOrders   int64            `json:"pending_orders"`
	PendingQuotes   int64            `json:"pending_quotes"`
	OrdersByStatus  map[string]int64 `json:"orders_by_status"`
	MonthSales      int64            `json:"month_sales"`
	MonthRevenue    decimal.Decimal  `json:"month_revenue"`
	OpenReceivables decimal.Decimal  `json:"open_receivables"`
}

type Service interface {
	Stats(ctx context.Context) (*Stats, error)
}

var ErrInvalidOrganization = errors.New("invalid_organization")
