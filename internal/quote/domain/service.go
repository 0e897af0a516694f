package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/kitstock/internal/document"
	"github.com/smallbiznis/kitstock/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, actor string, req CreateRequest) (*Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	CheckAvailability(ctx context.Context, id string) (*document.AvailabilityResult, error)
	// Approve debits stock, records the sale and its pending income, and
	// marks the quote approved, all in one transaction.
	Approve(ctx context.Context, actor string, id string) (*document.ApprovalResult, error)
	Reject(ctx context.Context, actor string, id string) (*Response, error)
	Cancel(ctx context.Context, actor string, id string) (*Response, error)
}

type CreateRequest struct {
	CustomerID *string              `json:"customer_id"`
	Notes      string               `json:"notes"`
	ValidUntil *time.Time           `json:"valid_until"`
	Items      []document.ItemInput `json:"items"`
}

type ListRequest struct {
	pagination.Pagination
	Status     string `form:"status"`
	CustomerID string `form:"customer_id"`
}

type ListResponse struct {
	pagination.PageInfo
	Quotes []Response `json:"quotes"`
}

type ItemResponse struct {
	ID        string          `json:"id"`
	ProductID *string         `json:"product_id,omitempty"`
	KitID     *string         `json:"kit_id,omitempty"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type Response struct {
	ID          string          `json:"id"`
	Number      string          `json:"number"`
	CustomerID  *string         `json:"customer_id,omitempty"`
	Status      Status          `json:"status"`
	Total       decimal.Decimal `json:"total"`
	Notes       *string         `json:"notes,omitempty"`
	ValidUntil  *time.Time      `json:"valid_until,omitempty"`
	CreatedBy   *string         `json:"created_by,omitempty"`
	SaleID      *string         `json:"sale_id,omitempty"`
	ApprovedAt  *time.Time      `json:"approved_at,omitempty"`
	RejectedAt  *time.Time      `json:"rejected_at,omitempty"`
	CancelledAt *time.Time      `json:"cancelled_at,omitempty"`
	Items       []ItemResponse  `json:"items,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrNotFound            = errors.New("not_found")
	ErrCustomerNotFound    = errors.New("customer_not_found")
	ErrAlreadyApproved     = errors.New("already_approved")
	ErrInvalidTransition   = errors.New("invalid_transition")
	ErrConcurrentUpdate    = errors.New("concurrent_update")
)
