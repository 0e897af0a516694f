package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	customerdomain "github.com/smallbiznis/kitstock/internal/customer/domain"
	"github.com/smallbiznis/kitstock/internal/document"
	"github.com/smallbiznis/kitstock/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, actor string, req CreateRequest) (*Response, error)
	// SubmitCatalogOrder takes an order from the public catalog, creating or
	// refreshing the customer from the submitted contact data.
	SubmitCatalogOrder(ctx context.Context, req CatalogOrderRequest) (*Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	CheckAvailability(ctx context.Context, id string) (*document.AvailabilityResult, error)
	Approve(ctx context.Context, actor string, id string) (*document.ApprovalResult, error)
	Reject(ctx context.Context, actor string, id string) (*Response, error)
	Cancel(ctx context.Context, actor string, id string) (*Response, error)
	Advance(ctx context.Context, actor string, id string, status Status) (*Response, error)
}

type CreateRequest struct {
	CustomerID *string              `json:"customer_id"`
	Notes      string               `json:"notes"`
	Items      []document.ItemInput `json:"items"`
}

type CatalogOrderRequest struct {
	Customer  customerdomain.CreateCustomerRequest `json:"customer"`
	Notes     string                               `json:"notes"`
	Items     []document.ItemInput                 `json:"items"`
	ClientKey string                               `json:"-"`
}

type ListRequest struct {
	pagination.Pagination
	Status     string `form:"status"`
	Origin     string `form:"origin"`
	CustomerID string `form:"customer_id"`
}

type ListResponse struct {
	pagination.PageInfo
	Orders []Response `json:"orders"`
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
	Origin      Origin          `json:"origin"`
	Total       decimal.Decimal `json:"total"`
	Notes       *string         `json:"notes,omitempty"`
	CreatedBy   *string         `json:"created_by,omitempty"`
	ConfirmedAt *time.Time      `json:"confirmed_at,omitempty"`
	RejectedAt  *time.Time      `json:"rejected_at,omitempty"`
	CancelledAt *time.Time      `json:"cancelled_at,omitempty"`
	ShippedAt   *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time      `json:"delivered_at,omitempty"`
	Items       []ItemResponse  `json:"items,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrInvalidOrigin       = errors.New("invalid_origin")
	ErrNotFound            = errors.New("not_found")
	ErrCustomerNotFound    = errors.New("customer_not_found")
	ErrAlreadyApproved     = errors.New("already_approved")
	ErrInvalidTransition   = errors.New("invalid_transition")
	ErrRateLimited         = errors.New("rate_limited")
	ErrDuplicateSubmission = errors.New("duplicate_submission")
	// ErrConcurrentUpdate means the order left the expected status while
	// the transaction held it; nothing was written.
	ErrConcurrentUpdate = errors.New("concurrent_update")
)
