package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Archive(ctx context.Context, id string) (*Response, error)
	AdjustStock(ctx context.Context, actor string, req AdjustStockRequest) (*Response, error)
	ListLowStock(ctx context.Context) ([]Response, error)
}

type ListRequest struct {
	Search  string
	Active  *bool
	SortBy  string
	OrderBy string
}

type CreateRequest struct {
	Code            string           `json:"code"`
	Name            string           `json:"name"`
	Description     *string          `json:"description"`
	Unit            string           `json:"unit"`
	UnitPrice       decimal.Decimal  `json:"unit_price"`
	Cost            decimal.Decimal  `json:"cost"`
	Weight          *decimal.Decimal `json:"weight"`
	InitialQuantity int64            `json:"initial_quantity"`
	MinQuantity     *int64           `json:"min_quantity"`
	Active          *bool            `json:"active"`
	Metadata        map[string]any   `json:"metadata"`
}

// UpdateRequest edits catalog fields. Stock is changed only through AdjustStock.
type UpdateRequest struct {
	ID          string           `json:"-"`
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Unit        *string          `json:"unit"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
	Cost        *decimal.Decimal `json:"cost"`
	Weight      *decimal.Decimal `json:"weight"`
	MinQuantity *int64           `json:"min_quantity"`
	Active      *bool            `json:"active"`
	Metadata    map[string]any   `json:"metadata"`
}

type AdjustStockRequest struct {
	ProductID string `json:"-"`
	Type      string `json:"type"`
	Quantity  int64  `json:"quantity"`
	Note      string `json:"note"`
}

type Response struct {
	ID             string           `json:"id"`
	OrganizationID string           `json:"organization_id"`
	Code           string           `json:"code"`
	Name           string           `json:"name"`
	Description    *string          `json:"description,omitempty"`
	Unit           string           `json:"unit"`
	UnitPrice      decimal.Decimal  `json:"unit_price"`
	Cost           decimal.Decimal  `json:"cost"`
	Weight         *decimal.Decimal `json:"weight,omitempty"`
	Quantity       int64            `json:"quantity"`
	MinQuantity    int64            `json:"min_quantity"`
	LowStock       bool             `json:"low_stock"`
	Active         bool             `json:"active"`
	Metadata       map[string]any   `json:"metadata,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidCode         = errors.New("invalid_code")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidPrice        = errors.New("invalid_price")
	ErrInvalidQuantity     = errors.New("invalid_quantity")
	ErrDuplicateCode       = errors.New("duplicate_code")
	ErrNotFound            = errors.New("not_found")
	ErrInvalidID           = errors.New("invalid_id")
)
