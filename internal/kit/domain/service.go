package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	inventorydomain "github.com/smallbiznis/kitstock/internal/inventory/domain"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	ReplaceComponents(ctx context.Context, id string, components []ComponentInput) (*Response, error)
	Archive(ctx context.Context, id string) (*Response, error)
}

type ComponentInput struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

type CreateRequest struct {
	Code        string           `json:"code"`
	Name        string           `json:"name"`
	Description *string          `json:"description"`
	SalePrice   decimal.Decimal  `json:"sale_price"`
	Active      *bool            `json:"active"`
	Metadata    map[string]any   `json:"metadata"`
	Components  []ComponentInput `json:"components"`
}

type UpdateRequest struct {
	ID          string           `json:"-"`
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	SalePrice   *decimal.Decimal `json:"sale_price"`
	Active      *bool            `json:"active"`
	Metadata    map[string]any   `json:"metadata"`
}

type ListRequest struct {
	Search string
	Active *bool
}

// Response carries the kit with its components and the availability
// computed from current stock at read time.
type Response struct {
	ID                 string                              `json:"id"`
	OrganizationID     string                              `json:"organization_id"`
	Code               string                              `json:"code"`
	Name               string                              `json:"name"`
	Description        *string                             `json:"description,omitempty"`
	SalePrice          decimal.Decimal                     `json:"sale_price"`
	Active             bool                                `json:"active"`
	Metadata           map[string]any                      `json:"metadata,omitempty"`
	AvailableCount     int64                               `json:"available_count"`
	LimitingComponents []string                            `json:"limiting_components"`
	Components         []inventorydomain.ComponentResponse `json:"components"`
	CreatedAt          time.Time                           `json:"created_at"`
	UpdatedAt          time.Time                           `json:"updated_at"`
}

var (
	ErrInvalidOrganization      = errors.New("invalid_organization")
	ErrInvalidID                = errors.New("invalid_id")
	ErrInvalidCode              = errors.New("invalid_code")
	ErrInvalidName              = errors.New("invalid_name")
	ErrInvalidPrice             = errors.New("invalid_price")
	ErrNoComponents             = errors.New("kit_without_components")
	ErrDuplicateComponent       = errors.New("duplicate_component")
	ErrInvalidComponentQuantity = errors.New("invalid_component_quantity")
	ErrProductNotFound          = errors.New("product_not_found")
	ErrDuplicateCode            = errors.New("duplicate_code")
	ErrNotFound                 = errors.New("not_found")
)
