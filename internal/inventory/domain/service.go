package domain

import (
	"context"
	"errors"
	"time"

	productdomain "github.com/smallbiznis/kitstock/internal/product/domain"
	"github.com/smallbiznis/kitstock/pkg/db/pagination"
	"gorm.io/gorm"
)

type Service interface {
	KitAvailability(ctx context.Context, kitID string) (*KitAvailability, error)
	ListKitAvailability(ctx context.Context, onlyActive bool) ([]KitAvailability, error)
	// Check previews a debit against current stock without locking or writing.
	Check(ctx context.Context, orgID int64, lines []Line) ([]Shortage, error)
	// Debit runs inside the caller's transaction. A non-empty Shortages
	// result means nothing was written.
	Debit(ctx context.Context, tx *gorm.DB, req DebitRequest) (*DebitResult, error)
	Adjust(ctx context.Context, actor string, req AdjustRequest) (*StockMovement, error)
	// RecordOpeningBalance writes the ledger row for a product created with stock.
	RecordOpeningBalance(ctx context.Context, tx *gorm.DB, product *productdomain.Product, actorID string) error
	ListMovements(ctx context.Context, req ListMovementsRequest) (ListMovementsResponse, error)
}

type DebitRequest struct {
	OrgID         int64
	Lines         []Line
	ReferenceType string
	ReferenceID   int64
	ActorID       string
	Note          string
}

type Shortage struct {
	ProductID string `json:"product_id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Required  int64  `json:"required"`
	Available int64  `json:"available"`
	Missing   int64  `json:"missing"`
}

type DebitedProduct struct {
	ProductID    int64
	Quantity     int64
	BalanceAfter int64
}

type DebitResult struct {
	Debited   []DebitedProduct
	Shortages []Shortage
}

func (r *DebitResult) OK() bool {
	return r != nil && len(r.Shortages) == 0
}

// Units is the total number of product units debited.
func (r *DebitResult) Units() int64 {
	var total int64
	if r == nil {
		return 0
	}
	for _, d := range r.Debited {
		total += d.Quantity
	}
	return total
}

type AdjustRequest struct {
	ProductID string
	Type      MovementType
	Quantity  int64
	Note      string
}

type ListMovementsRequest struct {
	pagination.Pagination
	ProductID     string
	ReferenceType string
	ReferenceID   string
}

type ListMovementsResponse struct {
	pagination.PageInfo
	Movements []MovementResponse `json:"movements"`
}

type MovementResponse struct {
	ID            string       `json:"id"`
	ProductID     string       `json:"product_id"`
	Type          MovementType `json:"type"`
	Quantity      int64        `json:"quantity"`
	BalanceAfter  int64        `json:"balance_after"`
	ReferenceType string       `json:"reference_type"`
	ReferenceID   *string      `json:"reference_id,omitempty"`
	Note          *string      `json:"note,omitempty"`
	ActorID       *string      `json:"actor_id,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

type ComponentResponse struct {
	ProductID      string `json:"product_id"`
	Code           string `json:"code"`
	Name           string `json:"name"`
	RequiredPerKit int64  `json:"required_per_kit"`
	OnHand         int64  `json:"on_hand"`
	Possible       int64  `json:"possible"`
	Limiting       bool   `json:"limiting"`
}

type KitAvailability struct {
	KitID              string              `json:"kit_id"`
	Code               string              `json:"code"`
	Name               string              `json:"name"`
	Active             bool                `json:"active"`
	AvailableCount     int64               `json:"available_count"`
	LimitingComponents []string            `json:"limiting_components"`
	Components         []ComponentResponse `json:"components"`
}

var (
	ErrInvalidOrganization      = errors.New("invalid_organization")
	ErrInvalidID                = errors.New("invalid_id")
	ErrKitNotFound              = errors.New("kit_not_found")
	ErrProductNotFound          = errors.New("product_not_found")
	ErrEmptyDocument            = errors.New("empty_document")
	ErrInvalidLine              = errors.New("invalid_line")
	ErrInvalidQuantity          = errors.New("invalid_quantity")
	ErrInvalidComponentQuantity = errors.New("invalid_component_quantity")
	ErrKitWithoutComponents     = errors.New("kit_without_components")
	ErrQuantityOverflow         = errors.New("quantity_overflow")
	ErrInvalidMovementType      = errors.New("invalid_movement_type")
	ErrInsufficientStock        = errors.New("insufficient_stock")
	// ErrStockConflict means a guarded write lost a race; the transaction
	// is rolled back and the caller may retry.
	ErrStockConflict = errors.New("stock_conflict")
)
