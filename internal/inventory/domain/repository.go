package domain

import (
	"context"
	"time"

	productdomain "github.com/smallbiznis/kitstock/internal/product/domain"
	"gorm.io/gorm"
)

// KitComponentRow is a component edge joined with its product stock.
type KitComponentRow struct {
	KitID          int64
	ProductID      int64
	Code           string
	Name           string
	RequiredPerKit int64
	OnHand         int64
}

type KitRow struct {
	ID     int64
	Code   string
	Name   string
	Active bool
}

type MovementFilter struct {
	OrgID         int64
	ProductID     *int64
	ReferenceType string
	ReferenceID   *int64
	AfterID       int64
	Limit         int
}

type Repository interface {
	// LockProducts takes row locks on products in ascending id order.
	LockProducts(ctx context.Context, db *gorm.DB, orgID int64, ids []int64) ([]productdomain.Product, error)
	FindProducts(ctx context.Context, db *gorm.DB, orgID int64, ids []int64) ([]productdomain.Product, error)
	// DecrementIfAvailable subtracts qty only while stock stays non-negative.
	DecrementIfAvailable(ctx context.Context, db *gorm.DB, orgID, productID, qty int64, now time.Time) (int64, error)
	// SetQuantity writes an absolute quantity only if the row still holds expected.
	SetQuantity(ctx context.Context, db *gorm.DB, orgID, productID, expected, quantity int64, now time.Time) (int64, error)
	LoadBOM(ctx context.Context, db *gorm.DB, orgID int64, kitIDs []int64) (map[int64][]BOMEntry, error)
	FindKits(ctx context.Context, db *gorm.DB, orgID int64, kitIDs []int64, onlyActive bool) ([]KitRow, error)
	KitComponentStock(ctx context.Context, db *gorm.DB, orgID int64, kitIDs []int64) ([]KitComponentRow, error)
	InsertMovements(ctx context.Context, db *gorm.DB, movements []StockMovement) error
	ListMovements(ctx context.Context, db *gorm.DB, filter MovementFilter) ([]StockMovement, error)
}
