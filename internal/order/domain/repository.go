package domain

import (
	"context"

	"gorm.io/gorm"
)

type ListFilter struct {
	OrgID      int64
	Status     Status
	Origin     Origin
	CustomerID *int64
	AfterID    int64
	Limit      int
}

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, order *Order, items []Item) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id int64) (*Order, error)
	// LockByID reads the order holding a row lock until the transaction ends.
	LockByID(ctx context.Context, db *gorm.DB, orgID, id int64) (*Order, error)
	Items(ctx context.Context, db *gorm.DB, orgID, orderID int64) ([]Item, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Order, error)
	// Transition moves the order from one status to another only if it is
	// still in from. It returns the number of rows changed.
	Transition(ctx context.Context, db *gorm.DB, orgID, id int64, from, to Status, values map[string]any) (int64, error)
	CustomerExists(ctx context.Context, db *gorm.DB, orgID, customerID int64) (bool, error)
}
