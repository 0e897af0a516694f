package domain

import (
	"context"

	"gorm.io/gorm"
)

type ListFilter struct {
	OrgID      int64
	Status     Status
	CustomerID *int64
	AfterID    int64
	Limit      int
}

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, quote *Quote, items []Item) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id int64) (*Quote, error)
	LockByID(ctx context.Context, db *gorm.DB, orgID, id int64) (*Quote, error)
	Items(ctx context.Context, db *gorm.DB, orgID, quoteID int64) ([]Item, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Quote, error)
	Transition(ctx context.Context, db *gorm.DB, orgID, id int64, from, to Status, values map[string]any) (int64, error)
	CustomerExists(ctx context.Context, db *gorm.DB, orgID, customerID int64) (bool, error)
}
