package domain

import (
	"context"

	"gorm.io/gorm"
)

type ListFilter struct {
	OrgID    int64
	Search   string
	Active   *bool
	LowStock bool
	SortBy   string
	OrderBy  string
}

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, product *Product) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id int64) (*Product, error)
	FindByIDs(ctx context.Context, db *gorm.DB, orgID int64, ids []int64) ([]Product, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Product, error)
	Update(ctx context.Context, db *gorm.DB, product *Product) error
}
