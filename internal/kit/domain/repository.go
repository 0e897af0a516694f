package domain

import (
	"context"

	"gorm.io/gorm"
)

type ListFilter struct {
	OrgID  int64
	Search string
	Active *bool
}

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, kit *Kit) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id int64) (*Kit, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Kit, error)
	Update(ctx context.Context, db *gorm.DB, kit *Kit) error
	ReplaceComponents(ctx context.Context, db *gorm.DB, orgID, kitID int64, components []Component) error
	// ExistingProductIDs returns which of ids are products of the organization.
	ExistingProductIDs(ctx context.Context, db *gorm.DB, orgID int64, ids []int64) ([]int64, error)
}
