package repository

import (
	"context"

	"github.com/smallbiznis/kitstock/pkg/db/option"
	"gorm.io/gorm"
)

// Repository is a generic gorm store for plain tenant-scoped records.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Create(ctx context.Context, resource *T) error
	Update(ctx context.Context, orgID, resourceID int64, values map[string]any) (int64, error)
	Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error)
}
