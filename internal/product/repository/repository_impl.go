package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/kitstock/internal/product/domain"
	"github.com/smallbiznis/kitstock/pkg/db/option"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

var sortColumns = map[string]string{
	"code":       "code",
	"name":       "name",
	"quantity":   "quantity",
	"created_at": "created_at",
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	return db.WithContext(ctx).Create(product).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id int64) (*domain.Product, error) {
	var product domain.Product
	err := db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		Take(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, orgID int64, ids []int64) ([]domain.Product, error) {
	var products []domain.Product
	if len(ids) == 0 {
		return products, nil
	}
	err := db.WithContext(ctx).
		Where("org_id = ? AND id IN ?", orgID, ids).
		Order("id").
		Find(&products).Error
	return products, err
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Product, error) {
	stmt := db.WithContext(ctx).Model(&domain.Product{}).Where("org_id = ?", filter.OrgID)

	opts := []option.QueryOption{option.WithSearch(filter.Search, "name", "code")}
	if filter.Active != nil {
		opts = append(opts, option.WithWhere("active = ?", *filter.Active))
	}
	if filter.LowStock {
		opts = append(opts, option.WithWhere("quantity <= min_quantity"))
	}

	column, ok := sortColumns[strings.ToLower(strings.TrimSpace(filter.SortBy))]
	if !ok {
		column = "name"
	}
	opts = append(opts, option.WithSortBy(column, strings.EqualFold(filter.OrderBy, "desc")))

	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}

	var products []domain.Product
	if err := stmt.Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	return db.WithContext(ctx).
		Model(&domain.Product{}).
		Where("org_id = ? AND id = ?", product.OrgID, product.ID).
		Select("name", "description", "unit", "unit_price", "cost", "weight", "min_quantity", "active", "metadata", "updated_at").
		Updates(product).Error
}
