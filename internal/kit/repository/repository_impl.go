package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/kitstock/internal/kit/domain"
	"github.com/smallbiznis/kitstock/pkg/db/option"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, kit *domain.Kit) error {
	return db.WithContext(ctx).Create(kit).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id int64) (*domain.Kit, error) {
	var kit domain.Kit
	err := db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		Take(&kit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &kit, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Kit, error) {
	stmt := db.WithContext(ctx).Model(&domain.Kit{}).Where("org_id = ?", filter.OrgID)

	opts := []option.QueryOption{
		option.WithSearch(filter.Search, "name", "code"),
		option.WithSortBy("name", false),
	}
	if filter.Active != nil {
		opts = append(opts, option.WithWhere("active = ?", *filter.Active))
	}
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}

	var kits []domain.Kit
	if err := stmt.Find(&kits).Error; err != nil {
		return nil, err
	}
	return kits, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, kit *domain.Kit) error {
	return db.WithContext(ctx).
		Model(&domain.Kit{}).
		Where("org_id = ? AND id = ?", kit.OrgID, kit.ID).
		Select("name", "description", "sale_price", "active", "metadata", "updated_at").
		Updates(kit).Error
}

func (r *repo) ReplaceComponents(ctx context.Context, db *gorm.DB, orgID, kitID int64, components []domain.Component) error {
	if err := db.WithContext(ctx).
		Where("org_id = ? AND kit_id = ?", orgID, kitID).
		Delete(&domain.Component{}).Error; err != nil {
		return err
	}
	if len(components) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&components).Error
}

func (r *repo) ExistingProductIDs(ctx context.Context, db *gorm.DB, orgID int64, ids []int64) ([]int64, error) {
	var found []int64
	if len(ids) == 0 {
		return found, nil
	}
	err := db.WithContext(ctx).
		Table("products").
		Where("org_id = ? AND id IN ?", orgID, ids).
		Pluck("id", &found).Error
	return found, err
}
