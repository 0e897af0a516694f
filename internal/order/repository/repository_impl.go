package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/kitstock/internal/order/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, order *domain.Order, items []domain.Item) error {
	if err := db.WithContext(ctx).Create(order).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&items).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id int64) (*domain.Order, error) {
	return r.find(db.WithContext(ctx), orgID, id)
}

func (r *repo) LockByID(ctx context.Context, db *gorm.DB, orgID, id int64) (*domain.Order, error) {
	return r.find(db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), orgID, id)
}

func (r *repo) find(stmt *gorm.DB, orgID, id int64) (*domain.Order, error) {
	var order domain.Order
	err := stmt.Where("org_id = ? AND id = ?", orgID, id).Take(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repo) Items(ctx context.Context, db *gorm.DB, orgID, orderID int64) ([]domain.Item, error) {
	var items []domain.Item
	err := db.WithContext(ctx).
		Where("org_id = ? AND order_id = ?", orgID, orderID).
		Order("id").
		Find(&items).Error
	return items, err
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Order, error) {
	stmt := db.WithContext(ctx).Model(&domain.Order{}).Where("org_id = ?", filter.OrgID)
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Origin != "" {
		stmt = stmt.Where("origin = ?", filter.Origin)
	}
	if filter.CustomerID != nil {
		stmt = stmt.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.AfterID > 0 {
		stmt = stmt.Where("id < ?", filter.AfterID)
	}
	stmt = stmt.Order("id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	var orders []*domain.Order
	err := stmt.Find(&orders).Error
	return orders, err
}

func (r *repo) Transition(ctx context.Context, db *gorm.DB, orgID, id int64, from, to domain.Status, values map[string]any) (int64, error) {
	updates := map[string]any{"status": to}
	for k, v := range values {
		updates[k] = v
	}
	res := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("org_id = ? AND id = ? AND status = ?", orgID, id, from).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *repo) CustomerExists(ctx context.Context, db *gorm.DB, orgID, customerID int64) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Table("customers").
		Where("org_id = ? AND id = ?", orgID, customerID).
		Count(&count).Error
	return count > 0, err
}
