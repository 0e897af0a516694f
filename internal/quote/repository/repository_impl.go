package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/kitstock/internal/quote/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, quote *domain.Quote, items []domain.Item) error {
	if err := db.WithContext(ctx).Create(quote).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&items).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id int64) (*domain.Quote, error) {
	return r.find(db.WithContext(ctx), orgID, id)
}

func (r *repo) LockByID(ctx context.Context, db *gorm.DB, orgID, id int64) (*domain.Quote, error) {
	return r.find(db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), orgID, id)
}

func (r *repo) find(stmt *gorm.DB, orgID, id int64) (*domain.Quote, error) {
	var quote domain.Quote
	err := stmt.Where("org_id = ? AND id = ?", orgID, id).Take(&quote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

func (r *repo) Items(ctx context.Context, db *gorm.DB, orgID, quoteID int64) ([]domain.Item, error) {
	var items []domain.Item
	err := db.WithContext(ctx).
		Where("org_id = ? AND quote_id = ?", orgID, quoteID).
		Order("id").
		Find(&items).Error
	return items, err
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Quote, error) {
	stmt := db.WithContext(ctx).Model(&domain.Quote{}).Where("org_id = ?", filter.OrgID)
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
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

	var quotes []*domain.Quote
	err := stmt.Find(&quotes).Error
	return quotes, err
}

func (r *repo) Transition(ctx context.Context, db *gorm.DB, orgID, id int64, from, to domain.Status, values map[string]any) (int64, error) {
	updates := map[string]any{"status": to}
	for k, v := range values {
		updates[k] = v
	}
	res := db.WithContext(ctx).
		Model(&domain.Quote{}).
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
