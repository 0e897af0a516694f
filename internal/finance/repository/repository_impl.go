package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/kitstock/internal/finance/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertSale(ctx context.Context, db *gorm.DB, sale *domain.Sale) error {
	return db.WithContext(ctx).Create(sale).Error
}

func (r *repo) InsertTransaction(ctx context.Context, db *gorm.DB, txn *domain.Transaction) error {
	return db.WithContext(ctx).Create(txn).Error
}

func (r *repo) FindTransaction(ctx context.Context, db *gorm.DB, orgID, id int64) (*domain.Transaction, error) {
	var txn domain.Transaction
	err := db.WithContext(ctx).Where("org_id = ? AND id = ?", orgID, id).Take(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repo) MarkPaid(ctx context.Context, db *gorm.DB, orgID, id int64, at time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Transaction{}).
		Where("org_id = ? AND id = ? AND status = ?", orgID, id, domain.TransactionPending).
		Updates(map[string]any{
			"status":     domain.TransactionPaid,
			"paid_at":    at,
			"updated_at": at,
		})
	return res.RowsAffected, res.Error
}

func (r *repo) ListTransactions(ctx context.Context, db *gorm.DB, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	stmt := db.WithContext(ctx).Model(&domain.Transaction{}).Where("org_id = ?", filter.OrgID)
	if filter.Type != "" {
		stmt = stmt.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		stmt = stmt.Where("occurred_on >= ?", *filter.From)
	}
	if filter.To != nil {
		stmt = stmt.Where("occurred_on < ?", *filter.To)
	}
	if filter.AfterID > 0 {
		stmt = stmt.Where("id < ?", filter.AfterID)
	}
	stmt = stmt.Order("id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	var items []*domain.Transaction
	err := stmt.Find(&items).Error
	return items, err
}

func (r *repo) ListSales(ctx context.Context, db *gorm.DB, filter domain.SaleFilter) ([]*domain.Sale, error) {
	stmt := db.WithContext(ctx).Model(&domain.Sale{}).Where("org_id = ?", filter.OrgID)
	if filter.AfterID > 0 {
		stmt = stmt.Where("id < ?", filter.AfterID)
	}
	stmt = stmt.Order("id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	var items []*domain.Sale
	err := stmt.Find(&items).Error
	return items, err
}

func (r *repo) Totals(ctx context.Context, db *gorm.DB, orgID int64, from, to *time.Time) ([]domain.Total, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Transaction{}).
		Select("type, status, COALESCE(SUM(amount), 0) AS amount").
		Where("org_id = ?", orgID)
	if from != nil {
		stmt = stmt.Where("occurred_on >= ?", *from)
	}
	if to != nil {
		stmt = stmt.Where("occurred_on < ?", *to)
	}

	var totals []domain.Total
	err := stmt.Group("type, status").Scan(&totals).Error
	return totals, err
}
