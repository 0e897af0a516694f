package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/kitstock/internal/inventory/domain"
	productdomain "github.com/smallbiznis/kitstock/internal/product/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) LockProducts(ctx context.Context, db *gorm.DB, orgID int64, ids []int64) ([]productdomain.Product, error) {
	var products []productdomain.Product
	if len(ids) == 0 {
		return products, nil
	}
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("org_id = ? AND id IN ?", orgID, ids).
		Order("id").
		Find(&products).Error
	return products, err
}

func (r *repo) FindProducts(ctx context.Context, db *gorm.DB, orgID int64, ids []int64) ([]productdomain.Product, error) {
	var products []productdomain.Product
	if len(ids) == 0 {
		return products, nil
	}
	err := db.WithContext(ctx).
		Where("org_id = ? AND id IN ?", orgID, ids).
		Order("id").
		Find(&products).Error
	return products, err
}

func (r *repo) DecrementIfAvailable(ctx context.Context, db *gorm.DB, orgID, productID, qty int64, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&productdomain.Product{}).
		Where("org_id = ? AND id = ? AND quantity >= ?", orgID, productID, qty).
		Updates(map[string]any{
			"quantity":   gorm.Expr("quantity - ?", qty),
			"updated_at": now.UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *repo) SetQuantity(ctx context.Context, db *gorm.DB, orgID, productID, expected, quantity int64, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&productdomain.Product{}).
		Where("org_id = ? AND id = ? AND quantity = ?", orgID, productID, expected).
		Updates(map[string]any{
			"quantity":   quantity,
			"updated_at": now.UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *repo) LoadBOM(ctx context.Context, db *gorm.DB, orgID int64, kitIDs []int64) (map[int64][]domain.BOMEntry, error) {
	out := map[int64][]domain.BOMEntry{}
	if len(kitIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		KitID     int64
		ProductID int64
		Quantity  int64
	}
	err := db.WithContext(ctx).
		Table("kit_components").
		Select("kit_id, product_id, quantity").
		Where("org_id = ? AND kit_id IN ?", orgID, kitIDs).
		Order("kit_id, product_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.KitID] = append(out[row.KitID], domain.BOMEntry{ProductID: row.ProductID, Quantity: row.Quantity})
	}
	return out, nil
}

func (r *repo) FindKits(ctx context.Context, db *gorm.DB, orgID int64, kitIDs []int64, onlyActive bool) ([]domain.KitRow, error) {
	stmt := db.WithContext(ctx).
		Table("kits").
		Select("id, code, name, active").
		Where("org_id = ?", orgID)
	if kitIDs != nil {
		stmt = stmt.Where("id IN ?", kitIDs)
	}
	if onlyActive {
		stmt = stmt.Where("active = ?", true)
	}

	var rows []domain.KitRow
	err := stmt.Order("name, id").Scan(&rows).Error
	return rows, err
}

func (r *repo) KitComponentStock(ctx context.Context, db *gorm.DB, orgID int64, kitIDs []int64) ([]domain.KitComponentRow, error) {
	var rows []domain.KitComponentRow
	if len(kitIDs) == 0 {
		return rows, nil
	}
	err := db.WithContext(ctx).
		Table("kit_components AS kc").
		Select("kc.kit_id, kc.product_id, p.code, p.name, kc.quantity AS required_per_kit, p.quantity AS on_hand").
		Joins("JOIN products p ON p.id = kc.product_id AND p.org_id = kc.org_id").
		Where("kc.org_id = ? AND kc.kit_id IN ?", orgID, kitIDs).
		Order("kc.kit_id, kc.product_id").
		Scan(&rows).Error
	return rows, err
}

func (r *repo) InsertMovements(ctx context.Context, db *gorm.DB, movements []domain.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&movements).Error
}

func (r *repo) ListMovements(ctx context.Context, db *gorm.DB, filter domain.MovementFilter) ([]domain.StockMovement, error) {
	stmt := db.WithContext(ctx).Model(&domain.StockMovement{}).Where("org_id = ?", filter.OrgID)
	if filter.ProductID != nil {
		stmt = stmt.Where("product_id = ?", *filter.ProductID)
	}
	if filter.ReferenceType != "" {
		stmt = stmt.Where("reference_type = ?", filter.ReferenceType)
	}
	if filter.ReferenceID != nil {
		stmt = stmt.Where("reference_id = ?", *filter.ReferenceID)
	}
	if filter.AfterID > 0 {
		stmt = stmt.Where("id < ?", filter.AfterID)
	}
	stmt = stmt.Order("id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	var movements []domain.StockMovement
	err := stmt.Find(&movements).Error
	return movements, err
}
