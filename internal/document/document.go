// Package document holds what orders and quotes share: item pricing against
// the catalog, the conversion of items into stock lines, and the approval
// outcome returned to callers.
package document

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	inventorydomain "github.com/smallbiznis/kitstock/internal/inventory/domain"
	"gorm.io/gorm"
)

// ItemInput is a requested document line: exactly one of ProductID or KitID.
// UnitPrice defaults to the catalog price when omitted.
type ItemInput struct {
	ProductID *string          `json:"product_id"`
	KitID     *string          `json:"kit_id"`
	Quantity  int64            `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal  `json:"discount"`
}

type PricedLine struct {
	ProductID *int64
	KitID     *int64
	Name      string
	Quantity  int64
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
	Subtotal  decimal.Decimal
}

// ApprovalResult is the outcome of an approval attempt. Success false means
// stock was insufficient and nothing changed.
type ApprovalResult struct {
	Success      bool                       `json:"success"`
	Status       string                     `json:"status"`
	Number       string                     `json:"number"`
	Insufficient []inventorydomain.Shortage `json:"insufficient,omitempty"`
	SaleID       *string                    `json:"sale_id,omitempty"`
}

// AvailabilityResult previews an approval without locking or writing.
type AvailabilityResult struct {
	Available    bool                       `json:"available"`
	Insufficient []inventorydomain.Shortage `json:"insufficient"`
}

var (
	ErrEmptyItems       = errors.New("empty_items")
	ErrTooManyItems     = errors.New("too_many_items")
	ErrInvalidItem      = errors.New("invalid_item")
	ErrInvalidQuantity  = errors.New("invalid_quantity")
	ErrInvalidPrice     = errors.New("invalid_price")
	ErrProductNotFound  = errors.New("product_not_found")
	ErrKitNotFound      = errors.New("kit_not_found")
	ErrInactiveItem     = errors.New("inactive_item")
	ErrInvalidDiscount  = errors.New("invalid_discount")
	ErrNegativeSubtotal = errors.New("negative_subtotal")
)

type catalogRow struct {
	ID     int64
	Name   string
	Price  decimal.Decimal
	Active bool
}

// Price validates items against the catalog of orgID and prices them.
// It reads through db so callers can run it inside their transaction.
func Price(ctx context.Context, db *gorm.DB, orgID int64, items []ItemInput, maxItems int) ([]PricedLine, decimal.Decimal, error) {
	if len(items) == 0 {
		return nil, decimal.Zero, ErrEmptyItems
	}
	if maxItems > 0 && len(items) > maxItems {
		return nil, decimal.Zero, ErrTooManyItems
	}

	type parsed struct {
		productID *int64
		kitID     *int64
	}
	refs := make([]parsed, 0, len(items))
	var productIDs, kitIDs []int64
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, decimal.Zero, ErrInvalidQuantity
		}
		if item.Discount.IsNegative() {
			return nil, decimal.Zero, ErrInvalidDiscount
		}
		if item.UnitPrice != nil && item.UnitPrice.IsNegative() {
			return nil, decimal.Zero, ErrInvalidPrice
		}
		productID, err := parseOptionalID(item.ProductID)
		if err != nil {
			return nil, decimal.Zero, err
		}
		kitID, err := parseOptionalID(item.KitID)
		if err != nil {
			return nil, decimal.Zero, err
		}
		if (productID == nil) == (kitID == nil) {
			return nil, decimal.Zero, ErrInvalidItem
		}
		if productID != nil {
			productIDs = append(productIDs, *productID)
		} else {
			kitIDs = append(kitIDs, *kitID)
		}
		refs = append(refs, parsed{productID: productID, kitID: kitID})
	}

	products, err := loadCatalog(ctx, db, "products", "unit_price", orgID, productIDs)
	if err != nil {
		return nil, decimal.Zero, err
	}
	kits, err := loadCatalog(ctx, db, "kits", "sale_price", orgID, kitIDs)
	if err != nil {
		return nil, decimal.Zero, err
	}

	total := decimal.Zero
	lines := make([]PricedLine, 0, len(items))
	for i, item := range items {
		ref := refs[i]
		var row catalogRow
		var ok bool
		if ref.productID != nil {
			if row, ok = products[*ref.productID]; !ok {
				return nil, decimal.Zero, ErrProductNotFound
			}
		} else {
			if row, ok = kits[*ref.kitID]; !ok {
				return nil, decimal.Zero, ErrKitNotFound
			}
		}
		if !row.Active {
			return nil, decimal.Zero, ErrInactiveItem
		}

		unitPrice := row.Price
		if item.UnitPrice != nil {
			unitPrice = *item.UnitPrice
		}
		unitPrice = unitPrice.Round(2)
		discount := item.Discount.Round(2)
		subtotal := unitPrice.Mul(decimal.NewFromInt(item.Quantity)).Sub(discount)
		if subtotal.IsNegative() {
			return nil, decimal.Zero, ErrNegativeSubtotal
		}

		lines = append(lines, PricedLine{
			ProductID: ref.productID,
			KitID:     ref.kitID,
			Name:      row.Name,
			Quantity:  item.Quantity,
			UnitPrice: unitPrice,
			Discount:  discount,
			Subtotal:  subtotal,
		})
		total = total.Add(subtotal)
	}
	return lines, total, nil
}

// StockLine converts a persisted item into the line the inventory engine expands.
func StockLine(productID, kitID *int64, quantity int64) inventorydomain.Line {
	return inventorydomain.Line{ProductID: productID, KitID: kitID, Quantity: quantity}
}

// FormatID renders an optional id the way responses carry ids.
func FormatID(id *int64) *string {
	if id == nil {
		return nil
	}
	v := strconv.FormatInt(*id, 10)
	return &v
}

func loadCatalog(ctx context.Context, db *gorm.DB, table, priceColumn string, orgID int64, ids []int64) (map[int64]catalogRow, error) {
	out := map[int64]catalogRow{}
	if len(ids) == 0 {
		return out, nil
	}
	var rows []catalogRow
	err := db.WithContext(ctx).
		Table(table).
		Select("id, name, "+priceColumn+" AS price, active").
		Where("org_id = ? AND id IN ?", orgID, ids).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func parseOptionalID(raw *string) (*int64, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := snowflake.ParseString(strings.TrimSpace(*raw))
	if err != nil || id == 0 {
		return nil, ErrInvalidItem
	}
	value := id.Int64()
	return &value, nil
}
