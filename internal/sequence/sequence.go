package sequence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/kitstock/internal/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Scope string

const (
	ScopeOrder Scope = "order"
	ScopeQuote Scope = "quote"
	ScopeSale  Scope = "sale"
)

// Sequence holds the last number handed out per organization, scope and year.
type Sequence struct {
	OrgID     int64     `gorm:"column:org_id;primaryKey"`
	Scope     string    `gorm:"type:text;primaryKey"`
	Year      int       `gorm:"primaryKey"`
	LastValue int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Sequence) TableName() string { return "document_sequences" }

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidScope        = errors.New("invalid_scope")
	ErrTransactionRequired = errors.New("transaction_required")
)

type Params struct {
	fx.In

	Policy *config.InventoryPolicyHolder
}

// Generator hands out year-scoped document numbers such as PED-2026-0001.
type Generator struct {
	policy *config.InventoryPolicyHolder
}

func New(p Params) *Generator {
	return &Generator{policy: p.Policy}
}

var Module = fx.Module("sequence",
	fx.Provide(New),
)

// Next increments the counter for (orgID, scope, year of at) and returns the
// formatted number. It must run inside the caller's transaction so a number
// is consumed only when the document that carries it commits.
func (g *Generator) Next(ctx context.Context, tx *gorm.DB, orgID int64, scope Scope, at time.Time) (string, error) {
	if tx == nil {
		return "", ErrTransactionRequired
	}
	if orgID == 0 {
		return "", ErrInvalidOrganization
	}
	prefix, err := g.prefix(scope)
	if err != nil {
		return "", err
	}

	now := at.UTC()
	year := now.Year()
	if err := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&Sequence{
		OrgID:     orgID,
		Scope:     string(scope),
		Year:      year,
		LastValue: 0,
		UpdatedAt: now,
	}).Error; err != nil {
		return "", err
	}

	// The UPDATE takes the row lock, so concurrent callers queue here and
	// each reads back its own increment.
	res := tx.WithContext(ctx).
		Model(&Sequence{}).
		Where("org_id = ? AND scope = ? AND year = ?", orgID, string(scope), year).
		Updates(map[string]any{
			"last_value": gorm.Expr("last_value + 1"),
			"updated_at": now,
		})
	if res.Error != nil {
		return "", res.Error
	}

	var seq Sequence
	if err := tx.WithContext(ctx).
		Where("org_id = ? AND scope = ? AND year = ?", orgID, string(scope), year).
		Take(&seq).Error; err != nil {
		return "", err
	}

	return Format(prefix, year, seq.LastValue, g.policy.Get().SequenceWidth), nil
}

func (g *Generator) prefix(scope Scope) (string, error) {
	policy := g.policy.Get()
	switch scope {
	case ScopeOrder:
		return policy.OrderPrefix, nil
	case ScopeQuote:
		return policy.QuotePrefix, nil
	case ScopeSale:
		return policy.SalePrefix, nil
	default:
		return "", ErrInvalidScope
	}
}

// Format renders PREFIX-YEAR-NNNN, zero padding the value to width digits.
func Format(prefix string, year int, value int64, width int) string {
	if width <= 0 {
		width = 4
	}
	return fmt.Sprintf("%s-%d-%0*d", strings.ToUpper(strings.TrimSpace(prefix)), year, width, value)
}
