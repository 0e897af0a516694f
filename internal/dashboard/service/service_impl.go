package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/kitstock/internal/clock"
	"github.com/smallbiznis/kitstock/internal/dashboard/domain"
	"github.com/smallbiznis/kitstock/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("dashboard.service"),
		clock: p.Clock,
	}
}

type statusCountRow struct {
	Status string `gorm:"column:status"`
	Count  int64  `gorm:"column:count"`
}

type salesRow struct {
	Count int64           `gorm:"column:count"`
	Total decimal.Decimal `gorm:"column:total"`
}

func (s *Service) Stats(ctx context.Context) (*domain.Stats, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	conn := s.db.WithContext(ctx)
	stats := &domain.Stats{
		OrdersByStatus:  map[string]int64{},
		MonthRevenue:    decimal.Zero,
		OpenReceivables: decimal.Zero,
	}

	counts := []struct {
		table string
		where string
		dest  *int64
	}{
		{"products", "org_id = ? AND active = ?", &stats.Products},
		{"kits", "org_id = ? AND active = ?", &stats.Kits},
		{"products", "org_id = ? AND active = ? AND quantity <= min_quantity", &stats.LowStock},
	}
	for _, c := range counts {
		if err := conn.Table(c.table).Where(c.where, orgID, true).Count(c.dest).Error; err != nil {
			return nil, err
		}
	}
	if err := conn.Table("customers").Where("org_id = ?", orgID).Count(&stats.Customers).Error; err != nil {
		return nil, err
	}
	if err := conn.Table("quotes").Where("org_id = ? AND status = ?", orgID, "pending").Count(&stats.PendingQuotes).Error; err != nil {
		return nil, err
	}

	var statusRows []statusCountRow
	if err := conn.Raw(
		`SELECT status, COUNT(*) AS count
		 FROM orders
		 WHERE org_id = ?
		 GROUP BY status`,
		orgID,
	).Scan(&statusRows).Error; err != nil {
		return nil, err
	}
	for _, row := range statusRows {
		stats.OrdersByStatus[row.Status] = row.Count
	}
	stats.PendingOrders = stats.OrdersByStatus["pending"]

	now := s.clock.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	var sales salesRow
	if err := conn.Raw(
		`SELECT COUNT(*) AS count, COALESCE(SUM(total), 0) AS total
		 FROM sales
		 WHERE org_id = ? AND sold_at >= ? AND sold_at < ?`,
		orgID,
		monthStart,
		monthStart.AddDate(0, 1, 0),
	).Scan(&sales).Error; err != nil {
		return nil, err
	}
	stats.MonthSales = sales.Count
	stats.MonthRevenue = sales.Total

	var receivables salesRow
	if err := conn.Raw(
		`SELECT COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total
		 FROM financial_transactions
		 WHERE org_id = ? AND type = ? AND status = ?`,
		orgID,
		"income",
		"pending",
	).Scan(&receivables).Error; err != nil {
		return nil, err
	}
	stats.OpenReceivables = receivables.Total

	return stats, nil
}
