package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/kitstock/internal/clock"
	"github.com/smallbiznis/kitstock/internal/dashboard/domain"
	financedomain "github.com/smallbiznis/kitstock/internal/finance/domain"
	orderdomain "github.com/smallbiznis/kitstock/internal/order/domain"
	"github.com/smallbiznis/kitstock/internal/orgcontext"
	"github.com/smallbiznis/kitstock/internal/testenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const orgID = int64(10)

func seedOrder(t *testing.T, conn *gorm.DB, node *snowflake.Node, number string, status orderdomain.Status) {
	t.Helper()
	require.NoError(t, conn.Create(&orderdomain.Order{
		ID:        node.Generate().Int64(),
		OrgID:     orgID,
		Number:    number,
		Status:    status,
		Origin:    orderdomain.OriginInternal,
		Total:     decimal.NewFromInt(10),
		CreatedAt: testenv.Epoch,
		UpdatedAt: testenv.Epoch,
	}).Error)
}

func TestStatsSummarizesOrganization(t *testing.T) {
	conn := testenv.OpenDB(t)
	node := testenv.Node(t)
	svc := NewService(Params{DB: conn, Log: zap.NewNop(), Clock: clock.NewFakeClock(testenv.Epoch)})

	p := testenv.SeedProduct(t, conn, node, orgID, testenv.ProductFixture{Code: "P1", Quantity: 0})
	testenv.SeedProduct(t, conn, node, orgID, testenv.ProductFixture{Code: "P2", Quantity: 8})
	testenv.SeedProduct(t, conn, node, orgID, testenv.ProductFixture{Code: "OLD", Quantity: 0, Inactive: true})
	testenv.SeedProduct(t, conn, node, 99, testenv.ProductFixture{Code: "X", Quantity: 0})
	testenv.SeedKit(t, conn, node, orgID, "K", "10.00", map[int64]int64{p.ID: 1})

	seedOrder(t, conn, node, "PED-2026-0001", orderdomain.StatusPending)
	seedOrder(t, conn, node, "PED-2026-0002", orderdomain.StatusPending)
	seedOrder(t, conn, node, "PED-2026-0003", orderdomain.StatusConfirmed)

	saleID := node.Generate()
	require.NoError(t, conn.Create(&financedomain.Sale{
		ID:        saleID,
		OrgID:     snowflake.ID(orgID),
		Number:    "VND-2026-0001",
		Total:     decimal.NewFromInt(150),
		Status:    financedomain.SaleCompleted,
		SoldAt:    testenv.Epoch,
		CreatedAt: testenv.Epoch,
	}).Error)
	require.NoError(t, conn.Create(&financedomain.Transaction{
		ID:          node.Generate(),
		OrgID:       snowflake.ID(orgID),
		Type:        financedomain.TransactionIncome,
		Category:    "sales",
		Description: "Sale VND-2026-0001",
		Amount:      decimal.NewFromInt(150),
		Status:      financedomain.TransactionPending,
		SaleID:      &saleID,
		OccurredOn:  testenv.Epoch,
		CreatedAt:   testenv.Epoch,
		UpdatedAt:   testenv.Epoch,
	}).Error)

	stats, err := svc.Stats(orgcontext.WithOrgID(context.Background(), orgID))
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Products)
	assert.Equal(t, int64(1), stats.Kits)
	assert.Equal(t, int64(1), stats.LowStock)
	assert.Equal(t, int64(2), stats.PendingOrders)
	assert.Equal(t, map[string]int64{"pending": 2, "confirmed": 1}, stats.OrdersByStatus)
	assert.Equal(t, int64(1), stats.MonthSales)
	assert.True(t, decimal.NewFromInt(150).Equal(stats.MonthRevenue))
	assert.True(t, decimal.NewFromInt(150).Equal(stats.OpenReceivables))
}

func TestStatsRequiresOrganization(t *testing.T) {
	svc := NewService(Params{DB: testenv.OpenDB(t), Log: zap.NewNop(), Clock: clock.NewFakeClock(testenv.Epoch)})
	_, err := svc.Stats(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)
}
