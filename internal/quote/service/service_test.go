package service

import (
	"context"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/kitstock/internal/clock"
	"github.com/smallbiznis/kitstock/internal/config"
	"github.com/smallbiznis/kitstock/internal/document"
	financedomain "github.com/smallbiznis/kitstock/internal/finance/domain"
	financerepository "github.com/smallbiznis/kitstock/internal/finance/repository"
	financeservice "github.com/smallbiznis/kitstock/internal/finance/service"
	inventoryrepository "github.com/smallbiznis/kitstock/internal/inventory/repository"
	inventoryservice "github.com/smallbiznis/kitstock/internal/inventory/service"
	"github.com/smallbiznis/kitstock/internal/orgcontext"
	"github.com/smallbiznis/kitstock/internal/quote/domain"
	"github.com/smallbiznis/kitstock/internal/quote/repository"
	"github.com/smallbiznis/kitstock/internal/sequence"
	"github.com/smallbiznis/kitstock/internal/testenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	orgID = int64(10)
	admin = "user:1"
)

type fixture struct {
	db  *gorm.DB
	svc domain.Service
	ctx context.Context

	p1, p2 int64
	kitA   int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := testenv.OpenDB(t)
	node := testenv.Node(t)
	clk := clock.NewFakeClock(testenv.Epoch)
	authz := testenv.AllowAll()
	policy := config.StaticInventoryPolicy(config.DefaultInventoryPolicy())
	sequences := sequence.New(sequence.Params{Policy: policy})

	inventory := inventoryservice.New(inventoryservice.Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  inventoryrepository.Provide(),
		Authz: authz,
	})
	finance := financeservice.New(financeservice.Params{
		DB:        conn,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clk,
		Policy:    policy,
		Sequences: sequences,
		Repo:      financerepository.Provide(),
	})
	svc := New(Params{
		DB:        conn,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clk,
		Policy:    policy,
		Repo:      repository.Provide(),
		Inventory: inventory,
		Finance:   finance,
		Sequences: sequences,
		Authz:     authz,
	})

	f := &fixture{db: conn, svc: svc, ctx: orgcontext.WithOrgID(context.Background(), orgID)}
	f.p1 = testenv.SeedProduct(t, conn, node, orgID, testenv.ProductFixture{Code: "P1", Quantity: 10, Price: "5.00"}).ID
	f.p2 = testenv.SeedProduct(t, conn, node, orgID, testenv.ProductFixture{Code: "P2", Quantity: 9, Price: "3.00"}).ID
	f.kitA = testenv.SeedKit(t, conn, node, orgID, "A", "25.00", map[int64]int64{f.p1: 2, f.p2: 3}).ID
	return f
}

func (f *fixture) createQuote(t *testing.T, kitQty int64) *domain.Response {
	t.Helper()
	kitID := strconv.FormatInt(f.kitA, 10)
	q, err := f.svc.Create(f.ctx, admin, domain.CreateRequest{
		Items: []document.ItemInput{{KitID: &kitID, Quantity: kitQty}},
	})
	require.NoError(t, err)
	return q
}

func TestCreateQuoteNumbering(t *testing.T) {
	f := newFixture(t)
	first := f.createQuote(t, 1)
	second := f.createQuote(t, 1)

	assert.Equal(t, "ORC-2026-0001", first.Number)
	assert.Equal(t, "ORC-2026-0002", second.Number)
	assert.Equal(t, domain.StatusPending, first.Status)
	assert.True(t, decimal.RequireFromString("25").Equal(first.Total))
}

func TestApproveQuoteCreatesSaleAndIncome(t *testing.T) {
	f := newFixture(t)
	q := f.createQuote(t, 2)

	result, err := f.svc.Approve(f.ctx, admin, q.ID)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.NotNil(t, result.SaleID)

	assert.Equal(t, int64(6), testenv.StockOf(t, f.db, f.p1))
	assert.Equal(t, int64(3), testenv.StockOf(t, f.db, f.p2))

	var sale financedomain.Sale
	require.NoError(t, f.db.Where("id = ?", *result.SaleID).Take(&sale).Error)
	assert.Equal(t, "VND-2026-0001", sale.Number)
	assert.True(t, decimal.RequireFromString("50").Equal(sale.Total))
	require.NotNil(t, sale.QuoteID)
	assert.Equal(t, q.ID, sale.QuoteID.String())

	var income financedomain.Transaction
	require.NoError(t, f.db.Where("sale_id = ?", sale.ID).Take(&income).Error)
	assert.Equal(t, financedomain.TransactionIncome, income.Type)
	assert.Equal(t, financedomain.TransactionPending, income.Status)

	got, err := f.svc.Get(f.ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, got.Status)
	assert.NotNil(t, got.ApprovedAt)

	_, err = f.svc.Approve(f.ctx, admin, q.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyApproved)
	assert.Equal(t, int64(1), testenv.CountRows(t, f.db, "sales"))
	assert.Equal(t, int64(6), testenv.StockOf(t, f.db, f.p1))
}

func TestApproveQuoteShortageRecordsNoSale(t *testing.T) {
	f := newFixture(t)
	q := f.createQuote(t, 4)

	result, err := f.svc.Approve(f.ctx, admin, q.ID)
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.Insufficient, 1)
	assert.Equal(t, int64(3), result.Insufficient[0].Missing)

	assert.Zero(t, testenv.CountRows(t, f.db, "sales"))
	assert.Zero(t, testenv.CountRows(t, f.db, "financial_transactions"))
	assert.Zero(t, testenv.CountRows(t, f.db, "document_sequences", "scope = ?", "sale"))
	assert.Equal(t, int64(9), testenv.StockOf(t, f.db, f.p2))
}

func TestRejectQuote(t *testing.T) {
	f := newFixture(t)
	q := f.createQuote(t, 1)

	rejected, err := f.svc.Reject(f.ctx, admin, q.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, rejected.Status)

	_, err = f.svc.Reject(f.ctx, admin, q.ID)
	require.NoError(t, err)

	_, err = f.svc.Approve(f.ctx, admin, q.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, int64(10), testenv.StockOf(t, f.db, f.p1))
}

func TestApprovedQuoteCannotBeCancelled(t *testing.T) {
	f := newFixture(t)
	q := f.createQuote(t, 1)
	_, err := f.svc.Approve(f.ctx, admin, q.ID)
	require.NoError(t, err)

	_, err = f.svc.Cancel(f.ctx, admin, q.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = f.svc.Reject(f.ctx, admin, q.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestListQuotesByStatus(t *testing.T) {
	f := newFixture(t)
	q := f.createQuote(t, 1)
	f.createQuote(t, 1)
	_, err := f.svc.Cancel(f.ctx, admin, q.ID)
	require.NoError(t, err)

	resp, err := f.svc.List(f.ctx, domain.ListRequest{Status: "cancelled"})
	require.NoError(t, err)
	require.Len(t, resp.Quotes, 1)
	assert.Equal(t, q.ID, resp.Quotes[0].ID)
}
