package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/kitstock/internal/clock"
	"github.com/smallbiznis/kitstock/internal/config"
	"github.com/smallbiznis/kitstock/internal/finance/domain"
	"github.com/smallbiznis/kitstock/internal/finance/repository"
	"github.com/smallbiznis/kitstock/internal/orgcontext"
	"github.com/smallbiznis/kitstock/internal/sequence"
	"github.com/smallbiznis/kitstock/internal/testenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*gorm.DB, domain.Service, context.Context) {
	t.Helper()
	conn := testenv.OpenDB(t)
	policy := config.StaticInventoryPolicy(config.DefaultInventoryPolicy())
	svc := New(Params{
		DB:        conn,
		Log:       zap.NewNop(),
		GenID:     testenv.Node(t),
		Clock:     clock.NewFakeClock(testenv.Epoch),
		Policy:    policy,
		Sequences: sequence.New(sequence.Params{Policy: policy}),
		Repo:      repository.Provide(),
	})
	return conn, svc, orgcontext.WithOrgID(context.Background(), 10)
}

func TestRecordSaleWritesPendingIncome(t *testing.T) {
	conn, svc, ctx := newTestService(t)

	var sale *domain.Sale
	err := conn.Transaction(func(tx *gorm.DB) error {
		var err error
		sale, err = svc.RecordSale(ctx, tx, domain.RecordSaleRequest{
			OrgID: 10,
			Total: decimal.RequireFromString("120.50"),
			At:    testenv.Epoch,
		})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "VND-2026-0001", sale.Number)
	assert.Equal(t, domain.SaleCompleted, sale.Status)

	var income domain.Transaction
	require.NoError(t, conn.Where("sale_id = ?", sale.ID).Take(&income).Error)
	assert.Equal(t, domain.TransactionIncome, income.Type)
	assert.Equal(t, domain.TransactionPending, income.Status)
	assert.Equal(t, "sales", income.Category)
	assert.True(t, decimal.RequireFromString("120.50").Equal(income.Amount))
	assert.Equal(t, "Sale VND-2026-0001", income.Description)
}

func TestRecordZeroSaleHasNoIncome(t *testing.T) {
	conn, svc, ctx := newTestService(t)

	err := conn.Transaction(func(tx *gorm.DB) error {
		_, err := svc.RecordSale(ctx, tx, domain.RecordSaleRequest{OrgID: 10, Total: decimal.Zero, At: testenv.Epoch})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), testenv.CountRows(t, conn, "sales"))
	assert.Zero(t, testenv.CountRows(t, conn, "financial_transactions"))
}

func TestCreateTransactionValidation(t *testing.T) {
	_, svc, ctx := newTestService(t)

	_, err := svc.CreateTransaction(ctx, domain.CreateTransactionRequest{Type: "gift", Category: "x", Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, domain.ErrInvalidType)

	_, err = svc.CreateTransaction(ctx, domain.CreateTransactionRequest{Type: domain.TransactionExpense, Category: "x", Amount: decimal.Zero})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = svc.CreateTransaction(ctx, domain.CreateTransactionRequest{Type: domain.TransactionExpense, Category: " ", Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, domain.ErrInvalidCategory)

	_, err = svc.CreateTransaction(ctx, domain.CreateTransactionRequest{Type: domain.TransactionExpense, Category: "x", Amount: decimal.NewFromInt(1), Status: "late"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestSettleAndSummary(t *testing.T) {
	_, svc, ctx := newTestService(t)

	income, err := svc.CreateTransaction(ctx, domain.CreateTransactionRequest{
		Type: domain.TransactionIncome, Category: "sales", Amount: decimal.NewFromInt(200),
	})
	require.NoError(t, err)
	_, err = svc.CreateTransaction(ctx, domain.CreateTransactionRequest{
		Type: domain.TransactionExpense, Category: "rent", Amount: decimal.NewFromInt(80), Status: domain.TransactionPaid,
	})
	require.NoError(t, err)
	_, err = svc.CreateTransaction(ctx, domain.CreateTransactionRequest{
		Type: domain.TransactionExpense, Category: "supplies", Amount: decimal.NewFromInt(30),
	})
	require.NoError(t, err)

	summary, err := svc.Summary(ctx, domain.SummaryRequest{})
	require.NoError(t, err)
	assert.True(t, decimal.Zero.Equal(summary.Income))
	assert.True(t, decimal.NewFromInt(200).Equal(summary.PendingReceivables))
	assert.True(t, decimal.NewFromInt(30).Equal(summary.PendingPayables))
	assert.True(t, decimal.NewFromInt(-80).Equal(summary.Balance))

	settled, err := svc.SettleTransaction(ctx, income.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionPaid, settled.Status)
	require.NotNil(t, settled.PaidAt)

	_, err = svc.SettleTransaction(ctx, income.ID.String())
	assert.ErrorIs(t, err, domain.ErrAlreadyPaid)
	_, err = svc.SettleTransaction(ctx, "404")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	summary, err = svc.Summary(ctx, domain.SummaryRequest{})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(120).Equal(summary.Balance))
	assert.True(t, decimal.Zero.Equal(summary.PendingReceivables))

	from := testenv.Epoch.Add(time.Hour)
	to := testenv.Epoch
	_, err = svc.Summary(ctx, domain.SummaryRequest{From: &from, To: &to})
	assert.ErrorIs(t, err, domain.ErrInvalidTimeRange)
}

func TestListTransactionsFiltersByType(t *testing.T) {
	_, svc, ctx := newTestService(t)
	for _, kind := range []domain.TransactionType{domain.TransactionIncome, domain.TransactionExpense, domain.TransactionExpense} {
		_, err := svc.CreateTransaction(ctx, domain.CreateTransactionRequest{Type: kind, Category: "c", Amount: decimal.NewFromInt(5)})
		require.NoError(t, err)
	}

	resp, err := svc.ListTransactions(ctx, domain.ListTransactionsRequest{Type: "expense"})
	require.NoError(t, err)
	assert.Len(t, resp.Transactions, 2)

	_, err = svc.ListTransactions(ctx, domain.ListTransactionsRequest{Type: "bogus"})
	assert.ErrorIs(t, err, domain.ErrInvalidType)
}
