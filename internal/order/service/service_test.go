package service

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/kitstock/internal/clock"
	"github.com/smallbiznis/kitstock/internal/config"
	customerdomain "github.com/smallbiznis/kitstock/internal/customer/domain"
	customerservice "github.com/smallbiznis/kitstock/internal/customer/service"
	"github.com/smallbiznis/kitstock/internal/document"
	inventorydomain "github.com/smallbiznis/kitstock/internal/inventory/domain"
	inventoryrepository "github.com/smallbiznis/kitstock/internal/inventory/repository"
	inventoryservice "github.com/smallbiznis/kitstock/internal/inventory/service"
	"github.com/smallbiznis/kitstock/internal/order/domain"
	orderrepository "github.com/smallbiznis/kitstock/internal/order/repository"
	"github.com/smallbiznis/kitstock/internal/orgcontext"
	"github.com/smallbiznis/kitstock/internal/sequence"
	"github.com/smallbiznis/kitstock/internal/testenv"
	"github.com/smallbiznis/kitstock/pkg/repository"
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
	db    *gorm.DB
	node  *snowflake.Node
	authz *testenv.Authz
	svc   domain.Service
	ctx   context.Context

	p1, p2 int64
	kitA   int64
}

// newFixture seeds P1=10 and P2=9 units and kit A built from 2xP1 + 3xP2.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := testenv.OpenDB(t)
	node := testenv.Node(t)
	clk := clock.NewFakeClock(testenv.Epoch)
	authz := testenv.AllowAll()
	policy := config.StaticInventoryPolicy(config.DefaultInventoryPolicy())

	inventory := inventoryservice.New(inventoryservice.Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  inventoryrepository.Provide(),
		Authz: authz,
	})
	customers := customerservice.New(customerservice.Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repository.ProvideStore[customerdomain.Customer](conn),
	})
	svc := New(Params{
		DB:        conn,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clk,
		Policy:    policy,
		Repo:      orderrepository.Provide(),
		Inventory: inventory,
		Customers: customers,
		Sequences: sequence.New(sequence.Params{Policy: policy}),
		Authz:     authz,
	})

	f := &fixture{
		db:    conn,
		node:  node,
		authz: authz,
		svc:   svc,
		ctx:   orgcontext.WithOrgID(context.Background(), orgID),
	}
	f.p1 = testenv.SeedProduct(t, conn, node, orgID, testenv.ProductFixture{Code: "P1", Quantity: 10, Price: "5.00"}).ID
	f.p2 = testenv.SeedProduct(t, conn, node, orgID, testenv.ProductFixture{Code: "P2", Quantity: 9, Price: "3.00"}).ID
	f.kitA = testenv.SeedKit(t, conn, node, orgID, "A", "25.00", map[int64]int64{f.p1: 2, f.p2: 3}).ID
	return f
}

func ref(v int64) *string {
	s := strconv.FormatInt(v, 10)
	return &s
}

func (f *fixture) createKitOrder(t *testing.T, qty int64) *domain.Response {
	t.Helper()
	order, err := f.svc.Create(f.ctx, admin, domain.CreateRequest{
		Items: []document.ItemInput{{KitID: ref(f.kitA), Quantity: qty}},
	})
	require.NoError(t, err)
	return order
}

func TestCreateOrderPricesAndNumbers(t *testing.T) {
	f := newFixture(t)

	first := f.createKitOrder(t, 2)
	assert.Equal(t, "PED-2026-0001", first.Number)
	assert.Equal(t, domain.StatusPending, first.Status)
	assert.Equal(t, domain.OriginInternal, first.Origin)
	assert.True(t, decimal.RequireFromString("50").Equal(first.Total))
	require.Len(t, first.Items, 1)
	require.NotNil(t, first.Items[0].KitID)

	second, err := f.svc.Create(f.ctx, admin, domain.CreateRequest{
		Items: []document.ItemInput{
			{ProductID: ref(f.p1), Quantity: 3},
			{ProductID: ref(f.p2), Quantity: 1, UnitPrice: decimalPtr("2.50"), Discount: decimal.RequireFromString("0.50")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "PED-2026-0002", second.Number)
	assert.True(t, decimal.RequireFromString("17").Equal(second.Total), second.Total.String())
}

func decimalPtr(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func TestCreateOrderRejectsBadItems(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(f.ctx, admin, domain.CreateRequest{})
	assert.ErrorIs(t, err, document.ErrEmptyItems)

	_, err = f.svc.Create(f.ctx, admin, domain.CreateRequest{Items: []document.ItemInput{{ProductID: ref(f.p1), KitID: ref(f.kitA), Quantity: 1}}})
	assert.ErrorIs(t, err, document.ErrInvalidItem)

	_, err = f.svc.Create(f.ctx, admin, domain.CreateRequest{Items: []document.ItemInput{{ProductID: ref(f.p1), Quantity: 0}}})
	assert.ErrorIs(t, err, document.ErrInvalidQuantity)

	_, err = f.svc.Create(f.ctx, admin, domain.CreateRequest{Items: []document.ItemInput{{ProductID: ref(999), Quantity: 1}}})
	assert.ErrorIs(t, err, document.ErrProductNotFound)

	missing := "123"
	_, err = f.svc.Create(f.ctx, admin, domain.CreateRequest{CustomerID: &missing, Items: []document.ItemInput{{ProductID: ref(f.p1), Quantity: 1}}})
	assert.ErrorIs(t, err, domain.ErrCustomerNotFound)

	assert.Zero(t, testenv.CountRows(t, f.db, "orders"))
	assert.Zero(t, testenv.CountRows(t, f.db, "document_sequences"))
}

func TestApproveDebitsExpandedKit(t *testing.T) {
	f := newFixture(t)
	order := f.createKitOrder(t, 2)

	result, err := f.svc.Approve(f.ctx, admin, order.ID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, string(domain.StatusConfirmed), result.Status)
	assert.Empty(t, result.Insufficient)

	assert.Equal(t, int64(6), testenv.StockOf(t, f.db, f.p1))
	assert.Equal(t, int64(3), testenv.StockOf(t, f.db, f.p2))
	assert.Equal(t, int64(2), testenv.CountRows(t, f.db, "stock_movements", "reference_type = ?", inventorydomain.ReferenceOrder))

	got, err := f.svc.Get(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, got.Status)
	assert.NotNil(t, got.ConfirmedAt)
	assert.Contains(t, f.authz.Calls, admin+" order.approve")
}

func TestApproveShortageLeavesEverythingUntouched(t *testing.T) {
	f := newFixture(t)
	order := f.createKitOrder(t, 4)

	result, err := f.svc.Approve(f.ctx, admin, order.ID)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, string(domain.StatusPending), result.Status)
	require.Len(t, result.Insufficient, 1)
	assert.Equal(t, strconv.FormatInt(f.p2, 10), result.Insufficient[0].ProductID)
	assert.Equal(t, int64(12), result.Insufficient[0].Required)
	assert.Equal(t, int64(9), result.Insufficient[0].Available)

	assert.Equal(t, int64(10), testenv.StockOf(t, f.db, f.p1))
	assert.Equal(t, int64(9), testenv.StockOf(t, f.db, f.p2))
	assert.Zero(t, testenv.CountRows(t, f.db, "stock_movements"))

	got, err := f.svc.Get(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
}

func TestApproveTwiceNeverDebitsTwice(t *testing.T) {
	f := newFixture(t)
	order := f.createKitOrder(t, 1)

	_, err := f.svc.Approve(f.ctx, admin, order.ID)
	require.NoError(t, err)

	_, err = f.svc.Approve(f.ctx, admin, order.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyApproved)

	assert.Equal(t, int64(8), testenv.StockOf(t, f.db, f.p1))
	assert.Equal(t, int64(6), testenv.StockOf(t, f.db, f.p2))
}

func TestConcurrentApprovalsOnSharedStock(t *testing.T) {
	f := newFixture(t)
	// Each order needs 6 of P1; only one can be confirmed.
	orders := make([]*domain.Response, 2)
	for i := range orders {
		o, err := f.svc.Create(f.ctx, admin, domain.CreateRequest{
			Items: []document.ItemInput{{ProductID: ref(f.p1), Quantity: 6}},
		})
		require.NoError(t, err)
		orders[i] = o
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []*document.ApprovalResult
	)
	for _, o := range orders {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			result, err := f.svc.Approve(f.ctx, admin, id)
			if err != nil {
				return
			}
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		}(o.ID)
	}
	wg.Wait()

	require.Len(t, results, 2)
	confirmed := 0
	for _, r := range results {
		if r.Success {
			confirmed++
		}
	}
	assert.Equal(t, 1, confirmed)
	assert.Equal(t, int64(4), testenv.StockOf(t, f.db, f.p1))
}

func TestRejectIsIdempotentAndLeavesStock(t *testing.T) {
	f := newFixture(t)
	order := f.createKitOrder(t, 1)

	rejected, err := f.svc.Reject(f.ctx, admin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, rejected.Status)
	assert.NotNil(t, rejected.RejectedAt)

	again, err := f.svc.Reject(f.ctx, admin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, again.Status)

	_, err = f.svc.Approve(f.ctx, admin, order.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = f.svc.Cancel(f.ctx, admin, order.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	assert.Equal(t, int64(10), testenv.StockOf(t, f.db, f.p1))
	assert.Zero(t, testenv.CountRows(t, f.db, "stock_movements"))
}

func TestConfirmedOrderCannotBeRejectedOrCancelled(t *testing.T) {
	f := newFixture(t)
	order := f.createKitOrder(t, 1)
	_, err := f.svc.Approve(f.ctx, admin, order.ID)
	require.NoError(t, err)

	_, err = f.svc.Reject(f.ctx, admin, order.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = f.svc.Cancel(f.ctx, admin, order.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	got, err := f.svc.Get(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, got.Status)
}

func TestCancelPendingOrder(t *testing.T) {
	f := newFixture(t)
	order := f.createKitOrder(t, 1)

	cancelled, err := f.svc.Cancel(f.ctx, admin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)

	_, err = f.svc.Reject(f.ctx, admin, order.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestAdvanceFulfillment(t *testing.T) {
	f := newFixture(t)
	order := f.createKitOrder(t, 1)

	_, err := f.svc.Advance(f.ctx, admin, order.ID, domain.StatusShipped)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.svc.Approve(f.ctx, admin, order.ID)
	require.NoError(t, err)

	picking, err := f.svc.Advance(f.ctx, admin, order.ID, domain.StatusPicking)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPicking, picking.Status)

	delivered, err := f.svc.Advance(f.ctx, admin, order.ID, domain.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, delivered.Status)
	assert.NotNil(t, delivered.ShippedAt)
	assert.NotNil(t, delivered.DeliveredAt)

	_, err = f.svc.Advance(f.ctx, admin, order.ID, domain.StatusPicking)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = f.svc.Advance(f.ctx, admin, order.ID, domain.StatusPending)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	// Fulfillment never touches stock again.
	assert.Equal(t, int64(8), testenv.StockOf(t, f.db, f.p1))
}

func TestApproveForbidden(t *testing.T) {
	f := newFixture(t)
	order := f.createKitOrder(t, 1)
	f.authz.Deny["order.approve"] = true

	_, err := f.svc.Approve(f.ctx, "user:2", order.ID)
	assert.Error(t, err)
	assert.Equal(t, int64(10), testenv.StockOf(t, f.db, f.p1))
}

func TestCheckAvailabilityPreview(t *testing.T) {
	f := newFixture(t)
	ok := f.createKitOrder(t, 3)
	short := f.createKitOrder(t, 4)

	preview, err := f.svc.CheckAvailability(f.ctx, ok.ID)
	require.NoError(t, err)
	assert.True(t, preview.Available)
	assert.Empty(t, preview.Insufficient)

	preview, err = f.svc.CheckAvailability(f.ctx, short.ID)
	require.NoError(t, err)
	assert.False(t, preview.Available)
	require.Len(t, preview.Insufficient, 1)
	assert.Equal(t, int64(3), preview.Insufficient[0].Missing)
}

func TestSubmitCatalogOrderUpsertsCustomer(t *testing.T) {
	f := newFixture(t)
	req := domain.CatalogOrderRequest{
		Customer: customerdomain.CreateCustomerRequest{
			Name:     "Maria Souza",
			Document: "123.456.789-09",
			Email:    "maria@example.com",
		},
		Items: []document.ItemInput{{KitID: ref(f.kitA), Quantity: 1}},
	}

	first, err := f.svc.SubmitCatalogOrder(f.ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.OriginCatalog, first.Origin)
	require.NotNil(t, first.CustomerID)
	require.NotNil(t, first.CreatedBy)
	assert.Equal(t, "public", *first.CreatedBy)

	req.Customer.Name = "Maria S. Souza"
	second, err := f.svc.SubmitCatalogOrder(f.ctx, req)
	require.NoError(t, err)
	assert.Equal(t, *first.CustomerID, *second.CustomerID)
	assert.Equal(t, int64(1), testenv.CountRows(t, f.db, "customers"))

	list, err := f.svc.List(f.ctx, domain.ListRequest{Origin: "catalog"})
	require.NoError(t, err)
	assert.Len(t, list.Orders, 2)

	result, err := f.svc.Approve(f.ctx, admin, first.ID)
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestListFiltersByStatus(t *testing.T) {
	f := newFixture(t)
	a := f.createKitOrder(t, 1)
	f.createKitOrder(t, 1)
	_, err := f.svc.Reject(f.ctx, admin, a.ID)
	require.NoError(t, err)

	list, err := f.svc.List(f.ctx, domain.ListRequest{Status: "pending"})
	require.NoError(t, err)
	assert.Len(t, list.Orders, 1)

	_, err = f.svc.List(f.ctx, domain.ListRequest{Status: "lost"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}
