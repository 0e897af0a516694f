package service

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kitstock/internal/clock"
	"github.com/smallbiznis/kitstock/internal/inventory/domain"
	"github.com/smallbiznis/kitstock/internal/inventory/repository"
	"github.com/smallbiznis/kitstock/internal/orgcontext"
	productdomain "github.com/smallbiznis/kitstock/internal/product/domain"
	"github.com/smallbiznis/kitstock/internal/testenv"
	"github.com/smallbiznis/kitstock/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const orgID = int64(10)

type fixture struct {
	db    *gorm.DB
	node  *snowflake.Node
	authz *testenv.Authz
	clock *clock.FakeClock
	svc   domain.Service
	ctx   context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := testenv.OpenDB(t)
	node := testenv.Node(t)
	authz := testenv.AllowAll()
	clk := clock.NewFakeClock(testenv.Epoch)
	svc := New(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repository.Provide(),
		Authz: authz,
	})
	return &fixture{
		db:    conn,
		node:  node,
		authz: authz,
		clock: clk,
		svc:   svc,
		ctx:   orgcontext.WithOrgID(context.Background(), orgID),
	}
}

func (f *fixture) debit(t *testing.T, lines []domain.Line) (*domain.DebitResult, error) {
	t.Helper()
	var result *domain.DebitResult
	err := db.TenantTx(f.ctx, f.db, snowflake.ID(orgID), func(tx *gorm.DB) error {
		var err error
		result, err = f.svc.Debit(f.ctx, tx, domain.DebitRequest{
			OrgID:         orgID,
			Lines:         lines,
			ReferenceType: domain.ReferenceOrder,
			ReferenceID:   77,
			ActorID:       "1",
		})
		return err
	})
	return result, err
}

func kitLine(id, qty int64) domain.Line     { return domain.Line{KitID: &id, Quantity: qty} }
func productLine(id, qty int64) domain.Line { return domain.Line{ProductID: &id, Quantity: qty} }

func TestKitAvailabilityReportsLimitingComponent(t *testing.T) {
	f := newFixture(t)
	p1 := testenv.SeedProduct(t, f.db, f.node, orgID, testenv.ProductFixture{Code: "P1", Quantity: 10})
	p2 := testenv.SeedProduct(t, f.db, f.node, orgID, testenv.ProductFixture{Code: "P2", Quantity: 9})
	kit := testenv.SeedKit(t, f.db, f.node, orgID, "A", "50.00", map[int64]int64{p1.ID: 2, p2.ID: 3})

	got, err := f.svc.KitAvailability(f.ctx, strconv.FormatInt(kit.ID, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.AvailableCount)
	assert.Equal(t, []string{strconv.FormatInt(p2.ID, 10)}, got.LimitingComponents)
	require.Len(t, got.Components, 2)
	assert.Equal(t, int64(5), got.Components[0].Possible)
	assert.Equal(t, int64(3), got.Components[1].Possible)
}

func TestKitAvailabilityWithoutComponentsIsZero(t *testing.T) {
	f := newFixture(t)
	kit := testenv.SeedKit(t, f.db, f.node, orgID, "EMPTY", "1.00", nil)

	got, err := f.svc.KitAvailability(f.ctx, strconv.FormatInt(kit.ID, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.AvailableCount)
	assert.Empty(t, got.Components)
}

func TestKitAvailabilityIsScopedToOrganization(t *testing.T) {
	f := newFixture(t)
	kit := testenv.SeedKit(t, f.db, f.node, 99, "OTHER", "1.00", nil)

	_, err := f.svc.KitAvailability(f.ctx, strconv.FormatInt(kit.ID, 10))
	assert.ErrorIs(t, err, domain.ErrKitNotFound)

	_, err = f.svc.KitAvailability(context.Background(), strconv.FormatInt(kit.ID, 10))
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)
}

func TestListKitAvailabilityRecomputesAfterStockChange(t *testing.T) {
	f := newFixture(t)
	p1 := testenv.SeedProduct(t, f.db, f.node, orgID, testenv.ProductFixture{Code: "P1", Quantity: 4})
	testenv.SeedKit(t, f.db, f.node, orgID, "A", "10.00", map[int64]int64{p1.ID: 2})
	testenv.SeedKit(t, f.db, f.node, orgID, "B", "10.00", map[int64]int64{p1.ID: 5})

	kits, err := f.svc.ListKitAvailability(f.ctx, true)
	require.NoError(t, err)
	require.Len(t, kits, 2)
	counts := map[string]int64{}
	for _, k := range kits {
		counts[k.Code] = k.AvailableCount
	}
	assert.Equal(t, map[string]int64{"A": 2, "B": 0}, counts)

	require.NoError(t, f.db.Table("products").Where("id = ?", p1.ID).Update("quantity", 5).Error)

	kits, err = f.svc.ListKitAvailability(f.ctx, true)
	require.NoError(t, err)
	for _, k := range kits {
		counts[k.Code] = k.AvailableCount
	}
	assert.Equal(t, map[string]int64{"A": 2, "B": 1}, counts)
}

func TestDebitExpandsKitAndWritesMovements(t *testing.T) {
	f := newFixture(t)
	p1 := testenv.SeedProduct(t, f.db, f.node, orgID, testenv.ProductFixture{Code: "P1", Quantity: 10})
	p2 := testenv.SeedProduct(t, f.db, f.node, orgID, testenv.ProductFixture{Code: "P2", Quantity: 9})
	kit := testenv.SeedKit(t, f.db, f.node, orgID, "A", "50.00", map[int64]int64{p1.ID: 2, p2.ID: 3})

	result, err := f.debit(t, []domain.Line{kitLine(kit.ID, 2)})
	require.NoError(t, err)
	require.True(t, result.OK())
	assert.Equal(t, int64(10), result.Units())

	assert.Equal(t, int64(6), testenv.StockOf(t, f.db, p1.ID))
	assert.Equal(t, int64(3), testenv.StockOf(t, f.db, p2.ID))

	var movements []domain.StockMovement
	require.NoError(t, f.db.Order("product_id").Find(&movements).Error)
	require.Len(t, movements, 2)
	for _, m := range movements {
		assert.Equal(t, domain.MovementOut, m.Type)
		assert.Equal(t, domain.ReferenceOrder, m.ReferenceType)
		require.NotNil(t, m.ReferenceID)
		assert.Equal(t, int64(77), *m.ReferenceID)
	}
	assert.Equal(t, int64(6), movements[0].BalanceAfter)
	assert.Equal(t, int64(3), movements[1].BalanceAfter)
}

func TestDebitShortageWritesNothing(t *testing.T) {
	f := newFixture(t)
	p1 := testenv.SeedProduct(t, f.db, f.node, orgID, testenv.ProductFixture{Code: "P1", Quantity: 10})
	p2 := testenv.SeedProduct(t, f.db, f.node, orgID, testenv.ProductFixture{Code: "P2", Quantity: 9})
	kit := testenv.SeedKit(t, f.db, f.node, orgID, "A", "50.00", map[int64]int64{p1.ID: 2, p2.ID: 3})

	result, err := f.debit(t, []domain.Line{kitLine(kit.ID, 4)})
	require.NoError(t, err)
	require.False(t, result.OK())
	require.Len(t, result.Shortages, 1)
	short := result.Shortages[0]
	assert.Equal(t, strconv.FormatInt(p2.ID, 10), short.ProductID)
	assert.Equal(t, int64(12), short.Required)
	assert.Equal(t, int64(9), short.Available)
	assert.Equal(t, int64(3), short.Missing)

	assert.Equal(t, int64(10), testenv.StockOf(t, f.db, p1.ID))
	assert.Equal(t, int64(9), testenv.StockOf(t, f.db, p2.ID))
	assert.Zero(t, testenv.CountRows(t, f.db, "stock_movements"))
}

func TestDebitChecksAggregatedDemand(t *testing.T) {
	f := newFixture(t)
	p := testenv.SeedProduct(t, f.db, f.node, orgID, testenv.ProductFixture{Code: "P", Quantity: 4})
	kit := testenv.SeedKit(t, f.db, f.node, orgID, "A", "10.00", map[int64]int64{p.ID: 2})

	// 2 through the kit plus 3 direct: each fits alone, together they do not.
	result, err := f.debit(t, []domain.Line{kitLine(kit.ID, 1), productLine(p.ID, 3)})
	require.NoError(t, err)
	require.Len(t, result.Shortages, 1)
	assert.Equal(t, int64(5), result.Shortages[0].Required)
	assert.Equal(t, int64(4), testenv.StockOf(t, f.db, p.ID))
}

func TestDebitRejectsKitWithoutComponents(t *testing.T) {
	f := newFixture(t)
	kit := testenv.SeedKit(t, f.db, f.node, orgID, "EMPTY", "1.00", nil)

	_, err := f.debit(t, []domain.Line{kitLine(kit.ID, 1)})
	assert.ErrorIs(t, err, domain.ErrKitWithoutComponents)
}

func TestDebitUnknownProduct(t *testing.T) {
	f := newFixture(t)
	_, err := f.debit(t, []domain.Line{productLine(12345, 1)})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestConcurrentDebitsNeverOversell(t *testing.T) {
	f := newFixture(t)
	p := testenv.SeedProduct(t, f.db, f.node, orgID, testenv.ProductFixture{Code: "P", Quantity: 10})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		short   int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.debit(t, []domain.Line{productLine(p.ID, 6)})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				return
			}
			if result.OK() {
				success++
			} else {
				short++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, 1, short)
	assert.Equal(t, int64(4), testenv.StockOf(t, f.db, p.ID))
}

func TestCheckPreviewsWithoutWriting(t *testing.T) {
	f := newFixture(t)
	p := testenv.SeedProduct(t, f.db, f.node, orgID, testenv.ProductFixture{Code: "P", Quantity: 3})

	missing, err := f.svc.Check(f.ctx, orgID, []domain.Line{productLine(p.ID, 5)})
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, int64(2), missing[0].Missing)

	missing, err = f.svc.Check(f.ctx, orgID, []domain.Line{productLine(p.ID, 3)})
	require.NoError(t, err)
	assert.Empty(t, missing)
	assert.Equal(t, int64(3), testenv.StockOf(t, f.db, p.ID))
}

func TestAdjustMovements(t *testing.T) {
	f := newFixture(t)
	p := testenv.SeedProduct(t, f.db, f.node, orgID, testenv.ProductFixture{Code: "P", Quantity: 5})
	id := strconv.FormatInt(p.ID, 10)

	m, err := f.svc.Adjust(f.ctx, "user:1", domain.AdjustRequest{ProductID: id, Type: domain.MovementIn, Quantity: 7, Note: "restock"})
	require.NoError(t, err)
	assert.Equal(t, int64(12), m.BalanceAfter)

	m, err = f.svc.Adjust(f.ctx, "user:1", domain.AdjustRequest{ProductID: id, Type: domain.MovementOut, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(10), m.BalanceAfter)

	m, err = f.svc.Adjust(f.ctx, "user:1", domain.AdjustRequest{ProductID: id, Type: domain.MovementAdjust, Quantity: 4})
	require.NoError(t, err)
	assert.Equal(t, int64(4), m.BalanceAfter)
	assert.Equal(t, int64(-6), m.Quantity)
	require.NotNil(t, m.ActorID)
	assert.Equal(t, "1", *m.ActorID)

	assert.Equal(t, int64(4), testenv.StockOf(t, f.db, p.ID))
	assert.Equal(t, int64(3), testenv.CountRows(t, f.db, "stock_movements", "product_id = ?", p.ID))
	assert.Contains(t, f.authz.Calls, "user:1 stock.adjust")
}

func TestAdjustNeverGoesBelowZero(t *testing.T) {
	f := newFixture(t)
	p := testenv.SeedProduct(t, f.db, f.node, orgID, testenv.ProductFixture{Code: "P", Quantity: 2})
	id := strconv.FormatInt(p.ID, 10)

	_, err := f.svc.Adjust(f.ctx, "user:1", domain.AdjustRequest{ProductID: id, Type: domain.MovementOut, Quantity: 3})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	_, err = f.svc.Adjust(f.ctx, "user:1", domain.AdjustRequest{ProductID: id, Type: domain.MovementAdjust, Quantity: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = f.svc.Adjust(f.ctx, "user:1", domain.AdjustRequest{ProductID: id, Type: "teleport", Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidMovementType)

	assert.Equal(t, int64(2), testenv.StockOf(t, f.db, p.ID))
	assert.Zero(t, testenv.CountRows(t, f.db, "stock_movements"))
}

func TestAdjustRequiresPermission(t *testing.T) {
	f := newFixture(t)
	p := testenv.SeedProduct(t, f.db, f.node, orgID, testenv.ProductFixture{Code: "P", Quantity: 2})
	f.authz.Deny["stock.adjust"] = true

	_, err := f.svc.Adjust(f.ctx, "user:2", domain.AdjustRequest{ProductID: strconv.FormatInt(p.ID, 10), Type: domain.MovementIn, Quantity: 1})
	assert.Error(t, err)
	assert.Equal(t, int64(2), testenv.StockOf(t, f.db, p.ID))
}

func TestListMovementsPaginatesNewestFirst(t *testing.T) {
	f := newFixture(t)
	p := testenv.SeedProduct(t, f.db, f.node, orgID, testenv.ProductFixture{Code: "P", Quantity: 0})
	id := strconv.FormatInt(p.ID, 10)
	for i := 0; i < 3; i++ {
		_, err := f.svc.Adjust(f.ctx, "user:1", domain.AdjustRequest{ProductID: id, Type: domain.MovementIn, Quantity: 1})
		require.NoError(t, err)
	}

	req := domain.ListMovementsRequest{ProductID: id}
	req.PageSize = 2
	page, err := f.svc.ListMovements(f.ctx, req)
	require.NoError(t, err)
	require.Len(t, page.Movements, 2)
	assert.Equal(t, int64(3), page.Movements[0].BalanceAfter)
	assert.Equal(t, int64(2), page.Movements[1].BalanceAfter)
	require.NotEmpty(t, page.NextPageToken)

	req.PageToken = page.NextPageToken
	page, err = f.svc.ListMovements(f.ctx, req)
	require.NoError(t, err)
	require.Len(t, page.Movements, 1)
	assert.Equal(t, int64(1), page.Movements[0].BalanceAfter)
}

func TestStockWritesStampUpdatedAtFromClock(t *testing.T) {
	f := newFixture(t)
	p := testenv.SeedProduct(t, f.db, f.node, orgID, testenv.ProductFixture{Code: "P", Quantity: 5})

	updatedAt := func() time.Time {
		t.Helper()
		var got productdomain.Product
		require.NoError(t, f.db.Where("id = ?", p.ID).Take(&got).Error)
		return got.UpdatedAt.UTC()
	}

	f.clock.Advance(time.Hour)
	_, err := f.debit(t, []domain.Line{productLine(p.ID, 2)})
	require.NoError(t, err)
	assert.True(t, updatedAt().Equal(testenv.Epoch.Add(time.Hour)))

	f.clock.Advance(time.Hour)
	_, err = f.svc.Adjust(f.ctx, "user:1", domain.AdjustRequest{ProductID: strconv.FormatInt(p.ID, 10), Type: domain.MovementIn, Quantity: 1})
	require.NoError(t, err)
	assert.True(t, updatedAt().Equal(testenv.Epoch.Add(2*time.Hour)))
}
