package service

import (
	"context"
	"strconv"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/kitstock/internal/clock"
	inventoryrepository "github.com/smallbiznis/kitstock/internal/inventory/repository"
	inventoryservice "github.com/smallbiznis/kitstock/internal/inventory/service"
	"github.com/smallbiznis/kitstock/internal/kit/domain"
	"github.com/smallbiznis/kitstock/internal/kit/repository"
	"github.com/smallbiznis/kitstock/internal/orgcontext"
	"github.com/smallbiznis/kitstock/internal/testenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const orgID = int64(10)

func newTestService(t *testing.T) (*gorm.DB, *snowflake.Node, domain.Service, context.Context) {
	t.Helper()
	conn := testenv.OpenDB(t)
	node := testenv.Node(t)
	clk := clock.NewFakeClock(testenv.Epoch)

	inventory := inventoryservice.New(inventoryservice.Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  inventoryrepository.Provide(),
		Authz: testenv.AllowAll(),
	})
	svc := New(Params{
		DB:        conn,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clk,
		Repo:      repository.Provide(),
		Inventory: inventory,
	})
	return conn, node, svc, orgcontext.WithOrgID(context.Background(), orgID)
}

func id(v int64) string { return strconv.FormatInt(v, 10) }

func TestCreateKitReturnsAvailability(t *testing.T) {
	conn, node, svc, ctx := newTestService(t)
	p1 := testenv.SeedProduct(t, conn, node, orgID, testenv.ProductFixture{Code: "P1", Quantity: 10})
	p2 := testenv.SeedProduct(t, conn, node, orgID, testenv.ProductFixture{Code: "P2", Quantity: 9})

	kit, err := svc.Create(ctx, domain.CreateRequest{
		Name:      "Kit Churrasco",
		SalePrice: decimal.RequireFromString("89.90"),
		Components: []domain.ComponentInput{
			{ProductID: id(p1.ID), Quantity: 2},
			{ProductID: id(p2.ID), Quantity: 3},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "kit-churrasco", kit.Code)
	assert.Equal(t, int64(3), kit.AvailableCount)
	assert.Equal(t, []string{id(p2.ID)}, kit.LimitingComponents)
	require.Len(t, kit.Components, 2)
	assert.Equal(t, int64(2), kit.Components[0].RequiredPerKit)
	assert.Equal(t, int64(2), testenv.CountRows(t, conn, "kit_components"))
}

func TestCreateKitValidatesComponents(t *testing.T) {
	conn, node, svc, ctx := newTestService(t)
	p := testenv.SeedProduct(t, conn, node, orgID, testenv.ProductFixture{Code: "P", Quantity: 1})
	foreign := testenv.SeedProduct(t, conn, node, 99, testenv.ProductFixture{Code: "F", Quantity: 1})

	cases := []struct {
		name       string
		components []domain.ComponentInput
		want       error
	}{
		{"no components", nil, domain.ErrNoComponents},
		{"zero quantity", []domain.ComponentInput{{ProductID: id(p.ID), Quantity: 0}}, domain.ErrInvalidComponentQuantity},
		{"negative quantity", []domain.ComponentInput{{ProductID: id(p.ID), Quantity: -2}}, domain.ErrInvalidComponentQuantity},
		{"duplicate product", []domain.ComponentInput{{ProductID: id(p.ID), Quantity: 1}, {ProductID: id(p.ID), Quantity: 2}}, domain.ErrDuplicateComponent},
		{"other organization", []domain.ComponentInput{{ProductID: id(foreign.ID), Quantity: 1}}, domain.ErrProductNotFound},
		{"bad id", []domain.ComponentInput{{ProductID: "x", Quantity: 1}}, domain.ErrInvalidID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, domain.CreateRequest{Code: "K", Name: "K", Components: tc.components})
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Zero(t, testenv.CountRows(t, conn, "kits"))
	assert.Zero(t, testenv.CountRows(t, conn, "kit_components"))
}

func TestCreateKitDuplicateCode(t *testing.T) {
	conn, node, svc, ctx := newTestService(t)
	p := testenv.SeedProduct(t, conn, node, orgID, testenv.ProductFixture{Code: "P", Quantity: 1})
	components := []domain.ComponentInput{{ProductID: id(p.ID), Quantity: 1}}

	_, err := svc.Create(ctx, domain.CreateRequest{Code: "K", Name: "K", Components: components})
	require.NoError(t, err)
	_, err = svc.Create(ctx, domain.CreateRequest{Code: "K", Name: "Other", Components: components})
	assert.ErrorIs(t, err, domain.ErrDuplicateCode)
	assert.Equal(t, int64(1), testenv.CountRows(t, conn, "kit_components"))
}

func TestReplaceComponentsSwapsBOM(t *testing.T) {
	conn, node, svc, ctx := newTestService(t)
	p1 := testenv.SeedProduct(t, conn, node, orgID, testenv.ProductFixture{Code: "P1", Quantity: 10})
	p2 := testenv.SeedProduct(t, conn, node, orgID, testenv.ProductFixture{Code: "P2", Quantity: 4})

	kit, err := svc.Create(ctx, domain.CreateRequest{Code: "K", Name: "K", Components: []domain.ComponentInput{{ProductID: id(p1.ID), Quantity: 5}}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), kit.AvailableCount)

	kit, err = svc.ReplaceComponents(ctx, kit.ID, []domain.ComponentInput{{ProductID: id(p2.ID), Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, int64(4), kit.AvailableCount)
	require.Len(t, kit.Components, 1)
	assert.Equal(t, id(p2.ID), kit.Components[0].ProductID)

	_, err = svc.ReplaceComponents(ctx, kit.ID, nil)
	assert.ErrorIs(t, err, domain.ErrNoComponents)
	assert.Equal(t, int64(1), testenv.CountRows(t, conn, "kit_components"))
}

func TestListAndArchiveKits(t *testing.T) {
	conn, node, svc, ctx := newTestService(t)
	p := testenv.SeedProduct(t, conn, node, orgID, testenv.ProductFixture{Code: "P", Quantity: 6})
	components := []domain.ComponentInput{{ProductID: id(p.ID), Quantity: 2}}

	a, err := svc.Create(ctx, domain.CreateRequest{Code: "A", Name: "Alpha", Components: components})
	require.NoError(t, err)
	_, err = svc.Create(ctx, domain.CreateRequest{Code: "B", Name: "Beta", Components: components})
	require.NoError(t, err)

	archived, err := svc.Archive(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, archived.Active)
	assert.Equal(t, int64(3), archived.AvailableCount)

	active := true
	kits, err := svc.List(ctx, domain.ListRequest{Active: &active})
	require.NoError(t, err)
	require.Len(t, kits, 1)
	assert.Equal(t, "B", kits[0].Code)
	assert.Equal(t, int64(3), kits[0].AvailableCount)

	all, err := svc.List(ctx, domain.ListRequest{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGetKitNotFound(t *testing.T) {
	_, _, svc, ctx := newTestService(t)
	_, err := svc.Get(ctx, "42")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
