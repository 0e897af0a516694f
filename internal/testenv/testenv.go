// Package testenv builds in-memory databases and catalog fixtures for
// service tests.
package testenv

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/kitstock/internal/authorization"
	kitdomain "github.com/smallbiznis/kitstock/internal/kit/domain"
	"github.com/smallbiznis/kitstock/internal/migration"
	productdomain "github.com/smallbiznis/kitstock/internal/product/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Epoch is the instant fake clocks start at in service tests.
var Epoch = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// OpenDB returns a migrated in-memory database. A single connection keeps
// every transaction serialized, the way row locks serialize them on Postgres.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, migration.AutoMigrate(db))
	return db
}

func Node(t testing.TB) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

// Authz is an authorization.Service fake that allows everything except the
// actions listed in Deny, and records every call.
type Authz struct {
	mu    sync.Mutex
	Deny  map[string]bool
	Calls []string
}

func AllowAll() *Authz {
	return &Authz{Deny: map[string]bool{}}
}

func (a *Authz) Authorize(_ context.Context, actor string, _ string, _ string, action string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Calls = append(a.Calls, actor+" "+action)
	if a.Deny[action] {
		return authorization.ErrForbidden
	}
	return nil
}

func (a *Authz) AssignRole(context.Context, int64, int64, string) error {
	return nil
}

type ProductFixture struct {
	Code     string
	Quantity int64
	Price    string
	Inactive bool
}

// SeedProduct inserts a product row directly, bypassing the product service.
func SeedProduct(t testing.TB, db *gorm.DB, node *snowflake.Node, orgID int64, f ProductFixture) productdomain.Product {
	t.Helper()
	price := decimal.Zero
	if f.Price != "" {
		price = decimal.RequireFromString(f.Price)
	}
	p := productdomain.Product{
		ID:        node.Generate().Int64(),
		OrgID:     orgID,
		Code:      f.Code,
		Name:      "Product " + f.Code,
		Unit:      "un",
		UnitPrice: price,
		Quantity:  f.Quantity,
		Active:    !f.Inactive,
		CreatedAt: Epoch,
		UpdatedAt: Epoch,
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

// SeedKit inserts a kit and its bill of materials (product id to per-kit quantity).
func SeedKit(t testing.TB, db *gorm.DB, node *snowflake.Node, orgID int64, code, price string, bom map[int64]int64) kitdomain.Kit {
	t.Helper()
	k := kitdomain.Kit{
		ID:        node.Generate().Int64(),
		OrgID:     orgID,
		Code:      code,
		Name:      "Kit " + code,
		SalePrice: decimal.RequireFromString(price),
		Active:    true,
		CreatedAt: Epoch,
		UpdatedAt: Epoch,
	}
	require.NoError(t, db.Create(&k).Error)
	for productID, qty := range bom {
		require.NoError(t, db.Create(&kitdomain.Component{
			ID:        node.Generate().Int64(),
			OrgID:     orgID,
			KitID:     k.ID,
			ProductID: productID,
			Quantity:  qty,
			CreatedAt: Epoch,
		}).Error)
	}
	return k
}

// StockOf reads the on-hand quantity of a product.
func StockOf(t testing.TB, db *gorm.DB, productID int64) int64 {
	t.Helper()
	var p productdomain.Product
	require.NoError(t, db.First(&p, "id = ?", productID).Error)
	return p.Quantity
}

// CountRows counts rows of table matching the optional where clause.
func CountRows(t testing.TB, db *gorm.DB, table string, where ...any) int64 {
	t.Helper()
	var count int64
	stmt := db.Table(table)
	if len(where) > 0 {
		stmt = stmt.Where(where[0], where[1:]...)
	}
	require.NoError(t, stmt.Count(&count).Error)
	return count
}
