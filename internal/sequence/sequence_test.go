package sequence

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/kitstock/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestGenerator(t *testing.T) (*Generator, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&Sequence{}))

	gen := New(Params{Policy: config.StaticInventoryPolicy(config.DefaultInventoryPolicy())})
	return gen, db
}

func next(t *testing.T, gen *Generator, db *gorm.DB, orgID int64, scope Scope, at time.Time) string {
	t.Helper()
	var number string
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		number, err = gen.Next(context.Background(), tx, orgID, scope, at)
		return err
	})
	require.NoError(t, err)
	return number
}

func TestNextIsMonotonicPerScope(t *testing.T) {
	gen, db := newTestGenerator(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, "PED-2026-0001", next(t, gen, db, 1, ScopeOrder, at))
	assert.Equal(t, "PED-2026-0002", next(t, gen, db, 1, ScopeOrder, at))
	assert.Equal(t, "ORC-2026-0001", next(t, gen, db, 1, ScopeQuote, at))
	assert.Equal(t, "VND-2026-0001", next(t, gen, db, 1, ScopeSale, at))
}

func TestNextRestartsEachYearAndOrganization(t *testing.T) {
	gen, db := newTestGenerator(t)
	y2026 := time.Date(2026, 12, 31, 23, 0, 0, 0, time.UTC)
	y2027 := time.Date(2027, 1, 1, 0, 30, 0, 0, time.UTC)

	assert.Equal(t, "PED-2026-0001", next(t, gen, db, 1, ScopeOrder, y2026))
	assert.Equal(t, "PED-2027-0001", next(t, gen, db, 1, ScopeOrder, y2027))
	assert.Equal(t, "PED-2026-0001", next(t, gen, db, 2, ScopeOrder, y2026))
	assert.Equal(t, "PED-2026-0002", next(t, gen, db, 1, ScopeOrder, y2026))
}

func TestNextRolledBackNumberIsReused(t *testing.T) {
	gen, db := newTestGenerator(t)
	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := gen.Next(context.Background(), tx, 1, ScopeOrder, at)
		require.NoError(t, err)
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	assert.Equal(t, "PED-2026-0001", next(t, gen, db, 1, ScopeOrder, at))
}

func TestNextRejectsInvalidInput(t *testing.T) {
	gen, db := newTestGenerator(t)
	at := time.Now()

	_, err := gen.Next(context.Background(), nil, 1, ScopeOrder, at)
	assert.ErrorIs(t, err, ErrTransactionRequired)
	_, err = gen.Next(context.Background(), db, 0, ScopeOrder, at)
	assert.ErrorIs(t, err, ErrInvalidOrganization)
	_, err = gen.Next(context.Background(), db, 1, Scope("invoice"), at)
	assert.ErrorIs(t, err, ErrInvalidScope)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "PED-2026-0042", Format("ped", 2026, 42, 4))
	assert.Equal(t, "ORC-2026-12345", Format("ORC", 2026, 12345, 4))
	assert.Equal(t, "VND-2026-0007", Format("VND", 2026, 7, 0))
}

func TestNextStampsCounterWithDocumentTime(t *testing.T) {
	gen, db := newTestGenerator(t)
	at := time.Date(2026, 7, 4, 15, 0, 0, 0, time.UTC)

	next(t, gen, db, 1, ScopeQuote, at)

	var seq Sequence
	require.NoError(t, db.Where("org_id = ? AND scope = ?", 1, string(ScopeQuote)).Take(&seq).Error)
	assert.True(t, seq.UpdatedAt.UTC().Equal(at))
	assert.Equal(t, int64(1), seq.LastValue)
}
