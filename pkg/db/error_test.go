package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.False(t, IsDuplicateKeyErr(nil))
	assert.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicateKeyErr(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.True(t, IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: products.org_id, products.code")))
	assert.False(t, IsDuplicateKeyErr(errors.New("connection refused")))
}

func TestIsLockConflictErr(t *testing.T) {
	assert.False(t, IsLockConflictErr(nil))
	assert.True(t, IsLockConflictErr(&pgconn.PgError{Code: "40P01"}))
	assert.True(t, IsLockConflictErr(fmt.Errorf("debit: %w", &pgconn.PgError{Code: "40001"})))
	assert.False(t, IsLockConflictErr(&pgconn.PgError{Code: "23505"}))
}
