package db

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kitstock/pkg/rls"
	"gorm.io/gorm"
)

// TenantTx runs fn inside a transaction scoped to orgID. On Postgres the
// transaction carries app.current_org_id so row-level security policies apply.
func TenantTx(ctx context.Context, conn *gorm.DB, orgID snowflake.ID, fn func(tx *gorm.DB) error) error {
	return conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			if err := rls.WithTenant(tx, int64(orgID)); err != nil {
				return err
			}
		}
		return fn(tx)
	})
}
