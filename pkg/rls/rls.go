package rls

import (
	"fmt"

	"gorm.io/gorm"
)

// WithTenant pins the current transaction to a tenant for RLS policies.
func WithTenant(tx *gorm.DB, tenantID int64) error {
	return tx.Exec(
		"SELECT set_config('app.current_org_id', ?, true)",
		fmt.Sprintf("%d", tenantID),
	).Error
}
