package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/kitstock/internal/audit/domain"
	"github.com/smallbiznis/kitstock/internal/authorization"
	customerdomain "github.com/smallbiznis/kitstock/internal/customer/domain"
	financedomain "github.com/smallbiznis/kitstock/internal/finance/domain"
	inventorydomain "github.com/smallbiznis/kitstock/internal/inventory/domain"
	kitdomain "github.com/smallbiznis/kitstock/internal/kit/domain"
	orderdomain "github.com/smallbiznis/kitstock/internal/order/domain"
	productdomain "github.com/smallbiznis/kitstock/internal/product/domain"
	quotedomain "github.com/smallbiznis/kitstock/internal/quote/domain"
	"github.com/smallbiznis/kitstock/internal/sequence"
	supplierdomain "github.com/smallbiznis/kitstock/internal/supplier/domain"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "migrations"

// RunMigrations applies the embedded Postgres migrations, including the
// row level security policies used by TenantTx.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// Models lists every table owned by the service, parents before children.
func Models() []any {
	return []any{
		&productdomain.Product{},
		&kitdomain.Kit{},
		&kitdomain.Component{},
		&customerdomain.Customer{},
		&supplierdomain.Supplier{},
		&orderdomain.Order{},
		&orderdomain.Item{},
		&quotedomain.Quote{},
		&quotedomain.Item{},
		&inventorydomain.StockMovement{},
		&sequence.Sequence{},
		&financedomain.Sale{},
		&financedomain.Transaction{},
		&authorization.Member{},
		&auditdomain.AuditLog{},
	}
}

// AutoMigrate creates the schema through gorm for dialects without embedded
// SQL migrations (mysql, sqlite).
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
