package migration

import (
	"context"
	"strings"

	"github.com/smallbiznis/kitstock/internal/authorization"
	"github.com/smallbiznis/kitstock/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Apply),
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Cfg   config.Config
	Log   *zap.Logger
	Authz authorization.Service
}

// Apply migrates the schema and grants the bootstrap admin its role.
func Apply(p Params) error {
	log := p.Log.Named("migration")
	if p.Cfg.RunMigrations {
		if err := migrateSchema(p.DB, p.Cfg.DBType); err != nil {
			return err
		}
		log.Info("schema up to date", zap.String("dialect", p.Cfg.DBType))
	}

	if p.Cfg.DefaultOrgID != 0 && p.Cfg.BootstrapAdminUserID != 0 {
		if err := p.Authz.AssignRole(context.Background(), p.Cfg.DefaultOrgID, p.Cfg.BootstrapAdminUserID, authorization.RoleAdmin); err != nil {
			return err
		}
		log.Info("bootstrap admin ensured",
			zap.Int64("org_id", p.Cfg.DefaultOrgID),
			zap.Int64("user_id", p.Cfg.BootstrapAdminUserID),
		)
	}
	return nil
}

func migrateSchema(conn *gorm.DB, dialect string) error {
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case "", "postgres", "postgresql":
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	default:
		return AutoMigrate(conn)
	}
}
