package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kitstock/internal/clock"
	"github.com/smallbiznis/kitstock/internal/config"
	"github.com/smallbiznis/kitstock/internal/migration"
	"github.com/smallbiznis/kitstock/internal/observability"
	"github.com/smallbiznis/kitstock/internal/server"
	"github.com/smallbiznis/kitstock/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
