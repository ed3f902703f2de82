package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paybridge/internal/config"
	"github.com/smallbiznis/paybridge/internal/logger"
	"github.com/smallbiznis/paybridge/internal/migration"
	"github.com/smallbiznis/paybridge/internal/observability"
	"github.com/smallbiznis/paybridge/internal/server"
	"github.com/smallbiznis/paybridge/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
