package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/careops/valuemed/internal/calculation"
	"github.com/careops/valuemed/internal/clock"
	"github.com/careops/valuemed/internal/config"
	"github.com/careops/valuemed/internal/department"
	"github.com/careops/valuemed/internal/logger"
	"github.com/careops/valuemed/internal/migration"
	"github.com/careops/valuemed/internal/modeltree"
	"github.com/careops/valuemed/internal/observability"
	"github.com/careops/valuemed/internal/orientation"
	"github.com/careops/valuemed/internal/server"
	"github.com/careops/valuemed/internal/worker"
	"github.com/careops/valuemed/internal/workflow"
	"github.com/careops/valuemed/pkg/db"
	"github.com/careops/valuemed/pkg/telemetry"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		clock.Module,
		observability.Module,
		telemetry.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,

		department.Module,
		modeltree.Module,
		workflow.Module,
		orientation.Module,
		calculation.Module,
		worker.Module,
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
