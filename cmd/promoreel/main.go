package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/promoreel/promoreel/internal/caption"
	"github.com/promoreel/promoreel/internal/clock"
	"github.com/promoreel/promoreel/internal/config"
	"github.com/promoreel/promoreel/internal/ledger"
	"github.com/promoreel/promoreel/internal/migration"
	"github.com/promoreel/promoreel/internal/observability"
	"github.com/promoreel/promoreel/internal/payment"
	"github.com/promoreel/promoreel/internal/product"
	"github.com/promoreel/promoreel/internal/scheduler"
	"github.com/promoreel/promoreel/internal/server"
	"github.com/promoreel/promoreel/internal/user"
	"github.com/promoreel/promoreel/internal/video"
	"github.com/promoreel/promoreel/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional domains
		ledger.Module,
		user.Module,
		product.Module,
		caption.Module,
		video.Module,
		payment.Module,
		scheduler.Module,

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
