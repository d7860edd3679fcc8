package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/smallbiznis/payrelay/internal/clock"
	"github.com/smallbiznis/payrelay/internal/config"
	"github.com/smallbiznis/payrelay/internal/events"
	"github.com/smallbiznis/payrelay/internal/gateway"
	"github.com/smallbiznis/payrelay/internal/lock"
	"github.com/smallbiznis/payrelay/internal/migration"
	"github.com/smallbiznis/payrelay/internal/notification"
	"github.com/smallbiznis/payrelay/internal/observability"
	"github.com/smallbiznis/payrelay/internal/payment"
	"github.com/smallbiznis/payrelay/internal/recordstore"
	"github.com/smallbiznis/payrelay/internal/redisclient"
	"github.com/smallbiznis/payrelay/internal/server"
	"github.com/smallbiznis/payrelay/internal/sideeffect"
	"github.com/smallbiznis/payrelay/internal/tenant"
	"github.com/smallbiznis/payrelay/pkg/db"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		clock.Module,
		db.Module,
		redisclient.Module,
		migration.Module,

		// Collaborators
		tenant.Module,
		recordstore.Module,
		notification.Module,
		gateway.Module,
		events.Module,
		lock.Module,
		sideeffect.Module,

		payment.Module,
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
