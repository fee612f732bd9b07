package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/smallbiznis/recurra/internal/billingschedule"
	"github.com/smallbiznis/recurra/internal/clock"
	"github.com/smallbiznis/recurra/internal/commerce"
	"github.com/smallbiznis/recurra/internal/config"
	"github.com/smallbiznis/recurra/internal/dispatch"
	"github.com/smallbiznis/recurra/internal/dunning"
	"github.com/smallbiznis/recurra/internal/job"
	"github.com/smallbiznis/recurra/internal/jobs"
	"github.com/smallbiznis/recurra/internal/lock"
	"github.com/smallbiznis/recurra/internal/migration"
	"github.com/smallbiznis/recurra/internal/observability"
	"github.com/smallbiznis/recurra/internal/providers/email"
	"github.com/smallbiznis/recurra/internal/server"
	"github.com/smallbiznis/recurra/pkg/db"
)

// Worker serves the execute callback and webhooks only; a separate poller
// process owns the hourly loop.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		lock.Module,

		commerce.Module,
		dispatch.Module,
		job.Module,
		jobs.Module,
		billingschedule.Module,
		dunning.Module,
		email.Module,

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
