package main

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/smallbiznis/recurra/internal/billingschedule"
	scheduledomain "github.com/smallbiznis/recurra/internal/billingschedule/domain"
	"github.com/smallbiznis/recurra/internal/clock"
	"github.com/smallbiznis/recurra/internal/commerce"
	"github.com/smallbiznis/recurra/internal/config"
	"github.com/smallbiznis/recurra/internal/dispatch"
	"github.com/smallbiznis/recurra/internal/dunning"
	"github.com/smallbiznis/recurra/internal/job"
	"github.com/smallbiznis/recurra/internal/jobs"
	"github.com/smallbiznis/recurra/internal/lock"
	"github.com/smallbiznis/recurra/internal/observability"
	"github.com/smallbiznis/recurra/internal/providers/email"
	"github.com/smallbiznis/recurra/pkg/db"
)

// Poller runs only the hourly evaluation loop. No HTTP surface; it hands
// work to the queue and exits on signal.
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

		fx.Invoke(StartPoller),
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

func StartPoller(lc fx.Lifecycle, svc scheduledomain.Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go svc.RunForever(context.Background())
			return nil
		},
	})
}
