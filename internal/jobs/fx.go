package jobs

import (
	"go.uber.org/fx"

	scheduledomain "github.com/smallbiznis/recurra/internal/billingschedule/domain"
	dunningdomain "github.com/smallbiznis/recurra/internal/dunning/domain"
	"github.com/smallbiznis/recurra/internal/job/runner"
)

var Module = fx.Module("jobs",
	fx.Provide(
		NewEnqueuer,
		func(e *Enqueuer) scheduledomain.BillingJobEnqueuer { return e },
		func(e *Enqueuer) dunningdomain.RebillEnqueuer { return e },
		func(e *Enqueuer) dunningdomain.DigestEnqueuer { return e },
	),
	fx.Invoke(RegisterAll),
)

// RegisterAll installs the full task table into the registry at startup.
func RegisterAll(r *runner.Registry, d Deps) {
	r.Register(Registrations(d)...)
}
