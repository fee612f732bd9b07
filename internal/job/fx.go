package job

import (
	"github.com/smallbiznis/recurra/internal/dispatch"
	"github.com/smallbiznis/recurra/internal/job/runner"
	"go.uber.org/fx"
)

var Module = fx.Module("job",
	fx.Provide(runner.NewRegistry),
	fx.Provide(func(r *runner.Registry) dispatch.Executor { return r }),
	fx.Provide(runner.New),
)
