package billingschedule

import (
	"github.com/smallbiznis/recurra/internal/billingschedule/repository"
	"github.com/smallbiznis/recurra/internal/billingschedule/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billingschedule",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
