package dunning

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/recurra/internal/dunning/repository"
	"github.com/smallbiznis/recurra/internal/dunning/service"
)

var Module = fx.Module("dunning",
	fx.Provide(repository.NewTrackerRepository),
	fx.Provide(repository.NewSettingsRepository),
	fx.Provide(service.NewService),
	fx.Provide(service.NewDigestService),
)
