package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	scheduledomain "github.com/smallbiznis/recurra/internal/billingschedule/domain"
	"github.com/smallbiznis/recurra/internal/config"
	"github.com/smallbiznis/recurra/internal/dunning/domain"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// sqlite is for local hacking and tests; gorm owns its schema.
			return conn.AutoMigrate(
				&scheduledomain.MerchantBillingSchedule{},
				&domain.DunningTracker{},
				&domain.MerchantSettings{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
