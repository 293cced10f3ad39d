package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/careops/valuemed/internal/config"
	"github.com/careops/valuemed/internal/seed"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}

		if err := RunMigrations(sqlDB); err != nil {
			return err
		}

		if cfg.SeedDemoData {
			return seed.EnsureDemoHospital(conn)
		}
		return nil
	}),
)
