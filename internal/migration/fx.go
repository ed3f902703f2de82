package migration

import (
	"strings"

	"github.com/smallbiznis/paybridge/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		// The embedded migrations target postgres; other dialects manage
		// their schema externally.
		if strings.ToLower(cfg.DBType) != "postgres" {
			log.Named("migrations").Info("skipping embedded migrations",
				zap.String("db_type", cfg.DBType),
			)
			return nil
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
