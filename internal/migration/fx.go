package migration

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/clock"
	"github.com/smallbiznis/fieldops/internal/config"
	"github.com/smallbiznis/fieldops/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, node *snowflake.Node, clk clock.Clock, cfg config.Config, log *zap.Logger) error {
		if err := Apply(conn); err != nil {
			return err
		}
		if !cfg.Bootstrap.EnsureAdmin {
			return nil
		}
		created, err := seed.EnsureAdmin(conn, node, clk, cfg.Bootstrap.AdminUsername)
		if err != nil {
			return err
		}
		if created {
			log.Named("migrations").Info("bootstrap admin created", zap.String("username", cfg.Bootstrap.AdminUsername))
		}
		return nil
	}),
)
