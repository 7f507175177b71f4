package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on startup, but only for a dev
// environment with STOREFRONT_AUTO_MIGRATE set. Every other environment runs
// cmd/migrate explicitly.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	runner, err := NewRunner(sqlDB, EmbeddedSource(), logg)
	if err != nil {
		return err
	}

	ctx = logg.WithField(ctx, "migrations", "embedded")
	logg.Info(ctx, "dev auto-migrate starting")
	if err := runner.Up(ctx); err != nil {
		return err
	}
	logg.Info(ctx, "dev auto-migrate finished")
	return nil
}
