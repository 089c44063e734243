package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/moodmix/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the example configuration to --config.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = "config.toml"
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("✓ Wrote %s\n", path)
	r.writePlain("\nNext steps:\n")
	r.writePlain("1. Set %s, %s and %s (in the file, the environment, or .env)\n",
		shared.EnvClientID, shared.EnvClientSecret, shared.EnvRefreshToken)
	r.writePlain("2. Run 'moodmix token' to check the credentials\n")
	return nil
}

// SetupDatabase creates the track cache database named by cache.path and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	path := r.cfg().Cache.Path
	r.logger.Info("initializing database", "path", path)

	if _, err := r.openCache(); err != nil {
		return fmt.Errorf("failed to set up cache: %w", err)
	}

	r.logger.Infof("setup complete for database: %v", path)
	r.writePlain("✓ Track cache ready at %s\n", path)
	return nil
}
