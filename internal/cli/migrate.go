package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fastygo/taskboard/internal/config"
	"github.com/fastygo/taskboard/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply storage migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Parse(envFiles...)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if err := cfg.ValidateStorage(); err != nil {
			return err
		}

		log, err := newLogger(cfg)
		if err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		defer log.Sync()

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Context.ShutdownTimeout)
		defer cancel()
		return storage.Migrate(ctx, cfg, log)
	},
}
