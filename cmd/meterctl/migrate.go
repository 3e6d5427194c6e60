package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"meterbot/internal/log"
	"meterbot/internal/storage"
)

func newMigrateCmd(a *app) *cobra.Command {
	var statusOnly bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending journal migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.DataBackend != "sqlite" {
				return fmt.Errorf("migrate requires the sqlite backend, got %q", a.cfg.DataBackend)
			}
			if !statusOnly {
				if err := storage.RunMigrations(a.cfg.SQLiteDBPath); err != nil {
					return err
				}
			}
			version, dirty, err := storage.MigrationVersion(a.cfg.SQLiteDBPath)
			if err != nil {
				return err
			}
			a.logger.Info("Journal schema",
				log.FieldOperation, "migrate",
				"db_path", a.cfg.SQLiteDBPath,
				"version", version,
				"dirty", dirty)
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", version, dirty)
			return nil
		},
	}
	cmd.Flags().BoolVar(&statusOnly, "status", false, "only print the current schema version")
	return cmd
}
