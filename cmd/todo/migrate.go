package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sakif/todolist/internal/repository/sqlite"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, closer, err := setup()
			if err != nil {
				return err
			}
			defer closer.Close()

			if err := sqlite.Migrate(cfg.DBPath); err != nil {
				return err
			}
			log.Info("schema up to date", slog.String("database", cfg.DBPath))
			return nil
		},
	})

	var force bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Revert every migration, deleting all data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("refusing to drop all tables without --force")
			}
			cfg, log, closer, err := setup()
			if err != nil {
				return err
			}
			defer closer.Close()

			if err := sqlite.MigrateDown(cfg.DBPath); err != nil {
				return err
			}
			log.Warn("schema reverted", slog.String("database", cfg.DBPath))
			return nil
		},
	}
	down.Flags().BoolVar(&force, "force", false, "confirm that all data will be lost")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, closer, err := setup()
			if err != nil {
				return err
			}
			defer closer.Close()

			version, dirty, err := sqlite.SchemaVersion(cfg.DBPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d", version)
			if dirty {
				fmt.Fprint(cmd.OutOrStdout(), " (dirty)")
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	})

	return cmd
}
