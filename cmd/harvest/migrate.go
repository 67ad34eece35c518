package main

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/baxromumarov/job-harvester/internal/config"
	"github.com/baxromumarov/job-harvester/internal/store"
)

var (
	migrateConfig string
	migrateSchema string
)

func init() {
	migrateCmd.Flags().StringVarP(&migrateConfig, "config", "c", "", "YAML config file (defaults to $HARVEST_CONFIG)")
	migrateCmd.Flags().StringVar(&migrateSchema, "schema", "", "schema file to apply instead of the bundled one")
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate [--schema path/to/schema.sql]",
	Short: "Creates or updates the Postgres tables.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(migrateConfig)
		if err != nil {
			return err
		}
		if cfg.Store.DatabaseURL == "" {
			return errors.New("DATABASE_URL or store.database_url is required")
		}

		db, err := store.NewStore(cfg.Store.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.RunMigrations(migrateSchema); err != nil {
			return err
		}
		slog.Info("migrations executed successfully")
		return nil
	},
}
