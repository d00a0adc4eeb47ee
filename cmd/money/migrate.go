package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/follow-the-money/internal/config"
	"github.com/Veraticus/follow-the-money/internal/storage"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version and seed
the default category vocabulary.`,
		RunE: runMigrate,
	}

	cmd.Flags().Bool("skip-seed", false, "Apply schema migrations without seeding default categories")

	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	skipSeed, _ := cmd.Flags().GetBool("skip-seed")

	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/money/money.db"
	}
	dbPath = config.ExpandPath(dbPath)

	slog.Info("Running database migrations", "database", dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if !skipSeed {
		if err := store.SeedDefaultCategories(ctx); err != nil {
			return fmt.Errorf("failed to seed categories: %w", err)
		}
		slog.Info("Seeded default categories")
	}

	slog.Info("Database migrations completed", "schema_version", storage.ExpectedSchemaVersion)
	return nil
}
