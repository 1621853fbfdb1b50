package main

import (
	"context"
	"fmt"

	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/config"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/store"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/pkg/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the db",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, done, err := setup()
		if err != nil {
			return fmt.Errorf("reading configuration: %w", err)
		}
		defer done()
		defer zap.S().Info("Db migrated")

		zap.S().Info("Initializing data store")
		db, err := store.InitDB(cfg)
		if err != nil {
			return fmt.Errorf("initializing data store: %w", err)
		}

		s := store.NewStore(db)
		defer s.Close()

		return migrate(cmd.Context(), cfg, db, s)
	},
}

// migrate runs the goose and river migrations on postgres and falls back to
// the model migration on sqlite.
func migrate(ctx context.Context, cfg *config.Config, db *gorm.DB, s store.Store) error {
	if cfg.Database.Type != "pgsql" {
		if err := s.InitialMigration(ctx); err != nil {
			return fmt.Errorf("running initial migration: %w", err)
		}
		return nil
	}

	pool, err := pgxpool.New(ctx, store.PostgresDSN(cfg))
	if err != nil {
		return fmt.Errorf("failed to create pgx pool: %w", err)
	}
	defer pool.Close()

	if err := migrations.MigrateStore(db, cfg.Service.MigrationFolder, pool); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}
