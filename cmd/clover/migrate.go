package main

import (
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long: `Apply the migrations in DB_MIGRATION_FOLDER_PATH.

DB_MIGRATION_VERSION pins a target version and DB_MIGRATION_FORCE clears a dirty version.`,
		RunE: runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, sync, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer sync()

	a := &app{cfg: cfg, logger: logger}
	if err := a.startDatabase(cmd.Context()); err != nil {
		return err
	}
	defer a.db.Close()

	return a.migrate(cmd.Context())
}
