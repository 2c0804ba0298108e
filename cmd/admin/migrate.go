package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"genstudio/internal/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Apply the embedded goose migrations to DATABASE_URL.

Applied versions are tracked in goose_db_version, so the command can run on every deploy.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbURL, err := databaseURL()
		if err != nil {
			return err
		}
		db, err := sql.Open("postgres", dbURL)
		if err != nil {
			return fmt.Errorf("sql.Open: %w", err)
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
		if err := migrations.Up(ctx, db); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}
