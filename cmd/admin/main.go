package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"genstudio/internal/infra"
)

var rootCmd = &cobra.Command{
	Use:           "admin",
	Short:         "Operational commands for genstudio",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
}

func main() {
	rootCmd.AddCommand(migrateCmd, usageCmd, tokenCmd, sqllintCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func databaseURL() (string, error) {
	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		return "", errors.New("DATABASE_URL is required")
	}
	return dbURL, nil
}

// openRunner connects a pgx pool and wraps it in a logging SQL runner.
func openRunner(ctx context.Context, name string) (*infra.SQLRunner, func(), error) {
	dbURL, err := databaseURL()
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	logger := infra.NewLogger("cli").With().Str("cmd", name).Logger()
	return infra.NewSQLRunner(pool, logger), pool.Close, nil
}
