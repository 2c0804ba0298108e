// Package migrations holds the versioned database schema and applies it with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var FS embed.FS

// Up applies every pending migration. goose records applied versions in
// goose_db_version, so Up is safe to run on every deploy.
func Up(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return describe(err)
	}
	return nil
}

func describe(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Position != "" {
			return fmt.Errorf("apply schema: %s (sqlstate %s, position %s): %w", pqErr.Message, pqErr.Code, pqErr.Position, err)
		}
		return fmt.Errorf("apply schema: %s (sqlstate %s): %w", pqErr.Message, pqErr.Code, err)
	}
	return fmt.Errorf("apply schema: %w", err)
}
