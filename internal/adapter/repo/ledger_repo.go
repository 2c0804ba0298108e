package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/sqlinline"
)

// LedgerRepositoryPG implements domain.LedgerRepository on the generations table.
type LedgerRepositoryPG struct {
	sql infra.SQLExecutor
	tx  infra.TxRunner
}

// NewLedgerRepository creates a ledger repository. tx must run against the
// same database as sql.
func NewLedgerRepository(sql infra.SQLExecutor, tx infra.TxRunner) *LedgerRepositoryPG {
	return &LedgerRepositoryPG{sql: sql, tx: tx}
}

// Admit locks the caller's subscription row, counts usage in the window and
// inserts a pending record when the cap allows it. Concurrent admissions for
// one user queue on the row lock, so the count never goes stale.
func (r *LedgerRepositoryPG) Admit(ctx context.Context, req domain.AdmitRequest) (*domain.Admission, error) {
	if r.tx == nil {
		return nil, errors.New("ledger: transactions unavailable")
	}
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}

	var out *domain.Admission
	err := r.tx.InTx(ctx, func(q infra.SQLExecutor) error {
		sub, err := scanSubscription(q.QueryRow(ctx, sqlinline.QLockSubscriptionByUser, req.UserID))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrNoSubscription
			}
			return fmt.Errorf("lock subscription: %w", err)
		}

		var used int
		if err := q.QueryRow(ctx, sqlinline.QCountGenerationsSince, req.UserID, string(req.Type), req.WindowStart).Scan(&used); err != nil {
			return fmt.Errorf("count generations: %w", err)
		}
		limit := domain.LimitFor(sub.Plan, req.Type)
		if limit != nil && used >= *limit {
			return &domain.QuotaExceededError{Type: req.Type, Limit: *limit, Used: used}
		}

		rec, err := scanGeneration(q.QueryRow(ctx, sqlinline.QInsertGeneration,
			uuid.NewString(),
			req.UserID,
			string(req.Type),
			req.Prompt,
			req.Provider,
			now,
		))
		if err != nil {
			return fmt.Errorf("insert generation: %w", err)
		}
		out = &domain.Admission{Record: rec, Subscription: sub, Used: used + 1, Limit: limit}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *LedgerRepositoryPG) Complete(ctx context.Context, id, result string) error {
	return r.finalize(ctx, id, domain.GenerationCompleted, result, "")
}

func (r *LedgerRepositoryPG) Fail(ctx context.Context, id, message string) error {
	return r.finalize(ctx, id, domain.GenerationFailed, "", message)
}

func (r *LedgerRepositoryPG) finalize(ctx context.Context, id string, status domain.GenerationStatus, result, message string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrNotFound
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QFinalizeGeneration, id, string(status), result, message)
	if err != nil {
		return fmt.Errorf("finalize generation: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return domain.ErrAlreadyFinalized
}

func (r *LedgerRepositoryPG) GetByID(ctx context.Context, id string) (*domain.GenerationRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	return scanGeneration(r.sql.QueryRow(ctx, sqlinline.QSelectGenerationByID, id))
}

func (r *LedgerRepositoryPG) CountSince(ctx context.Context, userID string, rt domain.ResourceType, since time.Time) (int, error) {
	var n int
	if err := r.sql.QueryRow(ctx, sqlinline.QCountGenerationsSince, userID, string(rt), since).Scan(&n); err != nil {
		return 0, fmt.Errorf("count generations: %w", err)
	}
	return n, nil
}

func (r *LedgerRepositoryPG) ListSince(ctx context.Context, userID string, since time.Time) ([]domain.GenerationRecord, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListGenerationsSince, userID, since)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()

	var out []domain.GenerationRecord
	for rows.Next() {
		rec, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func scanGeneration(row pgx.Row) (*domain.GenerationRecord, error) {
	var (
		g      domain.GenerationRecord
		rt     string
		status string
	)
	if err := row.Scan(
		&g.ID,
		&g.UserID,
		&rt,
		&g.Prompt,
		&g.Provider,
		&status,
		&g.Result,
		&g.ErrorMessage,
		&g.CreatedAt,
		&g.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	g.Type = domain.ResourceType(rt)
	g.Status = domain.GenerationStatus(status)
	return &g, nil
}
