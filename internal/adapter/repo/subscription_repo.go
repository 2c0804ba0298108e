package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/sqlinline"
)

// SubscriptionRepositoryPG implements domain.SubscriptionRepository.
type SubscriptionRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewSubscriptionRepository creates a subscription repository backed by PostgreSQL.
func NewSubscriptionRepository(sql infra.SQLExecutor) *SubscriptionRepositoryPG {
	return &SubscriptionRepositoryPG{sql: sql}
}

func (r *SubscriptionRepositoryPG) GetByUserID(ctx context.Context, userID string) (*domain.Subscription, error) {
	return scanSubscription(r.sql.QueryRow(ctx, sqlinline.QSelectSubscriptionByUser, userID))
}

func (r *SubscriptionRepositoryPG) EnsureFree(ctx context.Context, userID string) (*domain.Subscription, error) {
	sub, err := scanSubscription(r.sql.QueryRow(ctx, sqlinline.QEnsureFreeSubscription, userID))
	if err != nil {
		return nil, fmt.Errorf("ensure free subscription: %w", err)
	}
	return sub, nil
}

func (r *SubscriptionRepositoryPG) UpsertCheckout(ctx context.Context, c domain.CheckoutCompletion) (*domain.Subscription, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QUpsertCheckoutSubscription,
		c.UserID,
		string(c.Plan),
		c.StripeCustomerID,
		c.StripeSubscriptionID,
		c.StripePriceID,
		c.CurrentPeriodEnd,
		string(c.Status),
	)
	sub, err := scanSubscription(row)
	if err != nil {
		return nil, fmt.Errorf("upsert checkout subscription: %w", err)
	}
	return sub, nil
}

func (r *SubscriptionRepositoryPG) UpdateStatus(ctx context.Context, stripeSubscriptionID string, status domain.SubscriptionStatus, periodEnd *time.Time) error {
	return r.execByStripeID(ctx, sqlinline.QUpdateSubscriptionStatus, stripeSubscriptionID, string(status), periodEnd)
}

func (r *SubscriptionRepositoryPG) Cancel(ctx context.Context, stripeSubscriptionID string) error {
	return r.execByStripeID(ctx, sqlinline.QCancelSubscription, stripeSubscriptionID)
}

func (r *SubscriptionRepositoryPG) MarkPastDue(ctx context.Context, stripeSubscriptionID string) error {
	return r.execByStripeID(ctx, sqlinline.QMarkSubscriptionPastDue, stripeSubscriptionID)
}

func (r *SubscriptionRepositoryPG) execByStripeID(ctx context.Context, query, stripeSubscriptionID string, args ...any) error {
	if stripeSubscriptionID == "" {
		return domain.ErrNotFound
	}
	tag, err := r.sql.Exec(ctx, query, append([]any{stripeSubscriptionID}, args...)...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var (
		s         domain.Subscription
		plan      string
		status    string
		periodEnd *time.Time
	)
	if err := row.Scan(
		&s.UserID,
		&plan,
		&status,
		&s.StripeCustomerID,
		&s.StripeSubscriptionID,
		&s.StripePriceID,
		&periodEnd,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	s.Plan = domain.Plan(plan)
	s.Status = domain.SubscriptionStatus(status)
	s.CurrentPeriodEnd = periodEnd
	return &s, nil
}
