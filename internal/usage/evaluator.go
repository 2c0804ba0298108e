// Package usage computes monthly entitlements from the generation ledger.
package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"genstudio/internal/domain"
)

// Entitlement is the usage position of one user for one resource type.
// Limit and Remaining are nil when the plan is unlimited.
type Entitlement struct {
	Used      int
	Limit     *int
	Remaining *int
}

// Snapshot is the full usage view returned to clients.
type Snapshot struct {
	Plan         domain.Plan
	Entitlements map[domain.ResourceType]Entitlement
	Generations  []domain.GenerationRecord
	WindowStart  time.Time
	ResetAt      time.Time
}

// Evaluator reads the ledger and subscription store. It never writes.
type Evaluator struct {
	subs   domain.SubscriptionRepository
	ledger domain.LedgerRepository
	loc    *time.Location
}

// NewEvaluator builds an evaluator whose month boundaries are taken in loc.
// A nil loc means UTC.
func NewEvaluator(subs domain.SubscriptionRepository, ledger domain.LedgerRepository, loc *time.Location) *Evaluator {
	if loc == nil {
		loc = time.UTC
	}
	return &Evaluator{subs: subs, ledger: ledger, loc: loc}
}

// MonthStart returns midnight on the first day of now's calendar month in loc.
func MonthStart(now time.Time, loc *time.Location) time.Time {
	t := now.In(loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
}

// ResetAt returns the first instant of the month after now's month in loc.
func ResetAt(now time.Time, loc *time.Location) time.Time {
	return MonthStart(now, loc).AddDate(0, 1, 0)
}

// Compute derives an entitlement from a usage count and a cap.
func Compute(used int, limit *int) Entitlement {
	ent := Entitlement{Used: used}
	if limit == nil {
		return ent
	}
	l := *limit
	rem := l - used
	if rem < 0 {
		rem = 0
	}
	ent.Limit = &l
	ent.Remaining = &rem
	return ent
}

// Plan resolves the user's plan. It returns domain.ErrNoSubscription when
// the user has no subscription record.
func (e *Evaluator) Plan(ctx context.Context, userID string) (*domain.Subscription, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	sub, err := e.subs.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNoSubscription
		}
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	return sub, nil
}

// Evaluate returns the entitlement of userID for rt in the month containing now.
func (e *Evaluator) Evaluate(ctx context.Context, userID string, rt domain.ResourceType, now time.Time) (Entitlement, error) {
	sub, err := e.Plan(ctx, userID)
	if err != nil {
		return Entitlement{}, err
	}
	used, err := e.ledger.CountSince(ctx, userID, rt, MonthStart(now, e.loc))
	if err != nil {
		return Entitlement{}, fmt.Errorf("count usage: %w", err)
	}
	return Compute(used, domain.LimitFor(sub.Plan, rt)), nil
}

// Snapshot returns the plan, every entitlement and the records of the
// current window, newest first.
func (e *Evaluator) Snapshot(ctx context.Context, userID string, now time.Time) (*Snapshot, error) {
	sub, err := e.Plan(ctx, userID)
	if err != nil {
		return nil, err
	}
	start := MonthStart(now, e.loc)
	recs, err := e.ledger.ListSince(ctx, userID, start)
	if err != nil {
		return nil, fmt.Errorf("list usage: %w", err)
	}

	counts := make(map[domain.ResourceType]int, len(domain.ResourceTypes()))
	for _, rec := range recs {
		counts[rec.Type]++
	}
	ents := make(map[domain.ResourceType]Entitlement, len(domain.ResourceTypes()))
	for _, rt := range domain.ResourceTypes() {
		ents[rt] = Compute(counts[rt], domain.LimitFor(sub.Plan, rt))
	}

	return &Snapshot{
		Plan:         sub.Plan,
		Entitlements: ents,
		Generations:  recs,
		WindowStart:  start,
		ResetAt:      ResetAt(now, e.loc),
	}, nil
}
