package usage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genstudio/internal/adapter/memory"
	"genstudio/internal/domain"
)

func seed(t *testing.T, plan domain.Plan) *memory.Store {
	t.Helper()
	store := memory.New()
	store.PutSubscription(domain.Subscription{UserID: "u1", Plan: plan, Status: domain.SubscriptionActive})
	return store
}

func record(store *memory.Store, rt domain.ResourceType, at time.Time, status domain.GenerationStatus) {
	store.PutGeneration(domain.GenerationRecord{UserID: "u1", Type: rt, Status: status, CreatedAt: at})
}

func TestMonthStartAndReset(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	tests := []struct {
		name      string
		now       time.Time
		loc       *time.Location
		wantStart time.Time
		wantReset time.Time
	}{
		{
			name:      "mid month utc",
			now:       time.Date(2024, 5, 17, 13, 4, 5, 0, time.UTC),
			loc:       time.UTC,
			wantStart: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			wantReset: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "december rolls year",
			now:       time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC),
			loc:       time.UTC,
			wantStart: time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
			wantReset: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "reference timezone ahead of utc",
			now:       time.Date(2024, 4, 30, 16, 0, 0, 0, time.UTC),
			loc:       tokyo,
			wantStart: time.Date(2024, 5, 1, 0, 0, 0, 0, tokyo),
			wantReset: time.Date(2024, 6, 1, 0, 0, 0, 0, tokyo),
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, MonthStart(tc.now, tc.loc).Equal(tc.wantStart), "start %v", MonthStart(tc.now, tc.loc))
			assert.True(t, ResetAt(tc.now, tc.loc).Equal(tc.wantReset), "reset %v", ResetAt(tc.now, tc.loc))
		})
	}
}

func TestCompute(t *testing.T) {
	two := 2

	ent := Compute(1, &two)
	require.NotNil(t, ent.Limit)
	require.NotNil(t, ent.Remaining)
	assert.Equal(t, 1, ent.Used)
	assert.Equal(t, 2, *ent.Limit)
	assert.Equal(t, 1, *ent.Remaining)

	over := Compute(5, &two)
	assert.Equal(t, 0, *over.Remaining)

	unlimited := Compute(40, nil)
	assert.Nil(t, unlimited.Limit)
	assert.Nil(t, unlimited.Remaining)
	assert.Equal(t, 40, unlimited.Used)
}

func TestEvaluateCountsOnlyCurrentMonth(t *testing.T) {
	store := seed(t, domain.PlanFree)
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	record(store, domain.ResourceImage, time.Date(2024, 4, 30, 23, 59, 59, 0, time.UTC), domain.GenerationCompleted)
	record(store, domain.ResourceImage, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), domain.GenerationCompleted)
	record(store, domain.ResourceImage, time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC), domain.GenerationFailed)
	record(store, domain.ResourceVideo, time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC), domain.GenerationCompleted)

	ev := NewEvaluator(store.Subscriptions(), store.Ledger(), time.UTC)
	ent, err := ev.Evaluate(context.Background(), "u1", domain.ResourceImage, now)
	require.NoError(t, err)
	assert.Equal(t, 2, ent.Used)
	assert.Equal(t, 2, *ent.Limit)
	assert.Equal(t, 0, *ent.Remaining)
}

func TestEvaluateNewMonthResets(t *testing.T) {
	store := seed(t, domain.PlanFree)
	record(store, domain.ResourceImage, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), domain.GenerationCompleted)
	record(store, domain.ResourceImage, time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC), domain.GenerationCompleted)

	ev := NewEvaluator(store.Subscriptions(), store.Ledger(), time.UTC)
	ent, err := ev.Evaluate(context.Background(), "u1", domain.ResourceImage, time.Date(2024, 2, 1, 0, 0, 1, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 0, ent.Used)
	assert.Equal(t, 2, *ent.Remaining)
}

func TestEvaluatePremiumUnlimited(t *testing.T) {
	store := seed(t, domain.PlanPremium)
	now := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		record(store, domain.ResourceVideo, now.Add(-time.Duration(i)*time.Hour), domain.GenerationCompleted)
	}

	ev := NewEvaluator(store.Subscriptions(), store.Ledger(), nil)
	ent, err := ev.Evaluate(context.Background(), "u1", domain.ResourceVideo, now)
	require.NoError(t, err)
	assert.Equal(t, 7, ent.Used)
	assert.Nil(t, ent.Limit)
	assert.Nil(t, ent.Remaining)
}

func TestEvaluateWithoutSubscription(t *testing.T) {
	store := memory.New()
	ev := NewEvaluator(store.Subscriptions(), store.Ledger(), time.UTC)

	_, err := ev.Evaluate(context.Background(), "ghost", domain.ResourceImage, time.Now())
	assert.ErrorIs(t, err, domain.ErrNoSubscription)

	_, err = ev.Evaluate(context.Background(), "", domain.ResourceImage, time.Now())
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestSnapshot(t *testing.T) {
	store := seed(t, domain.PlanFree)
	now := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)
	record(store, domain.ResourceImage, time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), domain.GenerationCompleted)
	record(store, domain.ResourceVideo, time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC), domain.GenerationPending)
	record(store, domain.ResourceImage, time.Date(2024, 4, 3, 0, 0, 0, 0, time.UTC), domain.GenerationCompleted)

	ev := NewEvaluator(store.Subscriptions(), store.Ledger(), time.UTC)
	snap, err := ev.Snapshot(context.Background(), "u1", now)
	require.NoError(t, err)

	assert.Equal(t, domain.PlanFree, snap.Plan)
	require.Len(t, snap.Generations, 2)
	assert.Equal(t, domain.ResourceVideo, snap.Generations[0].Type)
	assert.Equal(t, 1, snap.Entitlements[domain.ResourceImage].Used)
	assert.Equal(t, 1, *snap.Entitlements[domain.ResourceImage].Remaining)
	assert.Equal(t, 1, snap.Entitlements[domain.ResourceVideo].Used)
	assert.Equal(t, 0, *snap.Entitlements[domain.ResourceVideo].Remaining)
	assert.True(t, snap.ResetAt.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, snap.WindowStart.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))
}
