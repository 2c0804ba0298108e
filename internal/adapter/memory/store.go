// Package memory keeps users, subscriptions and the generation ledger in
// process. It backs STORE_DRIVER=memory and the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"genstudio/internal/domain"
)

// Store is a mutex-guarded in-memory domain.Store. One lock covers every
// table so admission is atomic per store.
type Store struct {
	mu sync.RWMutex

	users         map[string]*domain.User
	subscriptions map[string]*domain.Subscription
	generations   map[string]*domain.GenerationRecord

	now func() time.Time
}

func New() *Store {
	return &Store{
		users:         make(map[string]*domain.User),
		subscriptions: make(map[string]*domain.Subscription),
		generations:   make(map[string]*domain.GenerationRecord),
		now:           time.Now,
	}
}

// WithClock overrides the timestamp source used for bookkeeping fields.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Users() domain.UserRepository                 { return userRepo{s} }
func (s *Store) Subscriptions() domain.SubscriptionRepository { return subscriptionRepo{s} }
func (s *Store) Ledger() domain.LedgerRepository              { return ledgerRepo{s} }

// PutSubscription stores sub as-is, replacing any existing record for the user.
func (s *Store) PutSubscription(sub domain.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := sub
	s.subscriptions[sub.UserID] = &cp
}

// PutGeneration stores rec as-is. A missing id is generated.
func (s *Store) PutGeneration(rec domain.GenerationRecord) domain.GenerationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	cp := rec
	s.generations[rec.ID] = &cp
	return rec
}

type userRepo struct{ s *Store }

func (r userRepo) Upsert(_ context.Context, user *domain.User) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	existing, ok := r.s.users[user.ID]
	if !ok {
		cp := *user
		cp.CreatedAt, cp.UpdatedAt = now, now
		r.s.users[user.ID] = &cp
		out := cp
		return &out, nil
	}
	if user.Email != "" {
		existing.Email = user.Email
	}
	if user.Name != "" {
		existing.Name = user.Name
	}
	existing.UpdatedAt = now
	out := *existing
	return &out, nil
}

func (r userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *u
	return &out, nil
}

type subscriptionRepo struct{ s *Store }

func (r subscriptionRepo) GetByUserID(_ context.Context, userID string) (*domain.Subscription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sub, ok := r.s.subscriptions[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *sub
	return &out, nil
}

func (r subscriptionRepo) EnsureFree(_ context.Context, userID string) (*domain.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sub, ok := r.s.subscriptions[userID]; ok {
		out := *sub
		return &out, nil
	}
	now := r.s.now()
	sub := &domain.Subscription{
		UserID:    userID,
		Plan:      domain.PlanFree,
		Status:    domain.SubscriptionActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.s.subscriptions[userID] = sub
	out := *sub
	return &out, nil
}

func (r subscriptionRepo) UpsertCheckout(_ context.Context, c domain.CheckoutCompletion) (*domain.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	sub, ok := r.s.subscriptions[c.UserID]
	if !ok {
		sub = &domain.Subscription{UserID: c.UserID, CreatedAt: now}
		r.s.subscriptions[c.UserID] = sub
	}
	sub.Plan = c.Plan
	sub.Status = c.Status
	if sub.Status == "" {
		sub.Status = domain.SubscriptionActive
	}
	if c.StripeCustomerID != "" {
		sub.StripeCustomerID = c.StripeCustomerID
	}
	if c.StripeSubscriptionID != "" {
		sub.StripeSubscriptionID = c.StripeSubscriptionID
	}
	if c.StripePriceID != "" {
		sub.StripePriceID = c.StripePriceID
	}
	if c.CurrentPeriodEnd != nil {
		end := *c.CurrentPeriodEnd
		sub.CurrentPeriodEnd = &end
	}
	sub.UpdatedAt = now
	out := *sub
	return &out, nil
}

func (r subscriptionRepo) UpdateStatus(_ context.Context, stripeSubscriptionID string, status domain.SubscriptionStatus, periodEnd *time.Time) error {
	return r.mutate(stripeSubscriptionID, func(sub *domain.Subscription) {
		sub.Status = status
		if periodEnd != nil {
			end := *periodEnd
			sub.CurrentPeriodEnd = &end
		}
	})
}

func (r subscriptionRepo) Cancel(_ context.Context, stripeSubscriptionID string) error {
	return r.mutate(stripeSubscriptionID, func(sub *domain.Subscription) {
		sub.Plan = domain.PlanFree
		sub.Status = domain.SubscriptionCancelled
	})
}

func (r subscriptionRepo) MarkPastDue(_ context.Context, stripeSubscriptionID string) error {
	return r.mutate(stripeSubscriptionID, func(sub *domain.Subscription) {
		sub.Status = domain.SubscriptionPastDue
	})
}

func (r subscriptionRepo) mutate(stripeSubscriptionID string, fn func(*domain.Subscription)) error {
	if stripeSubscriptionID == "" {
		return domain.ErrNotFound
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sub := range r.s.subscriptions {
		if sub.StripeSubscriptionID == stripeSubscriptionID {
			fn(sub)
			sub.UpdatedAt = r.s.now()
			return nil
		}
	}
	return domain.ErrNotFound
}

type ledgerRepo struct{ s *Store }

func (r ledgerRepo) Admit(_ context.Context, req domain.AdmitRequest) (*domain.Admission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sub, ok := r.s.subscriptions[req.UserID]
	if !ok {
		return nil, domain.ErrNoSubscription
	}
	used := r.s.countLocked(req.UserID, req.Type, req.WindowStart)
	limit := domain.LimitFor(sub.Plan, req.Type)
	if limit != nil && used >= *limit {
		return nil, &domain.QuotaExceededError{Type: req.Type, Limit: *limit, Used: used}
	}

	now := req.Now
	if now.IsZero() {
		now = r.s.now()
	}
	rec := &domain.GenerationRecord{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Type:      req.Type,
		Prompt:    req.Prompt,
		Provider:  req.Provider,
		Status:    domain.GenerationPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.s.generations[rec.ID] = rec

	out := *rec
	subCopy := *sub
	return &domain.Admission{Record: &out, Subscription: &subCopy, Used: used + 1, Limit: limit}, nil
}

func (r ledgerRepo) Complete(_ context.Context, id, result string) error {
	return r.finalize(id, func(rec *domain.GenerationRecord) {
		rec.Status = domain.GenerationCompleted
		rec.Result = result
	})
}

func (r ledgerRepo) Fail(_ context.Context, id, message string) error {
	return r.finalize(id, func(rec *domain.GenerationRecord) {
		rec.Status = domain.GenerationFailed
		rec.ErrorMessage = message
	})
}

func (r ledgerRepo) finalize(id string, fn func(*domain.GenerationRecord)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.generations[id]
	if !ok {
		return domain.ErrNotFound
	}
	if rec.Status.Terminal() {
		return domain.ErrAlreadyFinalized
	}
	fn(rec)
	rec.UpdatedAt = r.s.now()
	return nil
}

func (r ledgerRepo) GetByID(_ context.Context, id string) (*domain.GenerationRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rec, ok := r.s.generations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *rec
	return &out, nil
}

func (r ledgerRepo) CountSince(_ context.Context, userID string, rt domain.ResourceType, since time.Time) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.countLocked(userID, rt, since), nil
}

func (r ledgerRepo) ListSince(_ context.Context, userID string, since time.Time) ([]domain.GenerationRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.GenerationRecord
	for _, rec := range r.s.generations {
		if rec.UserID == userID && !rec.CreatedAt.Before(since) {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) countLocked(userID string, rt domain.ResourceType, since time.Time) int {
	n := 0
	for _, rec := range s.generations {
		if rec.UserID == userID && rec.Type == rt && !rec.CreatedAt.Before(since) {
			n++
		}
	}
	return n
}

var _ domain.Store = (*Store)(nil)
