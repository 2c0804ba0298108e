package domain

import (
	"context"
	"time"
)

// UserRepository defines access methods for users.
type UserRepository interface {
	Upsert(ctx context.Context, user *User) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
}

// SubscriptionRepository persists the one-per-user subscription record.
type SubscriptionRepository interface {
	GetByUserID(ctx context.Context, userID string) (*Subscription, error)
	// EnsureFree creates a free active subscription when the user has none and
	// returns the stored record either way.
	EnsureFree(ctx context.Context, userID string) (*Subscription, error)
	UpsertCheckout(ctx context.Context, c CheckoutCompletion) (*Subscription, error)
	// The remaining mutations are keyed by the Stripe subscription id. They
	// report ErrNotFound when no record matches.
	UpdateStatus(ctx context.Context, stripeSubscriptionID string, status SubscriptionStatus, periodEnd *time.Time) error
	Cancel(ctx context.Context, stripeSubscriptionID string) error
	MarkPastDue(ctx context.Context, stripeSubscriptionID string) error
}

// LedgerRepository persists generation records.
type LedgerRepository interface {
	// Admit atomically checks usage against the plan cap and inserts a
	// pending record. It returns ErrNoSubscription when the user has no subscription
	// and *QuotaExceededError when the cap is reached.
	Admit(ctx context.Context, req AdmitRequest) (*Admission, error)
	Complete(ctx context.Context, id, result string) error
	Fail(ctx context.Context, id, message string) error
	GetByID(ctx context.Context, id string) (*GenerationRecord, error)
	CountSince(ctx context.Context, userID string, rt ResourceType, since time.Time) (int, error)
	ListSince(ctx context.Context, userID string, since time.Time) ([]GenerationRecord, error)
}

// Store bundles the repositories a service needs.
type Store interface {
	Users() UserRepository
	Subscriptions() SubscriptionRepository
	Ledger() LedgerRepository
}
