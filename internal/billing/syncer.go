package billing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
)

// Metadata keys attached to every checkout session.
const (
	MetadataUserID = "userId"
	MetadataPlan   = "plan"
)

// SubscriptionDetails is the Stripe-side state read after a checkout.
type SubscriptionDetails struct {
	ID        string
	Status    string
	PriceID   string
	PeriodEnd *time.Time
}

// SubscriptionFetcher loads a subscription from Stripe.
type SubscriptionFetcher interface {
	FetchSubscription(ctx context.Context, id string) (*SubscriptionDetails, error)
}

// Syncer applies billing events to the subscription store. Every write is an
// update in place, so replaying an event leaves the same state.
type Syncer struct {
	subs   domain.SubscriptionRepository
	fetch  SubscriptionFetcher
	logger *infra.Logger
}

// NewSyncer builds a Syncer. fetch may be nil, in which case checkout
// completions are stored without price id and period end.
func NewSyncer(subs domain.SubscriptionRepository, fetch SubscriptionFetcher, logger *infra.Logger) *Syncer {
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return &Syncer{subs: subs, fetch: fetch, logger: logger}
}

// MapStatus folds Stripe subscription statuses into the three stored ones.
func MapStatus(stripeStatus string) domain.SubscriptionStatus {
	switch strings.ToLower(strings.TrimSpace(stripeStatus)) {
	case "active", "trialing":
		return domain.SubscriptionActive
	case "canceled", "cancelled", "incomplete_expired":
		return domain.SubscriptionCancelled
	default:
		return domain.SubscriptionPastDue
	}
}

// Apply performs the store mutation for ev.
func (s *Syncer) Apply(ctx context.Context, ev Event) error {
	switch e := ev.(type) {
	case CheckoutCompleted:
		return s.applyCheckout(ctx, e)
	case SubscriptionUpdated:
		return s.keyed(e.Type(), e.SubscriptionID, s.subs.UpdateStatus(ctx, e.SubscriptionID, MapStatus(e.Status), e.PeriodEnd))
	case SubscriptionDeleted:
		return s.keyed(e.Type(), e.SubscriptionID, s.subs.Cancel(ctx, e.SubscriptionID))
	case PaymentFailed:
		if e.SubscriptionID == "" {
			s.logger.Info().Str("invoice_id", e.InvoiceID).Msg("billing: payment failure without subscription ignored")
			return nil
		}
		return s.keyed(e.Type(), e.SubscriptionID, s.subs.MarkPastDue(ctx, e.SubscriptionID))
	default:
		return fmt.Errorf("%w: %T", ErrUnhandledEvent, ev)
	}
}

func (s *Syncer) applyCheckout(ctx context.Context, e CheckoutCompleted) error {
	userID := strings.TrimSpace(e.Metadata[MetadataUserID])
	if userID == "" {
		return &domain.MissingMetadataError{SessionID: e.SessionID, Field: MetadataUserID}
	}
	rawPlan := strings.TrimSpace(e.Metadata[MetadataPlan])
	if rawPlan == "" {
		return &domain.MissingMetadataError{SessionID: e.SessionID, Field: MetadataPlan}
	}
	plan, ok := domain.ParsePlan(rawPlan)
	if !ok {
		return fmt.Errorf("checkout session %s: %w: %q", e.SessionID, domain.ErrUnsupportedPlan, rawPlan)
	}

	completion := domain.CheckoutCompletion{
		UserID:               userID,
		Plan:                 plan,
		StripeCustomerID:     e.CustomerID,
		StripeSubscriptionID: e.SubscriptionID,
	}
	if e.SubscriptionID != "" && s.fetch != nil {
		details, err := s.fetch.FetchSubscription(ctx, e.SubscriptionID)
		if err != nil {
			return fmt.Errorf("fetch subscription %s: %w", e.SubscriptionID, err)
		}
		completion.StripePriceID = details.PriceID
		completion.CurrentPeriodEnd = details.PeriodEnd
		// Events are unordered: a deletion may already have been acknowledged
		// before this row existed, so the live state wins over the metadata plan.
		if details.Status != "" {
			completion.Status = MapStatus(details.Status)
			if completion.Status == domain.SubscriptionCancelled {
				completion.Plan = domain.PlanFree
			}
		}
	}

	sub, err := s.subs.UpsertCheckout(ctx, completion)
	if err != nil {
		return err
	}
	s.logger.Info().
		Str("user_id", sub.UserID).
		Str("plan", string(sub.Plan)).
		Str("subscription_id", sub.StripeSubscriptionID).
		Msg("billing: checkout applied")
	return nil
}

// keyed treats an unknown subscription id as already settled: the record is
// written on checkout completion with fresh Stripe state.
func (s *Syncer) keyed(eventType, subscriptionID string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn().
			Str("type", eventType).
			Str("subscription_id", subscriptionID).
			Msg("billing: no subscription record for event")
		return nil
	}
	if err != nil {
		return err
	}
	s.logger.Info().
		Str("type", eventType).
		Str("subscription_id", subscriptionID).
		Msg("billing: event applied")
	return nil
}
