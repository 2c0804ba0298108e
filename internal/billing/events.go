// Package billing keeps subscription records in step with Stripe.
package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Stripe event types this service acts on.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventPaymentFailed       = "invoice.payment_failed"
)

// ErrUnhandledEvent is returned by Decode for event types outside the set above.
var ErrUnhandledEvent = errors.New("billing: unhandled event type")

// Event is one of CheckoutCompleted, SubscriptionUpdated, SubscriptionDeleted
// or PaymentFailed.
type Event interface {
	Type() string
	sealed()
}

// CheckoutCompleted reports a finished checkout session.
type CheckoutCompleted struct {
	SessionID      string
	CustomerID     string
	SubscriptionID string
	Metadata       map[string]string
}

// SubscriptionUpdated reports a status or period change.
type SubscriptionUpdated struct {
	SubscriptionID string
	Status         string
	PriceID        string
	PeriodEnd      *time.Time
}

// SubscriptionDeleted reports the end of a subscription.
type SubscriptionDeleted struct {
	SubscriptionID string
}

// PaymentFailed reports a failed invoice payment.
type PaymentFailed struct {
	InvoiceID      string
	SubscriptionID string
}

func (CheckoutCompleted) Type() string   { return EventCheckoutCompleted }
func (SubscriptionUpdated) Type() string { return EventSubscriptionUpdated }
func (SubscriptionDeleted) Type() string { return EventSubscriptionDeleted }
func (PaymentFailed) Type() string       { return EventPaymentFailed }

func (CheckoutCompleted) sealed()   {}
func (SubscriptionUpdated) sealed() {}
func (SubscriptionDeleted) sealed() {}
func (PaymentFailed) sealed()       {}

// stripeRef decodes a field Stripe sends either as an id or as an expanded object.
type stripeRef string

func (r *stripeRef) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*r = ""
		return nil
	}
	var id string
	if err := json.Unmarshal(b, &id); err == nil {
		*r = stripeRef(strings.TrimSpace(id))
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*r = stripeRef(strings.TrimSpace(obj.ID))
	return nil
}

type checkoutSession struct {
	ID           string            `json:"id"`
	Customer     stripeRef         `json:"customer"`
	Subscription stripeRef         `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

type subscriptionObject struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	CurrentPeriodEnd int64  `json:"current_period_end"`
	Items            struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
			Price            struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

func (s subscriptionObject) firstPriceID() string {
	for _, item := range s.Items.Data {
		if id := strings.TrimSpace(item.Price.ID); id != "" {
			return id
		}
	}
	return ""
}

// periodEnd prefers the item-level period end and falls back to the
// subscription-level field older API versions send.
func (s subscriptionObject) periodEnd() *time.Time {
	for _, item := range s.Items.Data {
		if item.CurrentPeriodEnd > 0 {
			return unixTime(item.CurrentPeriodEnd)
		}
	}
	if s.CurrentPeriodEnd > 0 {
		return unixTime(s.CurrentPeriodEnd)
	}
	return nil
}

type invoiceObject struct {
	ID           string    `json:"id"`
	Subscription stripeRef `json:"subscription"`
	Parent       struct {
		SubscriptionDetails struct {
			Subscription stripeRef `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

// Decode turns the data.object payload of a Stripe event into an Event.
func Decode(eventType string, raw json.RawMessage) (Event, error) {
	switch eventType {
	case EventCheckoutCompleted:
		var s checkoutSession
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode checkout.session: %w", err)
		}
		return CheckoutCompleted{
			SessionID:      s.ID,
			CustomerID:     string(s.Customer),
			SubscriptionID: string(s.Subscription),
			Metadata:       s.Metadata,
		}, nil

	case EventSubscriptionUpdated:
		var s subscriptionObject
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		return SubscriptionUpdated{
			SubscriptionID: s.ID,
			Status:         s.Status,
			PriceID:        s.firstPriceID(),
			PeriodEnd:      s.periodEnd(),
		}, nil

	case EventSubscriptionDeleted:
		var s subscriptionObject
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		return SubscriptionDeleted{SubscriptionID: s.ID}, nil

	case EventPaymentFailed:
		var inv invoiceObject
		if err := json.Unmarshal(raw, &inv); err != nil {
			return nil, fmt.Errorf("decode invoice: %w", err)
		}
		subID := string(inv.Subscription)
		if subID == "" {
			subID = string(inv.Parent.SubscriptionDetails.Subscription)
		}
		return PaymentFailed{InvoiceID: inv.ID, SubscriptionID: subID}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnhandledEvent, eventType)
	}
}

func unixTime(sec int64) *time.Time {
	t := time.Unix(sec, 0).UTC()
	return &t
}
