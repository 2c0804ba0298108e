package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/subscription"

	"genstudio/internal/domain"
)

// GatewayConfig configures the Stripe gateway.
type GatewayConfig struct {
	SecretKey      string
	PremiumPriceID string
	AppURL         string
}

// Gateway creates hosted Stripe sessions and reads subscriptions. The Stripe
// calls are fields so tests can replace them.
type Gateway struct {
	prices map[domain.Plan]string
	appURL string

	createCheckoutSession func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	createPortalSession   func(*stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
	getSubscription       func(string, *stripe.SubscriptionParams) (*stripe.Subscription, error)
}

// NewGateway sets the process-wide Stripe key and wires the live API calls.
func NewGateway(cfg GatewayConfig) *Gateway {
	stripe.Key = strings.TrimSpace(cfg.SecretKey)
	prices := map[domain.Plan]string{}
	if id := strings.TrimSpace(cfg.PremiumPriceID); id != "" {
		prices[domain.PlanPremium] = id
	}
	return &Gateway{
		prices:                prices,
		appURL:                strings.TrimRight(cfg.AppURL, "/"),
		createCheckoutSession: checkoutsession.New,
		createPortalSession:   portalsession.New,
		getSubscription:       subscription.Get,
	}
}

// CreateCheckoutSession starts a subscription checkout for user and returns
// the hosted page URL.
func (g *Gateway) CreateCheckoutSession(ctx context.Context, user domain.User, plan domain.Plan) (string, error) {
	if plan == domain.PlanFree {
		return "", fmt.Errorf("%w: %s cannot be purchased", domain.ErrUnsupportedPlan, plan)
	}
	priceID, ok := g.prices[plan]
	if !ok {
		return "", fmt.Errorf("%w: no price for plan %s", domain.ErrBillingDisabled, plan)
	}
	metadata := map[string]string{
		MetadataUserID: user.ID,
		MetadataPlan:   string(plan),
	}
	params := &stripe.CheckoutSessionParams{
		Mode:                     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:               stripe.String(g.appURL + "/dashboard?success=true"),
		CancelURL:                stripe.String(g.appURL + "/dashboard?cancelled=true"),
		BillingAddressCollection: stripe.String(string(stripe.CheckoutSessionBillingAddressCollectionRequired)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
		Metadata: metadata,
	}
	if email := strings.TrimSpace(user.Email); email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	params.Context = ctx

	session, err := g.createCheckoutSession(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	if session == nil || strings.TrimSpace(session.URL) == "" {
		return "", fmt.Errorf("create checkout session: empty url")
	}
	return session.URL, nil
}

// CreatePortalSession opens the customer billing portal.
func (g *Gateway) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	if strings.TrimSpace(customerID) == "" {
		return "", domain.ErrNoSubscription
	}
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(g.appURL + "/dashboard"),
	}
	params.Context = ctx

	session, err := g.createPortalSession(params)
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}
	if session == nil || strings.TrimSpace(session.URL) == "" {
		return "", fmt.Errorf("create portal session: empty url")
	}
	return session.URL, nil
}

// FetchSubscription reads price and period end of a Stripe subscription.
func (g *Gateway) FetchSubscription(ctx context.Context, id string) (*SubscriptionDetails, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := g.getSubscription(id, params)
	if err != nil {
		return nil, err
	}
	details := &SubscriptionDetails{ID: sub.ID, Status: string(sub.Status)}
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item == nil {
				continue
			}
			if details.PriceID == "" && item.Price != nil {
				details.PriceID = item.Price.ID
			}
			if details.PeriodEnd == nil && item.CurrentPeriodEnd > 0 {
				details.PeriodEnd = unixTime(item.CurrentPeriodEnd)
			}
		}
	}
	return details, nil
}
