package handlers

import (
	"net/http"

	"genstudio/internal/domain"
)

type checkoutRequest struct {
	Plan string `json:"plan"`
}

func (a *App) Checkout(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if a.Billing == nil {
		a.writeDomainError(w, r, domain.ErrBillingDisabled, http.StatusNotFound)
		return
	}
	var req checkoutRequest
	if err := a.decode(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	plan, ok := domain.ParsePlan(req.Plan)
	if !ok || plan != domain.PlanPremium {
		a.error(w, http.StatusBadRequest, "Invalid plan")
		return
	}
	user, err := a.Store.Users().GetByID(r.Context(), userID)
	if err != nil {
		a.writeDomainError(w, r, err, http.StatusNotFound)
		return
	}
	if user.Email == "" {
		a.error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	url, err := a.Billing.CreateCheckoutSession(r.Context(), *user, plan)
	if err != nil {
		a.writeDomainError(w, r, err, http.StatusNotFound)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"url": url})
}

func (a *App) Portal(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if a.Billing == nil {
		a.writeDomainError(w, r, domain.ErrBillingDisabled, http.StatusNotFound)
		return
	}
	sub, err := a.Store.Subscriptions().GetByUserID(r.Context(), userID)
	if err != nil {
		if isNotFound(err) {
			err = domain.ErrNoSubscription
		}
		a.writeDomainError(w, r, err, http.StatusNotFound)
		return
	}
	if sub.StripeCustomerID == "" {
		a.writeDomainError(w, r, domain.ErrNoSubscription, http.StatusNotFound)
		return
	}
	url, err := a.Billing.CreatePortalSession(r.Context(), sub.StripeCustomerID)
	if err != nil {
		a.writeDomainError(w, r, err, http.StatusNotFound)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"url": url})
}
