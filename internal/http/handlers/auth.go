package handlers

import (
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"genstudio/internal/domain"
	"genstudio/internal/middleware"
)

type subscriptionDTO struct {
	Plan             domain.Plan               `json:"plan"`
	Status           domain.SubscriptionStatus `json:"status"`
	CurrentPeriodEnd *time.Time                `json:"currentPeriodEnd"`
	HasBilling       bool                      `json:"hasBilling"`
}

type profileDTO struct {
	ID           string           `json:"id"`
	Email        string           `json:"email"`
	Name         string           `json:"name"`
	Subscription *subscriptionDTO `json:"subscription"`
}

func toProfile(u *domain.User, sub *domain.Subscription) profileDTO {
	p := profileDTO{ID: u.ID, Email: u.Email, Name: u.Name}
	if sub != nil {
		p.Subscription = &subscriptionDTO{
			Plan:             sub.Plan,
			Status:           sub.Status,
			CurrentPeriodEnd: sub.CurrentPeriodEnd,
			HasBilling:       sub.StripeCustomerID != "",
		}
	}
	return p
}

// displayName falls back to the email local part, title-cased.
func displayName(identity domain.Identity) string {
	if name := strings.TrimSpace(identity.Name); name != "" {
		return name
	}
	local, _, _ := strings.Cut(identity.Email, "@")
	local = strings.Join(strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	}), " ")
	if local == "" {
		return ""
	}
	return cases.Title(language.Und).String(local)
}

// Session provisions the caller on first sign-in: the user row is upserted
// and a free subscription created if none exists.
func (a *App) Session(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		a.error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	user, err := a.Store.Users().Upsert(r.Context(), &domain.User{
		ID:    identity.Subject,
		Email: strings.TrimSpace(identity.Email),
		Name:  displayName(identity),
	})
	if err != nil {
		a.writeDomainError(w, r, err, http.StatusNotFound)
		return
	}
	sub, err := a.Store.Subscriptions().EnsureFree(r.Context(), user.ID)
	if err != nil {
		a.writeDomainError(w, r, err, http.StatusNotFound)
		return
	}
	a.Logger.Info().Str("user_id", user.ID).Str("plan", string(sub.Plan)).Msg("session established")
	a.json(w, http.StatusOK, toProfile(user, sub))
}

func (a *App) Me(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	user, err := a.Store.Users().GetByID(r.Context(), userID)
	if err != nil {
		a.writeDomainError(w, r, err, http.StatusNotFound)
		return
	}
	sub, err := a.Store.Subscriptions().GetByUserID(r.Context(), userID)
	if err != nil && !isNotFound(err) {
		a.writeDomainError(w, r, err, http.StatusNotFound)
		return
	}
	a.json(w, http.StatusOK, toProfile(user, sub))
}
