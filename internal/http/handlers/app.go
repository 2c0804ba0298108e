package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"genstudio/internal/domain"
	"genstudio/internal/generation"
	"genstudio/internal/infra"
	"genstudio/internal/middleware"
	"genstudio/internal/usage"
)

const maxRequestBody = 64 << 10

// Generator runs one generation for an authenticated caller.
type Generator interface {
	Submit(ctx context.Context, req generation.Request) (*generation.Result, error)
}

// BillingGateway creates hosted Stripe sessions.
type BillingGateway interface {
	CreateCheckoutSession(ctx context.Context, user domain.User, plan domain.Plan) (string, error)
	CreatePortalSession(ctx context.Context, customerID string) (string, error)
}

type App struct {
	Logger    *infra.Logger
	Store     domain.Store
	Evaluator *usage.Evaluator
	Generator Generator
	Billing   BillingGateway
	Now       func() time.Time
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, message string) {
	a.json(w, code, map[string]any{"error": message})
}

// decode reads an optional JSON body. An empty body leaves v untouched.
func (a *App) decode(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// writeDomainError maps service errors onto responses. noSubscription is the
// status used for domain.ErrNoSubscription, which differs per route.
func (a *App) writeDomainError(w http.ResponseWriter, r *http.Request, err error, noSubscription int) {
	var qe *domain.QuotaExceededError
	var pe *domain.ProviderError
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		a.error(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, domain.ErrNoSubscription):
		a.error(w, noSubscription, "No subscription found")
	case errors.As(err, &qe):
		a.json(w, http.StatusForbidden, map[string]any{
			"error": qe.Error(),
			"limit": qe.Limit,
			"used":  qe.Used,
		})
	case errors.As(err, &pe):
		a.error(w, http.StatusInternalServerError, pe.Error())
	case errors.Is(err, domain.ErrInvalidPrompt),
		errors.Is(err, domain.ErrUnknownProvider),
		errors.Is(err, domain.ErrUnsupportedPlan):
		a.error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "Not found")
	case errors.Is(err, domain.ErrBillingDisabled):
		a.error(w, http.StatusServiceUnavailable, "Billing is not configured")
	default:
		a.Logger.Error().Err(err).
			Str("path", r.URL.Path).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Msg("request failed")
		a.error(w, http.StatusInternalServerError, "Internal server error")
	}
}
