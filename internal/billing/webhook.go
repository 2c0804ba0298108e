package billing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82/webhook"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/metrics"
)

const webhookBodyLimit = 64 * 1024

// Applier applies a decoded billing event.
type Applier interface {
	Apply(ctx context.Context, ev Event) error
}

// WebhookHandler verifies Stripe deliveries and applies them. Processing
// failures answer 500 so Stripe redelivers.
type WebhookHandler struct {
	secret  string
	applier Applier
	logger  *infra.Logger
}

// NewWebhookHandler creates the Stripe webhook endpoint.
func NewWebhookHandler(secret string, applier Applier, logger *infra.Logger) *WebhookHandler {
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return &WebhookHandler{secret: strings.TrimSpace(secret), applier: applier, logger: logger}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	eventType := "unknown"
	outcome := "ok"
	defer func() {
		metrics.WebhookEventsTotal.WithLabelValues(eventType, outcome).Inc()
	}()

	if h.secret == "" {
		outcome = "unconfigured"
		writeError(w, http.StatusServiceUnavailable, "webhook secret not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, webhookBodyLimit)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		outcome = "bad_request"
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		outcome = "bad_signature"
		writeError(w, http.StatusBadRequest, "missing Stripe signature")
		return
	}
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, h.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		outcome = "bad_signature"
		h.logger.Warn().Err(err).Msg("billing: webhook signature rejected")
		writeError(w, http.StatusBadRequest, "invalid Stripe signature")
		return
	}
	eventType = string(event.Type)

	var raw json.RawMessage
	if event.Data != nil {
		raw = event.Data.Raw
	}
	ev, err := Decode(eventType, raw)
	if errors.Is(err, ErrUnhandledEvent) {
		outcome = "ignored"
		h.logger.Info().Str("type", eventType).Str("event_id", event.ID).Msg("billing: webhook ignored (unhandled type)")
		w.WriteHeader(http.StatusOK)
		return
	}
	if err != nil {
		outcome = "bad_payload"
		h.logger.Warn().Err(err).Str("type", eventType).Str("event_id", event.ID).Msg("billing: webhook payload rejected")
		writeError(w, http.StatusBadRequest, "malformed event payload")
		return
	}

	if err := h.applier.Apply(r.Context(), ev); err != nil {
		outcome = "failed"
		entry := h.logger.Error().Err(err).Str("type", eventType).Str("event_id", event.ID)
		var missing *domain.MissingMetadataError
		if errors.As(err, &missing) {
			entry = entry.Str("session_id", missing.SessionID).Str("field", missing.Field)
		}
		entry.Msg("billing: webhook processing failed")
		writeError(w, http.StatusInternalServerError, "processing failed")
		return
	}

	w.WriteHeader(http.StatusOK)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
