package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"genstudio/internal/adapter/memory"
	"genstudio/internal/domain"
	"genstudio/internal/generation"
	"genstudio/internal/infra"
	"genstudio/internal/middleware"
	"genstudio/internal/providers"
	"genstudio/internal/usage"
)

var testNow = time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

type stubGateway struct {
	checkoutUser domain.User
	portalID     string
	err          error
}

func (g *stubGateway) CreateCheckoutSession(ctx context.Context, user domain.User, plan domain.Plan) (string, error) {
	g.checkoutUser = user
	if g.err != nil {
		return "", g.err
	}
	return "https://checkout.stripe.test/s/1", nil
}

func (g *stubGateway) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	g.portalID = customerID
	return "https://billing.stripe.test/p/1", nil
}

type failingProvider struct{}

func (failingProvider) Kind() providers.Kind                 { return providers.KindDalle }
func (failingProvider) Supports(rt domain.ResourceType) bool { return rt == domain.ResourceImage }
func (failingProvider) Generate(ctx context.Context, req providers.Request) (*providers.Result, error) {
	return nil, &domain.ProviderError{Provider: "dalle", Message: "content policy violation"}
}

func newTestApp(t *testing.T, store *memory.Store) (*App, *stubGateway) {
	t.Helper()
	logger := infra.Logger(zerolog.Nop())
	clock := func() time.Time { return testNow }
	store.WithClock(clock)
	svc, err := generation.NewService(generation.Options{
		Store:     store,
		Providers: providers.NewRegistryOf(providers.NewMock(), failingProvider{}),
		Logger:    &logger,
		Now:       clock,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	gw := &stubGateway{}
	return &App{
		Logger:    &logger,
		Store:     store,
		Evaluator: usage.NewEvaluator(store.Subscriptions(), store.Ledger(), time.UTC),
		Generator: svc,
		Billing:   gw,
		Now:       clock,
	}, gw
}

func storeWith(plan domain.Plan) *memory.Store {
	store := memory.New()
	store.PutSubscription(domain.Subscription{UserID: "u1", Plan: plan, Status: domain.SubscriptionActive})
	return store
}

func do(t *testing.T, h http.HandlerFunc, method, target, subject string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if subject != "" {
		req = req.WithContext(middleware.ContextWithIdentity(req.Context(), domain.Identity{
			Subject: subject,
			Email:   "ann.lee@example.com",
		}))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, out
}

func TestGenerateImageQuotaExceeded(t *testing.T) {
	app, _ := newTestApp(t, storeWith(domain.PlanFree))

	for i := 0; i < 2; i++ {
		rec, _ := do(t, app.GenerateImage, http.MethodPost, "/generate/image", "u1", map[string]string{"prompt": "a cat"})
		if rec.Code != http.StatusOK {
			t.Fatalf("generation %d status = %d body=%s", i, rec.Code, rec.Body.String())
		}
	}

	rec, body := do(t, app.GenerateImage, http.MethodPost, "/generate/image", "u1", map[string]string{"prompt": "a cat"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if body["error"] == nil || body["limit"] != float64(2) || body["used"] != float64(2) {
		t.Fatalf("unexpected quota payload %v", body)
	}
}

func TestGenerateImagePremiumPayload(t *testing.T) {
	app, _ := newTestApp(t, storeWith(domain.PlanPremium))

	rec, body := do(t, app.GenerateImage, http.MethodPost, "/generate/image", "u1", map[string]string{"prompt": "  a   red fox  "})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if body["success"] != true {
		t.Fatalf("success = %v", body["success"])
	}
	data := body["data"].(map[string]any)
	if data["id"] == "" || data["url"] == "" || data["kind"] != "image" || data["provider"] != "mock" {
		t.Fatalf("unexpected data %v", data)
	}
	if data["prompt"] != "a red fox" {
		t.Fatalf("prompt = %q", data["prompt"])
	}
	usageBody := body["usage"].(map[string]any)
	if usageBody["used"] != float64(1) || usageBody["limit"] != nil || usageBody["plan"] != "premium" {
		t.Fatalf("unexpected usage %v", usageBody)
	}
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name    string
		store   *memory.Store
		subject string
		body    any
		want    int
	}{
		{name: "unauthenticated", store: storeWith(domain.PlanFree), body: map[string]string{"prompt": "x"}, want: http.StatusUnauthorized},
		{name: "no subscription", store: memory.New(), subject: "u1", body: map[string]string{"prompt": "x"}, want: http.StatusForbidden},
		{name: "empty prompt", store: storeWith(domain.PlanFree), subject: "u1", body: map[string]string{"prompt": "   "}, want: http.StatusBadRequest},
		{name: "unknown provider", store: storeWith(domain.PlanFree), subject: "u1", body: map[string]string{"prompt": "x", "provider": "midjourney"}, want: http.StatusBadRequest},
		{name: "provider failure", store: storeWith(domain.PlanFree), subject: "u1", body: map[string]string{"prompt": "x", "provider": "dalle"}, want: http.StatusInternalServerError},
		{name: "malformed body", store: storeWith(domain.PlanFree), subject: "u1", body: "not an object", want: http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			app, _ := newTestApp(t, tc.store)
			rec, body := do(t, app.GenerateImage, http.MethodPost, "/generate/image", tc.subject, tc.body)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d body=%s", rec.Code, tc.want, rec.Body.String())
			}
			if body["error"] == nil {
				t.Fatalf("missing error field: %v", body)
			}
		})
	}
}

func TestProviderFailureMarksRecordFailed(t *testing.T) {
	store := storeWith(domain.PlanFree)
	app, _ := newTestApp(t, store)

	do(t, app.GenerateImage, http.MethodPost, "/generate/image", "u1", map[string]string{"prompt": "x", "provider": "dalle"})

	recs, err := store.Ledger().ListSince(context.Background(), "u1", usage.MonthStart(testNow, time.UTC))
	if err != nil {
		t.Fatalf("ListSince: %v", err)
	}
	if len(recs) != 1 || recs[0].Status != domain.GenerationFailed || recs[0].ErrorMessage == "" {
		t.Fatalf("unexpected records %+v", recs)
	}
}

func TestUsageResponse(t *testing.T) {
	store := storeWith(domain.PlanFree)
	store.PutGeneration(domain.GenerationRecord{UserID: "u1", Type: domain.ResourceImage, Status: domain.GenerationCompleted, CreatedAt: testNow.Add(-time.Hour)})
	store.PutGeneration(domain.GenerationRecord{UserID: "u1", Type: domain.ResourceImage, Status: domain.GenerationCompleted, CreatedAt: testNow.AddDate(0, -1, 0)})
	app, _ := newTestApp(t, store)

	rec, body := do(t, app.Usage, http.MethodGet, "/usage", "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	data := body["data"].(map[string]any)
	if data["plan"] != "free" {
		t.Fatalf("plan = %v", data["plan"])
	}
	u := data["usage"].(map[string]any)
	image := u["image"].(map[string]any)
	video := u["video"].(map[string]any)
	if image["used"] != float64(1) || image["limit"] != float64(2) || image["remaining"] != float64(1) {
		t.Fatalf("image usage = %v", image)
	}
	if video["used"] != float64(0) || video["limit"] != float64(1) || video["remaining"] != float64(1) {
		t.Fatalf("video usage = %v", video)
	}
	if gens := data["generations"].([]any); len(gens) != 1 {
		t.Fatalf("generations = %v", gens)
	}
	if data["resetDate"] != "2024-06-01T00:00:00Z" {
		t.Fatalf("resetDate = %v", data["resetDate"])
	}
}

func TestUsageWithoutSubscription(t *testing.T) {
	app, _ := newTestApp(t, memory.New())
	rec, _ := do(t, app.Usage, http.MethodGet, "/usage", "u1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestSessionProvisionsFreeSubscription(t *testing.T) {
	store := memory.New()
	app, _ := newTestApp(t, store)

	rec, body := do(t, app.Session, http.MethodPost, "/auth/session", "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if body["name"] != "Ann Lee" {
		t.Fatalf("name = %v", body["name"])
	}
	sub := body["subscription"].(map[string]any)
	if sub["plan"] != "free" || sub["status"] != "active" {
		t.Fatalf("subscription = %v", sub)
	}

	store.PutSubscription(domain.Subscription{UserID: "u1", Plan: domain.PlanPremium, Status: domain.SubscriptionActive})
	_, body = do(t, app.Session, http.MethodPost, "/auth/session", "u1", nil)
	if body["subscription"].(map[string]any)["plan"] != "premium" {
		t.Fatalf("existing subscription was replaced: %v", body)
	}

	rec, body = do(t, app.Me, http.MethodGet, "/me", "u1", nil)
	if rec.Code != http.StatusOK || body["email"] != "ann.lee@example.com" {
		t.Fatalf("me status=%d body=%v", rec.Code, body)
	}
}

func TestGenerationOwnership(t *testing.T) {
	store := storeWith(domain.PlanFree)
	own := store.PutGeneration(domain.GenerationRecord{UserID: "u1", Type: domain.ResourceImage, Status: domain.GenerationCompleted, CreatedAt: testNow})
	other := store.PutGeneration(domain.GenerationRecord{UserID: "u2", Type: domain.ResourceImage, Status: domain.GenerationCompleted, CreatedAt: testNow})
	app, _ := newTestApp(t, store)

	get := func(id string) int {
		r := chi.NewRouter()
		r.Get("/generations/{id}", app.Generation)
		req := httptest.NewRequest(http.MethodGet, "/generations/"+id, nil)
		req = req.WithContext(middleware.ContextWithIdentity(req.Context(), domain.Identity{Subject: "u1"}))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}
	if code := get(own.ID); code != http.StatusOK {
		t.Fatalf("own record status = %d", code)
	}
	if code := get(other.ID); code != http.StatusNotFound {
		t.Fatalf("foreign record status = %d", code)
	}
}

func TestCheckoutAndPortal(t *testing.T) {
	store := storeWith(domain.PlanFree)
	app, gw := newTestApp(t, store)
	if _, err := store.Users().Upsert(context.Background(), &domain.User{ID: "u1", Email: "ann@example.com"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	rec, _ := do(t, app.Checkout, http.MethodPost, "/billing/checkout", "u1", map[string]string{"plan": "gold"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid plan status = %d", rec.Code)
	}
	rec, body := do(t, app.Checkout, http.MethodPost, "/billing/checkout", "u1", map[string]string{"plan": "premium"})
	if rec.Code != http.StatusOK || body["url"] != "https://checkout.stripe.test/s/1" {
		t.Fatalf("checkout status=%d body=%v", rec.Code, body)
	}
	if gw.checkoutUser.Email != "ann@example.com" {
		t.Fatalf("checkout user = %+v", gw.checkoutUser)
	}

	rec, _ = do(t, app.Portal, http.MethodPost, "/billing/portal", "u1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("portal without customer status = %d", rec.Code)
	}
	store.PutSubscription(domain.Subscription{UserID: "u1", Plan: domain.PlanPremium, Status: domain.SubscriptionActive, StripeCustomerID: "cus_1"})
	rec, body = do(t, app.Portal, http.MethodPost, "/billing/portal", "u1", nil)
	if rec.Code != http.StatusOK || body["url"] == nil || gw.portalID != "cus_1" {
		t.Fatalf("portal status=%d body=%v", rec.Code, body)
	}

	gw.err = domain.ErrBillingDisabled
	rec, _ = do(t, app.Checkout, http.MethodPost, "/billing/checkout", "u1", map[string]string{"plan": "premium"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("disabled billing status = %d", rec.Code)
	}

	gw.err = errors.New("stripe down")
	rec, _ = do(t, app.Checkout, http.MethodPost, "/billing/checkout", "u1", map[string]string{"plan": "premium"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("gateway failure status = %d", rec.Code)
	}
}
