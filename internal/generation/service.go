// Package generation admits, runs and records generation requests.
package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/metrics"
	"genstudio/internal/providers"
	"genstudio/internal/usage"
)

const finalizeTimeout = 5 * time.Second

// ProviderSource resolves a backend by kind.
type ProviderSource interface {
	Get(kind providers.Kind) (providers.Provider, error)
}

// AssetSink stores inline payloads and returns a public URL.
type AssetSink interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
}

// Options configures a Service.
type Options struct {
	Store           domain.Store
	Providers       ProviderSource
	Assets          AssetSink
	DefaultProvider providers.Kind
	Location        *time.Location
	Timeout         time.Duration
	MaxAttempts     int
	Logger          *infra.Logger
	Now             func() time.Time
}

// Request is one generation submission.
type Request struct {
	UserID   string
	Type     domain.ResourceType
	Prompt   string
	Provider providers.Kind
	Params   providers.Params
}

// UsageSummary reports the position after an admitted request.
type UsageSummary struct {
	Used  int
	Limit *int
	Plan  domain.Plan
}

// Result is a completed generation.
type Result struct {
	Record domain.GenerationRecord
	Asset  domain.Asset
	Usage  UsageSummary
}

// Service runs the admit, call, record pipeline.
type Service struct {
	store           domain.Store
	providers       ProviderSource
	assets          AssetSink
	defaultProvider providers.Kind
	loc             *time.Location
	timeout         time.Duration
	maxAttempts     int
	logger          *infra.Logger
	now             func() time.Time
}

// NewService validates opts and applies defaults.
func NewService(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("generation: store is required")
	}
	if opts.Providers == nil {
		return nil, errors.New("generation: providers are required")
	}
	s := &Service{
		store:           opts.Store,
		providers:       opts.Providers,
		assets:          opts.Assets,
		defaultProvider: opts.DefaultProvider,
		loc:             opts.Location,
		timeout:         opts.Timeout,
		maxAttempts:     opts.MaxAttempts,
		logger:          opts.Logger,
		now:             opts.Now,
	}
	if s.defaultProvider == "" {
		s.defaultProvider = providers.KindMock
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.timeout <= 0 {
		s.timeout = 60 * time.Second
	}
	if s.maxAttempts < 1 {
		s.maxAttempts = 1
	}
	if s.logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		s.logger = &l
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Submit admits the request against the caller's plan, calls the provider and
// records the outcome. Rejected requests leave no record. Provider failures
// mark the record failed and surface as *domain.ProviderError.
func (s *Service) Submit(ctx context.Context, req Request) (*Result, error) {
	if req.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}
	prompt, err := NormalizePrompt(req.Prompt)
	if err != nil {
		return nil, err
	}
	kind := req.Provider
	if kind == "" {
		kind = s.defaultProvider
	}
	provider, err := s.providers.Get(kind)
	if err != nil {
		return nil, err
	}
	if !provider.Supports(req.Type) {
		return nil, fmt.Errorf("%w: %s does not generate %s", domain.ErrUnknownProvider, kind, req.Type)
	}

	now := s.now()
	adm, err := s.store.Ledger().Admit(ctx, domain.AdmitRequest{
		UserID:      req.UserID,
		Type:        req.Type,
		Prompt:      prompt,
		Provider:    string(kind),
		WindowStart: usage.MonthStart(now, s.loc),
		Now:         now,
	})
	if err != nil {
		var qe *domain.QuotaExceededError
		if errors.As(err, &qe) {
			metrics.QuotaDenialsTotal.WithLabelValues(string(req.Type)).Inc()
			s.logger.Info().
				Str("user_id", req.UserID).
				Str("type", string(req.Type)).
				Int("limit", qe.Limit).
				Int("used", qe.Used).
				Msg("generation rejected by quota")
		}
		return nil, err
	}
	rec := *adm.Record
	log := s.logger.With().
		Str("user_id", req.UserID).
		Str("generation_id", rec.ID).
		Str("provider", string(kind)).
		Str("type", string(req.Type)).
		Logger()

	res, err := s.call(ctx, provider, providers.Request{Type: req.Type, Prompt: prompt, Params: req.Params})
	if err != nil {
		perr := toProviderError(kind, err, s.timeout)
		s.finalize(ctx, &log, func(fctx context.Context) error {
			return s.store.Ledger().Fail(fctx, rec.ID, perr.Message)
		})
		metrics.GenerationsTotal.WithLabelValues(string(req.Type), string(kind), string(domain.GenerationFailed)).Inc()
		log.Warn().Err(perr).Msg("generation failed")
		return nil, perr
	}

	asset := s.materialize(ctx, &log, rec, res.Asset)
	var completeErr error
	s.finalize(ctx, &log, func(fctx context.Context) error {
		completeErr = s.store.Ledger().Complete(fctx, rec.ID, asset.Reference())
		return completeErr
	})
	if completeErr != nil {
		return nil, fmt.Errorf("record generation: %w", completeErr)
	}
	metrics.GenerationsTotal.WithLabelValues(string(req.Type), string(kind), string(domain.GenerationCompleted)).Inc()
	log.Info().Int("used", adm.Used).Msg("generation completed")

	rec.Status = domain.GenerationCompleted
	rec.Result = asset.Reference()
	return &Result{
		Record: rec,
		Asset:  asset,
		Usage:  UsageSummary{Used: adm.Used, Limit: adm.Limit, Plan: adm.Subscription.Plan},
	}, nil
}

func (s *Service) call(ctx context.Context, p providers.Provider, req providers.Request) (*providers.Result, error) {
	op := func() (*providers.Result, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		start := time.Now()
		res, err := p.Generate(callCtx, req)
		metrics.ProviderDuration.WithLabelValues(string(p.Kind())).Observe(time.Since(start).Seconds())
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return res, nil
	}
	if s.maxAttempts == 1 {
		return op()
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(s.maxAttempts)),
	)
}

// materialize writes inline payloads to the asset sink. On any failure the
// inline asset is kept so the result is not lost.
func (s *Service) materialize(ctx context.Context, log *zerolog.Logger, rec domain.GenerationRecord, asset domain.Asset) domain.Asset {
	if s.assets == nil || asset.Kind != domain.AssetKindInline {
		return asset
	}
	data, err := asset.Bytes()
	if err != nil {
		log.Warn().Err(err).Msg("inline asset is not valid base64")
		return asset
	}
	key := fmt.Sprintf("generations/%s/%s%s", rec.UserID, rec.ID, asset.Extension())
	url, err := s.assets.Put(ctx, key, data)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("store inline asset")
		return asset
	}
	return domain.Asset{Kind: domain.AssetKindURL, Value: url, MIME: asset.MIME}
}

// finalize runs fn with a context detached from the request so a client
// disconnect cannot leave the record pending.
func (s *Service) finalize(ctx context.Context, log *zerolog.Logger, fn func(context.Context) error) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	if err := fn(fctx); err != nil {
		log.Error().Err(err).Msg("finalize generation record")
	}
}

func toProviderError(kind providers.Kind, err error, timeout time.Duration) *domain.ProviderError {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) && perm.Err != nil {
		err = perm.Err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.ProviderError{
			Provider: string(kind),
			Message:  fmt.Sprintf("timed out after %s", timeout),
			Err:      err,
		}
	}
	return domain.NewProviderError(string(kind), err)
}
