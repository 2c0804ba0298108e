package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"genstudio/internal/adapter/memory"
	"genstudio/internal/adapter/repo"
	"genstudio/internal/billing"
	"genstudio/internal/domain"
	"genstudio/internal/generation"
	"genstudio/internal/http/handlers"
	httpapi "genstudio/internal/http/httpapi"
	"genstudio/internal/infra"
	"genstudio/internal/infra/credentials"
	"genstudio/internal/middleware"
	"genstudio/internal/providers"
	"genstudio/internal/storage"
	"genstudio/internal/usage"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, &logger); err != nil {
		logger.Fatal().Err(err).Msg("api stopped with error")
	}
	logger.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *infra.Config, logger *infra.Logger) error {
	var (
		store domain.Store
		keys  providers.KeySource
	)
	switch cfg.StoreDriver {
	case infra.StoreDriverMemory:
		logger.Warn().Msg("using in-memory store, data is lost on restart")
		store = memory.New()
	default:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()
		runner := infra.NewSQLRunner(pool, *logger)
		store = repo.NewStore(runner)
		keys = credentials.NewStore(runner)
	}

	registry, err := providers.NewRegistry(providers.Config{
		OpenAIAPIKey:          cfg.OpenAIAPIKey,
		OpenAIBaseURL:         cfg.OpenAIBaseURL,
		StabilityAPIKey:       cfg.StabilityAPIKey,
		StabilityBaseURL:      cfg.StabilityBaseURL,
		StabilityEngine:       cfg.StabilityEngine,
		ReplicateAPIToken:     cfg.ReplicateAPIToken,
		ReplicateBaseURL:      cfg.ReplicateBaseURL,
		ReplicateModelVersion: cfg.ReplicateModelVersion,
		Keys:                  keys,
		Logger:                logger,
	})
	if err != nil {
		return fmt.Errorf("build providers: %w", err)
	}
	defaultProvider, ok := providers.ParseKind(cfg.DefaultProvider)
	if !ok {
		return fmt.Errorf("%w: DEFAULT_PROVIDER=%q", domain.ErrUnknownProvider, cfg.DefaultProvider)
	}

	genOpts := generation.Options{
		Store:           store,
		Providers:       registry,
		DefaultProvider: defaultProvider,
		Location:        cfg.UsageLocation,
		Timeout:         cfg.ProviderTimeout,
		MaxAttempts:     cfg.ProviderMaxAttempts,
		Logger:          logger,
	}
	routerOpts := httpapi.Options{
		Logger:          logger,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
	}
	if cfg.StoragePath != "" {
		files, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
		if err != nil {
			return err
		}
		genOpts.Assets = files
		routerOpts.Static = files.Handler()
	}
	generator, err := generation.NewService(genOpts)
	if err != nil {
		return err
	}

	app := &handlers.App{
		Logger:    logger,
		Store:     store,
		Evaluator: usage.NewEvaluator(store.Subscriptions(), store.Ledger(), cfg.UsageLocation),
		Generator: generator,
	}

	var fetcher billing.SubscriptionFetcher
	if cfg.BillingEnabled() {
		gateway := billing.NewGateway(billing.GatewayConfig{
			SecretKey:      cfg.StripeSecretKey,
			PremiumPriceID: cfg.StripePremiumPriceID,
			AppURL:         cfg.AppURL,
		})
		app.Billing = gateway
		fetcher = gateway
	} else {
		logger.Warn().Msg("STRIPE_SECRET_KEY not set, billing routes are disabled")
	}
	syncer := billing.NewSyncer(store.Subscriptions(), fetcher, logger)
	routerOpts.Webhook = billing.NewWebhookHandler(cfg.StripeWebhookSecret, syncer, logger)

	if cfg.OIDCIssuer != "" {
		v, err := middleware.NewOIDCVerifier(ctx, cfg.OIDCIssuer, cfg.OIDCClientID)
		if err != nil {
			return err
		}
		routerOpts.Verifier = v
	} else {
		routerOpts.Verifier = middleware.NewHMACVerifier(cfg.JWTSecret)
	}

	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app, routerOpts))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr()).Str("store", cfg.StoreDriver).Msg("API listening")
		return server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}
