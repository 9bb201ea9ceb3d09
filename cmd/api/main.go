// Command api serves the VendorMart order and inventory API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vendormart/api/internal/di"
	"github.com/vendormart/api/internal/handlers"
	"github.com/vendormart/api/internal/platform/auth"
	"github.com/vendormart/api/internal/platform/config"
	"github.com/vendormart/api/internal/platform/idempotency"
	"github.com/vendormart/api/internal/platform/metrics"
	"github.com/vendormart/api/internal/platform/observability"
	firestoreRepo "github.com/vendormart/api/internal/repositories/firestore"
)

const (
	shutdownGrace = 10 * time.Second
	closeTimeout  = 5 * time.Second
)

func main() {
	env, err := config.EnvironmentValues()
	if err != nil {
		fmt.Fprintf(os.Stderr, "read environment: %v\n", err)
		os.Exit(1)
	}
	root, err := observability.NewLogger(env["API_LOG_LEVEL"])
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	logger := root.Named("api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(observability.WithLogger(ctx, logger), logger, env)
	stop()
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Error("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		} else {
			logger.Error("api exited", zap.Error(err))
		}
		_ = root.Sync()
		os.Exit(1)
	}
	_ = root.Sync()
}

// run wires the API and serves until ctx is cancelled. Resources are released
// in reverse order of acquisition.
func run(ctx context.Context, logger *zap.Logger, env map[string]string) error {
	var cleanup closers
	defer cleanup.closeAll(logger)

	fetcher, err := newSecretFetcher(ctx, logger, env)
	if err != nil {
		return fmt.Errorf("secret fetcher: %w", err)
	}
	cleanup.add("secrets", func(context.Context) error { return fetcher.Close() })

	cfg, err := config.Load(ctx, config.WithSecretResolver(fetcher), config.WithRequiredSecrets(requiredSecretNames(env)...))
	if err != nil {
		return err
	}

	infra, err := openInfrastructure(ctx, cfg, &cleanup)
	if err != nil {
		return err
	}
	registry, err := firestoreRepo.NewRegistry(infra.firestore, infra.health)
	if err != nil {
		return fmt.Errorf("repositories: %w", err)
	}

	publisher, err := newEventPublisher(ctx, cfg, &cleanup)
	if err != nil {
		return fmt.Errorf("event publisher: %w", err)
	}
	containerOpts := []di.Option{di.WithLogger(logger)}
	if publisher != nil {
		containerOpts = append(containerOpts, di.WithEventPublisher(publisher))
	}
	var metricsRegistry *metrics.Registry
	if cfg.Metrics.Enabled {
		metricsRegistry = metrics.NewRegistry()
		containerOpts = append(containerOpts, di.WithMetrics(metricsRegistry))
	}
	container, err := di.NewContainer(ctx, cfg, registry, containerOpts...)
	if err != nil {
		return fmt.Errorf("services: %w", err)
	}
	cleanup.add("repositories", container.Close)

	store, err := newIdempotencyStore(cfg, infra)
	if err != nil {
		return fmt.Errorf("idempotency store: %w", err)
	}

	verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		return fmt.Errorf("firebase verifier: %w", err)
	}
	authn := auth.NewAuthenticator(verifier)

	paymentEvents, err := newPaymentEventParser(cfg, logger)
	if err != nil {
		return fmt.Errorf("stripe webhook: %w", err)
	}

	info := buildInfoFromEnv(env, cfg)
	httpLogger := logger.Named("http")
	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(httpLogger),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(httpLogger),
		observability.RequestLoggerMiddleware(projectID),
	}
	routerOpts := []handlers.Option{
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(
			handlers.WithHealthBuildInfo(info),
			handlers.WithHealthRepository(registry.Health()),
		)),
		handlers.WithOrderRoutes(handlers.NewOrderHandlers(authn, container.Services.Orders, idempotency.Middleware(store,
			idempotency.WithHeader(cfg.Idempotency.Header),
			idempotency.WithTTL(cfg.Idempotency.TTL),
			idempotency.WithMaxBodyBytes(int64(cfg.Idempotency.MaxBodyBytes)),
			idempotency.WithLogger(logger.Named("idempotency")),
		)).Routes),
		handlers.WithAdminRoutes(handlers.NewAdminOrderHandlers(authn, container.Services.Orders, container.Services.Stock).Routes),
		handlers.WithWebhookRoutes(handlers.NewWebhookHandlers(paymentEvents, container.Services.Orders,
			observability.ServiceLogger(logger.Named("webhooks"))).Routes),
	}
	if metricsRegistry != nil {
		middlewares = append(middlewares, metricsRegistry.Middleware)
		routerOpts = append(routerOpts, handlers.WithMetricsHandler(metricsRegistry.Handler()))
	}
	routerOpts = append(routerOpts, handlers.WithMiddlewares(middlewares...))

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handlers.NewRouter(routerOpts...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		httpLogger.Info("vendormart api listening", zap.String("addr", server.Addr), zap.String("version", info.Version))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		idempotency.Janitor{
			Store:     store,
			Interval:  cfg.Idempotency.CleanupInterval,
			BatchSize: cfg.Idempotency.CleanupBatchSize,
			Logger:    logger.Named("idempotency"),
		}.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down, draining requests")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type closer struct {
	name string
	fn   func(context.Context) error
}

// closers releases resources last-in first-out.
type closers []closer

func (c *closers) add(name string, fn func(context.Context) error) {
	*c = append(*c, closer{name: name, fn: fn})
}

func (c closers) closeAll(logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i].fn(ctx); err != nil {
			logger.Warn("close failed", zap.String("resource", c[i].name), zap.Error(err))
		}
	}
}
