package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/vendormart/api/internal/handlers"
	"github.com/vendormart/api/internal/payments"
	"github.com/vendormart/api/internal/platform/config"
	"github.com/vendormart/api/internal/platform/events"
	pfirestore "github.com/vendormart/api/internal/platform/firestore"
	"github.com/vendormart/api/internal/platform/idempotency"
	"github.com/vendormart/api/internal/platform/observability"
	"github.com/vendormart/api/internal/platform/secrets"
	"github.com/vendormart/api/internal/repositories"
	"github.com/vendormart/api/internal/services"
)

// infrastructure holds the shared clients. redis is nil unless API_REDIS_URL is set.
type infrastructure struct {
	firestore *pfirestore.Provider
	redis     *redis.Client
	health    repositories.HealthRepository
}

func openInfrastructure(ctx context.Context, cfg config.Config, cleanup *closers) (infrastructure, error) {
	var infra infrastructure
	infra.firestore = pfirestore.NewProvider(cfg.Firestore)
	cleanup.add("firestore", infra.firestore.Close)
	if _, err := infra.firestore.Client(ctx); err != nil {
		return infra, err
	}

	checks := []repositories.DependencyCheck{{Name: "firestore", Check: infra.firestore.Ping}}
	if url := strings.TrimSpace(cfg.Redis.URL); url != "" {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return infra, fmt.Errorf("redis url: %w", err)
		}
		client := redis.NewClient(opts)
		cleanup.add("redis", func(context.Context) error { return client.Close() })
		checks = append(checks, repositories.DependencyCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return client.Ping(ctx).Err() },
		})
		infra.redis = client
	}

	health, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return infra, err
	}
	infra.health = health
	return infra, nil
}

// newEventPublisher returns nil for the "none" driver.
func newEventPublisher(ctx context.Context, cfg config.Config, cleanup *closers) (services.EventPublisher, error) {
	switch cfg.Events.Driver {
	case "", "none":
		return nil, nil
	case "pubsub":
		client, err := pubsub.NewClient(ctx, traceProjectID(cfg))
		if err != nil {
			return nil, fmt.Errorf("pubsub client: %w", err)
		}
		cleanup.add("pubsub", func(context.Context) error { return client.Close() })
		publisher, err := events.NewPubSubPublisher(client.Topic(cfg.Events.PubSubTopic))
		if err != nil {
			return nil, err
		}
		cleanup.add("pubsub topic", func(context.Context) error {
			publisher.Stop()
			return nil
		})
		return publisher, nil
	case "kafka":
		publisher, err := events.NewKafkaPublisher(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
		if err != nil {
			return nil, err
		}
		cleanup.add("kafka", func(context.Context) error { return publisher.Close() })
		return publisher, nil
	}
	return nil, fmt.Errorf("unsupported events driver %q", cfg.Events.Driver)
}

func newIdempotencyStore(cfg config.Config, infra infrastructure) (idempotency.Store, error) {
	switch cfg.Idempotency.Backend {
	case "", "firestore":
		return idempotency.NewFirestoreStore(infra.firestore), nil
	case "memory":
		return idempotency.NewMemoryStore(), nil
	case "redis":
		if infra.redis == nil {
			return nil, fmt.Errorf("redis backend requires API_REDIS_URL")
		}
		return idempotency.NewRedisStore(infra.redis), nil
	}
	return nil, fmt.Errorf("unsupported idempotency backend %q", cfg.Idempotency.Backend)
}

// newPaymentEventParser returns nil when no signing secret is configured, which
// leaves the webhook route answering 404.
func newPaymentEventParser(cfg config.Config, logger *zap.Logger) (handlers.PaymentEventParser, error) {
	secret := strings.TrimSpace(cfg.PSP.StripeWebhookSecret)
	if secret == "" {
		logger.Warn("stripe webhook secret not configured; payment webhooks disabled")
		return nil, nil
	}
	webhook, err := payments.NewStripeWebhook(payments.StripeWebhookConfig{
		Secret: secret,
		Logger: observability.ServiceLogger(logger.Named("stripe")),
	})
	if err != nil {
		return nil, err
	}
	return webhook, nil
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	get := func(key string) string { return strings.TrimSpace(env[key]) }
	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithDefaultProject(firstNonEmpty(get("API_SECRET_DEFAULT_PROJECT_ID"), get("API_FIREBASE_PROJECT_ID"))),
	}
	if path := get("API_SECRET_FALLBACK_FILE"); path != "" {
		opts = append(opts, secrets.WithFallbackFile(path))
	}
	if creds := get("API_FIREBASE_CREDENTIALS_FILE"); creds != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(creds)))
	}
	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames makes the Stripe signing secret mandatory outside local
// runs, and the redis URL mandatory when redis backs idempotency.
func requiredSecretNames(env map[string]string) []string {
	var required []string
	if environment := strings.ToLower(strings.TrimSpace(env["API_SECURITY_ENVIRONMENT"])); environment != "" && environment != "local" {
		required = append(required, "PSP.StripeWebhookSecret")
	}
	if strings.EqualFold(strings.TrimSpace(env["API_IDEMPOTENCY_BACKEND"]), "redis") {
		required = append(required, "Redis.URL")
	}
	return required
}

func buildInfoFromEnv(env map[string]string, cfg config.Config) handlers.BuildInfo {
	return handlers.BuildInfo{
		Version:     firstNonEmpty(env["API_BUILD_VERSION"], "dev"),
		CommitSHA:   firstNonEmpty(env["API_BUILD_COMMIT_SHA"], "unknown"),
		Environment: firstNonEmpty(cfg.Security.Environment, "local"),
		StartedAt:   time.Now().UTC(),
	}
}

func traceProjectID(cfg config.Config) string {
	return firstNonEmpty(cfg.Firebase.ProjectID, cfg.Firestore.ProjectID)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
