package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"API_FIREBASE_PROJECT_ID": "vm-dev",
	}
}

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithEnvMap(baseEnv()), WithoutSystemEnv(), WithEnvFile(""))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "vm-dev", cfg.Firestore.ProjectID, "firestore project defaults to firebase project")
	assert.True(t, cfg.Orders.TaxRate.Equal(decimal.RequireFromString("0.08")))
	assert.True(t, cfg.Orders.FreeShippingThreshold.Equal(decimal.NewFromInt(50)))
	assert.True(t, cfg.Orders.FlatShippingFee.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "en-CA", cfg.Orders.DefaultLocale)
	assert.False(t, cfg.Orders.PermissiveTransitions)
	assert.Equal(t, 5, cfg.Orders.LowStockThreshold)
	assert.Equal(t, "none", cfg.Events.Driver)
	assert.Equal(t, "firestore", cfg.Idempotency.Backend)
	assert.Equal(t, defaultIdempotencyHeader, cfg.Idempotency.Header)
	assert.Equal(t, defaultIdempotencyTTL, cfg.Idempotency.TTL)
	assert.Equal(t, defaultIdempotencyMaxBody, cfg.Idempotency.MaxBodyBytes)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "local", cfg.Security.Environment)
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := baseEnv()
	env["API_SERVER_PORT"] = "9090"
	env["API_ORDERS_TAX_RATE"] = "0.13"
	env["API_ORDERS_FREE_SHIPPING_THRESHOLD"] = "75.00"
	env["API_ORDERS_PERMISSIVE_TRANSITIONS"] = "true"
	env["API_EVENTS_DRIVER"] = "KAFKA"
	env["API_EVENTS_KAFKA_BROKERS"] = "kafka-1:9092, kafka-2:9092"
	env["API_IDEMPOTENCY_BACKEND"] = "redis"
	env["API_REDIS_URL"] = "secret://redis/url"
	env["API_PSP_STRIPE_WEBHOOK_SECRET"] = "sm://stripe/webhook"

	resolved := map[string]string{}
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		resolved[ref] = "resolved:" + ref
		return resolved[ref], nil
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.True(t, cfg.Orders.TaxRate.Equal(decimal.RequireFromString("0.13")))
	assert.True(t, cfg.Orders.FreeShippingThreshold.Equal(decimal.NewFromInt(75)))
	assert.True(t, cfg.Orders.PermissiveTransitions)
	assert.Equal(t, "kafka", cfg.Events.Driver)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Events.KafkaBrokers)
	assert.Equal(t, "resolved:secret://redis/url", cfg.Redis.URL)
	assert.Equal(t, "resolved:secret://stripe/webhook", cfg.PSP.StripeWebhookSecret, "sm:// is normalised to secret://")
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "export API_FIREBASE_PROJECT_ID=from-dotenv\nAPI_ORDERS_LOW_STOCK_THRESHOLD=\"3\"\n# comment\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(context.Background(), WithEnvFile(path), WithoutSystemEnv())
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Firebase.ProjectID)
	assert.Equal(t, 3, cfg.Orders.LowStockThreshold)
}

func TestLoadValidationErrors(t *testing.T) {
	env := map[string]string{
		"API_ORDERS_TAX_RATE":     "eight percent",
		"API_EVENTS_DRIVER":       "pubsub",
		"API_IDEMPOTENCY_BACKEND": "redis",
	}
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))

	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	assert.ElementsMatch(t, []string{
		"Orders.TaxRate",
		"Firebase.ProjectID",
		"Firestore.ProjectID",
		"Events.PubSubTopic",
		"Redis.URL",
	}, verr.Fields())
}

func TestLoadSecretResolverError(t *testing.T) {
	env := baseEnv()
	env["API_PSP_STRIPE_WEBHOOK_SECRET"] = "secret://stripe/webhook"

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var secretErr *SecretError
	require.True(t, errors.As(err, &secretErr))
	assert.Equal(t, "secret://stripe/webhook", secretErr.Ref)
	assert.ErrorIs(t, err, errSecretResolverNotConfigured)
}

func TestLoadMissingRequiredSecrets(t *testing.T) {
	_, err := Load(context.Background(),
		WithEnvMap(baseEnv()),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("PSP.StripeWebhookSecret"),
	)
	var missing *MissingSecretsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"PSP.StripeWebhookSecret"}, missing.Names())
	assert.NotContains(t, missing.Error(), "Stripe")

	assert.Panics(t, func() {
		_, _ = Load(context.Background(),
			WithEnvMap(baseEnv()),
			WithoutSystemEnv(),
			WithEnvFile(""),
			WithRequiredSecrets("PSP.StripeWebhookSecret"),
			WithPanicOnMissingSecrets(),
		)
	})
}

func TestEnvironmentValuesMergesSources(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("A=dotenv\nB=dotenv\n"), 0o600))

	values, err := EnvironmentValues(WithEnvFile(path), WithoutSystemEnv(), WithEnvMap(map[string]string{"B": "explicit"}))
	require.NoError(t, err)
	assert.Equal(t, "dotenv", values["A"])
	assert.Equal(t, "explicit", values["B"])
}

func TestLoadRejectsUnparseableValues(t *testing.T) {
	env := baseEnv()
	env["API_SERVER_READ_TIMEOUT"] = "fifteen"
	env["API_ORDERS_LOW_STOCK_THRESHOLD"] = "few"
	env["API_METRICS_ENABLED"] = "maybe"
	env["API_IDEMPOTENCY_BACKEND"] = "dynamo"

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))

	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	assert.Equal(t, []string{
		"Server.ReadTimeout",
		"Orders.LowStockThreshold",
		"Metrics.Enabled",
		"Idempotency.Backend",
	}, verr.Fields())
}

func TestSecretReference(t *testing.T) {
	cases := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{in: "plain-value", want: "plain-value"},
		{in: " secret://stripe/webhook ", want: "secret://stripe/webhook", wantOK: true},
		{in: "sm://redis/url", want: "secret://redis/url", wantOK: true},
	}
	for _, tc := range cases {
		got, ok := secretReference(tc.in)
		assert.Equal(t, tc.want, got, tc.in)
		assert.Equal(t, tc.wantOK, ok, tc.in)
	}
}
