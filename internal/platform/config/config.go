package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultEnvFile              = ".env"
	defaultPort                 = "8080"
	defaultReadTimeout          = 15 * time.Second
	defaultWriteTimeout         = 30 * time.Second
	defaultIdleTimeout          = 120 * time.Second
	defaultSecurityEnvironment  = "local"
	defaultLogLevel             = "info"
	defaultTaxRate              = "0.08"
	defaultFreeShippingMinimum  = "50"
	defaultFlatShippingFee      = "10"
	defaultLocale               = "en-CA"
	defaultLowStockThreshold    = 5
	defaultEventsDriver         = "none"
	defaultKafkaTopic           = "vendormart.events"
	defaultIdempotencyHeader    = "Idempotency-Key"
	defaultIdempotencyTTL       = 24 * time.Hour
	defaultIdempotencyInterval  = time.Hour
	defaultIdempotencyBatchSize = 200
	defaultIdempotencyBackend   = "firestore"
	defaultIdempotencyMaxBody   = 64 << 10
)

// Config is the API runtime configuration. Every field is read from an API_* variable.
type Config struct {
	Server      ServerConfig
	Firebase    FirebaseConfig
	Firestore   FirestoreConfig
	Orders      OrdersConfig
	Events      EventsConfig
	PSP         PSPConfig
	Redis       RedisConfig
	Security    SecurityConfig
	Idempotency IdempotencyConfig
	Metrics     MetricsConfig
	Logging     LoggingConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirebaseConfig identifies the project whose ID tokens are accepted.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// OrdersConfig holds checkout pricing and lifecycle settings. Amounts are in the store currency.
type OrdersConfig struct {
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	FlatShippingFee       decimal.Decimal
	DefaultLocale         string
	PermissiveTransitions bool
	LowStockThreshold     int
}

// EventsConfig selects the domain event transport.
type EventsConfig struct {
	Driver       string
	PubSubTopic  string
	KafkaBrokers []string
	KafkaTopic   string
}

// PSPConfig collects payment provider secrets.
type PSPConfig struct {
	StripeWebhookSecret string
}

// RedisConfig points at the redis instance backing idempotency records.
type RedisConfig struct {
	URL string
}

// SecurityConfig names the deployment; "local" relaxes secret requirements.
type SecurityConfig struct {
	Environment string
}

// IdempotencyConfig controls the replay store for mutating order requests.
type IdempotencyConfig struct {
	Header           string
	TTL              time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
	Backend          string
	MaxBodyBytes     int
}

// MetricsConfig toggles the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

type LoggingConfig struct {
	Level string
}

// ValidationError lists fields that are missing or could not be parsed.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns the offending field names in the order they were found.
func (e *ValidationError) Fields() []string {
	return append([]string(nil), e.fields...)
}

// Option customises Load and EnvironmentValues.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile               string
	envMap                map[string]string
	useSystemEnv          bool
	secret                SecretResolver
	requiredSecrets       []string
	panicOnMissingSecrets bool
}

func newLoaderOptions(opts []Option) loaderOptions {
	options := loaderOptions{envFile: defaultEnvFile, useSystemEnv: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return options
}

// WithEnvFile reads dotenv values from path. An empty path disables the file.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvMap supplies values that win over both the process environment and the dotenv file.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

// WithoutSystemEnv ignores the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

// WithSecretResolver resolves secret:// and sm:// values.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) { o.secret = resolver }
}

// WithRequiredSecrets fails Load when any of the named fields (for example
// "PSP.StripeWebhookSecret") is empty after resolution.
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) { o.requiredSecrets = append(o.requiredSecrets, names...) }
}

// WithPanicOnMissingSecrets turns a MissingSecretsError into a panic.
func WithPanicOnMissingSecrets() Option {
	return func(o *loaderOptions) { o.panicOnMissingSecrets = true }
}

// EnvironmentValues returns the merged environment Load would see, so that
// dependencies such as the secret fetcher can be built first.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	layers, err := collectLayers(newLoaderOptions(opts))
	if err != nil {
		return nil, err
	}
	return layers.flatten(), nil
}

// Load reads the configuration from the dotenv file, the process environment
// and any explicit map, in increasing precedence, then resolves secret
// references and validates the result.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := newLoaderOptions(opts)
	layers, err := collectLayers(options)
	if err != nil {
		return Config{}, err
	}
	env := &envSource{layers: layers}

	cfg := Config{
		Server: ServerConfig{
			Port:         env.text("API_SERVER_PORT", defaultPort),
			ReadTimeout:  env.duration("Server.ReadTimeout", "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: env.duration("Server.WriteTimeout", "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  env.duration("Server.IdleTimeout", "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:       env.text("API_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: env.text("API_FIREBASE_CREDENTIALS_FILE", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:    env.text("API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: env.text("API_FIRESTORE_EMULATOR_HOST", ""),
		},
		Orders: OrdersConfig{
			TaxRate:               env.amount("Orders.TaxRate", "API_ORDERS_TAX_RATE", defaultTaxRate),
			FreeShippingThreshold: env.amount("Orders.FreeShippingThreshold", "API_ORDERS_FREE_SHIPPING_THRESHOLD", defaultFreeShippingMinimum),
			FlatShippingFee:       env.amount("Orders.FlatShippingFee", "API_ORDERS_FLAT_SHIPPING_FEE", defaultFlatShippingFee),
			DefaultLocale:         env.text("API_ORDERS_DEFAULT_LOCALE", defaultLocale),
			PermissiveTransitions: env.toggle("Orders.PermissiveTransitions", "API_ORDERS_PERMISSIVE_TRANSITIONS", false),
			LowStockThreshold:     env.count("Orders.LowStockThreshold", "API_ORDERS_LOW_STOCK_THRESHOLD", defaultLowStockThreshold),
		},
		Events: EventsConfig{
			Driver:       env.keyword("API_EVENTS_DRIVER", defaultEventsDriver),
			PubSubTopic:  env.text("API_EVENTS_PUBSUB_TOPIC", ""),
			KafkaBrokers: env.list("API_EVENTS_KAFKA_BROKERS"),
			KafkaTopic:   env.text("API_EVENTS_KAFKA_TOPIC", defaultKafkaTopic),
		},
		PSP: PSPConfig{
			StripeWebhookSecret: env.text("API_PSP_STRIPE_WEBHOOK_SECRET", ""),
		},
		Redis: RedisConfig{
			URL: env.text("API_REDIS_URL", ""),
		},
		Security: SecurityConfig{
			Environment: env.keyword("API_SECURITY_ENVIRONMENT", defaultSecurityEnvironment),
		},
		Idempotency: IdempotencyConfig{
			Header:           env.text("API_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:              env.duration("Idempotency.TTL", "API_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			CleanupInterval:  env.duration("Idempotency.CleanupInterval", "API_IDEMPOTENCY_CLEANUP_INTERVAL", defaultIdempotencyInterval),
			CleanupBatchSize: env.count("Idempotency.CleanupBatchSize", "API_IDEMPOTENCY_CLEANUP_BATCH", defaultIdempotencyBatchSize),
			Backend:          env.keyword("API_IDEMPOTENCY_BACKEND", defaultIdempotencyBackend),
			MaxBodyBytes:     env.count("Idempotency.MaxBodyBytes", "API_IDEMPOTENCY_MAX_BODY_BYTES", defaultIdempotencyMaxBody),
		},
		Metrics: MetricsConfig{Enabled: env.toggle("Metrics.Enabled", "API_METRICS_ENABLED", true)},
		Logging: LoggingConfig{Level: env.keyword("API_LOG_LEVEL", defaultLogLevel)},
	}
	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}

	resolved, err := resolveSecrets(ctx, &cfg, options.secret)
	if err != nil {
		return Config{}, err
	}

	if fields := append(env.invalid, cfg.problems()...); len(fields) > 0 {
		return Config{}, &ValidationError{fields: fields}
	}

	if missing := missingSecrets(options.requiredSecrets, resolved); missing != nil {
		if options.panicOnMissingSecrets {
			fmt.Fprintf(os.Stderr, "config: %s\n", missing.Error())
			panic(missing)
		}
		return Config{}, missing
	}
	return cfg, nil
}

// problems reports fields whose values are absent or outside their allowed range.
func (c Config) problems() []string {
	var out []string
	check := func(bad bool, field string) {
		if bad {
			out = append(out, field)
		}
	}
	check(c.Server.Port == "", "Server.Port")
	check(c.Firebase.ProjectID == "", "Firebase.ProjectID")
	check(c.Firestore.ProjectID == "", "Firestore.ProjectID")
	check(c.Orders.TaxRate.IsNegative(), "Orders.TaxRate")
	check(c.Orders.FreeShippingThreshold.IsNegative(), "Orders.FreeShippingThreshold")
	check(c.Orders.FlatShippingFee.IsNegative(), "Orders.FlatShippingFee")
	check(c.Orders.LowStockThreshold < 0, "Orders.LowStockThreshold")

	switch c.Events.Driver {
	case "none":
	case "pubsub":
		check(c.Events.PubSubTopic == "", "Events.PubSubTopic")
	case "kafka":
		check(len(c.Events.KafkaBrokers) == 0, "Events.KafkaBrokers")
		check(c.Events.KafkaTopic == "", "Events.KafkaTopic")
	default:
		out = append(out, "Events.Driver")
	}

	check(c.Idempotency.Header == "", "Idempotency.Header")
	check(c.Idempotency.TTL <= 0, "Idempotency.TTL")
	check(c.Idempotency.CleanupInterval <= 0, "Idempotency.CleanupInterval")
	check(c.Idempotency.CleanupBatchSize <= 0, "Idempotency.CleanupBatchSize")
	check(c.Idempotency.MaxBodyBytes <= 0, "Idempotency.MaxBodyBytes")
	switch c.Idempotency.Backend {
	case "firestore", "memory":
	case "redis":
		check(c.Redis.URL == "", "Redis.URL")
	default:
		out = append(out, "Idempotency.Backend")
	}
	return out
}
