// Package secrets resolves the secret:// references found in configuration,
// such as the Stripe webhook signing secret and the redis URL.
package secrets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vendormart/api/internal/platform/config"
)

const defaultFallbackFile = ".secrets.local"

// newSecretManagerClient is swapped in tests that simulate missing credentials.
var newSecretManagerClient = func(ctx context.Context, opts ...option.ClientOption) (secretManagerClient, error) {
	return secretmanager.NewClient(ctx, opts...)
}

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher implements config.SecretResolver on top of Secret Manager.
//
// Resolved values are kept for the life of the process. When Secret Manager
// cannot be reached, or no project is known, values come from the fallback
// file instead. A secret that Secret Manager reports as missing is an error
// and never falls back.
type Fetcher struct {
	remote     secretManagerClient
	ownsRemote bool
	project    string
	logger     *zap.Logger

	fallbackPath string
	fallback     func() (map[string]string, error)

	mu     sync.RWMutex
	cache  map[string]string
	flight singleflight.Group

	latency   metric.Float64Histogram
	cacheHits metric.Int64Counter
}

var _ config.SecretResolver = (*Fetcher)(nil)

// Option customises NewFetcher.
type Option func(*Fetcher, *[]option.ClientOption)

func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher, _ *[]option.ClientOption) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithDefaultProject is used for references without ?project=.
func WithDefaultProject(projectID string) Option {
	return func(f *Fetcher, _ *[]option.ClientOption) { f.project = firstSet(projectID) }
}

// WithFallbackFile replaces .secrets.local. An empty path disables the fallback.
func WithFallbackFile(path string) Option {
	return func(f *Fetcher, _ *[]option.ClientOption) { f.fallbackPath = firstSet(path) }
}

// WithSecretManagerClient uses client instead of dialling one. The caller keeps ownership.
func WithSecretManagerClient(client secretManagerClient) Option {
	return func(f *Fetcher, _ *[]option.ClientOption) { f.remote = client }
}

// WithClientOptions is passed to the Secret Manager client NewFetcher creates.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(_ *Fetcher, clientOpts *[]option.ClientOption) { *clientOpts = append(*clientOpts, opts...) }
}

// NewFetcher never fails because Secret Manager is unreachable; it logs and
// serves from the fallback file instead.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		logger:       zap.NewNop(),
		fallbackPath: defaultFallbackFile,
		cache:        make(map[string]string),
	}
	var clientOpts []option.ClientOption
	for _, opt := range opts {
		if opt != nil {
			opt(f, &clientOpts)
		}
	}
	f.fallback = sync.OnceValues(func() (map[string]string, error) {
		return readFallbackFile(f.fallbackPath)
	})

	meter := otel.GetMeterProvider().Meter("github.com/vendormart/api/internal/platform/secrets")
	var err error
	if f.latency, err = meter.Float64Histogram("secrets.fetch.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Time to resolve a secret reference"),
	); err != nil {
		return nil, fmt.Errorf("secrets: latency histogram: %w", err)
	}
	if f.cacheHits, err = meter.Int64Counter("secrets.fetch.cache_hits",
		metric.WithDescription("Secret references answered from the in-process cache"),
	); err != nil {
		return nil, fmt.Errorf("secrets: cache hit counter: %w", err)
	}

	if f.remote == nil {
		client, err := newSecretManagerClient(ctx, clientOpts...)
		if err != nil {
			f.logger.Warn("secret manager unavailable, using fallback file only", zap.Error(err), zap.String("fallback", f.fallbackPath))
		} else {
			f.remote, f.ownsRemote = client, true
		}
	}
	return f, nil
}

// Close closes the Secret Manager client if NewFetcher created it.
func (f *Fetcher) Close() error {
	if !f.ownsRemote || f.remote == nil {
		return nil
	}
	return f.remote.Close()
}

func (f *Fetcher) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f.Resolve(ctx, ref)
}

// Resolve returns the value for ref. Concurrent calls for the same secret
// version share a single lookup.
func (f *Fetcher) Resolve(ctx context.Context, raw string) (string, error) {
	start := time.Now()
	ref, err := parseReference(raw)
	if err != nil {
		return "", err
	}
	key := ref.cacheKey()

	f.mu.RLock()
	value, cached := f.cache[key]
	f.mu.RUnlock()
	if cached {
		f.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("secret", fingerprint(key))))
		f.observe(ctx, start, "cache")
		return value, nil
	}

	v, err, _ := f.flight.Do(key, func() (any, error) {
		value, source, err := f.lookup(ctx, ref)
		if err != nil {
			f.observe(ctx, start, "error")
			return "", err
		}
		f.mu.Lock()
		f.cache[key] = value
		f.mu.Unlock()
		f.observe(ctx, start, source)
		return value, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (f *Fetcher) lookup(ctx context.Context, ref reference) (value, source string, err error) {
	project := firstSet(ref.project, f.project)
	if project != "" && f.remote != nil {
		name := ref.resource(project)
		resp, err := f.remote.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
		if err == nil {
			if resp.GetPayload() == nil {
				return "", "", fmt.Errorf("secrets: %s has no payload", name)
			}
			return string(resp.GetPayload().GetData()), "remote", nil
		}
		if !unreachable(err) {
			return "", "", fmt.Errorf("secrets: access %s: %w", ref.canonical(), err)
		}
		f.logger.Debug("secret manager unreachable, trying fallback file", zap.String("secret", fingerprint(ref.cacheKey())), zap.Error(err))
	}

	values, err := f.fallback()
	if err != nil {
		return "", "", err
	}
	for _, key := range []string{ref.cacheKey(), ref.canonical()} {
		if value, ok := values[key]; ok {
			return value, "fallback", nil
		}
	}
	return "", "", fmt.Errorf("secrets: %s not found in fallback file", ref.canonical())
}

func (f *Fetcher) observe(ctx context.Context, start time.Time, source string) {
	ms := float64(time.Since(start).Microseconds()) / 1000
	f.latency.Record(ctx, ms, metric.WithAttributes(attribute.String("source", source)))
}

// unreachable reports Secret Manager failures that justify using the fallback file.
func unreachable(err error) bool {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable, codes.DeadlineExceeded:
		return true
	}
	return false
}

// fingerprint hides secret names in metrics and logs.
func fingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:8])
}
