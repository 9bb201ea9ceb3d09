// Package firestore owns the Firestore client and the typed helpers the
// repositories build on.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/vendormart/api/internal/platform/config"
)

const (
	emulatorHostEnv = "FIRESTORE_EMULATOR_HOST"
	projectEnv      = "GOOGLE_CLOUD_PROJECT"

	dialTimeout = 10 * time.Second
	txAttempts  = 5
	txTimeout   = 15 * time.Second
)

var ErrProviderClosed = errors.New("firestore: provider is closed")

// Provider creates the Firestore client on first use and shares it between
// repositories. It talks to the emulator when one is configured.
type Provider struct {
	projectID    string
	emulatorHost string
	clientOpts   []option.ClientOption

	mu     sync.Mutex
	client *firestore.Client
	closed bool
}

// ProviderOption customises a Provider.
type ProviderOption func(*Provider)

// WithClientOptions adds Google API client options such as credentials.
func WithClientOptions(opts ...option.ClientOption) ProviderOption {
	return func(p *Provider) { p.clientOpts = append(p.clientOpts, opts...) }
}

// NewProvider falls back to GOOGLE_CLOUD_PROJECT and FIRESTORE_EMULATOR_HOST
// when cfg leaves them empty.
func NewProvider(cfg config.FirestoreConfig, opts ...ProviderOption) *Provider {
	p := &Provider{
		projectID:    firstNonEmpty(cfg.ProjectID, os.Getenv(projectEnv)),
		emulatorHost: firstNonEmpty(cfg.EmulatorHost, os.Getenv(emulatorHostEnv)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Client returns the shared client, dialling it on the first call.
func (p *Provider) Client(ctx context.Context) (*firestore.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.closed:
		return nil, ErrProviderClosed
	case p.client != nil:
		return p.client, nil
	case p.projectID == "":
		return nil, errors.New("firestore: project id is required")
	}

	opts := append([]option.ClientOption(nil), p.clientOpts...)
	if p.emulatorHost != "" {
		// The client library only skips auth for the emulator when the env var is set.
		if os.Getenv(emulatorHostEnv) == "" {
			_ = os.Setenv(emulatorHostEnv, p.emulatorHost)
		}
		opts = append(opts,
			option.WithEndpoint(p.emulatorHost),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	client, err := firestore.NewClient(dialCtx, p.projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: create client: %w", err)
	}
	p.client = client
	return client, nil
}

// Ping reads a sentinel document; NotFound still proves the backend answered.
func (p *Provider) Ping(ctx context.Context) error {
	client, err := p.Client(ctx)
	if err != nil {
		return err
	}
	if _, err := client.Collection("_health").Doc("ping").Get(ctx); err != nil && !IsNotFound(err) {
		return WrapError("firestore.ping", err)
	}
	return nil
}

// Close releases the client. Later calls to Client fail with ErrProviderClosed.
func (p *Provider) Close(ctx context.Context) error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	client := p.client
	p.client, p.closed = nil, true
	p.mu.Unlock()
	if client == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- client.Close() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TxFunc is the body of a transaction. Firestore reruns it on contention, so
// it must not have side effects outside tx.
type TxFunc func(ctx context.Context, tx *firestore.Transaction) error

type TxOption func(*txSettings)

type txSettings struct {
	attempts int
	timeout  time.Duration
}

// WithTxAttempts caps how many times a contended transaction is retried.
func WithTxAttempts(n int) TxOption {
	return func(s *txSettings) {
		if n > 0 {
			s.attempts = n
		}
	}
}

// WithTxTimeout bounds the transaction including retries. A shorter deadline on ctx wins.
func WithTxTimeout(d time.Duration) TxOption {
	return func(s *txSettings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// RunTransaction runs fn in a read-write transaction. Errors are wrapped with
// WrapError, which leaves typed errors returned by fn untouched.
func (p *Provider) RunTransaction(ctx context.Context, fn TxFunc, opts ...TxOption) error {
	settings := txSettings{attempts: txAttempts, timeout: txTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}
	client, err := p.Client(ctx)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, settings.timeout)
	defer cancel()
	return WrapError("transaction", client.RunTransaction(ctx, fn, firestore.MaxAttempts(settings.attempts)))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
