package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vendormart/api/internal/platform/config"
	"github.com/vendormart/api/internal/platform/observability"
	"github.com/vendormart/api/internal/repositories"
	"github.com/vendormart/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Orders services.OrderService
	Carts  services.CartValidator
	Stock  services.StockLedger
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

type containerOptions struct {
	events  services.EventPublisher
	metrics services.Metrics
	logger  *zap.Logger
	clock   func() time.Time
}

// Option customises container construction.
type Option func(*containerOptions)

// WithEventPublisher routes domain events to publisher.
func WithEventPublisher(publisher services.EventPublisher) Option {
	return func(o *containerOptions) { o.events = publisher }
}

// WithMetrics records business counters on m.
func WithMetrics(m services.Metrics) Option {
	return func(o *containerOptions) { o.metrics = m }
}

// WithLogger sets the logger used outside request scope.
func WithLogger(logger *zap.Logger) Option {
	return func(o *containerOptions) { o.logger = logger }
}

// WithClock overrides the clock shared by every service.
func WithClock(clock func() time.Time) Option {
	return func(o *containerOptions) { o.clock = clock }
}

// NewContainer constructs the runtime dependencies. Production wiring provides the Firestore
// registry, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, opts ...Option) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}
	options := containerOptions{logger: zap.NewNop(), clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if options.logger == nil {
		options.logger = zap.NewNop()
	}
	if options.clock == nil {
		options.clock = time.Now
	}

	svc, err := buildServices(ctx, reg, cfg, options)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients, background workers, or caches.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, reg repositories.Registry, cfg config.Config, opts containerOptions) (Services, error) {
	var svc Services

	productsRepo := reg.Products()
	if productsRepo == nil {
		return Services{}, errors.New("product repository is required")
	}

	stock, err := services.NewStockLedger(services.StockLedgerDeps{
		Products:          productsRepo,
		Events:            opts.events,
		Metrics:           opts.metrics,
		LowStockThreshold: cfg.Orders.LowStockThreshold,
		Clock:             opts.clock,
		Logger:            observability.ServiceLogger(opts.logger.Named("stock")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build stock ledger: %w", err)
	}
	svc.Stock = stock

	carts, err := services.NewCartValidator(services.CartValidatorDeps{
		Carts:    reg.Carts(),
		Products: productsRepo,
		Clock:    opts.clock,
		Logger:   observability.ServiceLogger(opts.logger.Named("cart")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart validator: %w", err)
	}
	svc.Carts = carts

	pricing := services.Pricing{
		TaxRate:               cfg.Orders.TaxRate,
		FreeShippingThreshold: cfg.Orders.FreeShippingThreshold,
		FlatShippingFee:       cfg.Orders.FlatShippingFee,
	}
	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:                reg.Orders(),
		Products:              productsRepo,
		Carts:                 carts,
		Stock:                 stock,
		Events:                opts.events,
		Metrics:               opts.metrics,
		Pricing:               &pricing,
		DefaultLocale:         cfg.Orders.DefaultLocale,
		PermissiveTransitions: cfg.Orders.PermissiveTransitions,
		OrderNumbers:          services.NewOrderNumberGenerator(opts.clock).Next,
		Clock:                 opts.clock,
		Logger:                observability.ServiceLogger(opts.logger.Named("orders")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orders

	return svc, nil
}
