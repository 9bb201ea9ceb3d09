package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vendormart/api/internal/platform/httpx"
)

const (
	apiPrefix      = "/api/v1"
	requestTimeout = 60 * time.Second
)

type middlewareFunc = func(http.Handler) http.Handler

// RouteRegistrar adds one group's routes to the router mounted at the group path.
type RouteRegistrar func(r chi.Router)

// routeGroup is a path under /api/v1. A group without a registrar answers 501
// so clients can tell a disabled feature from a typo.
type routeGroup struct {
	registrar   RouteRegistrar
	middlewares []middlewareFunc
}

type routerConfig struct {
	middlewares []middlewareFunc
	health      *HealthHandlers
	metrics     http.Handler
	groups      map[string]*routeGroup
}

// Option customises NewRouter.
type Option func(*routerConfig)

// NewRouter builds the API router: probes and /metrics at the root, and the
// orders, admin and webhooks groups under /api/v1.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{
		middlewares: []middlewareFunc{middleware.RequestID, middleware.RealIP, middleware.Timeout(requestTimeout)},
		groups: map[string]*routeGroup{
			"/orders":   {},
			"/admin":    {},
			"/webhooks": {},
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("route_not_found", "no route for "+req.URL.Path, http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", req.Method+" not allowed on "+req.URL.Path, http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", cfg.health.Healthz)
	r.Get("/readyz", cfg.health.Readyz)
	if cfg.metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.metrics)
	}

	r.Route(apiPrefix, func(api chi.Router) {
		for path, group := range cfg.groups {
			api.Route(path, group.mount(path))
		}
	})
	return r
}

func (g *routeGroup) mount(path string) func(chi.Router) {
	return func(r chi.Router) {
		for _, mw := range g.middlewares {
			if mw != nil {
				r.Use(mw)
			}
		}
		if g.registrar != nil {
			g.registrar(r)
			return
		}
		notImplemented := func(w http.ResponseWriter, req *http.Request) {
			httpx.WriteError(req.Context(), w, httpx.NewError("not_implemented", path+" routes are not enabled", http.StatusNotImplemented))
		}
		r.HandleFunc("/", notImplemented)
		r.HandleFunc("/*", notImplemented)
	}
}

func withGroup(path string, apply func(*routeGroup)) Option {
	return func(cfg *routerConfig) { apply(cfg.groups[path]) }
}

// WithMiddlewares appends middleware applied to every route.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) { cfg.middlewares = append(cfg.middlewares, mw...) }
}

func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) { cfg.health = h }
}

// WithMetricsHandler serves handler at GET /metrics. Without it /metrics is 404.
func WithMetricsHandler(handler http.Handler) Option {
	return func(cfg *routerConfig) { cfg.metrics = handler }
}

func WithOrderRoutes(reg RouteRegistrar) Option {
	return withGroup("/orders", func(g *routeGroup) { g.registrar = reg })
}

func WithAdminRoutes(reg RouteRegistrar) Option {
	return withGroup("/admin", func(g *routeGroup) { g.registrar = reg })
}

func WithWebhookRoutes(reg RouteRegistrar) Option {
	return withGroup("/webhooks", func(g *routeGroup) { g.registrar = reg })
}

// WithWebhookMiddlewares wraps only the /webhooks group, which is called by the
// payment provider rather than by signed-in users.
func WithWebhookMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return withGroup("/webhooks", func(g *routeGroup) { g.middlewares = append(g.middlewares, mw...) })
}
