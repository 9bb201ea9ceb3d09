package observability

import (
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"
	"unicode"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vendormart/api/internal/platform/auth"
	"github.com/vendormart/api/internal/platform/httpx"
	"github.com/vendormart/api/internal/platform/idempotency"
	"github.com/vendormart/api/internal/platform/requestctx"
)

// Route parameters copied onto the completion log line when present.
var loggedRouteParams = map[string]string{
	"orderID":     "order_id",
	"orderNumber": "order_number",
	"productID":   "product_id",
}

type middlewareFunc = func(http.Handler) http.Handler

// InjectLoggerMiddleware makes logger the request-scoped logger.
func InjectLoggerMiddleware(logger *zap.Logger) middlewareFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(requestctx.WithLogger(r.Context(), logger)))
		})
	}
}

// RequestLoggerMiddleware logs one line when a request starts and one when it
// completes. The completion line carries status, latency, the order or product
// the route addressed, and whether the body was an idempotent replay.
func RequestLoggerMiddleware(projectID string) middlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			info, _ := requestctx.Trace(ctx)
			if info.ProjectID == "" {
				info.ProjectID = projectID
			}
			logger := requestctx.Logger(ctx).With(requestFields(r, info)...)
			ctx = requestctx.WithLogger(ctx, logger)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			logger.Info("request started")

			completed := false
			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				if !completed && status < http.StatusInternalServerError {
					status = http.StatusInternalServerError
				}
				route := routePattern(r)
				annotateSpan(trace.SpanFromContext(ctx), route, status)

				fields := []zap.Field{
					zap.String("route", route),
					zap.Int("status", status),
					zap.Duration("latency", time.Since(start)),
					zap.Int("bytes", ww.BytesWritten()),
				}
				fields = append(fields, routeParamFields(r)...)
				if ww.Header().Get(idempotency.ReplayHeader) == "true" {
					fields = append(fields, zap.Bool("idempotent_replay", true))
				}

				switch {
				case status >= http.StatusInternalServerError:
					logger.Error("request completed", fields...)
				case status >= http.StatusBadRequest:
					logger.Warn("request completed", fields...)
				default:
					logger.Info("request completed", fields...)
				}
			}()

			next.ServeHTTP(ww, r.WithContext(ctx))
			completed = true
		})
	}
}

// RecoveryMiddleware turns a panic into a 500 error envelope and logs the stack.
func RecoveryMiddleware(fallback *zap.Logger) middlewareFunc {
	if fallback == nil {
		fallback = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				ctx := r.Context()
				logger := requestctx.Logger(ctx)
				if logger == requestctx.NoopLogger() {
					logger = fallback
				}
				logger.Error("panic recovered", zap.Any("panic", rec), zap.ByteString("stack", debug.Stack()))
				httpx.WriteError(ctx, w, httpx.NewError("internal_server_error", "internal server error", http.StatusInternalServerError))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func requestFields(r *http.Request, info requestctx.TraceInfo) []zap.Field {
	ctx := r.Context()
	fields := []zap.Field{
		zap.String("request_id", middleware.GetReqID(ctx)),
		zap.String("method", clean(r.Method, 10)),
		zap.String("path", clean(r.URL.Path, 180)),
		zap.String("trace_id", info.TraceID),
	}
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity != nil && identity.UID != "" {
		fields = append(fields, zap.String("user_id", clean(identity.UID, 64)))
	}
	if info.ProjectID != "" && info.TraceID != "" {
		fields = append(fields, zap.String("logging.googleapis.com/trace", "projects/"+info.ProjectID+"/traces/"+info.TraceID))
	}
	if ip := remoteIP(r.RemoteAddr); ip != "" {
		fields = append(fields, zap.String("remote_ip", ip))
	}
	return fields
}

func routeParamFields(r *http.Request) []zap.Field {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return nil
	}
	var fields []zap.Field
	for param, key := range loggedRouteParams {
		if value := rctx.URLParam(param); value != "" {
			fields = append(fields, zap.String(key, clean(value, 128)))
		}
	}
	return fields
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return clean(pattern, 180)
		}
	}
	return "unmatched"
}

func annotateSpan(span trace.Span, route string, status int) {
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(semconv.HTTPResponseStatusCode(status), semconv.HTTPRoute(route))
	if status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(status))
	}
}

func remoteIP(addr string) string {
	addr = strings.TrimSpace(addr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return clean(addr, 64)
}

// clean strips control characters and truncates to limit runes so client
// supplied values cannot forge log lines.
func clean(value string, limit int) string {
	out := []rune(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value))
	if len(out) > limit {
		out = out[:limit]
	}
	return string(out)
}
