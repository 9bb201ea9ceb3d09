package observability

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vendormart/api/internal/platform/requestctx"
)

func TestServiceLoggerPrefersRequestLogger(t *testing.T) {
	baseCore, baseLogs := observer.New(zapcore.InfoLevel)
	reqCore, reqLogs := observer.New(zapcore.InfoLevel)
	log := ServiceLogger(zap.New(baseCore))

	log(context.Background(), "order.created", map[string]any{"orderId": "o1"})
	ctx := requestctx.WithLogger(context.Background(), zap.New(reqCore))
	log(ctx, "order.event_publish_failed", map[string]any{"error": "boom"})

	if baseLogs.Len() != 1 || reqLogs.Len() != 1 {
		t.Fatalf("expected one entry per logger, got base=%d request=%d", baseLogs.Len(), reqLogs.Len())
	}
	entry := baseLogs.All()[0]
	if entry.Message != "order.created" || entry.ContextMap()["orderId"] != "o1" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if got := reqLogs.All()[0].Level; got != zapcore.WarnLevel {
		t.Fatalf("expected warn for failure events, got %s", got)
	}
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger("nonsense")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("expected debug disabled")
	}
	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("expected info enabled")
	}
}
