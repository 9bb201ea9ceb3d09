package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	domain "github.com/vendormart/api/internal/domain"
	"github.com/vendormart/api/internal/repositories"
)

const defaultLowStockThreshold = 5

// StockLedgerDeps bundles the collaborators of the stock ledger.
type StockLedgerDeps struct {
	Products          repositories.ProductRepository
	Events            EventPublisher
	Metrics           Metrics
	LowStockThreshold int
	Clock             func() time.Time
	Logger            func(ctx context.Context, event string, fields map[string]any)
}

type stockLedger struct {
	products          repositories.ProductRepository
	events            EventPublisher
	metrics           Metrics
	lowStockThreshold int
	clock             func() time.Time
	logger            func(context.Context, string, map[string]any)
}

// NewStockLedger wires dependencies into a StockLedger.
func NewStockLedger(deps StockLedgerDeps) (StockLedger, error) {
	if deps.Products == nil {
		return nil, errors.New("stock ledger: product repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	threshold := deps.LowStockThreshold
	if threshold <= 0 {
		threshold = defaultLowStockThreshold
	}
	return &stockLedger{
		products:          deps.Products,
		events:            deps.Events,
		metrics:           deps.Metrics,
		lowStockThreshold: threshold,
		clock:             func() time.Time { return clock().UTC() },
		logger:            logger,
	}, nil
}

func (l *stockLedger) AdjustStock(ctx context.Context, cmd StockAdjustCommand) (domain.StockMovement, error) {
	productID := strings.TrimSpace(cmd.ProductID)
	reference := strings.TrimSpace(cmd.Reference)
	if productID == "" {
		return domain.StockMovement{}, fmt.Errorf("%w: product id is required", ErrStockInvalidInput)
	}
	if cmd.Quantity <= 0 {
		return domain.StockMovement{}, fmt.Errorf("%w: quantity must be positive", ErrStockInvalidInput)
	}
	if !cmd.Direction.Valid() {
		return domain.StockMovement{}, fmt.Errorf("%w: direction must be add or subtract", ErrStockInvalidInput)
	}
	if reference == "" {
		reference = "manual:" + uuid.NewString()
	}

	movement, applied, err := l.products.AdjustStock(ctx, repositories.StockAdjustment{
		ProductID: productID,
		Quantity:  cmd.Quantity,
		Direction: cmd.Direction,
		Reference: reference,
		Now:       l.clock(),
	})
	if err != nil {
		return domain.StockMovement{}, mapRepositoryError(err)
	}
	if l.metrics != nil {
		l.metrics.StockMovement(cmd.Direction, applied)
	}
	if !applied {
		l.logger(ctx, "stock.adjust_replayed", map[string]any{
			"productId": productID,
			"reference": reference,
		})
		return movement, nil
	}

	fields := map[string]any{
		"productId":  productID,
		"direction":  string(movement.Direction),
		"quantity":   movement.Quantity,
		"stockAfter": movement.StockAfter,
		"reference":  reference,
	}
	if actor := strings.TrimSpace(cmd.ActorID); actor != "" {
		fields["actorId"] = actor
	}
	l.logger(ctx, "stock.adjusted", fields)
	if movement.Direction == domain.StockSubtract && movement.StockAfter <= l.lowStockThreshold {
		l.logger(ctx, "stock.low", map[string]any{
			"productId":  productID,
			"stockAfter": movement.StockAfter,
			"threshold":  l.lowStockThreshold,
		})
	}

	if l.events != nil {
		event := DomainEvent{
			ID:          uuid.NewString(),
			Type:        EventStockAdjusted,
			AggregateID: productID,
			OccurredAt:  movement.CreatedAt,
			Data:        fields,
		}
		if err := l.events.PublishEvent(ctx, event); err != nil {
			l.logger(ctx, "stock.event_publish_failed", map[string]any{"productId": productID, "error": err.Error()})
		}
	}
	return movement, nil
}
