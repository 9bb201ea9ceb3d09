package services

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	domain "github.com/vendormart/api/internal/domain"
	"github.com/vendormart/api/internal/repositories"
)

func (s *orderService) GetOrderStats(ctx context.Context, start, end *time.Time) (domain.OrderStats, error) {
	if start != nil && end != nil && end.Before(*start) {
		return domain.OrderStats{}, fmt.Errorf("%w: endDate must not be before startDate", ErrOrderInvalidInput)
	}

	ctx, span := s.tracer.Start(ctx, "OrderService.GetOrderStats")
	defer span.End()

	var orders []domain.Order
	err := s.orders.Scan(ctx, repositories.OrderListFilter{
		CreatedAt: domain.RangeQuery[time.Time]{From: start, To: end},
	}, func(order domain.Order) error {
		orders = append(orders, order)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return domain.OrderStats{}, mapRepositoryError(err)
	}
	return summarizeOrders(orders), nil
}

// summarizeOrders counts orders per status and totals revenue from paid orders.
// Every known status is present in the maps, zero when unused.
func summarizeOrders(orders []domain.Order) domain.OrderStats {
	stats := domain.OrderStats{
		TotalOrders:       len(orders),
		TotalRevenue:      decimal.Zero,
		AverageOrderValue: decimal.Zero,
		OrdersByStatus: lo.SliceToMap(domain.OrderStatuses, func(s domain.OrderStatus) (domain.OrderStatus, int) {
			return s, 0
		}),
		PaymentsByStatus: lo.SliceToMap(domain.PaymentStatuses, func(s domain.PaymentStatus) (domain.PaymentStatus, int) {
			return s, 0
		}),
	}

	for status, count := range lo.CountValuesBy(orders, func(o domain.Order) domain.OrderStatus { return o.OrderStatus }) {
		stats.OrdersByStatus[status] = count
	}
	for status, count := range lo.CountValuesBy(orders, func(o domain.Order) domain.PaymentStatus { return o.PaymentStatus }) {
		stats.PaymentsByStatus[status] = count
	}

	paid := lo.Filter(orders, func(o domain.Order, _ int) bool { return o.PaymentStatus == domain.PaymentStatusPaid })
	stats.TotalRevenue = lo.Reduce(paid, func(sum decimal.Decimal, o domain.Order, _ int) decimal.Decimal {
		return sum.Add(o.TotalAmount)
	}, decimal.Zero)

	if stats.TotalOrders > 0 {
		stats.AverageOrderValue = stats.TotalRevenue.Div(decimal.NewFromInt(int64(stats.TotalOrders))).Round(2)
	}
	return stats
}
