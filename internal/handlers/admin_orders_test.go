package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domain "github.com/vendormart/api/internal/domain"
	"github.com/vendormart/api/internal/services"
)

type stubStockLedger struct {
	adjustFn func(context.Context, services.StockAdjustCommand) (domain.StockMovement, error)
}

func (s *stubStockLedger) AdjustStock(ctx context.Context, cmd services.StockAdjustCommand) (domain.StockMovement, error) {
	if s.adjustFn != nil {
		return s.adjustFn(ctx, cmd)
	}
	return domain.StockMovement{}, errors.New("not implemented")
}

func newAdminRouter(h *AdminOrderHandlers) chi.Router {
	router := chi.NewRouter()
	router.Route("/admin", h.Routes)
	return router
}

func TestAdminOrderHandlersListOrdersAcrossUsers(t *testing.T) {
	var captured services.OrderQuery
	service := &stubOrderService{
		listFn: func(_ context.Context, query services.OrderQuery) (services.OrderPage, error) {
			captured = query
			return services.OrderPage{Page: 1, Limit: 10}, nil
		},
	}
	router := newAdminRouter(NewAdminOrderHandlers(nil, service, nil))

	req := asUser(httptest.NewRequest(http.MethodGet, "/admin/orders?paymentStatus=paid&sortBy=totalAmount&sortOrder=asc", nil), "staff-1", "staff")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.UserID != "" {
		t.Fatalf("expected unscoped listing, got user %q", captured.UserID)
	}
	if captured.SortBy != "totalAmount" || captured.SortOrder != domain.SortAsc {
		t.Fatalf("unexpected sort %s %s", captured.SortBy, captured.SortOrder)
	}
	if len(captured.PaymentStatus) != 1 || captured.PaymentStatus[0] != domain.PaymentStatusPaid {
		t.Fatalf("unexpected payment filter %#v", captured.PaymentStatus)
	}

	req = asUser(httptest.NewRequest(http.MethodGet, "/admin/orders?userId=user-7", nil), "staff-1", "staff")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if captured.UserID != "user-7" {
		t.Fatalf("expected userId filter, got %q", captured.UserID)
	}
}

func TestAdminOrderHandlersStats(t *testing.T) {
	service := &stubOrderService{
		statsFn: func(_ context.Context, start, end *time.Time) (domain.OrderStats, error) {
			if start == nil || end != nil {
				t.Fatalf("expected only start bound, got %v %v", start, end)
			}
			return domain.OrderStats{
				TotalOrders:       3,
				TotalRevenue:      decimal.RequireFromString("150"),
				AverageOrderValue: decimal.RequireFromString("50"),
				OrdersByStatus:    map[domain.OrderStatus]int{domain.OrderStatusPending: 2, domain.OrderStatusShipped: 1},
				PaymentsByStatus:  map[domain.PaymentStatus]int{domain.PaymentStatusPaid: 3},
			}, nil
		},
	}
	router := newAdminRouter(NewAdminOrderHandlers(nil, service, nil))

	req := asUser(httptest.NewRequest(http.MethodGet, "/admin/orders/stats?startDate=2024-01-01", nil), "admin-1", "admin")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp orderStatsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TotalOrders != 3 || resp.TotalRevenue.String() != "150.00" || resp.AverageOrderValue.String() != "50.00" {
		t.Fatalf("unexpected stats %#v", resp)
	}
	if resp.OrdersByStatus["pending"] != 2 || resp.PaymentsByStatus["paid"] != 3 {
		t.Fatalf("unexpected breakdown %#v", resp)
	}
}

func TestAdminOrderHandlersUpdateStatus(t *testing.T) {
	var captured services.UpdateOrderStatusCommand
	service := &stubOrderService{
		updateStatusFn: func(_ context.Context, cmd services.UpdateOrderStatusCommand) (*domain.Order, error) {
			captured = cmd
			if cmd.OrderID == "ord_missing" {
				return nil, nil
			}
			if cmd.Status == domain.OrderStatusPending {
				return nil, services.ErrInvalidTransition
			}
			order := sampleOrder(cmd.OrderID)
			order.OrderStatus = cmd.Status
			order.TrackingNumber = cmd.TrackingNumber
			return &order, nil
		},
	}
	router := newAdminRouter(NewAdminOrderHandlers(nil, service, nil))

	send := func(path, body string) *httptest.ResponseRecorder {
		req := asUser(httptest.NewRequest(http.MethodPut, path, strings.NewReader(body)), "staff-1", "staff")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	rr := send("/admin/orders/ord_1/status", `{"orderStatus":"SHIPPED","trackingNumber":"1Z999"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Status != domain.OrderStatusShipped || captured.ActorID != "staff-1" {
		t.Fatalf("unexpected command %#v", captured)
	}
	if captured.TrackingNumber == nil || *captured.TrackingNumber != "1Z999" {
		t.Fatalf("expected tracking number to be forwarded")
	}

	if rr := send("/admin/orders/ord_1/status", `{"orderStatus":"lost"}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rr.Code)
	}
	if rr := send("/admin/orders/ord_1/status", `{"orderStatus":"pending"}`); rr.Code != http.StatusBadRequest || decodeError(t, rr).Error != "invalid_transition" {
		t.Fatalf("expected invalid_transition, got %d: %s", rr.Code, rr.Body.String())
	}
	if rr := send("/admin/orders/ord_missing/status", `{"orderStatus":"shipped"}`); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestAdminOrderHandlersUpdatePaymentStatus(t *testing.T) {
	var captured services.UpdatePaymentStatusCommand
	service := &stubOrderService{
		updatePaymentFn: func(_ context.Context, cmd services.UpdatePaymentStatusCommand) (*domain.Order, error) {
			captured = cmd
			order := sampleOrder(cmd.OrderID)
			order.PaymentStatus = cmd.Status
			order.PaymentIntentID = cmd.PaymentIntentID
			return &order, nil
		},
	}
	router := newAdminRouter(NewAdminOrderHandlers(nil, service, nil))

	req := asUser(httptest.NewRequest(http.MethodPut, "/admin/orders/ord_1/payment-status", strings.NewReader(`{"paymentStatus":"paid","paymentIntentId":"pi_123"}`)), "admin-1", "admin")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Status != domain.PaymentStatusPaid || captured.PaymentIntentID == nil || *captured.PaymentIntentID != "pi_123" {
		t.Fatalf("unexpected command %#v", captured)
	}
	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Order.PaymentStatus != "paid" || resp.Order.PaymentIntentID == nil {
		t.Fatalf("unexpected order %#v", resp.Order)
	}
}

func TestAdminOrderHandlersCancelRecordsOperator(t *testing.T) {
	var captured services.UpdateOrderStatusCommand
	service := &stubOrderService{
		updateStatusFn: func(_ context.Context, cmd services.UpdateOrderStatusCommand) (*domain.Order, error) {
			captured = cmd
			return nil, services.ErrNotCancellable
		},
	}
	router := newAdminRouter(NewAdminOrderHandlers(nil, service, nil))

	req := asUser(httptest.NewRequest(http.MethodPost, "/admin/orders/ord_1:cancel", nil), "admin-1", "admin")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if captured.Status != domain.OrderStatusCancelled || captured.ActorID != "admin-1" {
		t.Fatalf("unexpected command %#v", captured)
	}
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if env := decodeError(t, rr); env.Message != "Cannot cancel order that has been shipped or delivered" {
		t.Fatalf("unexpected message %q", env.Message)
	}
}

func TestAdminOrderHandlersAdjustStock(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	var captured services.StockAdjustCommand
	ledger := &stubStockLedger{
		adjustFn: func(_ context.Context, cmd services.StockAdjustCommand) (domain.StockMovement, error) {
			captured = cmd
			if cmd.Quantity > 100 {
				return domain.StockMovement{}, &services.StockReservationError{ProductID: cmd.ProductID, Err: services.ErrInsufficientStock}
			}
			return domain.StockMovement{
				Reference:  cmd.Reference,
				ProductID:  cmd.ProductID,
				Quantity:   cmd.Quantity,
				Direction:  cmd.Direction,
				StockAfter: 42,
				CreatedAt:  now,
			}, nil
		},
	}
	router := newAdminRouter(NewAdminOrderHandlers(nil, &stubOrderService{}, ledger))

	req := asUser(httptest.NewRequest(http.MethodPost, "/admin/products/prod-1/stock", strings.NewReader(`{"quantity":5,"direction":" Add ","reference":"manual:restock-1"}`)), "admin-1", "admin")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.ProductID != "prod-1" || captured.Direction != domain.StockAdd || captured.ActorID != "admin-1" {
		t.Fatalf("unexpected command %#v", captured)
	}
	var resp stockMovementResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.StockAfter != 42 || resp.Reference != "manual:restock-1" {
		t.Fatalf("unexpected movement %#v", resp)
	}

	req = asUser(httptest.NewRequest(http.MethodPost, "/admin/products/prod-1/stock", strings.NewReader(`{"quantity":500,"direction":"subtract"}`)), "admin-1", "admin")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict || decodeError(t, rr).Error != "insufficient_stock" {
		t.Fatalf("expected insufficient_stock, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestAdminOrderHandlersAdjustStockWithoutLedger(t *testing.T) {
	router := newAdminRouter(NewAdminOrderHandlers(nil, &stubOrderService{}, nil))

	req := asUser(httptest.NewRequest(http.MethodPost, "/admin/products/prod-1/stock", strings.NewReader(`{"quantity":1,"direction":"add"}`)), "admin-1", "admin")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
