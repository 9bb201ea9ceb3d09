package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/vendormart/api/internal/domain"
	"github.com/vendormart/api/internal/platform/auth"
	"github.com/vendormart/api/internal/platform/httpx"
	"github.com/vendormart/api/internal/services"
)

const maxAdminBodySize = 8 * 1024

type updateOrderStatusRequest struct {
	OrderStatus    string  `json:"orderStatus"`
	TrackingNumber *string `json:"trackingNumber"`
}

type updatePaymentStatusRequest struct {
	PaymentStatus   string  `json:"paymentStatus"`
	PaymentIntentID *string `json:"paymentIntentId"`
}

type adjustStockRequest struct {
	Quantity  int    `json:"quantity"`
	Direction string `json:"direction"`
	Reference string `json:"reference"`
}

// AdminOrderHandlers serves the staff and admin order console.
type AdminOrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
	stock  services.StockLedger
}

// NewAdminOrderHandlers constructs AdminOrderHandlers.
func NewAdminOrderHandlers(authn *auth.Authenticator, orders services.OrderService, stock services.StockLedger) *AdminOrderHandlers {
	return &AdminOrderHandlers{authn: authn, orders: orders, stock: stock}
}

// Routes registers the /admin endpoints. Every route requires the staff or admin role.
func (h *AdminOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleAdmin, auth.RoleStaff))
	}
	r.Route("/orders", func(rt chi.Router) {
		rt.Get("/", h.listOrders)
		rt.Get("/stats", h.orderStats)
		rt.Get("/{orderID}", h.getOrder)
		rt.Put("/{orderID}/status", h.updateStatus)
		rt.Put("/{orderID}/payment-status", h.updatePaymentStatus)
		rt.Post("/{orderID}:cancel", h.cancelOrder)
	})
	r.Post("/products/{productID}/stock", h.adjustStock)
}

func (h *AdminOrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	query, ok := parseOrderQuery(w, r)
	if !ok {
		return
	}
	query.UserID = strings.TrimSpace(r.URL.Query().Get("userId"))

	page, err := h.orders.GetOrders(r.Context(), query)
	if err != nil {
		writeOrderError(r.Context(), w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOrderListResponse(page))
}

func (h *AdminOrderHandlers) orderStats(w http.ResponseWriter, r *http.Request) {
	start, end, msg := parseDateRange(r.URL.Query().Get("startDate"), r.URL.Query().Get("endDate"))
	if msg != "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", msg, http.StatusBadRequest))
		return
	}
	stats, err := h.orders.GetOrderStats(r.Context(), start, end)
	if err != nil {
		writeOrderError(r.Context(), w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOrderStatsResponse(stats))
}

func (h *AdminOrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrderByID(r.Context(), chi.URLParam(r, "orderID"), "")
	writeOrderLookup(w, r, order, err)
}

func (h *AdminOrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateOrderStatusRequest
	if !decodeJSONBody(w, r, maxAdminBodySize, &req) {
		return
	}
	status, ok := domain.ParseOrderStatus(req.OrderStatus)
	if !ok {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "orderStatus must be one of pending, processing, shipped, delivered, cancelled", http.StatusBadRequest))
		return
	}
	order, err := h.orders.UpdateOrderStatus(r.Context(), services.UpdateOrderStatusCommand{
		OrderID:        chi.URLParam(r, "orderID"),
		Status:         status,
		TrackingNumber: req.TrackingNumber,
		ActorID:        actorID(r),
	})
	writeOrderLookup(w, r, order, err)
}

func (h *AdminOrderHandlers) updatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req updatePaymentStatusRequest
	if !decodeJSONBody(w, r, maxAdminBodySize, &req) {
		return
	}
	status, ok := domain.ParsePaymentStatus(req.PaymentStatus)
	if !ok {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "paymentStatus must be one of pending, paid, failed, refunded", http.StatusBadRequest))
		return
	}
	order, err := h.orders.UpdatePaymentStatus(r.Context(), services.UpdatePaymentStatusCommand{
		OrderID:         chi.URLParam(r, "orderID"),
		Status:          status,
		PaymentIntentID: req.PaymentIntentID,
		ActorID:         actorID(r),
	})
	writeOrderLookup(w, r, order, err)
}

// cancelOrder goes through the status update so the operator is recorded as the actor.
func (h *AdminOrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.UpdateOrderStatus(r.Context(), services.UpdateOrderStatusCommand{
		OrderID: chi.URLParam(r, "orderID"),
		Status:  domain.OrderStatusCancelled,
		ActorID: actorID(r),
	})
	writeOrderLookup(w, r, order, err)
}

func (h *AdminOrderHandlers) adjustStock(w http.ResponseWriter, r *http.Request) {
	if h.stock == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("stock_service_unavailable", "stock service unavailable", http.StatusServiceUnavailable))
		return
	}
	var req adjustStockRequest
	if !decodeJSONBody(w, r, maxAdminBodySize, &req) {
		return
	}
	movement, err := h.stock.AdjustStock(r.Context(), services.StockAdjustCommand{
		ProductID: chi.URLParam(r, "productID"),
		Quantity:  req.Quantity,
		Direction: domain.StockDirection(strings.ToLower(strings.TrimSpace(req.Direction))),
		Reference: req.Reference,
		ActorID:   actorID(r),
	})
	if err != nil {
		writeOrderError(r.Context(), w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildStockMovementResponse(movement))
}

func actorID(r *http.Request) string {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		return identity.UID
	}
	return ""
}
