package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/vendormart/api/internal/domain"
	"github.com/vendormart/api/internal/platform/auth"
	"github.com/vendormart/api/internal/platform/httpx"
	"github.com/vendormart/api/internal/platform/pagination"
	"github.com/vendormart/api/internal/services"
)

const maxCreateOrderBodySize = 32 * 1024

type createOrderRequest struct {
	PaymentMethod   string         `json:"paymentMethod"`
	ShippingAddress addressPayload `json:"shippingAddress"`
	BillingAddress  addressPayload `json:"billingAddress"`
	Notes           *string        `json:"notes"`
}

// OrderHandlers exposes checkout and the buyer's own order history.
type OrderHandlers struct {
	authn       *auth.Authenticator
	orders      services.OrderService
	idempotency func(http.Handler) http.Handler
}

// NewOrderHandlers constructs OrderHandlers. idempotency guards order creation and may be nil.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, idempotency func(http.Handler) http.Handler) *OrderHandlers {
	return &OrderHandlers{authn: authn, orders: orders, idempotency: idempotency}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	create := http.Handler(http.HandlerFunc(h.createOrder))
	if h.idempotency != nil {
		create = h.idempotency(create)
	}
	r.Method(http.MethodPost, "/", create)
	r.Get("/", h.listOrders)
	r.Get("/number/{orderNumber}", h.getOrderByNumber)
	r.Get("/{orderID}", h.getOrder)
	r.Post("/{orderID}:cancel", h.cancelOrder)
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if !decodeJSONBody(w, r, maxCreateOrderBodySize, &req) {
		return
	}

	order, err := h.orders.CreateOrder(ctx, identity.UID, services.CreateOrderInput{
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: req.ShippingAddress.toDomain(),
		BillingAddress:  req.BillingAddress.toDomain(),
		Notes:           req.Notes,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/orders/"+order.ID)
	httpx.WriteJSON(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	query, ok := parseOrderQuery(w, r)
	if !ok {
		return
	}
	query.UserID = identity.UID

	page, err := h.orders.GetOrders(r.Context(), query)
	if err != nil {
		writeOrderError(r.Context(), w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOrderListResponse(page))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	order, err := h.orders.GetOrderByID(r.Context(), chi.URLParam(r, "orderID"), identity.UID)
	writeOrderLookup(w, r, order, err)
}

func (h *OrderHandlers) getOrderByNumber(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	order, err := h.orders.GetOrderByNumber(r.Context(), chi.URLParam(r, "orderNumber"), identity.UID)
	writeOrderLookup(w, r, order, err)
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	order, err := h.orders.CancelOrder(r.Context(), chi.URLParam(r, "orderID"), identity.UID)
	if err != nil {
		writeOrderError(r.Context(), w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func writeOrderLookup(w http.ResponseWriter, r *http.Request, order *domain.Order, err error) {
	switch {
	case err != nil:
		writeOrderError(r.Context(), w, err)
	case order == nil:
		writeOrderNotFound(r.Context(), w)
	default:
		httpx.WriteJSON(w, http.StatusOK, orderResponse{Order: buildOrderPayload(*order)})
	}
}

func requireIdentity(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

// parseOrderQuery reads the shared listing parameters. Date-only endDate values cover the whole day.
func parseOrderQuery(w http.ResponseWriter, r *http.Request) (services.OrderQuery, bool) {
	ctx := r.Context()
	values := r.URL.Query()
	invalid := func(message string) (services.OrderQuery, bool) {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", message, http.StatusBadRequest))
		return services.OrderQuery{}, false
	}

	params, err := pagination.Parse(values, pagination.Options{
		DefaultSortBy:    "createdAt",
		DefaultSortDesc:  true,
		AllowedSortField: domain.OrderSortFields,
	})
	if err != nil {
		return invalid(err.Error())
	}
	query := services.OrderQuery{
		SortBy:    params.SortBy,
		SortOrder: domain.SortAsc,
		Page:      params.Page,
		Limit:     params.Limit,
	}
	if params.SortDesc {
		query.SortOrder = domain.SortDesc
	}

	for _, raw := range parseFilterValues(values["orderStatus"]) {
		status, ok := domain.ParseOrderStatus(raw)
		if !ok {
			return invalid("orderStatus must be one of pending, processing, shipped, delivered, cancelled")
		}
		query.OrderStatus = append(query.OrderStatus, status)
	}
	for _, raw := range parseFilterValues(values["paymentStatus"]) {
		status, ok := domain.ParsePaymentStatus(raw)
		if !ok {
			return invalid("paymentStatus must be one of pending, paid, failed, refunded")
		}
		query.PaymentStatus = append(query.PaymentStatus, status)
	}

	start, end, msg := parseDateRange(values.Get("startDate"), values.Get("endDate"))
	if msg != "" {
		return invalid(msg)
	}
	query.StartDate, query.EndDate = start, end
	return query, true
}
