package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	domain "github.com/vendormart/api/internal/domain"
	"github.com/vendormart/api/internal/platform/pagination"
	"github.com/vendormart/api/internal/repositories"
)

const (
	defaultOrderLocale     = "en-CA"
	orderNumberMaxAttempts = 3
	tracerName             = "github.com/vendormart/api/internal/services"
)

// OrderServiceDeps bundles the collaborators required to construct an order service.
type OrderServiceDeps struct {
	Orders   repositories.OrderRepository
	Products ProductCatalog
	Carts    CartValidator
	Stock    StockLedger
	Events   EventPublisher
	Metrics  Metrics
	Pricing  *Pricing
	// DefaultLocale supplies the address country when the caller omits it.
	DefaultLocale string
	// PermissiveTransitions allows any status change except into cancelled, which always follows the cancel rules.
	PermissiveTransitions bool
	OrderNumbers          func() (string, error)
	Clock                 func() time.Time
	IDGenerator           func() string
	Logger                func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders         repositories.OrderRepository
	products       ProductCatalog
	carts          CartValidator
	stock          StockLedger
	events         EventPublisher
	metrics        Metrics
	pricing        Pricing
	defaultCountry string
	permissive     bool
	nextNumber     func() (string, error)
	clock          func() time.Time
	newID          func() string
	logger         func(context.Context, string, map[string]any)
	sanitizer      *bluemonday.Policy
	tracer         trace.Tracer
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("order service: product catalog is required")
	}
	if deps.Carts == nil {
		return nil, errors.New("order service: cart validator is required")
	}
	if deps.Stock == nil {
		return nil, errors.New("order service: stock ledger is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	pricing := DefaultPricing()
	if deps.Pricing != nil {
		pricing = *deps.Pricing
	}
	country, err := countryForLocale(deps.DefaultLocale)
	if err != nil {
		return nil, fmt.Errorf("order service: %w", err)
	}
	nextNumber := deps.OrderNumbers
	if nextNumber == nil {
		nextNumber = NewOrderNumberGenerator(clock).Next
	}

	return &orderService{
		orders:         deps.Orders,
		products:       deps.Products,
		carts:          deps.Carts,
		stock:          deps.Stock,
		events:         deps.Events,
		metrics:        deps.Metrics,
		pricing:        pricing,
		defaultCountry: country,
		permissive:     deps.PermissiveTransitions,
		nextNumber:     nextNumber,
		clock:          func() time.Time { return clock().UTC() },
		newID:          idGen,
		logger:         logger,
		sanitizer:      bluemonday.StrictPolicy(),
		tracer:         otel.Tracer(tracerName),
	}, nil
}

// countryForLocale maps a BCP 47 locale such as en-CA to the region's display name in that language.
func countryForLocale(locale string) (string, error) {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		locale = defaultOrderLocale
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return "", fmt.Errorf("invalid locale %q: %w", locale, err)
	}
	region, confidence := tag.Region()
	if confidence == language.No {
		return "", fmt.Errorf("locale %q has no region", locale)
	}
	if name := display.Regions(tag).Name(region); name != "" {
		return name, nil
	}
	return display.English.Regions().Name(region), nil
}

func (s *orderService) CreateOrder(ctx context.Context, userID string, input CreateOrderInput) (order domain.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateOrder", trace.WithAttributes(attribute.String("user.id", userID)))
	defer func() {
		s.endSpan(span, err)
		if err != nil {
			s.count("create_failed")
		}
	}()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Order{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	normalized, err := s.normalizeInput(input)
	if err != nil {
		return domain.Order{}, err
	}

	validation, err := s.carts.ValidateCartItems(ctx, userID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("validate cart: %w", err)
	}
	if validation.Cart == nil || len(validation.Cart.Items) == 0 {
		return domain.Order{}, ErrCartEmpty
	}
	if !validation.Valid {
		return domain.Order{}, &CartInvalidError{Issues: append([]string(nil), validation.Issues...)}
	}
	cart := validation.Cart

	lines := make([]domain.OrderLineItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		product, err := s.products.FindByID(ctx, item.ProductID)
		if err != nil {
			if isRepoNotFound(err) {
				return domain.Order{}, fmt.Errorf("%w: %s", ErrProductNotFound, item.ProductID)
			}
			return domain.Order{}, fmt.Errorf("resolve sku for %s: %w", item.ProductID, err)
		}
		lines = append(lines, domain.OrderLineItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
			SKU:       product.SKU,
		})
	}

	totals := s.pricing.Totals(cart.TotalPrice)
	now := s.clock()
	order = domain.Order{
		ID:              s.newID(),
		UserID:          userID,
		Products:        lines,
		Subtotal:        totals.Subtotal,
		Tax:             totals.Tax,
		Shipping:        totals.Shipping,
		TotalAmount:     totals.Total,
		PaymentStatus:   domain.PaymentStatusPending,
		OrderStatus:     domain.OrderStatusPending,
		PaymentMethod:   normalized.PaymentMethod,
		Notes:           normalized.Notes,
		ShippingAddress: normalized.ShippingAddress,
		BillingAddress:  normalized.BillingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.insertWithNumber(ctx, &order); err != nil {
		return domain.Order{}, err
	}
	span.SetAttributes(attribute.String("order.id", order.ID), attribute.String("order.number", order.OrderNumber))

	reserved := make([]stockLine, 0, len(lines))
	for _, line := range aggregateStockLines(order.Products) {
		_, err := s.stock.AdjustStock(ctx, StockAdjustCommand{
			ProductID: line.productID,
			Quantity:  line.quantity,
			Direction: domain.StockSubtract,
			Reference: stockReference(order.ID, "reserve", line.productID),
		})
		if err != nil {
			s.rollbackCheckout(ctx, order, reserved, false)
			return domain.Order{}, &StockReservationError{ProductID: line.productID, Err: err}
		}
		reserved = append(reserved, line)
	}

	if err := s.carts.ConvertCartToOrder(ctx, userID, order.ID); err != nil {
		s.rollbackCheckout(ctx, order, reserved, !errors.Is(err, ErrOrderConflict))
		return domain.Order{}, err
	}

	s.logger(ctx, "order.created", map[string]any{
		"orderId":     order.ID,
		"orderNumber": order.OrderNumber,
		"userId":      userID,
		"totalAmount": order.TotalAmount.StringFixed(2),
		"lines":       len(order.Products),
	})
	s.count("created")
	s.publish(ctx, EventOrderCreated, order, map[string]any{
		"orderNumber": order.OrderNumber,
		"totalAmount": order.TotalAmount.StringFixed(2),
		"items":       len(order.Products),
	})
	return order, nil
}

func (s *orderService) insertWithNumber(ctx context.Context, order *domain.Order) error {
	for attempt := 1; attempt <= orderNumberMaxAttempts; attempt++ {
		number, err := s.nextNumber()
		if err != nil {
			return err
		}
		order.OrderNumber = number
		err = s.orders.Insert(ctx, *order)
		if err == nil {
			return nil
		}
		if !isRepoConflict(err) {
			return mapRepositoryError(err)
		}
		s.logger(ctx, "order.number_collision", map[string]any{"orderNumber": number, "attempt": attempt})
	}
	return fmt.Errorf("%w: could not allocate a unique order number", ErrOrderConflict)
}

// rollbackCheckout undoes a partially applied checkout. It runs detached from the caller's
// cancellation so an aborted request still releases stock.
func (s *orderService) rollbackCheckout(ctx context.Context, order domain.Order, reserved []stockLine, restoreCart bool) {
	ctx = context.WithoutCancel(ctx)
	s.count("compensated")

	for _, line := range reserved {
		if _, err := s.stock.AdjustStock(ctx, StockAdjustCommand{
			ProductID: line.productID,
			Quantity:  line.quantity,
			Direction: domain.StockAdd,
			Reference: stockReference(order.ID, "compensate", line.productID),
		}); err != nil {
			s.logger(ctx, "order.compensation_failed", map[string]any{
				"orderId":   order.ID,
				"productId": line.productID,
				"error":     err.Error(),
			})
		}
	}
	if restoreCart {
		if err := s.carts.RestoreCart(ctx, order.UserID, order.ID); err != nil {
			s.logger(ctx, "order.cart_restore_failed", map[string]any{"orderId": order.ID, "error": err.Error()})
		}
	}

	_, err := s.orders.Update(ctx, order.ID, func(o *domain.Order) error {
		o.OrderStatus = domain.OrderStatusCancelled
		o.PaymentStatus = domain.PaymentStatusFailed
		o.UpdatedAt = s.clock()
		return nil
	})
	if err != nil {
		s.logger(ctx, "order.void_failed", map[string]any{"orderId": order.ID, "error": err.Error()})
		return
	}
	s.logger(ctx, "order.voided", map[string]any{"orderId": order.ID, "reservedLines": len(reserved)})
}

func (s *orderService) UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (result *domain.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.UpdateOrderStatus", trace.WithAttributes(attribute.String("order.id", cmd.OrderID)))
	defer func() { s.endSpan(span, err) }()

	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if !cmd.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown order status %q", ErrOrderInvalidInput, cmd.Status)
	}
	if cmd.Status == domain.OrderStatusCancelled {
		order, err := s.cancel(ctx, orderID, "", cmd.ActorID)
		if errors.Is(err, ErrOrderNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &order, nil
	}

	tracking := trimmedPtr(cmd.TrackingNumber)
	var previous domain.OrderStatus
	updated, err := s.orders.Update(ctx, orderID, func(o *domain.Order) error {
		previous = o.OrderStatus
		if o.OrderStatus != cmd.Status && !s.transitionAllowed(o.OrderStatus, cmd.Status) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, o.OrderStatus, cmd.Status)
		}
		o.OrderStatus = cmd.Status
		if tracking != nil {
			o.TrackingNumber = tracking
		}
		o.UpdatedAt = s.clock()
		return nil
	})
	if err != nil {
		if isRepoNotFound(err) {
			return nil, nil
		}
		return nil, mapRepositoryError(err)
	}

	s.logger(ctx, "order.status_changed", map[string]any{
		"orderId": orderID,
		"from":    string(previous),
		"to":      string(updated.OrderStatus),
		"actorId": cmd.ActorID,
	})
	s.count("status_changed")
	s.publish(ctx, EventOrderStatusChanged, updated, map[string]any{
		"from":           string(previous),
		"to":             string(updated.OrderStatus),
		"trackingNumber": derefString(updated.TrackingNumber),
	})
	return &updated, nil
}

func (s *orderService) transitionAllowed(from, to domain.OrderStatus) bool {
	if s.permissive {
		return true
	}
	return from.CanTransitionTo(to)
}

func (s *orderService) UpdatePaymentStatus(ctx context.Context, cmd UpdatePaymentStatusCommand) (result *domain.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.UpdatePaymentStatus", trace.WithAttributes(attribute.String("order.id", cmd.OrderID)))
	defer func() { s.endSpan(span, err) }()

	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if !cmd.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown payment status %q", ErrOrderInvalidInput, cmd.Status)
	}

	intent := trimmedPtr(cmd.PaymentIntentID)
	var (
		previous domain.PaymentStatus
		restore  bool
	)
	updated, err := s.orders.Update(ctx, orderID, func(o *domain.Order) error {
		previous = o.PaymentStatus
		if cmd.ForwardOnly && !cmd.Status.Advances(o.PaymentStatus) {
			return fmt.Errorf("%w: payment is %s, update was %s", ErrStalePaymentUpdate, o.PaymentStatus, cmd.Status)
		}
		restore = cmd.Status == domain.PaymentStatusFailed && o.OrderStatus == domain.OrderStatusPending
		o.PaymentStatus = cmd.Status
		if intent != nil {
			o.PaymentIntentID = intent
		}
		o.UpdatedAt = s.clock()
		return nil
	})
	if err != nil {
		switch {
		case isRepoNotFound(err):
			return nil, nil
		case errors.Is(err, ErrStalePaymentUpdate):
			s.logger(ctx, "order.payment_update_stale", map[string]any{
				"orderId": orderID,
				"current": string(previous),
				"update":  string(cmd.Status),
				"actorId": cmd.ActorID,
			})
			return nil, ErrStalePaymentUpdate
		}
		return nil, mapRepositoryError(err)
	}

	if restore {
		if err := s.restoreStock(ctx, updated); err != nil {
			return nil, fmt.Errorf("payment status recorded, stock restore incomplete: %w", err)
		}
	}

	s.logger(ctx, "order.payment_status_changed", map[string]any{
		"orderId":       orderID,
		"from":          string(previous),
		"to":            string(updated.PaymentStatus),
		"stockRestored": restore,
		"actorId":       cmd.ActorID,
	})
	s.count("payment_status_changed")
	s.publish(ctx, EventOrderPaymentStatusChanged, updated, map[string]any{
		"from":            string(previous),
		"to":              string(updated.PaymentStatus),
		"paymentIntentId": derefString(updated.PaymentIntentID),
		"stockRestored":   restore,
	})
	return &updated, nil
}

func (s *orderService) CancelOrder(ctx context.Context, orderID, userID string) (order domain.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CancelOrder", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer func() { s.endSpan(span, err) }()

	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	userID = strings.TrimSpace(userID)
	return s.cancel(ctx, orderID, userID, userID)
}

func (s *orderService) cancel(ctx context.Context, orderID, ownerID, actorID string) (domain.Order, error) {
	var restore bool
	updated, err := s.orders.Update(ctx, orderID, func(o *domain.Order) error {
		if ownerID != "" && o.UserID != ownerID {
			return ErrOrderNotFound
		}
		if o.OrderStatus == domain.OrderStatusCancelled {
			return ErrAlreadyCancelled
		}
		if !o.OrderStatus.Cancellable() {
			return fmt.Errorf("%w: order is %s", ErrNotCancellable, o.OrderStatus)
		}
		restore = o.PaymentStatus == domain.PaymentStatusPaid
		o.OrderStatus = domain.OrderStatusCancelled
		o.UpdatedAt = s.clock()
		return nil
	})
	if err != nil {
		switch {
		case isRepoNotFound(err):
			return domain.Order{}, ErrOrderNotFound
		case errors.Is(err, ErrOrderNotFound):
			return domain.Order{}, ErrOrderNotFound
		case errors.Is(err, ErrAlreadyCancelled):
			return domain.Order{}, ErrAlreadyCancelled
		case errors.Is(err, ErrNotCancellable):
			return domain.Order{}, ErrNotCancellable
		}
		return domain.Order{}, mapRepositoryError(err)
	}

	if restore {
		if err := s.restoreStock(ctx, updated); err != nil {
			return domain.Order{}, fmt.Errorf("order cancelled, stock restore incomplete: %w", err)
		}
	}

	s.logger(ctx, "order.cancelled", map[string]any{
		"orderId":       orderID,
		"stockRestored": restore,
		"actorId":       actorID,
	})
	s.count("cancelled")
	s.publish(ctx, EventOrderCancelled, updated, map[string]any{"stockRestored": restore})
	return updated, nil
}

// restoreStock returns every line to stock. References are fixed per order and product,
// so repeated calls restore at most once.
func (s *orderService) restoreStock(ctx context.Context, order domain.Order) error {
	var errs []error
	for _, line := range aggregateStockLines(order.Products) {
		if _, err := s.stock.AdjustStock(ctx, StockAdjustCommand{
			ProductID: line.productID,
			Quantity:  line.quantity,
			Direction: domain.StockAdd,
			Reference: stockReference(order.ID, "restore", line.productID),
		}); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", line.productID, err))
		}
	}
	return errors.Join(errs...)
}

func (s *orderService) GetOrders(ctx context.Context, query OrderQuery) (OrderPage, error) {
	for _, status := range query.OrderStatus {
		if !status.Valid() {
			return OrderPage{}, fmt.Errorf("%w: unknown order status %q", ErrOrderInvalidInput, status)
		}
	}
	for _, status := range query.PaymentStatus {
		if !status.Valid() {
			return OrderPage{}, fmt.Errorf("%w: unknown payment status %q", ErrOrderInvalidInput, status)
		}
	}
	if query.StartDate != nil && query.EndDate != nil && query.EndDate.Before(*query.StartDate) {
		return OrderPage{}, fmt.Errorf("%w: endDate must not be before startDate", ErrOrderInvalidInput)
	}
	page, limit := pagination.Normalize(query.Page, query.Limit)

	result, err := s.orders.List(ctx, repositories.OrderListFilter{
		UserID:        strings.TrimSpace(query.UserID),
		OrderStatus:   query.OrderStatus,
		PaymentStatus: query.PaymentStatus,
		CreatedAt:     domain.RangeQuery[time.Time]{From: query.StartDate, To: query.EndDate},
		SortBy:        query.SortBy,
		SortOrder:     query.SortOrder,
		Pagination:    domain.Pagination{Page: page, Limit: limit},
	})
	if err != nil {
		if errors.Is(err, repositories.ErrInvalidSort) {
			return OrderPage{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
		}
		return OrderPage{}, mapRepositoryError(err)
	}
	return OrderPage{
		Orders:     result.Items,
		Total:      result.Total,
		Page:       result.Page,
		Limit:      result.Limit,
		TotalPages: result.TotalPages,
	}, nil
}

func (s *orderService) GetOrderByID(ctx context.Context, orderID, userID string) (*domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	return ownedOrder(order, err, userID)
}

func (s *orderService) GetOrderByNumber(ctx context.Context, orderNumber, userID string) (*domain.Order, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return nil, fmt.Errorf("%w: order number is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByNumber(ctx, orderNumber)
	return ownedOrder(order, err, userID)
}

func ownedOrder(order domain.Order, err error, userID string) (*domain.Order, error) {
	if err != nil {
		if isRepoNotFound(err) {
			return nil, nil
		}
		return nil, mapRepositoryError(err)
	}
	if userID = strings.TrimSpace(userID); userID != "" && order.UserID != userID {
		return nil, nil
	}
	return &order, nil
}

func (s *orderService) normalizeInput(input CreateOrderInput) (CreateOrderInput, error) {
	out := CreateOrderInput{
		PaymentMethod:   strings.TrimSpace(input.PaymentMethod),
		ShippingAddress: s.normalizeAddress(input.ShippingAddress),
		BillingAddress:  s.normalizeAddress(input.BillingAddress),
	}

	var problems []string
	if out.PaymentMethod == "" {
		problems = append(problems, "paymentMethod is required")
	}
	problems = append(problems, out.ShippingAddress.Problems("shippingAddress")...)
	problems = append(problems, out.BillingAddress.Problems("billingAddress")...)

	if input.Notes != nil {
		notes := strings.TrimSpace(*input.Notes)
		if utf8.RuneCountInString(notes) > domain.MaxOrderNotesLength {
			problems = append(problems, fmt.Sprintf("notes must be at most %d characters", domain.MaxOrderNotesLength))
		}
		// Sanitize strips markup but also escapes entities; notes are stored as plain text.
		notes = strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(notes)))
		if notes != "" {
			out.Notes = &notes
		}
	}

	if len(problems) > 0 {
		return CreateOrderInput{}, fmt.Errorf("%w: %s", ErrOrderInvalidInput, strings.Join(problems, "; "))
	}
	return out, nil
}

func (s *orderService) normalizeAddress(addr domain.Address) domain.Address {
	addr = domain.Address{
		Street:     strings.TrimSpace(addr.Street),
		City:       strings.TrimSpace(addr.City),
		Province:   strings.TrimSpace(addr.Province),
		PostalCode: strings.TrimSpace(addr.PostalCode),
		Country:    strings.TrimSpace(addr.Country),
	}
	if addr.Country == "" {
		addr.Country = s.defaultCountry
	}
	return addr
}

func (s *orderService) publish(ctx context.Context, eventType string, order domain.Order, data map[string]any) {
	if s.events == nil {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	data["orderStatus"] = string(order.OrderStatus)
	data["paymentStatus"] = string(order.PaymentStatus)
	event := DomainEvent{
		ID:          uuid.NewString(),
		Type:        eventType,
		AggregateID: order.ID,
		UserID:      order.UserID,
		OccurredAt:  s.clock(),
		Data:        data,
	}
	if err := s.events.PublishEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event_publish_failed", map[string]any{
			"orderId": order.ID,
			"type":    eventType,
			"error":   err.Error(),
		})
	}
}

func (s *orderService) count(event string) {
	if s.metrics != nil {
		s.metrics.OrderEvent(event)
	}
}

func (s *orderService) endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

type stockLine struct {
	productID string
	quantity  int
}

// aggregateStockLines merges lines for the same product, keeping first-seen order.
func aggregateStockLines(items []domain.OrderLineItem) []stockLine {
	index := make(map[string]int, len(items))
	lines := make([]stockLine, 0, len(items))
	for _, item := range items {
		if i, ok := index[item.ProductID]; ok {
			lines[i].quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(lines)
		lines = append(lines, stockLine{productID: item.ProductID, quantity: item.Quantity})
	}
	return lines
}

func stockReference(orderID, action, productID string) string {
	return fmt.Sprintf("order:%s:%s:%s", orderID, action, productID)
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
