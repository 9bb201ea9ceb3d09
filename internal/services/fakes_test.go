package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/vendormart/api/internal/domain"
	"github.com/vendormart/api/internal/platform/pagination"
	"github.com/vendormart/api/internal/repositories"
)

type testRepoError struct {
	notFound bool
	conflict bool
}

func (e testRepoError) Error() string {
	switch {
	case e.notFound:
		return "not found"
	case e.conflict:
		return "conflict"
	}
	return "unavailable"
}

func (e testRepoError) IsNotFound() bool    { return e.notFound }
func (e testRepoError) IsConflict() bool    { return e.conflict }
func (e testRepoError) IsUnavailable() bool { return !e.notFound && !e.conflict }

var (
	errRepoNotFound = testRepoError{notFound: true}
	errRepoConflict = testRepoError{conflict: true}
)

type memOrderRepo struct {
	mu       sync.Mutex
	orders   map[string]domain.Order
	numbers  map[string]string
	insertFn func(domain.Order) error
	updates  int
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: map[string]domain.Order{}, numbers: map[string]string{}}
}

func (r *memOrderRepo) Insert(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertFn != nil {
		if err := r.insertFn(order); err != nil {
			return err
		}
	}
	if err := order.Validate(); err != nil {
		return err
	}
	if _, ok := r.numbers[order.OrderNumber]; ok {
		return errRepoConflict
	}
	if _, ok := r.orders[order.ID]; ok {
		return errRepoConflict
	}
	r.numbers[order.OrderNumber] = order.ID
	r.orders[order.ID] = order
	return nil
}

func (r *memOrderRepo) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, errRepoNotFound
	}
	return order, nil
}

func (r *memOrderRepo) FindByNumber(ctx context.Context, number string) (domain.Order, error) {
	r.mu.Lock()
	id, ok := r.numbers[number]
	r.mu.Unlock()
	if !ok {
		return domain.Order{}, errRepoNotFound
	}
	return r.FindByID(ctx, id)
}

func (r *memOrderRepo) matching(filter repositories.OrderListFilter) []domain.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Order
	for _, order := range r.orders {
		if filter.UserID != "" && order.UserID != filter.UserID {
			continue
		}
		if len(filter.OrderStatus) > 0 && !containsStatus(filter.OrderStatus, order.OrderStatus) {
			continue
		}
		if len(filter.PaymentStatus) > 0 && !containsStatus(filter.PaymentStatus, order.PaymentStatus) {
			continue
		}
		if from := filter.CreatedAt.From; from != nil && order.CreatedAt.Before(*from) {
			continue
		}
		if to := filter.CreatedAt.To; to != nil && order.CreatedAt.After(*to) {
			continue
		}
		out = append(out, order)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func containsStatus[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func (r *memOrderRepo) List(_ context.Context, filter repositories.OrderListFilter) (domain.OffsetPage[domain.Order], error) {
	if filter.SortBy != "" && filter.SortBy != "createdAt" {
		return domain.OffsetPage[domain.Order]{}, fmt.Errorf("%w: %s", repositories.ErrInvalidSort, filter.SortBy)
	}
	all := r.matching(filter)
	page, limit := pagination.Normalize(filter.Pagination.Page, filter.Pagination.Limit)
	start := min(pagination.Offset(page, limit), len(all))
	end := min(start+limit, len(all))
	return domain.OffsetPage[domain.Order]{
		Items:      all[start:end],
		Total:      len(all),
		Page:       page,
		Limit:      limit,
		TotalPages: pagination.TotalPages(len(all), limit),
	}, nil
}

func (r *memOrderRepo) Scan(_ context.Context, filter repositories.OrderListFilter, fn func(domain.Order) error) error {
	for _, order := range r.matching(filter) {
		if err := fn(order); err != nil {
			return err
		}
	}
	return nil
}

func (r *memOrderRepo) Update(_ context.Context, orderID string, mutate func(*domain.Order) error) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, errRepoNotFound
	}
	if err := mutate(&order); err != nil {
		return domain.Order{}, err
	}
	if err := order.Validate(); err != nil {
		return domain.Order{}, err
	}
	r.orders[orderID] = order
	r.updates++
	return order, nil
}

func (r *memOrderRepo) get(id string) domain.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orders[id]
}

func (r *memOrderRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

// memProductRepo is an in-memory stock ledger with the same dedup semantics as the Firestore one.
type memProductRepo struct {
	mu        sync.Mutex
	products  map[string]domain.Product
	movements map[string]domain.StockMovement
	applied   []domain.StockMovement
	failFn    func(repositories.StockAdjustment) error
}

func newMemProductRepo(products ...domain.Product) *memProductRepo {
	repo := &memProductRepo{products: map[string]domain.Product{}, movements: map[string]domain.StockMovement{}}
	for _, p := range products {
		repo.products[p.ID] = p
	}
	return repo
}

func (r *memProductRepo) FindByID(_ context.Context, productID string) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productID]
	if !ok {
		return domain.Product{}, errRepoNotFound
	}
	return p, nil
}

func (r *memProductRepo) AdjustStock(_ context.Context, adj repositories.StockAdjustment) (domain.StockMovement, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFn != nil {
		if err := r.failFn(adj); err != nil {
			return domain.StockMovement{}, false, err
		}
	}
	if existing, ok := r.movements[adj.Reference]; ok {
		return existing, false, nil
	}
	p, ok := r.products[adj.ProductID]
	if !ok {
		return domain.StockMovement{}, false, repositories.ProductNotFound(adj.ProductID, nil)
	}
	switch adj.Direction {
	case domain.StockSubtract:
		if p.Stock < adj.Quantity {
			return domain.StockMovement{}, false, repositories.InsufficientStock(adj.ProductID, p.Stock, adj.Quantity)
		}
		p.Stock -= adj.Quantity
	case domain.StockAdd:
		p.Stock += adj.Quantity
	}
	r.products[adj.ProductID] = p
	movement := domain.StockMovement{
		Reference:  adj.Reference,
		ProductID:  adj.ProductID,
		Quantity:   adj.Quantity,
		Direction:  adj.Direction,
		StockAfter: p.Stock,
		CreatedAt:  adj.Now,
	}
	r.movements[adj.Reference] = movement
	r.applied = append(r.applied, movement)
	return movement, true, nil
}

func (r *memProductRepo) stock(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.products[id].Stock
}

func (r *memProductRepo) movementCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.applied)
}

type memCartRepo struct {
	mu          sync.Mutex
	carts       map[string]domain.Cart
	setStatusFn func(userID string, status domain.CartStatus) error
}

func newMemCartRepo(carts ...domain.Cart) *memCartRepo {
	repo := &memCartRepo{carts: map[string]domain.Cart{}}
	for _, c := range carts {
		repo.carts[c.UserID] = c
	}
	return repo
}

func (r *memCartRepo) FindActive(_ context.Context, userID string) (domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cart, ok := r.carts[userID]
	if !ok || cart.Status != domain.CartStatusActive {
		return domain.Cart{}, errRepoNotFound
	}
	return cart, nil
}

func (r *memCartRepo) SetStatus(_ context.Context, userID string, status domain.CartStatus, orderID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.setStatusFn != nil {
		if err := r.setStatusFn(userID, status); err != nil {
			return err
		}
	}
	cart, ok := r.carts[userID]
	if !ok {
		return errRepoNotFound
	}
	if !cart.CanMoveTo(status, orderID) {
		return testRepoError{conflict: true}
	}
	cart.Status = status
	cart.OrderID = orderID
	if status == domain.CartStatusActive {
		cart.OrderID = ""
	}
	cart.UpdatedAt = now
	r.carts[userID] = cart
	return nil
}

func (r *memCartRepo) status(userID string) domain.CartStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.carts[userID].Status
}

type captureEvents struct {
	mu     sync.Mutex
	events []DomainEvent
	err    error
}

func (c *captureEvents) PublishEvent(_ context.Context, event DomainEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return c.err
}

func (c *captureEvents) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Type)
	}
	return out
}

type captureMetrics struct {
	mu     sync.Mutex
	orders map[string]int
	stock  map[string]int
}

func newCaptureMetrics() *captureMetrics {
	return &captureMetrics{orders: map[string]int{}, stock: map[string]int{}}
}

func (m *captureMetrics) OrderEvent(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[event]++
}

func (m *captureMetrics) StockMovement(direction domain.StockDirection, applied bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[fmt.Sprintf("%s:%t", direction, applied)]++
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testAddress() domain.Address {
	return domain.Address{
		Street:     "100 Queen St W",
		City:       "Toronto",
		Province:   "ON",
		PostalCode: "M5H 2N2",
		Country:    "Canada",
	}
}

func activeProduct(id, price string, stock int) domain.Product {
	return domain.Product{
		ID:     id,
		Name:   "Product " + id,
		SKU:    "SKU-" + id,
		Price:  money(price),
		Stock:  stock,
		Active: true,
	}
}

func cartWith(userID string, items ...domain.CartItem) domain.Cart {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return domain.Cart{UserID: userID, Items: items, TotalPrice: total, Status: domain.CartStatusActive}
}

func cartItem(productID, price string, qty int) domain.CartItem {
	return domain.CartItem{ProductID: productID, Name: "Product " + productID, Price: money(price), Quantity: qty}
}

var errBoom = errors.New("boom")
