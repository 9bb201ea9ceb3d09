package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/samber/lo"

	domain "github.com/vendormart/api/internal/domain"
	pfirestore "github.com/vendormart/api/internal/platform/firestore"
	"github.com/vendormart/api/internal/platform/pagination"
	"github.com/vendormart/api/internal/repositories"
)

const (
	ordersCollection       = "orders"
	orderNumbersCollection = "orderNumbers"

	defaultOrderSortField = "createdAt"
)

// OrderRepository persists orders in Firestore. Order numbers are reserved in a separate
// collection so uniqueness holds across instances.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.Collection[orderDocument]
	numbers  *pfirestore.Collection[orderNumberDocument]
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		orders:   pfirestore.NewCollection[orderDocument](provider, ordersCollection),
		numbers:  pfirestore.NewCollection[orderNumberDocument](provider, orderNumbersCollection),
	}, nil
}

func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	if err := order.Validate(); err != nil {
		return err
	}

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		numberRef, err := r.numbers.Ref(ctx, order.OrderNumber)
		if err != nil {
			return err
		}
		orderRef, err := r.orders.Ref(ctx, order.ID)
		if err != nil {
			return err
		}
		if err := tx.Create(numberRef, orderNumberDocument{OrderID: order.ID, CreatedAt: order.CreatedAt.UTC()}); err != nil {
			return err
		}
		return tx.Create(orderRef, newOrderDocument(order))
	})
	return pfirestore.WrapError("orders.insert", err)
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.orders == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	doc, err := r.orders.Get(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *OrderRepository) FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	if r == nil || r.numbers == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	number, err := r.numbers.Get(ctx, strings.TrimSpace(orderNumber))
	if err != nil {
		return domain.Order{}, err
	}
	return r.FindByID(ctx, number.Data.OrderID)
}

func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.OffsetPage[domain.Order], error) {
	if r == nil || r.orders == nil {
		return domain.OffsetPage[domain.Order]{}, errors.New("order repository not initialised")
	}
	page, limit := pagination.Normalize(filter.Pagination.Page, filter.Pagination.Limit)
	sortField, direction, err := orderSort(filter.SortBy, filter.SortOrder)
	if err != nil {
		return domain.OffsetPage[domain.Order]{}, err
	}

	where := orderFilterQuery(filter)
	total, err := r.orders.Count(ctx, where)
	if err != nil {
		return domain.OffsetPage[domain.Order]{}, err
	}

	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		q = where(q).OrderBy(sortField, direction)
		if sortField != firestore.DocumentID {
			q = q.OrderBy(firestore.DocumentID, direction)
		}
		return q.Offset(pagination.Offset(page, limit)).Limit(limit)
	})
	if err != nil {
		return domain.OffsetPage[domain.Order]{}, err
	}

	return domain.OffsetPage[domain.Order]{
		Items: lo.Map(docs, func(doc pfirestore.Document[orderDocument], _ int) domain.Order {
			return doc.Data.toDomain(doc.ID)
		}),
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: pagination.TotalPages(total, limit),
	}, nil
}

func (r *OrderRepository) Scan(ctx context.Context, filter repositories.OrderListFilter, fn func(domain.Order) error) error {
	if r == nil || r.orders == nil {
		return errors.New("order repository not initialised")
	}
	if fn == nil {
		return errors.New("order scan: callback is required")
	}
	return r.orders.Stream(ctx, orderFilterQuery(filter), func(doc pfirestore.Document[orderDocument]) error {
		return fn(doc.Data.toDomain(doc.ID))
	})
}

func (r *OrderRepository) Update(ctx context.Context, orderID string, mutate func(*domain.Order) error) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	if mutate == nil {
		return domain.Order{}, errors.New("order update: mutate is required")
	}
	orderID = strings.TrimSpace(orderID)

	var updated domain.Order
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.orders.Ref(ctx, orderID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		current, err := r.orders.Decode(snap)
		if err != nil {
			return err
		}

		order := current.Data.toDomain(orderID)
		if err := mutate(&order); err != nil {
			return err
		}
		order.ID = orderID
		order.UserID = current.Data.UserID
		order.OrderNumber = current.Data.OrderNumber
		order.CreatedAt = current.Data.CreatedAt
		if err := order.Validate(); err != nil {
			return err
		}
		if err := tx.Set(ref, newOrderDocument(order)); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.update", err)
	}
	return updated, nil
}

func orderSort(field string, order domain.SortOrder) (string, firestore.Direction, error) {
	direction := firestore.Desc
	switch order {
	case "", domain.SortDesc:
	case domain.SortAsc:
		direction = firestore.Asc
	default:
		return "", direction, fmt.Errorf("order list: %w: order %q", repositories.ErrInvalidSort, order)
	}
	field = strings.TrimSpace(field)
	if field == "" {
		return defaultOrderSortField, direction, nil
	}
	if !lo.Contains(domain.OrderSortFields, field) {
		return "", direction, fmt.Errorf("order list: %w: field %q", repositories.ErrInvalidSort, field)
	}
	return field, direction, nil
}

func orderFilterQuery(filter repositories.OrderListFilter) pfirestore.QueryBuilder {
	return func(q firestore.Query) firestore.Query {
		if userID := strings.TrimSpace(filter.UserID); userID != "" {
			q = q.Where("userId", "==", userID)
		}
		switch len(filter.OrderStatus) {
		case 0:
		case 1:
			q = q.Where("orderStatus", "==", string(filter.OrderStatus[0]))
		default:
			q = q.Where("orderStatus", "in", lo.Map(filter.OrderStatus, func(s domain.OrderStatus, _ int) string { return string(s) }))
		}
		switch len(filter.PaymentStatus) {
		case 0:
		case 1:
			q = q.Where("paymentStatus", "==", string(filter.PaymentStatus[0]))
		default:
			q = q.Where("paymentStatus", "in", lo.Map(filter.PaymentStatus, func(s domain.PaymentStatus, _ int) string { return string(s) }))
		}
		if filter.CreatedAt.From != nil {
			q = q.Where("createdAt", ">=", filter.CreatedAt.From.UTC())
		}
		if filter.CreatedAt.To != nil {
			q = q.Where("createdAt", "<=", filter.CreatedAt.To.UTC())
		}
		return q
	}
}

type orderNumberDocument struct {
	OrderID   string    `firestore:"orderId"`
	CreatedAt time.Time `firestore:"createdAt"`
}

type orderDocument struct {
	OrderNumber     string              `firestore:"orderNumber"`
	UserID          string              `firestore:"userId"`
	Products        []orderLineDocument `firestore:"products"`
	Subtotal        float64             `firestore:"subtotal"`
	Tax             float64             `firestore:"tax"`
	Shipping        float64             `firestore:"shipping"`
	TotalAmount     float64             `firestore:"totalAmount"`
	PaymentStatus   string              `firestore:"paymentStatus"`
	OrderStatus     string              `firestore:"orderStatus"`
	PaymentMethod   string              `firestore:"paymentMethod"`
	PaymentIntentID *string             `firestore:"paymentIntentId,omitempty"`
	TrackingNumber  *string             `firestore:"trackingNumber,omitempty"`
	Notes           *string             `firestore:"notes,omitempty"`
	ShippingAddress addressDocument     `firestore:"shippingAddress"`
	BillingAddress  addressDocument     `firestore:"billingAddress"`
	CreatedAt       time.Time           `firestore:"createdAt"`
	UpdatedAt       time.Time           `firestore:"updatedAt"`
}

type orderLineDocument struct {
	ProductID string  `firestore:"productId"`
	Name      string  `firestore:"name"`
	Price     float64 `firestore:"price"`
	Quantity  int     `firestore:"quantity"`
	SKU       string  `firestore:"sku"`
}

type addressDocument struct {
	Street     string `firestore:"street"`
	City       string `firestore:"city"`
	Province   string `firestore:"province"`
	PostalCode string `firestore:"postalCode"`
	Country    string `firestore:"country"`
}

func newOrderDocument(order domain.Order) orderDocument {
	return orderDocument{
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Products: lo.Map(order.Products, func(item domain.OrderLineItem, _ int) orderLineDocument {
			return orderLineDocument{
				ProductID: item.ProductID,
				Name:      item.Name,
				Price:     moneyToDoc(item.Price),
				Quantity:  item.Quantity,
				SKU:       item.SKU,
			}
		}),
		Subtotal:        moneyToDoc(order.Subtotal),
		Tax:             moneyToDoc(order.Tax),
		Shipping:        moneyToDoc(order.Shipping),
		TotalAmount:     moneyToDoc(order.TotalAmount),
		PaymentStatus:   string(order.PaymentStatus),
		OrderStatus:     string(order.OrderStatus),
		PaymentMethod:   order.PaymentMethod,
		PaymentIntentID: order.PaymentIntentID,
		TrackingNumber:  order.TrackingNumber,
		Notes:           order.Notes,
		ShippingAddress: addressDocument(order.ShippingAddress),
		BillingAddress:  addressDocument(order.BillingAddress),
		CreatedAt:       order.CreatedAt.UTC(),
		UpdatedAt:       order.UpdatedAt.UTC(),
	}
}

func (d orderDocument) toDomain(id string) domain.Order {
	return domain.Order{
		ID:          id,
		OrderNumber: d.OrderNumber,
		UserID:      d.UserID,
		Products: lo.Map(d.Products, func(item orderLineDocument, _ int) domain.OrderLineItem {
			return domain.OrderLineItem{
				ProductID: item.ProductID,
				Name:      item.Name,
				Price:     moneyFromDoc(item.Price),
				Quantity:  item.Quantity,
				SKU:       item.SKU,
			}
		}),
		Subtotal:        moneyFromDoc(d.Subtotal),
		Tax:             moneyFromDoc(d.Tax),
		Shipping:        moneyFromDoc(d.Shipping),
		TotalAmount:     moneyFromDoc(d.TotalAmount),
		PaymentStatus:   domain.PaymentStatus(d.PaymentStatus),
		OrderStatus:     domain.OrderStatus(d.OrderStatus),
		PaymentMethod:   d.PaymentMethod,
		PaymentIntentID: d.PaymentIntentID,
		TrackingNumber:  d.TrackingNumber,
		Notes:           d.Notes,
		ShippingAddress: domain.Address(d.ShippingAddress),
		BillingAddress:  domain.Address(d.BillingAddress),
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}
