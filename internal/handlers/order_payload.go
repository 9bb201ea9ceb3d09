package handlers

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	domain "github.com/vendormart/api/internal/domain"
	"github.com/vendormart/api/internal/services"
)

type addressPayload struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country,omitempty"`
}

func (a addressPayload) toDomain() domain.Address {
	return domain.Address{
		Street:     a.Street,
		City:       a.City,
		Province:   a.Province,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

func buildAddressPayload(a domain.Address) addressPayload {
	return addressPayload{
		Street:     a.Street,
		City:       a.City,
		Province:   a.Province,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

type orderLinePayload struct {
	ProductID string      `json:"productId"`
	Name      string      `json:"name"`
	SKU       string      `json:"sku,omitempty"`
	Price     json.Number `json:"price"`
	Quantity  int         `json:"quantity"`
	LineTotal json.Number `json:"lineTotal"`
}

type orderPayload struct {
	ID              string             `json:"id"`
	OrderNumber     string             `json:"orderNumber"`
	UserID          string             `json:"userId"`
	Products        []orderLinePayload `json:"products"`
	Subtotal        json.Number        `json:"subtotal"`
	Tax             json.Number        `json:"tax"`
	Shipping        json.Number        `json:"shipping"`
	TotalAmount     json.Number        `json:"totalAmount"`
	OrderStatus     string             `json:"orderStatus"`
	PaymentStatus   string             `json:"paymentStatus"`
	PaymentMethod   string             `json:"paymentMethod"`
	PaymentIntentID *string            `json:"paymentIntentId,omitempty"`
	TrackingNumber  *string            `json:"trackingNumber,omitempty"`
	Notes           *string            `json:"notes,omitempty"`
	ShippingAddress addressPayload     `json:"shippingAddress"`
	BillingAddress  addressPayload     `json:"billingAddress"`
	CreatedAt       string             `json:"createdAt"`
	UpdatedAt       string             `json:"updatedAt"`
}

func buildOrderPayload(order domain.Order) orderPayload {
	lines := make([]orderLinePayload, 0, len(order.Products))
	for _, item := range order.Products {
		lines = append(lines, orderLinePayload{
			ProductID: item.ProductID,
			Name:      item.Name,
			SKU:       item.SKU,
			Price:     amount(item.Price),
			Quantity:  item.Quantity,
			LineTotal: amount(item.LineTotal()),
		})
	}
	return orderPayload{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		UserID:          order.UserID,
		Products:        lines,
		Subtotal:        amount(order.Subtotal),
		Tax:             amount(order.Tax),
		Shipping:        amount(order.Shipping),
		TotalAmount:     amount(order.TotalAmount),
		OrderStatus:     string(order.OrderStatus),
		PaymentStatus:   string(order.PaymentStatus),
		PaymentMethod:   order.PaymentMethod,
		PaymentIntentID: order.PaymentIntentID,
		TrackingNumber:  order.TrackingNumber,
		Notes:           order.Notes,
		ShippingAddress: buildAddressPayload(order.ShippingAddress),
		BillingAddress:  buildAddressPayload(order.BillingAddress),
		CreatedAt:       formatTime(order.CreatedAt),
		UpdatedAt:       formatTime(order.UpdatedAt),
	}
}

// amount renders money as a JSON number with two decimals.
func amount(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderListResponse struct {
	Orders     []orderPayload `json:"orders"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"totalPages"`
}

func buildOrderListResponse(page services.OrderPage) orderListResponse {
	orders := make([]orderPayload, 0, len(page.Orders))
	for _, order := range page.Orders {
		orders = append(orders, buildOrderPayload(order))
	}
	return orderListResponse{
		Orders:     orders,
		Total:      page.Total,
		Page:       page.Page,
		Limit:      page.Limit,
		TotalPages: page.TotalPages,
	}
}

type orderStatsResponse struct {
	TotalOrders       int            `json:"totalOrders"`
	TotalRevenue      json.Number    `json:"totalRevenue"`
	AverageOrderValue json.Number    `json:"averageOrderValue"`
	OrdersByStatus    map[string]int `json:"ordersByStatus"`
	PaymentsByStatus  map[string]int `json:"paymentsByStatus"`
}

func buildOrderStatsResponse(stats domain.OrderStats) orderStatsResponse {
	byOrder := make(map[string]int, len(stats.OrdersByStatus))
	for status, count := range stats.OrdersByStatus {
		byOrder[string(status)] = count
	}
	byPayment := make(map[string]int, len(stats.PaymentsByStatus))
	for status, count := range stats.PaymentsByStatus {
		byPayment[string(status)] = count
	}
	return orderStatsResponse{
		TotalOrders:       stats.TotalOrders,
		TotalRevenue:      amount(stats.TotalRevenue),
		AverageOrderValue: amount(stats.AverageOrderValue),
		OrdersByStatus:    byOrder,
		PaymentsByStatus:  byPayment,
	}
}

type stockMovementResponse struct {
	Reference  string `json:"reference"`
	ProductID  string `json:"productId"`
	Quantity   int    `json:"quantity"`
	Direction  string `json:"direction"`
	StockAfter int    `json:"stockAfter"`
	CreatedAt  string `json:"createdAt"`
}

func buildStockMovementResponse(m domain.StockMovement) stockMovementResponse {
	return stockMovementResponse{
		Reference:  m.Reference,
		ProductID:  m.ProductID,
		Quantity:   m.Quantity,
		Direction:  string(m.Direction),
		StockAfter: m.StockAfter,
		CreatedAt:  formatTime(m.CreatedAt),
	}
}
