package di

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/vendormart/api/internal/domain"
	"github.com/vendormart/api/internal/platform/config"
	"github.com/vendormart/api/internal/repositories"
	"github.com/vendormart/api/internal/services"
)

type stubRegistry struct {
	orders   repositories.OrderRepository
	products repositories.ProductRepository
	carts    repositories.CartRepository
	closed   bool
}

func (r *stubRegistry) Close(context.Context) error {
	r.closed = true
	return nil
}

func (r *stubRegistry) Orders() repositories.OrderRepository     { return r.orders }
func (r *stubRegistry) Products() repositories.ProductRepository { return r.products }
func (r *stubRegistry) Carts() repositories.CartRepository       { return r.carts }
func (r *stubRegistry) Health() repositories.HealthRepository    { return nil }

type stubOrders struct{ repositories.OrderRepository }

type stubProducts struct {
	repositories.ProductRepository
	adjustments []repositories.StockAdjustment
}

func (p *stubProducts) AdjustStock(_ context.Context, adj repositories.StockAdjustment) (domain.StockMovement, bool, error) {
	p.adjustments = append(p.adjustments, adj)
	return domain.StockMovement{
		Reference:  adj.Reference,
		ProductID:  adj.ProductID,
		Quantity:   adj.Quantity,
		Direction:  adj.Direction,
		StockAfter: 10,
		CreatedAt:  adj.Now,
	}, true, nil
}

type stubCarts struct{ repositories.CartRepository }

func testConfig() config.Config {
	return config.Config{
		Orders: config.OrdersConfig{
			TaxRate:               decimal.RequireFromString("0.13"),
			FreeShippingThreshold: decimal.NewFromInt(100),
			FlatShippingFee:       decimal.NewFromInt(15),
			DefaultLocale:         "en-CA",
			LowStockThreshold:     3,
		},
	}
}

func TestNewContainerRequiresRegistry(t *testing.T) {
	_, err := NewContainer(context.Background(), testConfig(), nil)
	require.Error(t, err)
}

func TestNewContainerRequiresProducts(t *testing.T) {
	reg := &stubRegistry{orders: stubOrders{}, carts: stubCarts{}}
	_, err := NewContainer(context.Background(), testConfig(), reg)
	require.Error(t, err)
}

func TestNewContainerRejectsInvalidLocale(t *testing.T) {
	cfg := testConfig()
	cfg.Orders.DefaultLocale = "not a locale!"
	reg := &stubRegistry{orders: stubOrders{}, products: &stubProducts{}, carts: stubCarts{}}

	_, err := NewContainer(context.Background(), cfg, reg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build order service")
}

func TestNewContainerWiresServices(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	products := &stubProducts{}
	reg := &stubRegistry{orders: stubOrders{}, products: products, carts: stubCarts{}}

	container, err := NewContainer(context.Background(), testConfig(), reg, WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	require.NotNil(t, container.Services.Orders)
	require.NotNil(t, container.Services.Carts)
	require.NotNil(t, container.Services.Stock)

	movement, err := container.Services.Stock.AdjustStock(context.Background(), services.StockAdjustCommand{
		ProductID: "prod-1",
		Quantity:  2,
		Direction: domain.StockAdd,
		Reference: "manual:restock",
	})
	require.NoError(t, err)
	assert.Equal(t, 10, movement.StockAfter)
	require.Len(t, products.adjustments, 1)
	assert.True(t, products.adjustments[0].Now.Equal(now))

	require.NoError(t, container.Close(context.Background()))
	assert.True(t, reg.closed)
}

func TestContainerCloseNil(t *testing.T) {
	var c *Container
	assert.NoError(t, c.Close(context.Background()))
}
