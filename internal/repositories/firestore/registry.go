package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/vendormart/api/internal/platform/firestore"
	"github.com/vendormart/api/internal/repositories"
)

// Registry wires the Firestore repositories behind repositories.Registry.
type Registry struct {
	provider *pfirestore.Provider
	orders   *OrderRepository
	products *ProductRepository
	carts    *CartRepository
	health   repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds every repository on top of one provider.
func NewRegistry(provider *pfirestore.Provider, health repositories.HealthRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	products, err := NewProductRepository(provider)
	if err != nil {
		return nil, err
	}
	carts, err := NewCartRepository(provider)
	if err != nil {
		return nil, err
	}
	return &Registry{provider: provider, orders: orders, products: products, carts: carts, health: health}, nil
}

func (r *Registry) Orders() repositories.OrderRepository     { return r.orders }
func (r *Registry) Products() repositories.ProductRepository { return r.products }
func (r *Registry) Carts() repositories.CartRepository       { return r.carts }
func (r *Registry) Health() repositories.HealthRepository    { return r.health }

func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}
