package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/vendormart/api/internal/domain"
	"github.com/vendormart/api/internal/repositories"
)

// CartValidatorDeps bundles the collaborators of the cart validator.
type CartValidatorDeps struct {
	Carts    repositories.CartRepository
	Products ProductCatalog
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type cartValidator struct {
	carts    repositories.CartRepository
	products ProductCatalog
	clock    func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewCartValidator wires dependencies into a CartValidator.
func NewCartValidator(deps CartValidatorDeps) (CartValidator, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart validator: cart repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("cart validator: product catalog is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &cartValidator{
		carts:    deps.Carts,
		products: deps.Products,
		clock:    func() time.Time { return clock().UTC() },
		logger:   logger,
	}, nil
}

// ValidateCartItems checks every cart line against the live product. The result is advisory:
// stock can change before checkout decrements it.
func (v *cartValidator) ValidateCartItems(ctx context.Context, userID string) (CartValidation, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return CartValidation{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}

	cart, err := v.carts.FindActive(ctx, userID)
	if err != nil {
		if isRepoNotFound(err) {
			return CartValidation{Valid: false}, nil
		}
		return CartValidation{}, fmt.Errorf("load cart: %w", err)
	}

	issues := make([]string, 0)
	total := decimal.Zero
	for _, item := range cart.Items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))

		product, err := v.products.FindByID(ctx, item.ProductID)
		if err != nil {
			if isRepoNotFound(err) {
				issues = append(issues, fmt.Sprintf("Product %s not found", item.ProductID))
				continue
			}
			return CartValidation{}, fmt.Errorf("load product %s: %w", item.ProductID, err)
		}
		name := product.Name
		if name == "" {
			name = item.Name
		}
		if !product.Active {
			issues = append(issues, fmt.Sprintf("Product %s is no longer available", name))
			continue
		}
		if item.Quantity < 1 {
			issues = append(issues, fmt.Sprintf("Invalid quantity for %s: %d", name, item.Quantity))
			continue
		}
		if product.Stock < item.Quantity {
			issues = append(issues, fmt.Sprintf("Insufficient stock for %s. Available: %d, requested: %d", name, product.Stock, item.Quantity))
		}
		if !product.Price.Equal(item.Price) {
			issues = append(issues, fmt.Sprintf("Price changed for %s: was %s, now %s", name, item.Price.StringFixed(2), product.Price.StringFixed(2)))
		}
	}
	cart.TotalPrice = total.Round(2)

	if len(issues) > 0 {
		v.logger(ctx, "cart.validation_failed", map[string]any{
			"userId": userID,
			"issues": len(issues),
		})
	}

	return CartValidation{Cart: &cart, Valid: len(issues) == 0, Issues: issues}, nil
}

// ConvertCartToOrder marks the cart converted for orderID. A cart already taken by
// another checkout yields ErrOrderConflict so the caller can compensate.
func (v *cartValidator) ConvertCartToOrder(ctx context.Context, userID, orderID string) error {
	return v.move(ctx, "convert cart", userID, orderID, domain.CartStatusConverted)
}

// RestoreCart re-activates the cart converted for orderID. It refuses to undo a
// conversion made by a different order.
func (v *cartValidator) RestoreCart(ctx context.Context, userID, orderID string) error {
	return v.move(ctx, "restore cart", userID, orderID, domain.CartStatusActive)
}

func (v *cartValidator) move(ctx context.Context, op, userID, orderID string, next domain.CartStatus) error {
	userID = strings.TrimSpace(userID)
	orderID = strings.TrimSpace(orderID)
	if userID == "" || orderID == "" {
		return fmt.Errorf("%w: user id and order id are required", ErrOrderInvalidInput)
	}
	err := v.carts.SetStatus(ctx, userID, next, orderID, v.clock())
	switch {
	case err == nil:
		return nil
	case isRepoConflict(err):
		return fmt.Errorf("%w: %s: cart is held by another order: %v", ErrOrderConflict, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
