package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/vendormart/api/internal/domain"
)

func newTestCartValidator(t *testing.T, carts *memCartRepo, products *memProductRepo) CartValidator {
	t.Helper()
	validator, err := NewCartValidator(CartValidatorDeps{Carts: carts, Products: products})
	require.NoError(t, err)
	return validator
}

func TestValidateCartItemsReportsIssues(t *testing.T) {
	inactive := activeProduct("p2", "5.00", 10)
	inactive.Active = false
	products := newMemProductRepo(activeProduct("p1", "10.00", 1), inactive, activeProduct("p3", "8.00", 3))
	carts := newMemCartRepo(cartWith("user-1",
		cartItem("p1", "10.00", 2),
		cartItem("p2", "5.00", 1),
		cartItem("p3", "7.50", 1),
		cartItem("ghost", "1.00", 1),
	))
	validator := newTestCartValidator(t, carts, products)

	result, err := validator.ValidateCartItems(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	require.NotNil(t, result.Cart)
	assert.True(t, result.Cart.TotalPrice.Equal(money("33.50")), "total %s", result.Cart.TotalPrice)
	assert.Equal(t, []string{
		"Insufficient stock for Product p1. Available: 1, requested: 2",
		"Product Product p2 is no longer available",
		"Price changed for Product p3: was 7.50, now 8.00",
		"Product ghost not found",
	}, result.Issues)
}

func TestValidateCartItemsReportsNonPositiveQuantities(t *testing.T) {
	products := newMemProductRepo(activeProduct("p1", "10.00", 5), activeProduct("p2", "4.00", 5))
	carts := newMemCartRepo(cartWith("user-1",
		cartItem("p1", "10.00", 0),
		cartItem("p2", "4.00", -1),
	))
	validator := newTestCartValidator(t, carts, products)

	result, err := validator.ValidateCartItems(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, []string{
		"Invalid quantity for Product p1: 0",
		"Invalid quantity for Product p2: -1",
	}, result.Issues)
}

func TestValidateCartItemsWithoutActiveCart(t *testing.T) {
	validator := newTestCartValidator(t, newMemCartRepo(), newMemProductRepo())

	result, err := validator.ValidateCartItems(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Nil(t, result.Cart)

	_, err = validator.ValidateCartItems(context.Background(), " ")
	assert.ErrorIs(t, err, ErrOrderInvalidInput)
}

func TestValidateCartItemsValidCart(t *testing.T) {
	validator := newTestCartValidator(t,
		newMemCartRepo(cartWith("user-1", cartItem("p1", "10.00", 2))),
		newMemProductRepo(activeProduct("p1", "10.00", 2)),
	)

	result, err := validator.ValidateCartItems(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Issues)
}

func TestConvertAndRestoreCart(t *testing.T) {
	carts := newMemCartRepo(cartWith("user-1", cartItem("p1", "10.00", 1)))
	validator := newTestCartValidator(t, carts, newMemProductRepo())
	ctx := context.Background()

	require.NoError(t, validator.ConvertCartToOrder(ctx, "user-1", "order-1"))
	assert.Equal(t, domain.CartStatusConverted, carts.status("user-1"))
	assert.Equal(t, "order-1", carts.carts["user-1"].OrderID)
	require.NoError(t, validator.ConvertCartToOrder(ctx, "user-1", "order-1"), "retry for the same order")

	require.NoError(t, validator.RestoreCart(ctx, "user-1", "order-1"))
	assert.Equal(t, domain.CartStatusActive, carts.status("user-1"))
	assert.Empty(t, carts.carts["user-1"].OrderID)

	assert.ErrorIs(t, validator.ConvertCartToOrder(ctx, "user-1", ""), ErrOrderInvalidInput)
	assert.ErrorIs(t, validator.RestoreCart(ctx, "user-1", ""), ErrOrderInvalidInput)

	carts.setStatusFn = func(string, domain.CartStatus) error { return errBoom }
	err := validator.RestoreCart(ctx, "user-1", "order-1")
	assert.True(t, errors.Is(err, errBoom))
}

func TestCartHeldByAnotherOrderConflicts(t *testing.T) {
	carts := newMemCartRepo(cartWith("user-1", cartItem("p1", "10.00", 1)))
	validator := newTestCartValidator(t, carts, newMemProductRepo())
	ctx := context.Background()

	require.NoError(t, validator.ConvertCartToOrder(ctx, "user-1", "order-1"))

	assert.ErrorIs(t, validator.ConvertCartToOrder(ctx, "user-1", "order-2"), ErrOrderConflict)
	assert.ErrorIs(t, validator.RestoreCart(ctx, "user-1", "order-2"), ErrOrderConflict)
	assert.Equal(t, domain.CartStatusConverted, carts.status("user-1"))
	assert.Equal(t, "order-1", carts.carts["user-1"].OrderID)
}
