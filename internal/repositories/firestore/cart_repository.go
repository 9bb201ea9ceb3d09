package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/samber/lo"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/vendormart/api/internal/domain"
	pfirestore "github.com/vendormart/api/internal/platform/firestore"
	"github.com/vendormart/api/internal/repositories"
)

const cartCollection = "carts"

// CartRepository reads carts keyed by user id.
type CartRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.Collection[cartDocument]
}

var _ repositories.CartRepository = (*CartRepository)(nil)

func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{
		provider: provider,
		base:     pfirestore.NewCollection[cartDocument](provider, cartCollection),
	}, nil
}

func (r *CartRepository) FindActive(ctx context.Context, userID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}
	if doc.Data.Status != string(domain.CartStatusActive) {
		return domain.Cart{}, pfirestore.WrapError("carts.findActive",
			status.Error(codes.NotFound, fmt.Sprintf("cart for %s is %s", userID, doc.Data.Status)))
	}
	return doc.Data.toDomain(userID), nil
}

func (r *CartRepository) SetStatus(ctx context.Context, userID string, next domain.CartStatus, orderID string, now time.Time) error {
	if r == nil || r.provider == nil {
		return errors.New("cart repository not initialised")
	}
	userID, orderID = strings.TrimSpace(userID), strings.TrimSpace(orderID)
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.Ref(ctx, userID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		current, err := r.base.Decode(snap)
		if err != nil {
			return err
		}
		if !current.Data.toDomain(userID).CanMoveTo(next, orderID) {
			return status.Errorf(codes.FailedPrecondition, "cart for %s is %s (order %q), cannot become %s for order %q",
				userID, current.Data.Status, current.Data.OrderID, next, orderID)
		}
		recorded := orderID
		if next == domain.CartStatusActive {
			recorded = ""
		}
		return tx.Update(ref, []firestore.Update{
			{Path: "status", Value: string(next)},
			{Path: "orderId", Value: recorded},
			{Path: "updatedAt", Value: now.UTC()},
		})
	})
	return pfirestore.WrapError("carts.setStatus", err)
}

type cartDocument struct {
	Items      []cartItemDocument `firestore:"items"`
	TotalPrice float64            `firestore:"totalPrice"`
	Status     string             `firestore:"status"`
	OrderID    string             `firestore:"orderId,omitempty"`
	UpdatedAt  time.Time          `firestore:"updatedAt"`
}

type cartItemDocument struct {
	ProductID string  `firestore:"productId"`
	Name      string  `firestore:"name"`
	Price     float64 `firestore:"price"`
	Quantity  int     `firestore:"quantity"`
}

func (d cartDocument) toDomain(userID string) domain.Cart {
	return domain.Cart{
		UserID: userID,
		Items: lo.Map(d.Items, func(item cartItemDocument, _ int) domain.CartItem {
			return domain.CartItem{
				ProductID: item.ProductID,
				Name:      item.Name,
				Price:     moneyFromDoc(item.Price),
				Quantity:  item.Quantity,
			}
		}),
		TotalPrice: moneyFromDoc(d.TotalPrice),
		Status:     domain.CartStatus(d.Status),
		OrderID:    d.OrderID,
		UpdatedAt:  d.UpdatedAt,
	}
}
