package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/vendormart/api/internal/domain"
	pfirestore "github.com/vendormart/api/internal/platform/firestore"
	"github.com/vendormart/api/internal/repositories"
)

const (
	productsCollection       = "products"
	stockMovementsCollection = "stockMovements"
)

// ProductRepository reads catalog products and owns the stock ledger.
type ProductRepository struct {
	provider  *pfirestore.Provider
	products  *pfirestore.Collection[productDocument]
	movements *pfirestore.Collection[stockMovementDocument]
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)

func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		provider:  provider,
		products:  pfirestore.NewCollection[productDocument](provider, productsCollection),
		movements: pfirestore.NewCollection[stockMovementDocument](provider, stockMovementsCollection),
	}, nil
}

func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.products == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	doc, err := r.products.Get(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.Product{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// AdjustStock applies adj inside one transaction. The movement document keyed by the
// reference hash is read first; when it exists the stored movement is returned and
// applied is false.
func (r *ProductRepository) AdjustStock(ctx context.Context, adj repositories.StockAdjustment) (domain.StockMovement, bool, error) {
	if r == nil || r.provider == nil {
		return domain.StockMovement{}, false, errors.New("product repository not initialised")
	}
	productID := strings.TrimSpace(adj.ProductID)
	reference := strings.TrimSpace(adj.Reference)
	switch {
	case productID == "":
		return domain.StockMovement{}, false, invalidAdjustment("product id is required")
	case reference == "":
		return domain.StockMovement{}, false, invalidAdjustment("reference is required")
	case adj.Quantity <= 0:
		return domain.StockMovement{}, false, invalidAdjustment(fmt.Sprintf("quantity must be > 0, got %d", adj.Quantity))
	case !adj.Direction.Valid():
		return domain.StockMovement{}, false, invalidAdjustment(fmt.Sprintf("unknown direction %q", adj.Direction))
	}
	now := adj.Now.UTC()
	if adj.Now.IsZero() {
		now = time.Now().UTC()
	}

	var (
		movement domain.StockMovement
		applied  bool
	)
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		applied = false
		movementRef, err := r.movements.Ref(ctx, movementID(reference))
		if err != nil {
			return err
		}
		productRef, err := r.products.Ref(ctx, productID)
		if err != nil {
			return err
		}

		movementSnap, err := tx.Get(movementRef)
		switch {
		case err == nil:
			existing, err := r.movements.Decode(movementSnap)
			if err != nil {
				return err
			}
			movement = existing.Data.toDomain()
			return nil
		case !pfirestore.IsNotFound(err):
			return err
		}

		productSnap, err := tx.Get(productRef)
		if err != nil {
			if pfirestore.IsNotFound(err) {
				return repositories.ProductNotFound(productID, err)
			}
			return err
		}
		product, err := r.products.Decode(productSnap)
		if err != nil {
			return err
		}

		stock := product.Data.Stock
		if adj.Direction == domain.StockSubtract {
			if stock < adj.Quantity {
				return repositories.InsufficientStock(productID, stock, adj.Quantity)
			}
			stock -= adj.Quantity
		} else {
			stock += adj.Quantity
		}

		if err := tx.Update(productRef, []firestore.Update{
			{Path: "stock", Value: stock},
			{Path: "updatedAt", Value: now},
		}); err != nil {
			return err
		}
		doc := stockMovementDocument{
			Reference:  reference,
			ProductID:  productID,
			Quantity:   adj.Quantity,
			Direction:  string(adj.Direction),
			StockAfter: stock,
			CreatedAt:  now,
		}
		if err := tx.Create(movementRef, doc); err != nil {
			return err
		}
		movement = doc.toDomain()
		applied = true
		return nil
	})
	if err != nil {
		return domain.StockMovement{}, false, wrapInventoryError("products.adjustStock", err)
	}
	return movement, applied, nil
}

func invalidAdjustment(message string) error {
	err := repositories.NewInventoryError(repositories.InventoryErrorInvalidAdjustment, message, nil)
	err.Op = "products.adjustStock"
	return err
}

// movementID derives a fixed-length document id from a free-form reference.
func movementID(reference string) string {
	sum := sha256.Sum256([]byte(reference))
	return hex.EncodeToString(sum[:16])
}

func wrapInventoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		if invErr.Op == "" {
			invErr.Op = op
		}
		return invErr
	}
	return pfirestore.WrapError(op, err)
}

type productDocument struct {
	VendorID  string    `firestore:"vendorId"`
	Name      string    `firestore:"name"`
	SKU       string    `firestore:"sku"`
	Price     float64   `firestore:"price"`
	Stock     int       `firestore:"stock"`
	Active    bool      `firestore:"active"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func (d productDocument) toDomain(id string) domain.Product {
	return domain.Product{
		ID:        id,
		VendorID:  d.VendorID,
		Name:      d.Name,
		SKU:       d.SKU,
		Price:     moneyFromDoc(d.Price),
		Stock:     d.Stock,
		Active:    d.Active,
		UpdatedAt: d.UpdatedAt,
	}
}

type stockMovementDocument struct {
	Reference  string    `firestore:"reference"`
	ProductID  string    `firestore:"productId"`
	Quantity   int       `firestore:"quantity"`
	Direction  string    `firestore:"direction"`
	StockAfter int       `firestore:"stockAfter"`
	CreatedAt  time.Time `firestore:"createdAt"`
}

func (d stockMovementDocument) toDomain() domain.StockMovement {
	return domain.StockMovement{
		Reference:  d.Reference,
		ProductID:  d.ProductID,
		Quantity:   d.Quantity,
		Direction:  domain.StockDirection(d.Direction),
		StockAfter: d.StockAfter,
		CreatedAt:  d.CreatedAt,
	}
}
