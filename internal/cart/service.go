package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/retailhive/retailhive-backend/pkg/db"
	"github.com/retailhive/retailhive-backend/pkg/db/models"
	pkgerrors "github.com/retailhive/retailhive-backend/pkg/errors"
)

const (
	msgProductIDRequired = "Product ID is required"
	msgProductNotFound   = "Product not found"
	msgInsufficientStock = "Insufficient stock"
	msgCartNotFound      = "Cart not found"
	msgItemNotFound      = "Cart item not found"
	msgQuantityInvalid   = "Quantity must be at least 1"

	cartUserIndex        = "ux_carts_user"
	cartItemProductIndex = "ux_cart_items_cart_product"
)

// Service exposes cart operations for the authenticated user.
type Service interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	View(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
	AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*CartItemDTO, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error
}

type service struct {
	repo CartRepository
	tx   db.TxRunner
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx db.TxRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

// GetOrCreate returns the user's cart, creating it on first use. Losing a
// concurrent create race falls back to the winner's row.
func (s *service) GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "Authentication required")
	}
	cart, err := s.repo.FindByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}

	created, err := s.repo.Create(ctx, &models.Cart{UserID: userID})
	if err == nil {
		created.Items = []models.CartItem{}
		return created, nil
	}
	if !db.IsUniqueViolation(err, cartUserIndex) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create cart")
	}
	cart, err = s.repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload cart")
	}
	return cart, nil
}

func (s *service) View(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	cart, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			empty := EmptyCart()
			return &empty, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	dto := FromModel(*cart)
	return &dto, nil
}

// AddItem creates or increments the line for a product. Stock is checked
// against the combined quantity and never decremented here.
func (s *service) AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*CartItemDTO, error) {
	productID, err := input.ProductUUID()
	if err != nil {
		return nil, err
	}
	qty := 1
	if input.Quantity != nil {
		qty = *input.Quantity
	}
	if qty < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, msgQuantityInvalid)
	}

	cart, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	var result models.CartItem
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		product, err := repo.FindActiveProduct(ctx, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, msgProductNotFound)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
		}

		existing, err := repo.FindItemByProduct(ctx, cart.ID, product.ID)
		switch {
		case err == nil:
			if existing.Quantity+qty > product.StockQuantity {
				return pkgerrors.New(pkgerrors.CodeBadRequest, msgInsufficientStock)
			}
			if err := repo.IncrementItem(ctx, existing.ID, qty); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "increment cart item")
			}
			existing.Quantity += qty
			result = *existing
		case errors.Is(err, gorm.ErrRecordNotFound):
			if qty > product.StockQuantity {
				return pkgerrors.New(pkgerrors.CodeBadRequest, msgInsufficientStock)
			}
			item := models.CartItem{CartID: cart.ID, ProductID: product.ID, Quantity: qty}
			if err := repo.CreateItem(ctx, &item); err != nil {
				if db.IsUniqueViolation(err, cartItemProductIndex) {
					return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "cart changed concurrently, retry")
				}
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create cart item")
			}
			result = item
		default:
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart item")
		}

		result.Product = product
		return repo.Touch(ctx, cart.ID)
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add to cart")
	}

	dto := ItemFromModel(result)
	return &dto, nil
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error {
	cart, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, msgCartNotFound)
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}

	deleted, err := s.repo.DeleteItem(ctx, cart.ID, itemID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart item")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, msgItemNotFound)
	}
	if err := s.repo.Touch(ctx, cart.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "touch cart")
	}
	return nil
}
