package cart

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/retailhive/retailhive-backend/pkg/db/models"
	pkgerrors "github.com/retailhive/retailhive-backend/pkg/errors"
)

// AddItemInput is the add-to-cart payload. Quantity defaults to 1.
// ProductID stays a string so a blank id reads as missing rather than as a
// malformed body.
type AddItemInput struct {
	ProductID string `json:"product_id"`
	Quantity  *int   `json:"quantity"`
}

// ProductUUID resolves ProductID. Blank or nil ids are missing; an id that
// does not parse names no product.
func (in AddItemInput) ProductUUID() (uuid.UUID, error) {
	raw := strings.TrimSpace(in.ProductID)
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeBadRequest, msgProductIDRequired)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, msgProductNotFound)
	}
	if id == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeBadRequest, msgProductIDRequired)
	}
	return id, nil
}

// ProductSummary is the product as embedded in a cart line.
type ProductSummary struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	ImageURL      *string         `json:"image_url"`
	StockQuantity int             `json:"stock_quantity"`
	InStock       bool            `json:"in_stock"`
}

// CartItemDTO is one cart line priced at the product's current price.
type CartItemDTO struct {
	ID         uuid.UUID       `json:"id"`
	Product    *ProductSummary `json:"product"`
	ProductID  uuid.UUID       `json:"product_id"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
	AddedAt    time.Time       `json:"added_at"`
}

// CartDTO is the cart view. ID and CreatedAt are null for a user without a cart.
type CartDTO struct {
	ID         *uuid.UUID      `json:"id"`
	Items      []CartItemDTO   `json:"items"`
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
	CreatedAt  *time.Time      `json:"created_at"`
	UpdatedAt  *time.Time      `json:"updated_at,omitempty"`
}

// EmptyCart is the shape returned when the user has never had a cart.
func EmptyCart() CartDTO {
	return CartDTO{Items: []CartItemDTO{}, TotalPrice: decimal.Zero}
}

func ItemFromModel(item models.CartItem) CartItemDTO {
	dto := CartItemDTO{
		ID:         item.ID,
		ProductID:  item.ProductID,
		Quantity:   item.Quantity,
		TotalPrice: item.LineTotal(),
		AddedAt:    item.AddedAt,
	}
	if item.Product != nil {
		p := item.Product
		dto.Product = &ProductSummary{
			ID:            p.ID,
			Name:          p.Name,
			Price:         p.Price,
			ImageURL:      p.ImageURL,
			StockQuantity: p.StockQuantity,
			InStock:       p.InStock(),
		}
	}
	return dto
}

func FromModel(cart models.Cart) CartDTO {
	id := cart.ID
	created := cart.CreatedAt
	updated := cart.UpdatedAt
	dto := CartDTO{
		ID:         &id,
		Items:      make([]CartItemDTO, 0, len(cart.Items)),
		TotalPrice: decimal.Zero,
		CreatedAt:  &created,
		UpdatedAt:  &updated,
	}
	for _, item := range cart.Items {
		line := ItemFromModel(item)
		dto.Items = append(dto.Items, line)
		dto.TotalItems += item.Quantity
		dto.TotalPrice = dto.TotalPrice.Add(line.TotalPrice)
	}
	return dto
}
