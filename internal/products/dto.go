package product

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/retailhive/retailhive-backend/pkg/db/models"
)

// ReviewDTO is one review as shown on a product.
type ReviewDTO struct {
	ID        uuid.UUID `json:"id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	UserName  string    `json:"user_name"`
}

// ProductDTO is the catalog shape returned by every product endpoint.
type ProductDTO struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	Category      uuid.UUID       `json:"category"`
	CategoryName  string          `json:"category_name"`
	ImageURL      *string         `json:"image_url"`
	StockQuantity int             `json:"stock_quantity"`
	InStock       bool            `json:"in_stock"`
	IsActive      bool            `json:"is_active"`
	Retailer      *uuid.UUID      `json:"retailer"`
	IsApproved    bool            `json:"is_approved"`
	Reviews       []ReviewDTO     `json:"reviews"`
	AverageRating float64         `json:"average_rating"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ProductInput is the full create/replace payload.
type ProductInput struct {
	Name          string          `json:"name" validate:"required,max=200"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	Category      uuid.UUID       `json:"category" validate:"required"`
	ImageURL      *string         `json:"image_url" validate:"omitempty,url"`
	StockQuantity int             `json:"stock_quantity" validate:"gte=0"`
}

// ProductPatch is the partial update payload; nil fields stay untouched.
type ProductPatch struct {
	Name          *string          `json:"name" validate:"omitempty,max=200"`
	Description   *string          `json:"description"`
	Price         *decimal.Decimal `json:"price"`
	Category      *uuid.UUID       `json:"category"`
	ImageURL      *string          `json:"image_url" validate:"omitempty,url"`
	StockQuantity *int             `json:"stock_quantity" validate:"omitempty,gte=0"`
}

// Patch turns a full input into a patch that sets every field.
func (in ProductInput) Patch() ProductPatch {
	price := in.Price
	category := in.Category
	stock := in.StockQuantity
	name := in.Name
	desc := in.Description
	image := ""
	if in.ImageURL != nil {
		image = *in.ImageURL
	}
	return ProductPatch{
		Name:          &name,
		Description:   &desc,
		Price:         &price,
		Category:      &category,
		ImageURL:      &image,
		StockQuantity: &stock,
	}
}

// ApprovalResult is returned by single approve/reject calls.
type ApprovalResult struct {
	Message     string    `json:"message"`
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name,omitempty"`
	Reason      string    `json:"reason,omitempty"`
}

// BulkResult is returned by bulk approve/reject.
type BulkResult struct {
	Message      string `json:"message"`
	UpdatedCount int64  `json:"updated_count"`
}

// SalesSummary aggregates a retailer's catalog and sales.
type SalesSummary struct {
	TotalProducts    int64           `json:"total_products"`
	TotalSales       decimal.Decimal `json:"total_sales"`
	TotalOrders      int64           `json:"total_orders"`
	ApprovedProducts int64           `json:"approved_products"`
	PendingProducts  int64           `json:"pending_products"`
}

// TopProduct ranks a product by how many order lines reference it.
type TopProduct struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	OrderCount int64     `json:"order_count"`
}

// DashboardStats is the admin overview.
type DashboardStats struct {
	Products struct {
		Total    int64 `json:"total"`
		Approved int64 `json:"approved"`
		Pending  int64 `json:"pending"`
	} `json:"products"`
	Users struct {
		Customers int64 `json:"customers"`
		Retailers int64 `json:"retailers"`
	} `json:"users"`
	Orders struct {
		Total int64 `json:"total"`
	} `json:"orders"`
	TopProducts []TopProduct `json:"top_products"`
}

func FromModel(p models.Product) ProductDTO {
	dto := ProductDTO{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price,
		Category:      p.CategoryID,
		ImageURL:      p.ImageURL,
		StockQuantity: p.StockQuantity,
		InStock:       p.InStock(),
		IsActive:      p.IsActive,
		Retailer:      p.RetailerID,
		IsApproved:    p.IsApproved,
		Reviews:       make([]ReviewDTO, 0, len(p.Reviews)),
		AverageRating: p.AverageRating(),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.Category != nil {
		dto.CategoryName = p.Category.Name
	}
	for _, r := range p.Reviews {
		dto.Reviews = append(dto.Reviews, ReviewFromModel(r))
	}
	return dto
}

func FromModels(rows []models.Product) []ProductDTO {
	out := make([]ProductDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row))
	}
	return out
}

func ReviewFromModel(r models.ProductReview) ReviewDTO {
	dto := ReviewDTO{ID: r.ID, Rating: r.Rating, Comment: r.Comment, CreatedAt: r.CreatedAt}
	if r.User != nil {
		dto.UserName = r.User.Username
	}
	return dto
}
