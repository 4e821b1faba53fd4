package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a catalog listing. RetailerID is nil for admin-curated items.
type Product struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name          string          `gorm:"column:name;type:varchar(200);not null"`
	Description   string          `gorm:"column:description;type:text;not null;default:''"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	CategoryID    uuid.UUID       `gorm:"column:category_id;type:uuid;not null;index"`
	Category      *Category       `gorm:"foreignKey:CategoryID"`
	ImageURL      *string         `gorm:"column:image_url"`
	StockQuantity int             `gorm:"column:stock_quantity;not null;default:0"`
	IsActive      bool            `gorm:"column:is_active;not null"`
	RetailerID    *uuid.UUID      `gorm:"column:retailer_id;type:uuid;index"`
	Retailer      *User           `gorm:"foreignKey:RetailerID"`
	IsApproved    bool            `gorm:"column:is_approved;not null;default:false"`
	Reviews       []ProductReview `gorm:"foreignKey:ProductID"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// InStock reports whether any units remain.
func (p Product) InStock() bool {
	return p.StockQuantity > 0
}

// OwnedBy reports whether the retailer owns the product.
func (p Product) OwnedBy(userID uuid.UUID) bool {
	return p.RetailerID != nil && *p.RetailerID == userID
}

// AverageRating is the mean of loaded reviews, 0 without reviews.
func (p Product) AverageRating() float64 {
	if len(p.Reviews) == 0 {
		return 0
	}
	sum := 0
	for _, review := range p.Reviews {
		sum += review.Rating
	}
	return float64(sum) / float64(len(p.Reviews))
}
