package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/retailhive/retailhive-backend/pkg/db/models"
	"github.com/retailhive/retailhive-backend/pkg/enums"
)

// SeedUser inserts an active user with the given role.
func SeedUser(t testing.TB, conn *gorm.DB, role enums.Role) models.User {
	t.Helper()
	suffix := uuid.NewString()[:8]
	user := models.User{
		Username:     string(role) + "_" + suffix,
		Email:        string(role) + "_" + suffix + "@example.com",
		PasswordHash: "x",
		Role:         role,
		IsActive:     true,
	}
	require.NoError(t, conn.Create(&user).Error)
	return user
}

// SeedCategory inserts a category.
func SeedCategory(t testing.TB, conn *gorm.DB, name string) models.Category {
	t.Helper()
	category := models.Category{Name: name}
	require.NoError(t, conn.Create(&category).Error)
	return category
}

// ProductOption tweaks a seeded product.
type ProductOption func(*models.Product)

func WithStock(qty int) ProductOption {
	return func(p *models.Product) { p.StockQuantity = qty }
}

func WithRetailer(id uuid.UUID) ProductOption {
	return func(p *models.Product) { p.RetailerID = &id }
}

func WithDescription(desc string) ProductOption {
	return func(p *models.Product) { p.Description = desc }
}

func Inactive() ProductOption {
	return func(p *models.Product) { p.IsActive = false }
}

func Unapproved() ProductOption {
	return func(p *models.Product) { p.IsApproved = false }
}

// SeedProduct inserts an active, approved product priced at price.
func SeedProduct(t testing.TB, conn *gorm.DB, categoryID uuid.UUID, name, price string, opts ...ProductOption) models.Product {
	t.Helper()
	product := models.Product{
		Name:          name,
		Price:         decimal.RequireFromString(price),
		CategoryID:    categoryID,
		StockQuantity: 100,
		IsActive:      true,
		IsApproved:    true,
	}
	for _, opt := range opts {
		opt(&product)
	}
	require.NoError(t, conn.Create(&product).Error)
	return product
}
