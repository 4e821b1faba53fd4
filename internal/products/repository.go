package product

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/retailhive/retailhive-backend/pkg/db/models"
)

// Repository wraps product, review and catalog statistics queries.
type Repository struct {
	db *gorm.DB
}

// ListFilter narrows product listings. Zero value means everything.
type ListFilter struct {
	ActiveOnly bool
	CategoryID *uuid.UUID
	RetailerID *uuid.UUID
	Approved   *bool
}

// NewRepository binds a product repository to db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) withDetail(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Category").
		Preload("Reviews", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }).
		Preload("Reviews.User")
}

func (f ListFilter) apply(q *gorm.DB) *gorm.DB {
	if f.ActiveOnly {
		q = q.Where("products.is_active = ?", true)
	}
	if f.CategoryID != nil {
		q = q.Where("products.category_id = ?", *f.CategoryID)
	}
	if f.RetailerID != nil {
		q = q.Where("products.retailer_id = ?", *f.RetailerID)
	}
	if f.Approved != nil {
		q = q.Where("products.is_approved = ?", *f.Approved)
	}
	return q
}

// List returns products matching filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]models.Product, error) {
	var rows []models.Product
	err := filter.apply(r.withDetail(ctx)).
		Order("products.created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Search matches term case-insensitively against name or description of
// active products. LIKE wildcards in term are matched literally.
func (r *Repository) Search(ctx context.Context, term string) ([]models.Product, error) {
	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
	var rows []models.Product
	err := r.withDetail(ctx).
		Where("products.is_active = ?", true).
		Where(`(LOWER(products.name) LIKE ? ESCAPE '\' OR LOWER(products.description) LIKE ? ESCAPE '\')`, pattern, pattern).
		Order("products.created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// FindByID loads a product with category and reviews.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.withDetail(ctx).First(&product, "products.id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// Update applies patch to the row. Empty image_url clears the column.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, patch ProductPatch) error {
	cols := map[string]any{}
	if patch.Name != nil {
		cols["name"] = *patch.Name
	}
	if patch.Description != nil {
		cols["description"] = *patch.Description
	}
	if patch.Price != nil {
		cols["price"] = *patch.Price
	}
	if patch.Category != nil {
		cols["category_id"] = *patch.Category
	}
	if patch.ImageURL != nil {
		if *patch.ImageURL == "" {
			cols["image_url"] = nil
		} else {
			cols["image_url"] = *patch.ImageURL
		}
	}
	if patch.StockQuantity != nil {
		cols["stock_quantity"] = *patch.StockQuantity
	}
	return r.updateColumns(ctx, id, cols)
}

// UpdateStock overwrites stock_quantity.
func (r *Repository) UpdateStock(ctx context.Context, id uuid.UUID, qty int) error {
	return r.updateColumns(ctx, id, map[string]any{"stock_quantity": qty})
}

func (r *Repository) updateColumns(ctx context.Context, id uuid.UUID, cols map[string]any) error {
	if len(cols) == 0 {
		return nil
	}
	cols["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetApproval approves (or rejects, which also deactivates) the given ids
// and returns the rows that were affected.
func (r *Repository) SetApproval(ctx context.Context, ids []uuid.UUID, approved bool) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Preload("Retailer").Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return rows, nil
	}

	cols := map[string]any{"is_approved": approved, "updated_at": time.Now().UTC()}
	if !approved {
		cols["is_active"] = false
	}
	found := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		found = append(found, row.ID)
	}
	if err := r.db.WithContext(ctx).Model(&models.Product{}).Where("id IN ?", found).Updates(cols).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].IsApproved = approved
		if !approved {
			rows[i].IsActive = false
		}
	}
	return rows, nil
}

// HasReview reports whether userID already reviewed productID.
func (r *Repository) HasReview(ctx context.Context, productID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProductReview{}).
		Where("product_id = ? AND user_id = ?", productID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) CreateReview(ctx context.Context, review *models.ProductReview) error {
	if err := r.db.WithContext(ctx).Create(review).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Preload("User").First(review, "id = ?", review.ID).Error
}

// Count returns how many products match filter.
func (r *Repository) Count(ctx context.Context, filter ListFilter) (int64, error) {
	var count int64
	err := filter.apply(r.db.WithContext(ctx).Model(&models.Product{})).Count(&count).Error
	return count, err
}

// TopProducts ranks products by the number of order lines that reference them.
func (r *Repository) TopProducts(ctx context.Context, limit int) ([]TopProduct, error) {
	var rows []TopProduct
	err := r.db.WithContext(ctx).
		Table("products").
		Select("products.id AS id, products.name AS name, COUNT(order_items.id) AS order_count").
		Joins("LEFT JOIN order_items ON order_items.product_id = products.id").
		Group("products.id, products.name").
		Order("order_count DESC, products.name ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// RetailerSales returns the order line count and revenue for a retailer's
// products. Revenue is summed in decimal to keep cents exact.
func (r *Repository) RetailerSales(ctx context.Context, retailerID uuid.UUID) (int64, decimal.Decimal, error) {
	var lines []struct {
		Quantity int
		Price    decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Table("order_items").
		Select("order_items.quantity AS quantity, order_items.price AS price").
		Joins("JOIN products ON products.id = order_items.product_id").
		Where("products.retailer_id = ?", retailerID).
		Scan(&lines).Error
	if err != nil {
		return 0, decimal.Zero, err
	}
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return int64(len(lines)), total, nil
}

// CountOrders returns the total number of orders placed.
func (r *Repository) CountOrders(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Order{}).Count(&count).Error
	return count, err
}
