package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/retailhive/retailhive-backend/internal/access"
	"github.com/retailhive/retailhive-backend/pkg/db"
	"github.com/retailhive/retailhive-backend/pkg/db/models"
	pkgerrors "github.com/retailhive/retailhive-backend/pkg/errors"
)

const (
	msgProductNotFound  = "Not found."
	msgAlreadyReviewed  = "You have already reviewed this product"
	reviewUniqueIndex   = "ux_product_reviews_product_user"
	msgCategoryNotFound = "Invalid category"
)

// ReviewInput is the add_review payload.
type ReviewInput struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

// Service is the public catalog plus product writes gated by access policy.
type Service interface {
	List(ctx context.Context, categoryID *uuid.UUID) ([]ProductDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	Search(ctx context.Context, q string) ([]ProductDTO, error)
	AddReview(ctx context.Context, caller access.Principal, productID uuid.UUID, input ReviewInput) (*ReviewDTO, error)
	Create(ctx context.Context, caller access.Principal, input ProductInput) (*ProductDTO, error)
	Update(ctx context.Context, caller access.Principal, id uuid.UUID, patch ProductPatch) (*ProductDTO, error)
	Delete(ctx context.Context, caller access.Principal, id uuid.UUID) error
}

type categoryLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
}

type service struct {
	repo       *Repository
	categories categoryLookup
}

// NewService constructs the catalog service.
func NewService(repo *Repository, categories categoryLookup) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if categories == nil {
		return nil, fmt.Errorf("category repository required")
	}
	return &service{repo: repo, categories: categories}, nil
}

func (s *service) List(ctx context.Context, categoryID *uuid.UUID) ([]ProductDTO, error) {
	rows, err := s.repo.List(ctx, ListFilter{ActiveOnly: true, CategoryID: categoryID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	return FromModels(rows), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapProductLookup(err)
	}
	dto := FromModel(*product)
	return &dto, nil
}

// Search filters active products by term; a blank term lists them all.
func (s *service) Search(ctx context.Context, q string) ([]ProductDTO, error) {
	term := strings.TrimSpace(q)
	if term == "" {
		return s.List(ctx, nil)
	}
	rows, err := s.repo.Search(ctx, term)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "search products")
	}
	return FromModels(rows), nil
}

func (s *service) AddReview(ctx context.Context, caller access.Principal, productID uuid.UUID, input ReviewInput) (*ReviewDTO, error) {
	if err := access.RequireAuthenticated(caller); err != nil {
		return nil, err
	}
	if input.Rating < 1 || input.Rating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}
	if _, err := s.repo.FindByID(ctx, productID); err != nil {
		return nil, mapProductLookup(err)
	}

	exists, err := s.repo.HasReview(ctx, productID, caller.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check existing review")
	}
	if exists {
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, msgAlreadyReviewed)
	}

	review := &models.ProductReview{
		ProductID: productID,
		UserID:    caller.UserID,
		Rating:    input.Rating,
		Comment:   strings.TrimSpace(input.Comment),
	}
	if err := s.repo.CreateReview(ctx, review); err != nil {
		// a concurrent duplicate loses on the unique index
		if db.IsUniqueViolation(err, reviewUniqueIndex) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeBadRequest, err, msgAlreadyReviewed)
		}
		return nil, pkgerrors.Public(pkgerrors.CodeInternal, err, "Failed to add review")
	}
	dto := ReviewFromModel(*review)
	return &dto, nil
}

func (s *service) Create(ctx context.Context, caller access.Principal, input ProductInput) (*ProductDTO, error) {
	if err := access.CanWriteProducts(caller); err != nil {
		return nil, err
	}
	if err := s.validateInput(ctx, input.Name, input.Price, input.Category, input.StockQuantity); err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:          strings.TrimSpace(input.Name),
		Description:   input.Description,
		Price:         input.Price.Round(2),
		CategoryID:    input.Category,
		ImageURL:      nonEmpty(input.ImageURL),
		StockQuantity: input.StockQuantity,
		IsActive:      true,
		IsApproved:    caller.IsAdmin(),
	}
	access.ApplyCreateDefaults(caller, product)

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create product")
	}
	return s.Get(ctx, product.ID)
}

func (s *service) Update(ctx context.Context, caller access.Principal, id uuid.UUID, patch ProductPatch) (*ProductDTO, error) {
	if err := access.CanWriteProducts(caller); err != nil {
		return nil, err
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapProductLookup(err)
	}
	if err := access.CanMutateProduct(caller, product); err != nil {
		return nil, err
	}
	if err := s.validatePatch(ctx, patch); err != nil {
		return nil, err
	}
	if patch.Price != nil {
		rounded := patch.Price.Round(2)
		patch.Price = &rounded
	}
	if err := s.repo.Update(ctx, id, patch); err != nil {
		return nil, mapProductLookup(err)
	}
	return s.Get(ctx, id)
}

func (s *service) Delete(ctx context.Context, caller access.Principal, id uuid.UUID) error {
	if err := access.CanWriteProducts(caller); err != nil {
		return err
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return mapProductLookup(err)
	}
	if err := access.CanMutateProduct(caller, product); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapProductLookup(err)
	}
	return nil
}

func (s *service) validateInput(ctx context.Context, name string, price decimal.Decimal, category uuid.UUID, stock int) error {
	if strings.TrimSpace(name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name may not be blank")
	}
	if price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be greater than or equal to 0")
	}
	if stock < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock_quantity must be greater than or equal to 0")
	}
	return s.checkCategory(ctx, category)
}

func (s *service) validatePatch(ctx context.Context, patch ProductPatch) error {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name may not be blank")
	}
	if patch.Price != nil && patch.Price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be greater than or equal to 0")
	}
	if patch.StockQuantity != nil && *patch.StockQuantity < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock_quantity must be greater than or equal to 0")
	}
	if patch.Category != nil {
		return s.checkCategory(ctx, *patch.Category)
	}
	return nil
}

func (s *service) checkCategory(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "category is required")
	}
	if _, err := s.categories.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeValidation, msgCategoryNotFound)
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load category")
	}
	return nil
}

func mapProductLookup(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, msgProductNotFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
}

func nonEmpty(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
