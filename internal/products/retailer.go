package product

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/retailhive/retailhive-backend/internal/access"
	"github.com/retailhive/retailhive-backend/pkg/enums"
	pkgerrors "github.com/retailhive/retailhive-backend/pkg/errors"
)

const (
	msgStockRequired = "Stock quantity is required"
	msgStockInvalid  = "Invalid stock quantity"
	msgStockUpdated  = "Stock updated successfully"
	msgRetailerOnly  = "Only retailers can access this resource."
)

// StockUpdateResult is the update_stock response.
type StockUpdateResult struct {
	Message       string `json:"message"`
	StockQuantity int    `json:"stock_quantity"`
}

// RetailerService scopes every product operation to the caller's own listings.
type RetailerService interface {
	List(ctx context.Context, caller access.Principal) ([]ProductDTO, error)
	Get(ctx context.Context, caller access.Principal, id uuid.UUID) (*ProductDTO, error)
	Create(ctx context.Context, caller access.Principal, input ProductInput) (*ProductDTO, error)
	Update(ctx context.Context, caller access.Principal, id uuid.UUID, patch ProductPatch) (*ProductDTO, error)
	Delete(ctx context.Context, caller access.Principal, id uuid.UUID) error
	UpdateStock(ctx context.Context, caller access.Principal, id uuid.UUID, qty *int) (*StockUpdateResult, error)
	Pending(ctx context.Context, caller access.Principal) ([]ProductDTO, error)
	Approved(ctx context.Context, caller access.Principal) ([]ProductDTO, error)
	SalesSummary(ctx context.Context, caller access.Principal) (*SalesSummary, error)
}

type retailerService struct {
	repo    *Repository
	catalog Service
}

func NewRetailerService(repo *Repository, catalog Service) (RetailerService, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	return &retailerService{repo: repo, catalog: catalog}, nil
}

func requireRetailer(caller access.Principal) error {
	if err := access.RequireAuthenticated(caller); err != nil {
		return err
	}
	if !caller.HasAnyRole(enums.RoleRetailer) {
		return pkgerrors.New(pkgerrors.CodeForbidden, msgRetailerOnly)
	}
	return nil
}

func (s *retailerService) list(ctx context.Context, caller access.Principal, approved *bool) ([]ProductDTO, error) {
	if err := requireRetailer(caller); err != nil {
		return nil, err
	}
	owner := caller.UserID
	rows, err := s.repo.List(ctx, ListFilter{RetailerID: &owner, Approved: approved})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list retailer products")
	}
	return FromModels(rows), nil
}

func (s *retailerService) List(ctx context.Context, caller access.Principal) ([]ProductDTO, error) {
	return s.list(ctx, caller, nil)
}

func (s *retailerService) Pending(ctx context.Context, caller access.Principal) ([]ProductDTO, error) {
	approved := false
	return s.list(ctx, caller, &approved)
}

func (s *retailerService) Approved(ctx context.Context, caller access.Principal) ([]ProductDTO, error) {
	approved := true
	return s.list(ctx, caller, &approved)
}

// Get hides other retailers' products behind NotFound.
func (s *retailerService) Get(ctx context.Context, caller access.Principal, id uuid.UUID) (*ProductDTO, error) {
	if err := requireRetailer(caller); err != nil {
		return nil, err
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapProductLookup(err)
	}
	if !product.OwnedBy(caller.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, msgProductNotFound)
	}
	dto := FromModel(*product)
	return &dto, nil
}

func (s *retailerService) Create(ctx context.Context, caller access.Principal, input ProductInput) (*ProductDTO, error) {
	if err := requireRetailer(caller); err != nil {
		return nil, err
	}
	return s.catalog.Create(ctx, caller, input)
}

func (s *retailerService) Update(ctx context.Context, caller access.Principal, id uuid.UUID, patch ProductPatch) (*ProductDTO, error) {
	if _, err := s.Get(ctx, caller, id); err != nil {
		return nil, err
	}
	return s.catalog.Update(ctx, caller, id, patch)
}

func (s *retailerService) Delete(ctx context.Context, caller access.Principal, id uuid.UUID) error {
	if _, err := s.Get(ctx, caller, id); err != nil {
		return err
	}
	return s.catalog.Delete(ctx, caller, id)
}

func (s *retailerService) UpdateStock(ctx context.Context, caller access.Principal, id uuid.UUID, qty *int) (*StockUpdateResult, error) {
	if _, err := s.Get(ctx, caller, id); err != nil {
		return nil, err
	}
	if qty == nil {
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, msgStockRequired)
	}
	if *qty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, msgStockInvalid)
	}
	if err := s.repo.UpdateStock(ctx, id, *qty); err != nil {
		return nil, mapProductLookup(err)
	}
	return &StockUpdateResult{Message: msgStockUpdated, StockQuantity: *qty}, nil
}

func (s *retailerService) SalesSummary(ctx context.Context, caller access.Principal) (*SalesSummary, error) {
	if err := requireRetailer(caller); err != nil {
		return nil, err
	}
	owner := caller.UserID
	approved, pending := true, false

	total, err := s.repo.Count(ctx, ListFilter{RetailerID: &owner})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count retailer products")
	}
	approvedCount, err := s.repo.Count(ctx, ListFilter{RetailerID: &owner, Approved: &approved})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count approved products")
	}
	pendingCount, err := s.repo.Count(ctx, ListFilter{RetailerID: &owner, Approved: &pending})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count pending products")
	}
	lines, revenue, err := s.repo.RetailerSales(ctx, owner)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sum retailer sales")
	}

	return &SalesSummary{
		TotalProducts:    total,
		TotalSales:       revenue,
		TotalOrders:      lines,
		ApprovedProducts: approvedCount,
		PendingProducts:  pendingCount,
	}, nil
}
