package product

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/retailhive/retailhive-backend/internal/access"
	"github.com/retailhive/retailhive-backend/pkg/db"
	"github.com/retailhive/retailhive-backend/pkg/db/models"
	"github.com/retailhive/retailhive-backend/pkg/enums"
	pkgerrors "github.com/retailhive/retailhive-backend/pkg/errors"
	"github.com/retailhive/retailhive-backend/pkg/logger"
	"github.com/retailhive/retailhive-backend/pkg/outbox"
	"github.com/retailhive/retailhive-backend/pkg/outbox/payloads"
)

const (
	defaultRejectReason  = "No reason provided"
	msgApproved          = "Product approved successfully"
	msgRejected          = "Product rejected"
	msgIDsRequired       = "product_ids is required"
	msgRetailerIDMissing = "retailer_id parameter is required"
	topProductsLimit     = 5
)

// BulkInput is the bulk_approve / bulk_reject payload.
type BulkInput struct {
	ProductIDs []uuid.UUID `json:"product_ids"`
	Reason     string      `json:"reason"`
}

// AdminService is product moderation and marketplace statistics.
type AdminService interface {
	List(ctx context.Context, caller access.Principal) ([]ProductDTO, error)
	Pending(ctx context.Context, caller access.Principal) ([]ProductDTO, error)
	Approve(ctx context.Context, caller access.Principal, id uuid.UUID) (*ApprovalResult, error)
	Reject(ctx context.Context, caller access.Principal, id uuid.UUID, reason string) (*ApprovalResult, error)
	BulkApprove(ctx context.Context, caller access.Principal, ids []uuid.UUID) (*BulkResult, error)
	BulkReject(ctx context.Context, caller access.Principal, ids []uuid.UUID, reason string) (*BulkResult, error)
	DashboardStats(ctx context.Context, caller access.Principal) (*DashboardStats, error)
	RetailerProducts(ctx context.Context, caller access.Principal, retailerID string) ([]ProductDTO, error)
}

type roleCounter interface {
	CountByRole(ctx context.Context) (map[enums.Role]int64, error)
}

// AdminServiceParams wires the moderation service.
type AdminServiceParams struct {
	Repo    *Repository
	Users   roleCounter
	TX      db.TxRunner
	Emitter outbox.Emitter
	Logger  *logger.Logger
}

type adminService struct {
	repo    *Repository
	users   roleCounter
	tx      db.TxRunner
	emitter outbox.Emitter
	logg    *logger.Logger
	now     func() time.Time
}

func NewAdminService(params AdminServiceParams) (AdminService, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if params.TX == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &adminService{
		repo:    params.Repo,
		users:   params.Users,
		tx:      params.TX,
		emitter: params.Emitter,
		logg:    params.Logger,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *adminService) List(ctx context.Context, caller access.Principal) ([]ProductDTO, error) {
	if err := access.CanModerateProducts(caller); err != nil {
		return nil, err
	}
	rows, err := s.repo.List(ctx, ListFilter{})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	return FromModels(rows), nil
}

func (s *adminService) Pending(ctx context.Context, caller access.Principal) ([]ProductDTO, error) {
	if err := access.CanModerateProducts(caller); err != nil {
		return nil, err
	}
	approved := false
	rows, err := s.repo.List(ctx, ListFilter{Approved: &approved})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list pending products")
	}
	return FromModels(rows), nil
}

func (s *adminService) Approve(ctx context.Context, caller access.Principal, id uuid.UUID) (*ApprovalResult, error) {
	rows, err := s.decide(ctx, caller, []uuid.UUID{id}, true, "")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, msgProductNotFound)
	}
	return &ApprovalResult{Message: msgApproved, ProductID: rows[0].ID, ProductName: rows[0].Name}, nil
}

func (s *adminService) Reject(ctx context.Context, caller access.Principal, id uuid.UUID, reason string) (*ApprovalResult, error) {
	reason = rejectReason(reason)
	rows, err := s.decide(ctx, caller, []uuid.UUID{id}, false, reason)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, msgProductNotFound)
	}
	return &ApprovalResult{Message: msgRejected, ProductID: rows[0].ID, Reason: reason}, nil
}

func (s *adminService) BulkApprove(ctx context.Context, caller access.Principal, ids []uuid.UUID) (*BulkResult, error) {
	if err := access.CanModerateProducts(caller); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, msgIDsRequired)
	}
	rows, err := s.decide(ctx, caller, ids, true, "")
	if err != nil {
		return nil, err
	}
	return &BulkResult{
		Message:      fmt.Sprintf("%d products approved successfully", len(rows)),
		UpdatedCount: int64(len(rows)),
	}, nil
}

func (s *adminService) BulkReject(ctx context.Context, caller access.Principal, ids []uuid.UUID, reason string) (*BulkResult, error) {
	if err := access.CanModerateProducts(caller); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, msgIDsRequired)
	}
	rows, err := s.decide(ctx, caller, ids, false, rejectReason(reason))
	if err != nil {
		return nil, err
	}
	return &BulkResult{
		Message:      fmt.Sprintf("%d products rejected successfully", len(rows)),
		UpdatedCount: int64(len(rows)),
	}, nil
}

// decide flips approval for ids and queues one decision event per product in
// the same transaction. Unknown ids are skipped.
func (s *adminService) decide(ctx context.Context, caller access.Principal, ids []uuid.UUID, approved bool, reason string) ([]models.Product, error) {
	if err := access.CanModerateProducts(caller); err != nil {
		return nil, err
	}

	eventType := enums.EventProductRejected
	if approved {
		eventType = enums.EventProductApproved
	}
	decidedAt := s.now()

	var updated []models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.repo.WithTx(tx).SetApproval(ctx, ids, approved)
		if err != nil {
			return err
		}
		for _, row := range rows {
			event := payloads.ProductDecisionEvent{
				ProductID:   row.ID,
				ProductName: row.Name,
				RetailerID:  row.RetailerID,
				Approved:    approved,
				Reason:      reason,
				DecidedBy:   caller.UserID,
				DecidedAt:   decidedAt,
			}
			if row.Retailer != nil {
				event.RetailerEmail = row.Retailer.Email
			}
			if err := s.emitter.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     eventType,
				AggregateType: enums.AggregateProduct,
				AggregateID:   row.ID,
				Actor:         &outbox.ActorRef{UserID: caller.UserID, Role: string(caller.Role)},
				Data:          event,
				OccurredAt:    decidedAt,
			}); err != nil {
				return err
			}
		}
		updated = rows
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update product approval")
	}

	if s.logg != nil && len(updated) > 0 {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"decision":      eventType,
			"product_count": len(updated),
			"decided_by":    caller.UserID.String(),
		})
		s.logg.Info(logCtx, "product approval updated")
	}
	return updated, nil
}

func (s *adminService) DashboardStats(ctx context.Context, caller access.Principal) (*DashboardStats, error) {
	if err := access.CanModerateProducts(caller); err != nil {
		return nil, err
	}
	approved, pending := true, false
	stats := &DashboardStats{}

	var err error
	if stats.Products.Total, err = s.repo.Count(ctx, ListFilter{}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count products")
	}
	if stats.Products.Approved, err = s.repo.Count(ctx, ListFilter{Approved: &approved}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count approved products")
	}
	if stats.Products.Pending, err = s.repo.Count(ctx, ListFilter{Approved: &pending}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count pending products")
	}
	if stats.Orders.Total, err = s.repo.CountOrders(ctx); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count orders")
	}

	roles, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count users")
	}
	stats.Users.Customers = roles[enums.RoleCustomer]
	stats.Users.Retailers = roles[enums.RoleRetailer]

	top, err := s.repo.TopProducts(ctx, topProductsLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rank products")
	}
	if top == nil {
		top = []TopProduct{}
	}
	stats.TopProducts = top
	return stats, nil
}

func (s *adminService) RetailerProducts(ctx context.Context, caller access.Principal, retailerID string) ([]ProductDTO, error) {
	if err := access.CanModerateProducts(caller); err != nil {
		return nil, err
	}
	raw := strings.TrimSpace(retailerID)
	if raw == "" {
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, msgRetailerIDMissing)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "retailer_id must be a valid UUID")
	}
	rows, err := s.repo.List(ctx, ListFilter{RetailerID: &id})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []ProductDTO{}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list retailer products")
	}
	return FromModels(rows), nil
}

func rejectReason(reason string) string {
	if trimmed := strings.TrimSpace(reason); trimmed != "" {
		return trimmed
	}
	return defaultRejectReason
}
