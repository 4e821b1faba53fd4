package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/retailhive/retailhive-backend/internal/access"
	"github.com/retailhive/retailhive-backend/internal/cart"
	"github.com/retailhive/retailhive-backend/internal/orders"
	"github.com/retailhive/retailhive-backend/pkg/db"
	"github.com/retailhive/retailhive-backend/pkg/db/models"
	"github.com/retailhive/retailhive-backend/pkg/enums"
	pkgerrors "github.com/retailhive/retailhive-backend/pkg/errors"
	"github.com/retailhive/retailhive-backend/pkg/logger"
	"github.com/retailhive/retailhive-backend/pkg/metrics"
	"github.com/retailhive/retailhive-backend/pkg/outbox"
	"github.com/retailhive/retailhive-backend/pkg/outbox/payloads"
)

const (
	msgCartEmpty         = "Cart is empty"
	msgOrderFailed       = "Failed to create order"
	msgShippingRequired  = "This field may not be blank."
	shippingAddressField = "shipping_address"
)

type cartResolver interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
}

type userLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// PlaceOrderInput is the create_order payload.
type PlaceOrderInput struct {
	ShippingAddress string `json:"shipping_address"`
}

// Service turns the caller's cart into an order.
type Service interface {
	PlaceOrder(ctx context.Context, caller access.Principal, input PlaceOrderInput) (*orders.OrderDTO, error)
}

type service struct {
	tx         db.TxRunner
	carts      cartResolver
	cartRepo   cart.CartRepository
	ordersRepo orders.Repository
	users      userLoader
	outbox     outbox.Emitter
	metrics    *metrics.CheckoutMetrics
	logg       *logger.Logger
}

// NewService builds the checkout service. metrics and logg may be nil.
func NewService(
	tx db.TxRunner,
	carts cartResolver,
	cartRepo cart.CartRepository,
	ordersRepo orders.Repository,
	users userLoader,
	publisher outbox.Emitter,
	checkoutMetrics *metrics.CheckoutMetrics,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("user loader required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		tx:         tx,
		carts:      carts,
		cartRepo:   cartRepo,
		ordersRepo: ordersRepo,
		users:      users,
		outbox:     publisher,
		metrics:    checkoutMetrics,
		logg:       logg,
	}, nil
}

// PlaceOrder snapshots the cart into an order at current prices, empties the
// cart and queues order_created, all in one transaction. Stock is neither
// re-checked nor decremented.
func (s *service) PlaceOrder(ctx context.Context, caller access.Principal, input PlaceOrderInput) (*orders.OrderDTO, error) {
	if err := access.RequireAuthenticated(caller); err != nil {
		return nil, err
	}
	address := strings.TrimSpace(input.ShippingAddress)
	if address == "" {
		s.metrics.IncAttempt(metrics.CheckoutOutcomeInvalid)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, msgShippingRequired).
			WithDetails(map[string][]string{shippingAddressField: {msgShippingRequired}})
	}

	buyer, err := s.users.FindByID(ctx, caller.UserID)
	if err != nil {
		s.metrics.IncAttempt(metrics.CheckoutOutcomeFailure)
		return nil, pkgerrors.Public(pkgerrors.CodeInternal, err, msgOrderFailed)
	}
	userCart, err := s.carts.GetOrCreate(ctx, caller.UserID)
	if err != nil {
		s.metrics.IncAttempt(metrics.CheckoutOutcomeFailure)
		return nil, pkgerrors.Public(pkgerrors.CodeInternal, err, msgOrderFailed)
	}

	var placed models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)

		current, err := cartRepo.FindByUser(ctx, caller.UserID)
		if err != nil {
			return err
		}
		if len(current.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeBadRequest, msgCartEmpty)
		}

		total := decimal.Zero
		for _, item := range current.Items {
			if item.Product == nil {
				return fmt.Errorf("cart item %s has no product", item.ID)
			}
			total = total.Add(item.LineTotal())
		}

		order, err := ordersRepo.CreateOrder(ctx, &models.Order{
			UserID:          caller.UserID,
			Status:          enums.OrderStatusPending,
			TotalAmount:     total,
			ShippingAddress: address,
		})
		if err != nil {
			return err
		}

		lines := make([]models.OrderItem, 0, len(current.Items))
		for _, item := range current.Items {
			lines = append(lines, models.OrderItem{
				OrderID:   order.ID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Price:     item.Product.Price,
			})
		}
		if err := ordersRepo.CreateOrderItems(ctx, lines); err != nil {
			return err
		}
		for i := range lines {
			lines[i].Product = current.Items[i].Product
		}

		if _, err := cartRepo.ClearItems(ctx, current.ID); err != nil {
			return err
		}
		if err := cartRepo.Touch(ctx, current.ID); err != nil {
			return err
		}

		order.Items = lines
		if err := s.emitOrderCreated(ctx, tx, caller, buyer, order); err != nil {
			return err
		}
		placed = *order
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, userCart.ID, err)
	}

	s.metrics.IncAttempt(metrics.CheckoutOutcomeSuccess)
	s.metrics.ObserveOrderTotal(placed.TotalAmount)
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":     placed.ID.String(),
			"total_amount": placed.TotalAmount.StringFixed(2),
			"item_count":   len(placed.Items),
		})
		s.logg.Info(logCtx, "order placed")
	}

	dto := orders.FromModel(placed)
	return &dto, nil
}

// fail keeps typed client errors and hides everything else behind the public
// failure message.
func (s *service) fail(ctx context.Context, cartID uuid.UUID, err error) error {
	if typed := pkgerrors.As(err); typed != nil && typed.Code() != pkgerrors.CodeInternal {
		if typed.Message() == msgCartEmpty {
			s.metrics.IncAttempt(metrics.CheckoutOutcomeEmptyCart)
		} else {
			s.metrics.IncAttempt(metrics.CheckoutOutcomeInvalid)
		}
		return err
	}
	s.metrics.IncAttempt(metrics.CheckoutOutcomeFailure)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = fmt.Errorf("cart %s vanished during checkout: %w", cartID, err)
	}
	return pkgerrors.Public(pkgerrors.CodeInternal, err, msgOrderFailed)
}

func (s *service) emitOrderCreated(ctx context.Context, tx *gorm.DB, caller access.Principal, buyer *models.User, order *models.Order) error {
	createdAt := order.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	event := payloads.OrderCreatedEvent{
		OrderID:         order.ID,
		UserID:          order.UserID,
		BuyerEmail:      buyer.Email,
		BuyerUsername:   buyer.Username,
		Status:          string(order.Status),
		TotalAmount:     order.TotalAmount,
		ShippingAddress: order.ShippingAddress,
		Items:           make([]payloads.OrderLine, 0, len(order.Items)),
		CreatedAt:       createdAt,
	}
	for _, line := range order.Items {
		ol := payloads.OrderLine{ProductID: line.ProductID, Quantity: line.Quantity, Price: line.Price}
		if line.Product != nil {
			ol.ProductName = line.Product.Name
		}
		event.Items = append(event.Items, ol)
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: caller.UserID, Role: string(caller.Role)},
		Data:          event,
		OccurredAt:    createdAt,
	})
}
