package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderLine is one snapshot line of a placed order.
type OrderLine struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// OrderCreatedEvent is emitted by checkout in the order's transaction.
type OrderCreatedEvent struct {
	OrderID         uuid.UUID       `json:"order_id"`
	UserID          uuid.UUID       `json:"user_id"`
	BuyerEmail      string          `json:"buyer_email"`
	BuyerUsername   string          `json:"buyer_username"`
	Status          string          `json:"status"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ShippingAddress string          `json:"shipping_address"`
	Items           []OrderLine     `json:"items"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ItemCount sums line quantities.
func (e OrderCreatedEvent) ItemCount() int {
	total := 0
	for _, line := range e.Items {
		total += line.Quantity
	}
	return total
}

// ProductDecisionEvent carries an admin approval or rejection.
type ProductDecisionEvent struct {
	ProductID     uuid.UUID  `json:"product_id"`
	ProductName   string     `json:"product_name"`
	RetailerID    *uuid.UUID `json:"retailer_id,omitempty"`
	RetailerEmail string     `json:"retailer_email,omitempty"`
	Approved      bool       `json:"approved"`
	Reason        string     `json:"reason,omitempty"`
	DecidedBy     uuid.UUID  `json:"decided_by"`
	DecidedAt     time.Time  `json:"decided_at"`
}
