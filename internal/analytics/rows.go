package analytics

import (
	"fmt"
	"time"

	cbigquery "cloud.google.com/go/bigquery"

	"github.com/retailhive/retailhive-backend/pkg/outbox"
	"github.com/retailhive/retailhive-backend/pkg/outbox/payloads"
)

// OrderEventRow is one row of the order_events table.
type OrderEventRow struct {
	EventID         string             `bigquery:"event_id"`
	EventType       string             `bigquery:"event_type"`
	OccurredAt      time.Time          `bigquery:"occurred_at"`
	OrderID         string             `bigquery:"order_id"`
	UserID          string             `bigquery:"user_id"`
	Status          string             `bigquery:"status"`
	TotalAmount     string             `bigquery:"total_amount"`
	ItemCount       int64              `bigquery:"item_count"`
	ShippingAddress string             `bigquery:"shipping_address"`
	Items           cbigquery.NullJSON `bigquery:"items"`
	Payload         cbigquery.NullJSON `bigquery:"payload"`
}

func buildOrderEventRow(eventType string, envelope outbox.PayloadEnvelope, event *payloads.OrderCreatedEvent) (OrderEventRow, error) {
	items, err := encodeJSON(event.Items)
	if err != nil {
		return OrderEventRow{}, fmt.Errorf("encode items json: %w", err)
	}
	payload, err := encodeJSON(envelope.Data)
	if err != nil {
		return OrderEventRow{}, fmt.Errorf("encode payload json: %w", err)
	}

	occurredAt := envelope.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = event.CreatedAt
	}

	return OrderEventRow{
		EventID:         envelope.EventID,
		EventType:       eventType,
		OccurredAt:      occurredAt.UTC(),
		OrderID:         event.OrderID.String(),
		UserID:          event.UserID.String(),
		Status:          event.Status,
		TotalAmount:     event.TotalAmount.StringFixed(2),
		ItemCount:       int64(event.ItemCount()),
		ShippingAddress: event.ShippingAddress,
		Items:           items,
		Payload:         payload,
	}, nil
}
