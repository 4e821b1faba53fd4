package notifications

import (
	"fmt"
	"strings"

	"github.com/retailhive/retailhive-backend/pkg/mailer"
	"github.com/retailhive/retailhive-backend/pkg/outbox/payloads"
)

const (
	orderConfirmationSubject = "Order Confirmation - RetailHive"
	productApprovedSubject   = "Product Approved - RetailHive"
	productRejectedSubject   = "Product Rejected - RetailHive"
)

func orderConfirmation(event payloads.OrderCreatedEvent) mailer.Message {
	return mailer.Message{
		To:      recipients(event.BuyerEmail),
		Subject: orderConfirmationSubject,
		Body: fmt.Sprintf("Your order #%s has been placed successfully. Total: $%s",
			event.OrderID, event.TotalAmount.StringFixed(2)),
	}
}

func productDecision(event payloads.ProductDecisionEvent) mailer.Message {
	if event.Approved {
		return mailer.Message{
			To:      recipients(event.RetailerEmail),
			Subject: productApprovedSubject,
			Body:    fmt.Sprintf("Your product %q has been approved and is now listed on RetailHive.", event.ProductName),
		}
	}
	return mailer.Message{
		To:      recipients(event.RetailerEmail),
		Subject: productRejectedSubject,
		Body:    fmt.Sprintf("Your product %q was rejected. Reason: %s", event.ProductName, event.Reason),
	}
}

func recipients(addr string) []string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil
	}
	return []string{addr}
}
