package mail

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jkeevk/diploma-shop/internal/domain"
)

// Message is a rendered email ready for the wire.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Render turns a notification event into an email. Customer order
// confirmations list every shop's items; supplier mails only mention that
// supplier's lines.
func Render(event *domain.NotificationEvent) (*Message, error) {
	switch event.Kind {
	case domain.EventOrderPlaced:
		var payload domain.OrderPlacedPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return nil, fmt.Errorf("unmarshal order placed payload: %w", err)
		}
		return renderOrderPlaced(event.Target, payload), nil

	case domain.EventStatusChanged:
		var payload domain.StatusChangedPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return nil, fmt.Errorf("unmarshal status changed payload: %w", err)
		}
		return renderStatusChanged(event.Target, payload), nil

	default:
		return nil, fmt.Errorf("unknown event kind %q", event.Kind)
	}
}

func renderOrderPlaced(target domain.TargetKind, payload domain.OrderPlacedPayload) *Message {
	var b strings.Builder

	if target == domain.TargetCustomer {
		fmt.Fprintf(&b, "Your order %s has been placed.\n\nDetails:\n", payload.OrderID)
	} else {
		fmt.Fprintf(&b, "A new order %s has been received.\n\nDetails:\n", payload.OrderID)
	}

	for _, block := range payload.Suppliers {
		if target == domain.TargetCustomer {
			fmt.Fprintf(&b, "\nShop: %s\n", block.SupplierName)
		}
		for _, item := range block.Items {
			fmt.Fprintf(&b, "Product: %s\nQuantity: %d\nPrice: %.2f\n\n", item.ProductName, item.Quantity, item.UnitPrice)
		}
		fmt.Fprintf(&b, "Subtotal: %.2f\n", block.Subtotal)
	}

	if target == domain.TargetCustomer {
		fmt.Fprintf(&b, "\nTotal: %.2f\n", payload.GrandTotal)
	}

	subject := fmt.Sprintf("Order %s placed", payload.OrderID)
	if target == domain.TargetSupplier {
		subject = "New order received"
	}

	return &Message{
		To:      payload.RecipientEmail,
		Subject: subject,
		Body:    b.String(),
	}
}

func renderStatusChanged(target domain.TargetKind, payload domain.StatusChangedPayload) *Message {
	var b strings.Builder
	if target == domain.TargetCustomer {
		fmt.Fprintf(&b, "The part of your order %s handled by %s is now %s.\n",
			payload.OrderID, payload.SupplierName, payload.NewStatus)
	} else {
		fmt.Fprintf(&b, "Sub-order %s of order %s moved from %s to %s.\n",
			payload.SubOrderID, payload.OrderID, payload.OldStatus, payload.NewStatus)
	}

	return &Message{
		To:      payload.RecipientEmail,
		Subject: fmt.Sprintf("Order %s: status update", payload.OrderID),
		Body:    b.String(),
	}
}
