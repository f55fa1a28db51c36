// Package notify implements the customer notification channels.
package notify

import (
	"context"
	"time"
)

// Notification is one outbound customer message.
type Notification struct {
	TicketID string `json:"ticket_id"`
	ItemID   string `json:"item_id"`
	Customer string `json:"customer"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
}

// Receipt confirms a delivery.
type Receipt struct {
	Channel     string    `json:"channel"`
	MessageID   string    `json:"message_id,omitempty"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// Notifier delivers a notification over one channel. Implementations return
// classified errors so the retry executor can route them.
type Notifier interface {
	Deliver(ctx context.Context, n Notification) (Receipt, error)
}
