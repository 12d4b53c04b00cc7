package service

import (
	"context"
	"time"
)

type EventType string

const (
	EventOrderCreated   EventType = "order.created"
	EventOrderCancelled EventType = "order.cancelled"
	EventEscrowUpdated  EventType = "escrow.updated"
	EventEscrowSettled  EventType = "escrow.settled"
	EventEscrowDisputed EventType = "escrow.disputed"
)

type Event struct {
	Type       EventType              `json:"type"`
	OrderID    string                 `json:"order_id"`
	Recipients []string               `json:"-"`
	Data       map[string]interface{} `json:"data,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// Notifier dispatches events fire-and-forget. Implementations must not block
// the caller and their failures never roll back the operation that emitted the event.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) error { return nil }
