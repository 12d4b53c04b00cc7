package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusAwaitingEscrow OrderStatus = "awaiting_escrow"
	OrderStatusCompleted      OrderStatus = "completed"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// Order snapshots seller and unit price at creation; later listing edits do not touch it.
type Order struct {
	ID                 string          `json:"id"`
	ListingID          string          `json:"listing_id"`
	BuyerID            string          `json:"buyer_id"`
	SellerID           string          `json:"seller_id"`
	Quantity           int             `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	PaymentMethod      string          `json:"payment_method"`
	PaymentReference   string          `json:"payment_reference,omitempty"`
	Status             OrderStatus     `json:"status"`
	CancellationReason string          `json:"cancellation_reason,omitempty"`
	CancelledBy        string          `json:"cancelled_by,omitempty"`
	Version            int64           `json:"version"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
}

func (o *Order) IsParty(accountID string) bool {
	return accountID != "" && (o.BuyerID == accountID || o.SellerID == accountID)
}

func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusCompleted || o.Status == OrderStatusCancelled
}

func (o *Order) Reservation() ReservationToken {
	return ReservationToken{
		ListingID: o.ListingID,
		OrderID:   o.ID,
		Quantity:  o.Quantity,
		SellerID:  o.SellerID,
		UnitPrice: o.UnitPrice,
	}
}
