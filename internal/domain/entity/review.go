package entity

import (
	"time"
)

// Review is keyed by order id; there is at most one per order.
type Review struct {
	OrderID    string    `json:"order_id"`
	ListingID  string    `json:"listing_id"`
	ReviewerID string    `json:"reviewer_id"`
	TargetID   string    `json:"target_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"created_at"`
}
