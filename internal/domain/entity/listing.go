package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type ListingStatus string

const (
	ListingStatusActive  ListingStatus = "active"
	ListingStatusSoldOut ListingStatus = "sold_out"
	ListingStatusRemoved ListingStatus = "removed"
)

// Listing is a seller's offer. AvailableQuantity never goes negative and
// ReservedQuantity is the sum of Holds, the units held per open order id.
type Listing struct {
	ID                string          `json:"id"`
	SellerID          string          `json:"seller_id"`
	Title             string          `json:"title"`
	Description       string          `json:"description,omitempty"`
	CategoryID        string          `json:"category_id,omitempty"`
	Price             decimal.Decimal `json:"price"`
	AvailableQuantity int             `json:"available_quantity"`
	ReservedQuantity  int             `json:"reserved_quantity"`
	Holds             map[string]int  `json:"-"`
	Status            ListingStatus   `json:"status"`
	RelistedFrom      string          `json:"relisted_from,omitempty"`
	Version           int64           `json:"version"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Clone returns a copy that shares no memory with l.
func (l *Listing) Clone() *Listing {
	c := *l
	if l.Holds != nil {
		c.Holds = make(map[string]int, len(l.Holds))
		for orderID, qty := range l.Holds {
			c.Holds[orderID] = qty
		}
	}
	return &c
}

// ReservationToken identifies stock held for one order. SellerID and
// UnitPrice are read in the same atomic unit that took the stock.
type ReservationToken struct {
	ListingID string          `json:"listing_id"`
	OrderID   string          `json:"order_id"`
	Quantity  int             `json:"quantity"`
	SellerID  string          `json:"seller_id"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// ListingSummary is the browse view of a listing.
type ListingSummary struct {
	ID                string          `json:"id"`
	SellerID          string          `json:"seller_id"`
	Title             string          `json:"title"`
	CategoryID        string          `json:"category_id,omitempty"`
	Price             decimal.Decimal `json:"price"`
	AvailableQuantity int             `json:"available_quantity"`
	Status            ListingStatus   `json:"status"`
}

func (l *Listing) Summary() ListingSummary {
	return ListingSummary{
		ID:                l.ID,
		SellerID:          l.SellerID,
		Title:             l.Title,
		CategoryID:        l.CategoryID,
		Price:             l.Price,
		AvailableQuantity: l.AvailableQuantity,
		Status:            l.Status,
	}
}
