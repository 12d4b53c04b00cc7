package repository

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"pasarmarket/internal/domain/entity"
)

type ListingFilter struct {
	Keyword    string
	CategoryID string
	SellerID   string
	Status     entity.ListingStatus
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
}

func (f ListingFilter) Matches(l *entity.Listing) bool {
	if f.SellerID != "" && l.SellerID != f.SellerID {
		return false
	}
	if f.CategoryID != "" && l.CategoryID != f.CategoryID {
		return false
	}
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	if f.MinPrice != nil && l.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && l.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	if f.Keyword != "" && !containsFold(l.Title, f.Keyword) {
		return false
	}
	return true
}

type ListingMutation func(listing *entity.Listing) error

type ListingRepository interface {
	Create(ctx context.Context, listing *entity.Listing) error
	GetByID(ctx context.Context, id string) (*entity.Listing, error)
	List(ctx context.Context, filter ListingFilter, limit, offset int) ([]*entity.Listing, int64, error)
	// Mutate applies fn to the stored listing and writes it back atomically.
	Mutate(ctx context.Context, id string, fn ListingMutation) (*entity.Listing, error)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(strings.TrimSpace(substr)))
}
