package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pasarmarket/internal/domain/entity"
	"pasarmarket/internal/domain/repository"
	"pasarmarket/pkg/clock"
	"pasarmarket/pkg/errors"
	"pasarmarket/pkg/logger"
)

type ListingUseCase struct {
	listingRepo repository.ListingRepository
	clock       clock.Clock
	storage     StoragePolicy
}

func NewListingUseCase(listingRepo repository.ListingRepository, clk clock.Clock, storage StoragePolicy) *ListingUseCase {
	return &ListingUseCase{
		listingRepo: listingRepo,
		clock:       clk,
		storage:     storage,
	}
}

type CreateListingInput struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=5000"`
	CategoryID  string          `json:"category_id"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity" validate:"required,min=1"`
}

type UpdateListingInput struct {
	Title       *string          `json:"title,omitempty" validate:"omitempty,max=200"`
	Description *string          `json:"description,omitempty" validate:"omitempty,max=5000"`
	Price       *decimal.Decimal `json:"price,omitempty"`
}

type ListingQuery struct {
	Keyword    string
	CategoryID string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Page       int
	PageSize   int
}

func validatePrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return errors.InvalidArgument("Price must be greater than zero", nil)
	}
	if !price.Equal(price.Round(entity.CurrencyPrecision)) {
		return errors.InvalidArgument("Price may have at most 2 decimal places", nil)
	}
	return nil
}

func (uc *ListingUseCase) CreateListing(ctx context.Context, sellerID string, input CreateListingInput) (*entity.Listing, error) {
	return uc.createListing(ctx, sellerID, input, "")
}

func (uc *ListingUseCase) createListing(ctx context.Context, sellerID string, input CreateListingInput, relistedFrom string) (*entity.Listing, error) {
	title := strings.TrimSpace(input.Title)
	if sellerID == "" {
		return nil, errors.InvalidArgument("Seller is required", nil)
	}
	if title == "" {
		return nil, errors.InvalidArgument("Title is required", nil)
	}
	if err := validatePrice(input.Price); err != nil {
		return nil, err
	}
	if input.Quantity <= 0 {
		return nil, errors.InvalidArgument("Quantity must be greater than zero", nil)
	}

	now := uc.clock.Now()
	listing := &entity.Listing{
		ID:                uuid.New().String(),
		SellerID:          sellerID,
		Title:             title,
		Description:       input.Description,
		CategoryID:        input.CategoryID,
		Price:             input.Price,
		AvailableQuantity: input.Quantity,
		Status:            entity.ListingStatusActive,
		RelistedFrom:      relistedFrom,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err := uc.storage.create(ctx, "create listing", func(ctx context.Context) error {
		return uc.listingRepo.Create(ctx, listing)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Listing %s created by seller %s (qty %d @ %s)", listing.ID, sellerID, listing.AvailableQuantity, listing.Price.StringFixed(2))
	return listing, nil
}

func (uc *ListingUseCase) GetListing(ctx context.Context, id string) (*entity.Listing, error) {
	var listing *entity.Listing
	err := uc.storage.run(ctx, "get listing", func(ctx context.Context) error {
		var err error
		listing, err = uc.listingRepo.GetByID(ctx, id)
		return err
	})
	return listing, err
}

// ListListings returns active listings matching the query.
func (uc *ListingUseCase) ListListings(ctx context.Context, query ListingQuery) ([]entity.ListingSummary, int64, error) {
	if query.MinPrice != nil && query.MaxPrice != nil && query.MinPrice.GreaterThan(*query.MaxPrice) {
		return nil, 0, errors.InvalidArgument("minPrice must not exceed maxPrice", nil)
	}

	filter := repository.ListingFilter{
		Keyword:    query.Keyword,
		CategoryID: query.CategoryID,
		Status:     entity.ListingStatusActive,
		MinPrice:   query.MinPrice,
		MaxPrice:   query.MaxPrice,
	}
	return uc.list(ctx, filter, query.Page, query.PageSize)
}

func (uc *ListingUseCase) ListBySeller(ctx context.Context, sellerID string, page, pageSize int) ([]entity.ListingSummary, int64, error) {
	return uc.list(ctx, repository.ListingFilter{SellerID: sellerID}, page, pageSize)
}

func (uc *ListingUseCase) list(ctx context.Context, filter repository.ListingFilter, page, pageSize int) ([]entity.ListingSummary, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	var listings []*entity.Listing
	var total int64
	err := uc.storage.run(ctx, "list listings", func(ctx context.Context) error {
		var err error
		listings, total, err = uc.listingRepo.List(ctx, filter, pageSize, (page-1)*pageSize)
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	summaries := make([]entity.ListingSummary, len(listings))
	for i, l := range listings {
		summaries[i] = l.Summary()
	}
	return summaries, total, nil
}

// UpdateListing edits seller-owned fields. Orders keep the price they were placed at.
func (uc *ListingUseCase) UpdateListing(ctx context.Context, id, sellerID string, input UpdateListingInput) (*entity.Listing, error) {
	if input.Price != nil {
		if err := validatePrice(*input.Price); err != nil {
			return nil, err
		}
	}
	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		return nil, errors.InvalidArgument("Title must not be empty", nil)
	}

	return uc.mutate(ctx, "update listing", id, func(l *entity.Listing) error {
		if l.SellerID != sellerID {
			return errors.PermissionDenied("Only the seller can update this listing")
		}
		if l.Status == entity.ListingStatusRemoved {
			return errors.InvalidState("Listing has been removed")
		}
		if input.Title != nil {
			l.Title = strings.TrimSpace(*input.Title)
		}
		if input.Description != nil {
			l.Description = *input.Description
		}
		if input.Price != nil {
			l.Price = *input.Price
		}
		l.UpdatedAt = uc.clock.Now()
		return nil
	})
}

// ReserveQuantity atomically takes qty units from the listing for one order.
// The hold is keyed by order id, so replaying the call for the same order
// returns the existing hold instead of taking more stock.
func (uc *ListingUseCase) ReserveQuantity(ctx context.Context, listingID, orderID string, qty int) (*entity.ReservationToken, error) {
	if qty <= 0 {
		return nil, errors.InvalidArgument("Quantity must be greater than zero", nil)
	}
	if orderID == "" {
		return nil, errors.InvalidArgument("Order is required", nil)
	}

	var token *entity.ReservationToken
	_, err := uc.mutate(ctx, "reserve quantity", listingID, func(l *entity.Listing) error {
		token = &entity.ReservationToken{
			ListingID: listingID,
			OrderID:   orderID,
			Quantity:  qty,
			SellerID:  l.SellerID,
			UnitPrice: l.Price,
		}

		if held, ok := l.Holds[orderID]; ok {
			if held != qty {
				token = nil
				return errors.InvalidState(fmt.Sprintf("Order %s already holds %d units", orderID, held))
			}
			return repository.ErrSkipWrite
		}

		if l.Status == entity.ListingStatusRemoved {
			token = nil
			return errors.InvalidState("Listing is no longer available")
		}
		if l.AvailableQuantity < qty {
			token = nil
			return errors.InsufficientStock(fmt.Sprintf("Only %d left in stock", l.AvailableQuantity))
		}

		if l.Holds == nil {
			l.Holds = make(map[string]int)
		}
		l.Holds[orderID] = qty
		l.AvailableQuantity -= qty
		l.ReservedQuantity += qty
		if l.AvailableQuantity == 0 {
			l.Status = entity.ListingStatusSoldOut
		}
		l.UpdatedAt = uc.clock.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return token, nil
}

// ReleaseReservation returns an order's held units to stock. A removed listing
// stays removed. Releasing an order that holds nothing is a no-op.
func (uc *ListingUseCase) ReleaseReservation(ctx context.Context, token entity.ReservationToken) error {
	_, err := uc.mutate(ctx, "release reservation", token.ListingID, func(l *entity.Listing) error {
		held, ok := l.Holds[token.OrderID]
		if !ok {
			logger.Debug("Listing %s holds nothing for order %s; release skipped", l.ID, token.OrderID)
			return repository.ErrSkipWrite
		}

		delete(l.Holds, token.OrderID)
		l.AvailableQuantity += held
		l.ReservedQuantity -= held
		if l.Status == entity.ListingStatusSoldOut && l.AvailableQuantity > 0 {
			l.Status = entity.ListingStatusActive
		}
		l.UpdatedAt = uc.clock.Now()
		return nil
	})
	return err
}

// ConsumeReservation marks an order's held units as sold. Stock is not restored.
// Consuming an order that holds nothing is a no-op.
func (uc *ListingUseCase) ConsumeReservation(ctx context.Context, token entity.ReservationToken) error {
	_, err := uc.mutate(ctx, "consume reservation", token.ListingID, func(l *entity.Listing) error {
		held, ok := l.Holds[token.OrderID]
		if !ok {
			logger.Debug("Listing %s holds nothing for order %s; consume skipped", l.ID, token.OrderID)
			return repository.ErrSkipWrite
		}

		delete(l.Holds, token.OrderID)
		l.ReservedQuantity -= held
		l.UpdatedAt = uc.clock.Now()
		return nil
	})
	return err
}

func (uc *ListingUseCase) RemoveListing(ctx context.Context, id, sellerID string) (*entity.Listing, error) {
	listing, err := uc.mutate(ctx, "remove listing", id, func(l *entity.Listing) error {
		if l.SellerID != sellerID {
			return errors.PermissionDenied("Only the seller can remove this listing")
		}
		if l.Status == entity.ListingStatusRemoved {
			return errors.InvalidState("Listing is already removed")
		}
		if l.ReservedQuantity > 0 {
			return errors.InvalidState("Listing has orders in progress")
		}
		l.Status = entity.ListingStatusRemoved
		l.UpdatedAt = uc.clock.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Listing %s removed by seller %s", id, sellerID)
	return listing, nil
}

// Relist opens a new active listing from a sold-out or removed one.
func (uc *ListingUseCase) Relist(ctx context.Context, id, sellerID string, quantity int) (*entity.Listing, error) {
	if quantity <= 0 {
		return nil, errors.InvalidArgument("Quantity must be greater than zero", nil)
	}

	old, err := uc.GetListing(ctx, id)
	if err != nil {
		return nil, err
	}
	if old.SellerID != sellerID {
		return nil, errors.PermissionDenied("Only the seller can relist this listing")
	}
	if old.Status == entity.ListingStatusActive {
		return nil, errors.InvalidState("Listing is still active")
	}

	return uc.createListing(ctx, sellerID, CreateListingInput{
		Title:       old.Title,
		Description: old.Description,
		CategoryID:  old.CategoryID,
		Price:       old.Price,
		Quantity:    quantity,
	}, old.ID)
}

func (uc *ListingUseCase) mutate(ctx context.Context, op, id string, fn repository.ListingMutation) (*entity.Listing, error) {
	var listing *entity.Listing
	err := uc.storage.run(ctx, op, func(ctx context.Context) error {
		var err error
		listing, err = uc.listingRepo.Mutate(ctx, id, fn)
		return err
	})
	return listing, err
}
