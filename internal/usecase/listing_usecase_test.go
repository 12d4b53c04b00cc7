package usecase

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pasarmarket/internal/domain/entity"
	"pasarmarket/pkg/errors"
)

func TestCreateListingValidation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name  string
		input CreateListingInput
	}{
		{"zero price", CreateListingInput{Title: "x", Price: decimal.Zero, Quantity: 1}},
		{"negative price", CreateListingInput{Title: "x", Price: decimal.NewFromInt(-5), Quantity: 1}},
		{"sub-cent price", CreateListingInput{Title: "x", Price: decimal.RequireFromString("1.005"), Quantity: 1}},
		{"zero quantity", CreateListingInput{Title: "x", Price: decimal.NewFromInt(5), Quantity: 0}},
		{"blank title", CreateListingInput{Title: "   ", Price: decimal.NewFromInt(5), Quantity: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.listings.CreateListing(f.ctx, "seller", tc.input)
			assert.True(t, errors.Is(err, errors.CodeInvalidArgument), "got %v", err)
		})
	}
}

func TestReserveFlipsSoldOutAndReleaseRestores(t *testing.T) {
	f := newFixture(t)
	l := f.listing(t, "seller", "10.00", 2)

	token, err := f.listings.ReserveQuantity(f.ctx, l.ID, "order-1", 2)
	require.NoError(t, err)
	assert.Equal(t, "seller", token.SellerID)
	assert.Equal(t, "10.00", token.UnitPrice.StringFixed(2))

	got, _ := f.listings.GetListing(f.ctx, l.ID)
	assert.Equal(t, 0, got.AvailableQuantity)
	assert.Equal(t, 2, got.ReservedQuantity)
	assert.Equal(t, entity.ListingStatusSoldOut, got.Status)

	_, err = f.listings.ReserveQuantity(f.ctx, l.ID, "order-2", 1)
	assert.True(t, errors.Is(err, errors.CodeInsufficientStock))

	require.NoError(t, f.listings.ReleaseReservation(f.ctx, *token))
	got, _ = f.listings.GetListing(f.ctx, l.ID)
	assert.Equal(t, 2, got.AvailableQuantity)
	assert.Equal(t, 0, got.ReservedQuantity)
	assert.Equal(t, entity.ListingStatusActive, got.Status)
}

func TestConsumeKeepsStockSold(t *testing.T) {
	f := newFixture(t)
	l := f.listing(t, "seller", "10.00", 3)

	token, err := f.listings.ReserveQuantity(f.ctx, l.ID, "order-1", 2)
	require.NoError(t, err)
	require.NoError(t, f.listings.ConsumeReservation(f.ctx, *token))

	got, _ := f.listings.GetListing(f.ctx, l.ID)
	assert.Equal(t, 1, got.AvailableQuantity)
	assert.Equal(t, 0, got.ReservedQuantity)
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	f := newFixture(t)
	const stock, qty, attempts = 10, 3, 25
	l := f.listing(t, "seller", "5.00", stock)

	var wins, soldOut int32
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.listings.ReserveQuantity(f.ctx, l.ID, fmt.Sprintf("order-%d", i), qty)
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, errors.CodeInsufficientStock):
				atomic.AddInt32(&soldOut, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(stock/qty), wins)
	assert.Equal(t, int32(attempts-stock/qty), soldOut)

	got, _ := f.listings.GetListing(f.ctx, l.ID)
	assert.Equal(t, stock%qty, got.AvailableQuantity)
	assert.Equal(t, (stock/qty)*qty, got.ReservedQuantity)
}

func TestStockWritesSurviveLostAcknowledgements(t *testing.T) {
	f := newFixture(t)
	l := f.listing(t, "seller", "10.00", 3)

	repo := &lostAckListingRepository{ListingRepository: f.listingRepo}
	listings := NewListingUseCase(repo, f.clock, StoragePolicy{Timeout: time.Second, Retries: 2})

	stock := func() (int, int) {
		got, err := f.listings.GetListing(f.ctx, l.ID)
		require.NoError(t, err)
		return got.AvailableQuantity, got.ReservedQuantity
	}

	repo.dropNext(1)
	token, err := listings.ReserveQuantity(f.ctx, l.ID, "order-1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, token.Quantity)
	available, reserved := stock()
	assert.Equal(t, 1, available)
	assert.Equal(t, 2, reserved)

	repo.dropNext(1)
	require.NoError(t, listings.ReleaseReservation(f.ctx, *token))
	available, reserved = stock()
	assert.Equal(t, 3, available)
	assert.Equal(t, 0, reserved)

	token, err = listings.ReserveQuantity(f.ctx, l.ID, "order-2", 1)
	require.NoError(t, err)
	repo.dropNext(1)
	require.NoError(t, listings.ConsumeReservation(f.ctx, *token))
	available, reserved = stock()
	assert.Equal(t, 2, available)
	assert.Equal(t, 0, reserved)
}

func TestReservationIsKeyedByOrder(t *testing.T) {
	f := newFixture(t)
	l := f.listing(t, "seller", "10.00", 5)

	token, err := f.listings.ReserveQuantity(f.ctx, l.ID, "order-1", 2)
	require.NoError(t, err)

	again, err := f.listings.ReserveQuantity(f.ctx, l.ID, "order-1", 2)
	require.NoError(t, err)
	assert.Equal(t, token.Quantity, again.Quantity)
	assert.Equal(t, token.OrderID, again.OrderID)
	got, _ := f.listings.GetListing(f.ctx, l.ID)
	assert.Equal(t, 3, got.AvailableQuantity)

	_, err = f.listings.ReserveQuantity(f.ctx, l.ID, "order-1", 3)
	assert.True(t, errors.Is(err, errors.CodeInvalidState))

	require.NoError(t, f.listings.ReleaseReservation(f.ctx, *token))
	require.NoError(t, f.listings.ReleaseReservation(f.ctx, *token))
	require.NoError(t, f.listings.ConsumeReservation(f.ctx, *token))

	got, _ = f.listings.GetListing(f.ctx, l.ID)
	assert.Equal(t, 5, got.AvailableQuantity)
	assert.Equal(t, 0, got.ReservedQuantity)
	assert.Empty(t, got.Holds)
}

func TestRemoveListingRules(t *testing.T) {
	f := newFixture(t)
	l := f.listing(t, "seller", "10.00", 3)

	_, err := f.listings.RemoveListing(f.ctx, l.ID, "intruder")
	assert.True(t, errors.Is(err, errors.CodePermissionDenied))

	token, err := f.listings.ReserveQuantity(f.ctx, l.ID, "order-1", 1)
	require.NoError(t, err)
	_, err = f.listings.RemoveListing(f.ctx, l.ID, "seller")
	assert.True(t, errors.Is(err, errors.CodeInvalidState))

	require.NoError(t, f.listings.ReleaseReservation(f.ctx, *token))
	removed, err := f.listings.RemoveListing(f.ctx, l.ID, "seller")
	require.NoError(t, err)
	assert.Equal(t, entity.ListingStatusRemoved, removed.Status)

	_, err = f.listings.RemoveListing(f.ctx, l.ID, "seller")
	assert.True(t, errors.Is(err, errors.CodeInvalidState))

	_, err = f.listings.ReserveQuantity(f.ctx, l.ID, "order-2", 1)
	assert.True(t, errors.Is(err, errors.CodeInvalidState))
}

func TestReleaseOnRemovedListingKeepsRemoved(t *testing.T) {
	f := newFixture(t)
	l := f.listing(t, "seller", "10.00", 1)

	token, err := f.listings.ReserveQuantity(f.ctx, l.ID, "order-1", 1)
	require.NoError(t, err)

	// Force the removed state directly; the usecase forbids removal while reserved.
	_, err = f.listingRepo.Mutate(f.ctx, l.ID, func(l *entity.Listing) error {
		l.Status = entity.ListingStatusRemoved
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, f.listings.ReleaseReservation(f.ctx, *token))
	got, _ := f.listings.GetListing(f.ctx, l.ID)
	assert.Equal(t, entity.ListingStatusRemoved, got.Status)
	assert.Equal(t, 1, got.AvailableQuantity)
}

func TestRelist(t *testing.T) {
	f := newFixture(t)
	l := f.listing(t, "seller", "42.50", 1)

	_, err := f.listings.Relist(f.ctx, l.ID, "seller", 5)
	assert.True(t, errors.Is(err, errors.CodeInvalidState))

	_, err = f.listings.ReserveQuantity(f.ctx, l.ID, "order-1", 1)
	require.NoError(t, err)

	_, err = f.listings.Relist(f.ctx, l.ID, "someone-else", 5)
	assert.True(t, errors.Is(err, errors.CodePermissionDenied))

	fresh, err := f.listings.Relist(f.ctx, l.ID, "seller", 5)
	require.NoError(t, err)
	assert.NotEqual(t, l.ID, fresh.ID)
	assert.Equal(t, l.ID, fresh.RelistedFrom)
	assert.Equal(t, entity.ListingStatusActive, fresh.Status)
	assert.Equal(t, 5, fresh.AvailableQuantity)
	assert.Equal(t, "42.50", fresh.Price.StringFixed(2))
}

func TestUpdateListingOwnership(t *testing.T) {
	f := newFixture(t)
	l := f.listing(t, "seller", "10.00", 1)

	price := decimal.RequireFromString("12.00")
	_, err := f.listings.UpdateListing(f.ctx, l.ID, "other", UpdateListingInput{Price: &price})
	assert.True(t, errors.Is(err, errors.CodePermissionDenied))

	updated, err := f.listings.UpdateListing(f.ctx, l.ID, "seller", UpdateListingInput{Price: &price})
	require.NoError(t, err)
	assert.Equal(t, "12.00", updated.Price.StringFixed(2))
}

func TestListListingsFiltersActive(t *testing.T) {
	f := newFixture(t)
	f.listing(t, "s1", "10.00", 1)
	f.listing(t, "s1", "80.00", 1)
	gone := f.listing(t, "s2", "20.00", 1)
	_, err := f.listings.RemoveListing(f.ctx, gone.ID, "s2")
	require.NoError(t, err)

	max := decimal.RequireFromString("50")
	items, total, err := f.listings.ListListings(f.ctx, ListingQuery{Keyword: "camera", MaxPrice: &max, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, "10.00", items[0].Price.StringFixed(2))

	mine, total, err := f.listings.ListBySeller(f.ctx, "s2", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, entity.ListingStatusRemoved, mine[0].Status)
}
