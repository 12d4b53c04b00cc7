package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pasarmarket/internal/domain/entity"
	"pasarmarket/internal/domain/repository"
	"pasarmarket/pkg/errors"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestMemoryListingMutateIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryListingRepository()
	require.NoError(t, repo.Create(ctx, &entity.Listing{ID: "l1", AvailableQuantity: 50, Status: entity.ListingStatusActive}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Mutate(ctx, "l1", func(l *entity.Listing) error {
				l.AvailableQuantity--
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	l, err := repo.GetByID(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, 0, l.AvailableQuantity)
	assert.Equal(t, int64(50), l.Version)
}

func TestMemoryMutateSkipWriteAndErrors(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryOrderRepository()
	require.NoError(t, repo.Create(ctx, &entity.Order{ID: "o1", Status: entity.OrderStatusAwaitingEscrow}))

	o, err := repo.Mutate(ctx, "o1", func(o *entity.Order) error { return repository.ErrSkipWrite })
	require.NoError(t, err)
	assert.Equal(t, int64(0), o.Version)

	_, err = repo.Mutate(ctx, "o1", func(o *entity.Order) error {
		o.Status = entity.OrderStatusCompleted
		return errors.InvalidState("nope")
	})
	assert.True(t, errors.Is(err, errors.CodeInvalidState))

	stored, _ := repo.GetByID(ctx, "o1")
	assert.Equal(t, entity.OrderStatusAwaitingEscrow, stored.Status)

	_, err = repo.Mutate(ctx, "missing", func(o *entity.Order) error { return nil })
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestMemoryLedgerPostIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ledger, wallets := NewMemoryLedgerRepositories()

	group := []entity.LedgerPosting{
		{AccountID: "seller", Amount: decimal.RequireFromString("190"), Bucket: entity.BucketAvailable, Reason: entity.LedgerReasonOrderSettlement, Reference: "o1"},
		{AccountID: "platform", Amount: decimal.RequireFromString("10"), Bucket: entity.BucketAvailable, Reason: entity.LedgerReasonPlatformFee, Reference: "o1"},
	}

	first, err := ledger.Post(ctx, group, testNow)
	require.NoError(t, err)
	second, err := ledger.Post(ctx, group, testNow.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[0].CreatedAt, second[0].CreatedAt)

	w, err := wallets.GetByAccountID(ctx, "seller")
	require.NoError(t, err)
	assert.Equal(t, "190", w.Balance.String())
	assert.Equal(t, int64(1), w.LastSequence)

	entries, _ := ledger.AllByAccountID(ctx, "seller")
	assert.Len(t, entries, 1)
}

func TestMemoryLedgerConcurrentPostsKeepChain(t *testing.T) {
	ctx := context.Background()
	ledger, wallets := NewMemoryLedgerRepositories()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := ledger.Post(ctx, []entity.LedgerPosting{{
				AccountID: "acct",
				Amount:    decimal.NewFromInt(1),
				Bucket:    entity.BucketAvailable,
				Reason:    entity.LedgerReasonAdjustment,
				Reference: decimal.NewFromInt(int64(i)).String(),
			}}, testNow)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	entries, _ := ledger.AllByAccountID(ctx, "acct")
	require.Len(t, entries, 40)
	running := decimal.Zero
	for i, e := range entries {
		running = running.Add(e.Amount)
		assert.Equal(t, int64(i+1), e.Sequence)
		assert.True(t, running.Equal(e.BalanceAfter))
	}
	w, _ := wallets.GetByAccountID(ctx, "acct")
	assert.True(t, w.Balance.Equal(running))
}

func TestMemoryLedgerRejectsHaltedWallet(t *testing.T) {
	ctx := context.Background()
	ledger, wallets := NewMemoryLedgerRepositories()

	w, err := wallets.Mutate(ctx, "acct", testNow, func(w *entity.Wallet) error {
		w.Status = entity.WalletStatusHalted
		return nil
	})
	require.NoError(t, err)
	assert.True(t, w.UpdatedAt.Equal(testNow))

	_, err = ledger.Post(ctx, []entity.LedgerPosting{{
		AccountID: "acct", Amount: decimal.NewFromInt(5), Bucket: entity.BucketAvailable,
		Reason: entity.LedgerReasonAdjustment, Reference: "r",
	}}, testNow)
	assert.True(t, errors.Is(err, errors.CodeIntegrityViolation))

	entries, _ := ledger.AllByAccountID(ctx, "acct")
	assert.Empty(t, entries)
}

func TestMemoryReviewCreateIfAbsent(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryReviewRepository()

	require.NoError(t, repo.Create(ctx, &entity.Review{OrderID: "o1", Rating: 5}))
	err := repo.Create(ctx, &entity.Review{OrderID: "o1", Rating: 1})
	assert.True(t, errors.Is(err, errors.CodeDuplicateReview))

	r, err := repo.GetByOrderID(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, 5, r.Rating)
}

func TestMemoryEscrowDueQuery(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryEscrowRepository()

	past := testNow.Add(-time.Minute)
	future := testNow.Add(time.Hour)
	require.NoError(t, repo.Create(ctx, &entity.EscrowSession{OrderID: "due", State: entity.EscrowStateSellerConfirmed, AutoConfirmAt: &past}))
	require.NoError(t, repo.Create(ctx, &entity.EscrowSession{OrderID: "later", State: entity.EscrowStateSellerConfirmed, AutoConfirmAt: &future}))
	require.NoError(t, repo.Create(ctx, &entity.EscrowSession{OrderID: "open", State: entity.EscrowStateOpen}))

	due, err := repo.ListAutoConfirmDue(ctx, testNow, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "due", due[0].OrderID)
}
