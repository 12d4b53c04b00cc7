package entity

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletApplyKeepsRunningBalance(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	w := NewWallet("seller-1", now)

	first, err := w.Apply(LedgerPosting{
		AccountID: "seller-1",
		Amount:    decimal.RequireFromString("190.00"),
		Bucket:    BucketAvailable,
		Reason:    LedgerReasonOrderSettlement,
		Reference: "order-1",
	}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Sequence)
	assert.Equal(t, "190.00", first.BalanceAfter.StringFixed(2))

	require.NoError(t, w.MoveBucket(BucketAvailable, BucketPending, decimal.RequireFromString("40"), now))

	second, err := w.Apply(LedgerPosting{
		AccountID: "seller-1",
		Amount:    decimal.RequireFromString("-40"),
		Bucket:    BucketPending,
		Reason:    LedgerReasonWithdrawalPayout,
		Reference: "wd-1",
	}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Sequence)
	assert.Equal(t, "150.00", second.BalanceAfter.StringFixed(2))
	assert.True(t, w.BucketsConsistent())
	assert.Equal(t, "190.00", w.TotalEarnings.StringFixed(2))
}

func TestWalletRejectsOverdraw(t *testing.T) {
	now := time.Now()
	w := NewWallet("acct", now)

	_, err := w.Apply(LedgerPosting{AccountID: "acct", Amount: decimal.NewFromInt(-1), Bucket: BucketAvailable, Reason: LedgerReasonAdjustment, Reference: "x"}, now)
	assert.Error(t, err)
	assert.Equal(t, int64(0), w.LastSequence)

	assert.Error(t, w.MoveBucket(BucketAvailable, BucketFrozen, decimal.NewFromInt(5), now))
}

func TestPostingIdentityIsDeterministic(t *testing.T) {
	p := LedgerPosting{AccountID: "a", Reason: LedgerReasonPlatformFee, Reference: "order-9"}
	assert.Equal(t, p.EntryID(), p.EntryID())
	assert.Equal(t, "order-9:platform_fee:a", p.IdempotencyKey())

	other := p
	other.AccountID = "b"
	assert.NotEqual(t, p.EntryID(), other.EntryID())
}
