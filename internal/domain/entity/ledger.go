package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LedgerReason string

const (
	LedgerReasonOrderSettlement  LedgerReason = "order_settlement"
	LedgerReasonPlatformFee      LedgerReason = "platform_fee"
	LedgerReasonWithdrawalPayout LedgerReason = "withdrawal_payout"
	LedgerReasonAdjustment       LedgerReason = "adjustment"
)

type BalanceBucket string

const (
	BucketAvailable BalanceBucket = "available"
	BucketPending   BalanceBucket = "pending"
	BucketFrozen    BalanceBucket = "frozen"
)

func (b BalanceBucket) Valid() bool {
	return b == BucketAvailable || b == BucketPending || b == BucketFrozen
}

var ledgerNamespace = uuid.MustParse("6f1d7a52-3c1e-4c47-9a0e-2b7d3f4c9e11")

// LedgerEntry is immutable once written. BalanceAfter equals the sum of all
// amounts for the account up to and including this entry.
type LedgerEntry struct {
	ID             string          `json:"id"`
	AccountID      string          `json:"account_id"`
	Sequence       int64           `json:"sequence"`
	Amount         decimal.Decimal `json:"amount"`
	BalanceAfter   decimal.Decimal `json:"balance_after"`
	Bucket         BalanceBucket   `json:"bucket"`
	Reason         LedgerReason    `json:"reason"`
	Reference      string          `json:"reference"`
	IdempotencyKey string          `json:"idempotency_key"`
	CreatedAt      time.Time       `json:"created_at"`
}

// LedgerPosting is a requested movement, not yet sequenced.
type LedgerPosting struct {
	AccountID string
	Amount    decimal.Decimal
	Bucket    BalanceBucket
	Reason    LedgerReason
	Reference string
}

func (p LedgerPosting) IdempotencyKey() string {
	return p.Reference + ":" + string(p.Reason) + ":" + p.AccountID
}

// EntryID is derived from the idempotency key so a retried posting lands on the same document.
func (p LedgerPosting) EntryID() string {
	return uuid.NewSHA1(ledgerNamespace, []byte(p.IdempotencyKey())).String()
}
