package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type WalletStatus string

const (
	WalletStatusActive WalletStatus = "active"
	// WalletStatusHalted blocks further ledger writes until an operator reviews the account.
	WalletStatusHalted WalletStatus = "halted"
)

// Wallet is a cache over the ledger. Available+Pending+Frozen == Balance == sum(ledger).
type Wallet struct {
	AccountID     string          `json:"account_id"`
	Balance       decimal.Decimal `json:"balance"`
	TotalEarnings decimal.Decimal `json:"total_earnings"`
	Available     decimal.Decimal `json:"available"`
	Pending       decimal.Decimal `json:"pending"`
	Frozen        decimal.Decimal `json:"frozen"`
	LastSequence  int64           `json:"last_sequence"`
	Status        WalletStatus    `json:"status"`
	HaltedReason  string          `json:"halted_reason,omitempty"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func NewWallet(accountID string, now time.Time) *Wallet {
	return &Wallet{
		AccountID: accountID,
		Status:    WalletStatusActive,
		UpdatedAt: now,
	}
}

func (w *Wallet) IsHalted() bool {
	return w.Status == WalletStatusHalted
}

func (w *Wallet) bucket(b BalanceBucket) *decimal.Decimal {
	switch b {
	case BucketPending:
		return &w.Pending
	case BucketFrozen:
		return &w.Frozen
	default:
		return &w.Available
	}
}

func (w *Wallet) BucketAmount(b BalanceBucket) decimal.Decimal {
	return *w.bucket(b)
}

// Apply sequences a posting against the wallet and returns the resulting entry.
// A debit may not take its bucket below zero.
func (w *Wallet) Apply(p LedgerPosting, now time.Time) (*LedgerEntry, error) {
	if !p.Bucket.Valid() {
		return nil, fmt.Errorf("unknown bucket %q", p.Bucket)
	}
	target := w.bucket(p.Bucket)
	next := target.Add(p.Amount)
	if next.IsNegative() {
		return nil, fmt.Errorf("bucket %s of %s would go negative", p.Bucket, w.AccountID)
	}

	*target = next
	w.Balance = w.Balance.Add(p.Amount)
	if p.Amount.IsPositive() && (p.Reason == LedgerReasonOrderSettlement || p.Reason == LedgerReasonPlatformFee) {
		w.TotalEarnings = w.TotalEarnings.Add(p.Amount)
	}
	w.LastSequence++
	w.UpdatedAt = now

	return &LedgerEntry{
		ID:             p.EntryID(),
		AccountID:      w.AccountID,
		Sequence:       w.LastSequence,
		Amount:         p.Amount,
		BalanceAfter:   w.Balance,
		Bucket:         p.Bucket,
		Reason:         p.Reason,
		Reference:      p.Reference,
		IdempotencyKey: p.IdempotencyKey(),
		CreatedAt:      now,
	}, nil
}

// MoveBucket shifts funds between buckets without changing the net balance.
func (w *Wallet) MoveBucket(from, to BalanceBucket, amount decimal.Decimal, now time.Time) error {
	if !amount.IsPositive() {
		return fmt.Errorf("move amount must be positive")
	}
	src := w.bucket(from)
	if src.LessThan(amount) {
		return fmt.Errorf("bucket %s holds %s, cannot move %s", from, src.StringFixed(CurrencyPrecision), amount.StringFixed(CurrencyPrecision))
	}
	*src = src.Sub(amount)
	dst := w.bucket(to)
	*dst = dst.Add(amount)
	w.UpdatedAt = now
	return nil
}

func (w *Wallet) BucketsConsistent() bool {
	return w.Available.Add(w.Pending).Add(w.Frozen).Equal(w.Balance)
}

type WithdrawalStatus string

const (
	WithdrawalStatusPending    WithdrawalStatus = "pending"
	WithdrawalStatusProcessing WithdrawalStatus = "processing"
	WithdrawalStatusCompleted  WithdrawalStatus = "completed"
	WithdrawalStatusRejected   WithdrawalStatus = "rejected"
)

type Withdrawal struct {
	ID          string           `json:"id"`
	AccountID   string           `json:"account_id"`
	Amount      decimal.Decimal  `json:"amount"`
	Status      WithdrawalStatus `json:"status"`
	Reason      string           `json:"reason,omitempty"`
	ProcessedBy string           `json:"processed_by,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	ProcessedAt *time.Time       `json:"processed_at,omitempty"`
}
