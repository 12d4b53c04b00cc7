package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReconcileReport is the result of recomputing a wallet from its ledger.
type ReconcileReport struct {
	AccountID     string          `json:"account_id"`
	EntryCount    int             `json:"entry_count"`
	LedgerSum     decimal.Decimal `json:"ledger_sum"`
	WalletBalance decimal.Decimal `json:"wallet_balance"`
	Available     decimal.Decimal `json:"available"`
	Pending       decimal.Decimal `json:"pending"`
	Frozen        decimal.Decimal `json:"frozen"`
	Issues        []string        `json:"issues,omitempty"`
	Consistent    bool            `json:"consistent"`
	CheckedAt     time.Time       `json:"checked_at"`
}
