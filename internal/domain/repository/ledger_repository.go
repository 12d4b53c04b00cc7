package repository

import (
	"context"
	"time"

	"pasarmarket/internal/domain/entity"
)

type LedgerRepository interface {
	// Post appends all postings atomically, serialized per account. Postings
	// whose entry already exists are returned as stored instead of being
	// written again. A halted wallet rejects the whole group.
	Post(ctx context.Context, postings []entity.LedgerPosting, now time.Time) ([]*entity.LedgerEntry, error)
	ListByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*entity.LedgerEntry, error)
	// AllByAccountID returns every entry for the account in sequence order.
	AllByAccountID(ctx context.Context, accountID string) ([]*entity.LedgerEntry, error)
}

type WalletMutation func(wallet *entity.Wallet) error

type WalletRepository interface {
	GetByAccountID(ctx context.Context, accountID string) (*entity.Wallet, error)
	// Mutate creates the wallet, stamped with now, when absent before applying fn.
	Mutate(ctx context.Context, accountID string, now time.Time, fn WalletMutation) (*entity.Wallet, error)
}

type WithdrawalMutation func(withdrawal *entity.Withdrawal) error

type WithdrawalRepository interface {
	Create(ctx context.Context, withdrawal *entity.Withdrawal) error
	GetByID(ctx context.Context, id string) (*entity.Withdrawal, error)
	Mutate(ctx context.Context, id string, fn WithdrawalMutation) (*entity.Withdrawal, error)
	ListByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*entity.Withdrawal, error)
}
