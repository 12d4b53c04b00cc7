package repository

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"pasarmarket/internal/domain/entity"
	"pasarmarket/internal/domain/repository"
	"pasarmarket/pkg/errors"
)

// memoryLedgerStore holds wallets and entries together so a posting updates
// both under the same per-account locks. Locks are taken in account-id order.
type memoryLedgerStore struct {
	mu           sync.Mutex
	accountLocks map[string]*sync.Mutex
	wallets      map[string]*entity.Wallet
	entries      map[string]*entity.LedgerEntry
	byAccount    map[string][]*entity.LedgerEntry
}

func newMemoryLedgerStore() *memoryLedgerStore {
	return &memoryLedgerStore{
		accountLocks: make(map[string]*sync.Mutex),
		wallets:      make(map[string]*entity.Wallet),
		entries:      make(map[string]*entity.LedgerEntry),
		byAccount:    make(map[string][]*entity.LedgerEntry),
	}
}

// NewMemoryLedgerRepositories returns a ledger and a wallet repository sharing one store.
func NewMemoryLedgerRepositories() (repository.LedgerRepository, repository.WalletRepository) {
	store := newMemoryLedgerStore()
	return &memoryLedgerRepository{store: store}, &memoryWalletRepository{store: store}
}

func (s *memoryLedgerStore) lockAccounts(accountIDs []string) func() {
	ids := append([]string(nil), accountIDs...)
	sort.Strings(ids)

	locks := make([]*sync.Mutex, 0, len(ids))
	s.mu.Lock()
	for i, id := range ids {
		if i > 0 && ids[i-1] == id {
			continue
		}
		l, ok := s.accountLocks[id]
		if !ok {
			l = &sync.Mutex{}
			s.accountLocks[id] = l
		}
		locks = append(locks, l)
	}
	s.mu.Unlock()

	for _, l := range locks {
		l.Lock()
	}
	return func() {
		for i := len(locks) - 1; i >= 0; i-- {
			locks[i].Unlock()
		}
	}
}

func (s *memoryLedgerStore) walletCopy(accountID string, now time.Time) *entity.Wallet {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w, ok := s.wallets[accountID]; ok {
		c := *w
		return &c
	}
	return entity.NewWallet(accountID, now)
}

type memoryLedgerRepository struct {
	store *memoryLedgerStore
}

func (r *memoryLedgerRepository) Post(ctx context.Context, postings []entity.LedgerPosting, now time.Time) ([]*entity.LedgerEntry, error) {
	if len(postings) == 0 {
		return nil, nil
	}
	s := r.store

	accounts := make([]string, 0, len(postings))
	for _, p := range postings {
		accounts = append(accounts, p.AccountID)
	}
	unlock := s.lockAccounts(accounts)
	defer unlock()

	result := make([]*entity.LedgerEntry, len(postings))
	wallets := make(map[string]*entity.Wallet)
	var fresh []int

	s.mu.Lock()
	for i, p := range postings {
		if existing, ok := s.entries[p.EntryID()]; ok {
			c := *existing
			result[i] = &c
			continue
		}
		fresh = append(fresh, i)
	}
	s.mu.Unlock()

	for _, i := range fresh {
		p := postings[i]
		w, ok := wallets[p.AccountID]
		if !ok {
			w = s.walletCopy(p.AccountID, now)
			wallets[p.AccountID] = w
		}
		if w.IsHalted() {
			return nil, errors.IntegrityViolation(fmt.Sprintf("Wallet %s is halted", p.AccountID), nil)
		}
		entry, err := w.Apply(p, now)
		if err != nil {
			return nil, errors.InsufficientFunds(err.Error())
		}
		result[i] = entry
	}

	s.mu.Lock()
	for _, i := range fresh {
		entry := result[i]
		stored := *entry
		s.entries[entry.ID] = &stored
		s.byAccount[entry.AccountID] = append(s.byAccount[entry.AccountID], &stored)
	}
	for accountID, w := range wallets {
		s.wallets[accountID] = w
	}
	s.mu.Unlock()

	return result, nil
}

func (r *memoryLedgerRepository) ListByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*entity.LedgerEntry, error) {
	all, _ := r.AllByAccountID(ctx, accountID)
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	start, end := paginate(len(all), limit, offset)
	return all[start:end], nil
}

func (r *memoryLedgerRepository) AllByAccountID(ctx context.Context, accountID string) ([]*entity.LedgerEntry, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.byAccount[accountID]
	out := make([]*entity.LedgerEntry, len(entries))
	for i, e := range entries {
		c := *e
		out[i] = &c
	}
	return out, nil
}

type memoryWalletRepository struct {
	store *memoryLedgerStore
}

func (r *memoryWalletRepository) GetByAccountID(ctx context.Context, accountID string) (*entity.Wallet, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[accountID]
	if !ok {
		return nil, errors.NotFound("Wallet", nil)
	}
	c := *w
	return &c, nil
}

func (r *memoryWalletRepository) Mutate(ctx context.Context, accountID string, now time.Time, fn repository.WalletMutation) (*entity.Wallet, error) {
	s := r.store
	unlock := s.lockAccounts([]string{accountID})
	defer unlock()

	w := s.walletCopy(accountID, now)
	if err := fn(w); err != nil {
		if stderrors.Is(err, repository.ErrSkipWrite) {
			return s.walletCopy(accountID, now), nil
		}
		return nil, err
	}

	s.mu.Lock()
	stored := *w
	s.wallets[accountID] = &stored
	s.mu.Unlock()
	return w, nil
}
