package repository

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"pasarmarket/internal/domain/entity"
	"pasarmarket/internal/domain/repository"
	"pasarmarket/pkg/errors"
)

type ledgerEntryDoc struct {
	ID             string    `firestore:"id"`
	AccountID      string    `firestore:"accountId"`
	Sequence       int64     `firestore:"sequence"`
	Amount         string    `firestore:"amount"`
	BalanceAfter   string    `firestore:"balanceAfter"`
	Bucket         string    `firestore:"bucket"`
	Reason         string    `firestore:"reason"`
	Reference      string    `firestore:"reference"`
	IdempotencyKey string    `firestore:"idempotencyKey"`
	CreatedAt      time.Time `firestore:"createdAt"`
}

func toLedgerEntryDoc(e *entity.LedgerEntry) *ledgerEntryDoc {
	return &ledgerEntryDoc{
		ID:             e.ID,
		AccountID:      e.AccountID,
		Sequence:       e.Sequence,
		Amount:         money(e.Amount),
		BalanceAfter:   money(e.BalanceAfter),
		Bucket:         string(e.Bucket),
		Reason:         string(e.Reason),
		Reference:      e.Reference,
		IdempotencyKey: e.IdempotencyKey,
		CreatedAt:      e.CreatedAt,
	}
}

func decodeLedgerEntry(snap *firestore.DocumentSnapshot) (*entity.LedgerEntry, error) {
	var doc ledgerEntryDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, errors.Internal("Failed to parse ledger entry", err)
	}
	var err error
	e := &entity.LedgerEntry{
		ID:             doc.ID,
		AccountID:      doc.AccountID,
		Sequence:       doc.Sequence,
		Amount:         mustMoney(doc.Amount, &err),
		BalanceAfter:   mustMoney(doc.BalanceAfter, &err),
		Bucket:         entity.BalanceBucket(doc.Bucket),
		Reason:         entity.LedgerReason(doc.Reason),
		Reference:      doc.Reference,
		IdempotencyKey: doc.IdempotencyKey,
		CreatedAt:      doc.CreatedAt,
	}
	if err != nil {
		return nil, errors.Internal("Failed to parse ledger amounts", err)
	}
	return e, nil
}

type walletDoc struct {
	AccountID     string    `firestore:"accountId"`
	Balance       string    `firestore:"balance"`
	TotalEarnings string    `firestore:"totalEarnings"`
	Available     string    `firestore:"available"`
	Pending       string    `firestore:"pending"`
	Frozen        string    `firestore:"frozen"`
	LastSequence  int64     `firestore:"lastSequence"`
	Status        string    `firestore:"status"`
	HaltedReason  string    `firestore:"haltedReason"`
	UpdatedAt     time.Time `firestore:"updatedAt"`
}

func toWalletDoc(w *entity.Wallet) *walletDoc {
	return &walletDoc{
		AccountID:     w.AccountID,
		Balance:       money(w.Balance),
		TotalEarnings: money(w.TotalEarnings),
		Available:     money(w.Available),
		Pending:       money(w.Pending),
		Frozen:        money(w.Frozen),
		LastSequence:  w.LastSequence,
		Status:        string(w.Status),
		HaltedReason:  w.HaltedReason,
		UpdatedAt:     w.UpdatedAt,
	}
}

func decodeWallet(snap *firestore.DocumentSnapshot) (*entity.Wallet, error) {
	var doc walletDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, errors.Internal("Failed to parse wallet", err)
	}
	var err error
	w := &entity.Wallet{
		AccountID:     doc.AccountID,
		Balance:       mustMoney(doc.Balance, &err),
		TotalEarnings: mustMoney(doc.TotalEarnings, &err),
		Available:     mustMoney(doc.Available, &err),
		Pending:       mustMoney(doc.Pending, &err),
		Frozen:        mustMoney(doc.Frozen, &err),
		LastSequence:  doc.LastSequence,
		Status:        entity.WalletStatus(doc.Status),
		HaltedReason:  doc.HaltedReason,
		UpdatedAt:     doc.UpdatedAt,
	}
	if err != nil {
		return nil, errors.Internal("Failed to parse wallet amounts", err)
	}
	return w, nil
}

// readWallet loads the wallet inside tx, returning a fresh one when the document is absent.
func readWallet(tx *firestore.Transaction, ref *firestore.DocumentRef, accountID string, now time.Time) (*entity.Wallet, error) {
	snap, err := tx.Get(ref)
	if err != nil {
		if isNotFound(err) {
			return entity.NewWallet(accountID, now), nil
		}
		return nil, err
	}
	return decodeWallet(snap)
}

type firestoreLedgerRepository struct {
	client *firestore.Client
}

func NewFirestoreLedgerRepository(client *firestore.Client) repository.LedgerRepository {
	return &firestoreLedgerRepository{
		client: client,
	}
}

// Post runs one transaction over every touched wallet document. Firestore
// requires all reads to precede writes, so wallets and candidate entry
// documents are loaded first.
func (r *firestoreLedgerRepository) Post(ctx context.Context, postings []entity.LedgerPosting, now time.Time) ([]*entity.LedgerEntry, error) {
	if len(postings) == 0 {
		return nil, nil
	}

	accounts := make([]string, 0, len(postings))
	seenAccount := make(map[string]bool)
	for _, p := range postings {
		if !seenAccount[p.AccountID] {
			seenAccount[p.AccountID] = true
			accounts = append(accounts, p.AccountID)
		}
	}
	sort.Strings(accounts)

	var result []*entity.LedgerEntry
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		result = make([]*entity.LedgerEntry, len(postings))

		wallets := make(map[string]*entity.Wallet, len(accounts))
		for _, accountID := range accounts {
			w, err := readWallet(tx, r.client.Collection(walletsCollection).Doc(accountID), accountID, now)
			if err != nil {
				return err
			}
			wallets[accountID] = w
		}

		pendingIdx := make([]int, 0, len(postings))
		for i, p := range postings {
			snap, err := tx.Get(r.client.Collection(ledgerCollection).Doc(p.EntryID()))
			if err != nil {
				if isNotFound(err) {
					pendingIdx = append(pendingIdx, i)
					continue
				}
				return err
			}
			existing, err := decodeLedgerEntry(snap)
			if err != nil {
				return err
			}
			result[i] = existing
		}

		if len(pendingIdx) == 0 {
			return nil
		}

		touched := make(map[string]bool)
		for _, i := range pendingIdx {
			p := postings[i]
			w := wallets[p.AccountID]
			if w.IsHalted() {
				return errors.IntegrityViolation(fmt.Sprintf("Wallet %s is halted", p.AccountID), nil)
			}
			entry, err := w.Apply(p, now)
			if err != nil {
				return errors.InsufficientFunds(err.Error())
			}
			result[i] = entry
			touched[p.AccountID] = true
		}

		for _, i := range pendingIdx {
			entry := result[i]
			if err := tx.Create(r.client.Collection(ledgerCollection).Doc(entry.ID), toLedgerEntryDoc(entry)); err != nil {
				return err
			}
		}
		for accountID := range touched {
			if err := tx.Set(r.client.Collection(walletsCollection).Doc(accountID), toWalletDoc(wallets[accountID])); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, mapError(err, "Ledger")
	}
	return result, nil
}

func (r *firestoreLedgerRepository) ListByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*entity.LedgerEntry, error) {
	query := r.client.Collection(ledgerCollection).
		Where("accountId", "==", accountID).
		OrderBy("sequence", firestore.Desc).
		Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}
	return r.collect(ctx, query)
}

func (r *firestoreLedgerRepository) AllByAccountID(ctx context.Context, accountID string) ([]*entity.LedgerEntry, error) {
	query := r.client.Collection(ledgerCollection).
		Where("accountId", "==", accountID).
		OrderBy("sequence", firestore.Asc)
	return r.collect(ctx, query)
}

func (r *firestoreLedgerRepository) collect(ctx context.Context, query firestore.Query) ([]*entity.LedgerEntry, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	var entries []*entity.LedgerEntry
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, mapError(err, "Ledger entry")
		}
		e, err := decodeLedgerEntry(snap)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

type firestoreWalletRepository struct {
	client *firestore.Client
}

func NewFirestoreWalletRepository(client *firestore.Client) repository.WalletRepository {
	return &firestoreWalletRepository{
		client: client,
	}
}

func (r *firestoreWalletRepository) GetByAccountID(ctx context.Context, accountID string) (*entity.Wallet, error) {
	snap, err := r.client.Collection(walletsCollection).Doc(accountID).Get(ctx)
	if err != nil {
		return nil, mapError(err, "Wallet")
	}
	return decodeWallet(snap)
}

func (r *firestoreWalletRepository) Mutate(ctx context.Context, accountID string, now time.Time, fn repository.WalletMutation) (*entity.Wallet, error) {
	ref := r.client.Collection(walletsCollection).Doc(accountID)
	var result *entity.Wallet

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		wallet, err := readWallet(tx, ref, accountID, now)
		if err != nil {
			return err
		}

		if err := fn(wallet); err != nil {
			if stderrors.Is(err, repository.ErrSkipWrite) {
				result = wallet
				return nil
			}
			return err
		}

		result = wallet
		return tx.Set(ref, toWalletDoc(wallet))
	})
	if err != nil {
		return nil, mapError(err, "Wallet")
	}
	return result, nil
}
