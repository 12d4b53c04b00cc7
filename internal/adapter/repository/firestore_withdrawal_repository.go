package repository

import (
	"context"
	stderrors "errors"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"pasarmarket/internal/domain/entity"
	"pasarmarket/internal/domain/repository"
	"pasarmarket/pkg/errors"
)

type withdrawalDoc struct {
	ID          string    `firestore:"id"`
	AccountID   string    `firestore:"accountId"`
	Amount      string    `firestore:"amount"`
	Status      string    `firestore:"status"`
	Reason      string    `firestore:"reason"`
	ProcessedBy string    `firestore:"processedBy"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
	ProcessedAt time.Time `firestore:"processedAt"`
}

func toWithdrawalDoc(w *entity.Withdrawal) *withdrawalDoc {
	return &withdrawalDoc{
		ID:          w.ID,
		AccountID:   w.AccountID,
		Amount:      money(w.Amount),
		Status:      string(w.Status),
		Reason:      w.Reason,
		ProcessedBy: w.ProcessedBy,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
		ProcessedAt: timeVal(w.ProcessedAt),
	}
}

func decodeWithdrawal(snap *firestore.DocumentSnapshot) (*entity.Withdrawal, error) {
	var doc withdrawalDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, errors.Internal("Failed to parse withdrawal", err)
	}
	amount, err := parseMoney(doc.Amount)
	if err != nil {
		return nil, errors.Internal("Failed to parse withdrawal amount", err)
	}
	return &entity.Withdrawal{
		ID:          doc.ID,
		AccountID:   doc.AccountID,
		Amount:      amount,
		Status:      entity.WithdrawalStatus(doc.Status),
		Reason:      doc.Reason,
		ProcessedBy: doc.ProcessedBy,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
		ProcessedAt: timePtr(doc.ProcessedAt),
	}, nil
}

type firestoreWithdrawalRepository struct {
	client *firestore.Client
}

func NewFirestoreWithdrawalRepository(client *firestore.Client) repository.WithdrawalRepository {
	return &firestoreWithdrawalRepository{
		client: client,
	}
}

func (r *firestoreWithdrawalRepository) Create(ctx context.Context, withdrawal *entity.Withdrawal) error {
	_, err := r.client.Collection(withdrawalsCollection).Doc(withdrawal.ID).Create(ctx, toWithdrawalDoc(withdrawal))
	return mapError(err, "Withdrawal")
}

func (r *firestoreWithdrawalRepository) GetByID(ctx context.Context, id string) (*entity.Withdrawal, error) {
	snap, err := r.client.Collection(withdrawalsCollection).Doc(id).Get(ctx)
	if err != nil {
		return nil, mapError(err, "Withdrawal")
	}
	return decodeWithdrawal(snap)
}

func (r *firestoreWithdrawalRepository) Mutate(ctx context.Context, id string, fn repository.WithdrawalMutation) (*entity.Withdrawal, error) {
	ref := r.client.Collection(withdrawalsCollection).Doc(id)
	var result *entity.Withdrawal

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		withdrawal, err := decodeWithdrawal(snap)
		if err != nil {
			return err
		}

		if err := fn(withdrawal); err != nil {
			if stderrors.Is(err, repository.ErrSkipWrite) {
				result = withdrawal
				return nil
			}
			return err
		}

		result = withdrawal
		return tx.Set(ref, toWithdrawalDoc(withdrawal))
	})
	if err != nil {
		return nil, mapError(err, "Withdrawal")
	}
	return result, nil
}

func (r *firestoreWithdrawalRepository) ListByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*entity.Withdrawal, error) {
	query := r.client.Collection(withdrawalsCollection).
		Where("accountId", "==", accountID).
		OrderBy("createdAt", firestore.Desc).
		Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var withdrawals []*entity.Withdrawal
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, mapError(err, "Withdrawal")
		}
		w, err := decodeWithdrawal(snap)
		if err != nil {
			return nil, err
		}
		withdrawals = append(withdrawals, w)
	}
	return withdrawals, nil
}
