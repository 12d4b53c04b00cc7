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

type escrowDoc struct {
	ID                  string    `firestore:"id"`
	OrderID             string    `firestore:"orderId"`
	BuyerID             string    `firestore:"buyerId"`
	SellerID            string    `firestore:"sellerId"`
	TotalAmount         string    `firestore:"totalAmount"`
	FeeRate             string    `firestore:"feeRate"`
	PlatformFee         string    `firestore:"platformFee"`
	SellerNet           string    `firestore:"sellerNet"`
	State               string    `firestore:"state"`
	SellerTransferredAt time.Time `firestore:"sellerTransferredAt"`
	BuyerReceivedAt     time.Time `firestore:"buyerReceivedAt"`
	BuyerAutoConfirmed  bool      `firestore:"buyerAutoConfirmed"`
	AutoConfirmAt       time.Time `firestore:"autoConfirmAt"`
	CompletedAt         time.Time `firestore:"completedAt"`
	SettlementPosted    bool      `firestore:"settlementPosted"`
	DisputeReason       string    `firestore:"disputeReason"`
	DisputedBy          string    `firestore:"disputedBy"`
	Version             int64     `firestore:"version"`
	CreatedAt           time.Time `firestore:"createdAt"`
	UpdatedAt           time.Time `firestore:"updatedAt"`
}

func toEscrowDoc(s *entity.EscrowSession) *escrowDoc {
	return &escrowDoc{
		ID:                  s.ID,
		OrderID:             s.OrderID,
		BuyerID:             s.BuyerID,
		SellerID:            s.SellerID,
		TotalAmount:         money(s.TotalAmount),
		FeeRate:             money(s.FeeRate),
		PlatformFee:         money(s.PlatformFee),
		SellerNet:           money(s.SellerNet),
		State:               string(s.State),
		SellerTransferredAt: timeVal(s.SellerTransferredAt),
		BuyerReceivedAt:     timeVal(s.BuyerReceivedAt),
		BuyerAutoConfirmed:  s.BuyerAutoConfirmed,
		AutoConfirmAt:       timeVal(s.AutoConfirmAt),
		CompletedAt:         timeVal(s.CompletedAt),
		SettlementPosted:    s.SettlementPosted,
		DisputeReason:       s.DisputeReason,
		DisputedBy:          s.DisputedBy,
		Version:             s.Version,
		CreatedAt:           s.CreatedAt,
		UpdatedAt:           s.UpdatedAt,
	}
}

func (d *escrowDoc) toEntity() (*entity.EscrowSession, error) {
	var err error
	s := &entity.EscrowSession{
		ID:                  d.ID,
		OrderID:             d.OrderID,
		BuyerID:             d.BuyerID,
		SellerID:            d.SellerID,
		TotalAmount:         mustMoney(d.TotalAmount, &err),
		FeeRate:             mustMoney(d.FeeRate, &err),
		PlatformFee:         mustMoney(d.PlatformFee, &err),
		SellerNet:           mustMoney(d.SellerNet, &err),
		State:               entity.EscrowState(d.State),
		SellerTransferredAt: timePtr(d.SellerTransferredAt),
		BuyerReceivedAt:     timePtr(d.BuyerReceivedAt),
		BuyerAutoConfirmed:  d.BuyerAutoConfirmed,
		AutoConfirmAt:       timePtr(d.AutoConfirmAt),
		CompletedAt:         timePtr(d.CompletedAt),
		SettlementPosted:    d.SettlementPosted,
		DisputeReason:       d.DisputeReason,
		DisputedBy:          d.DisputedBy,
		Version:             d.Version,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
	return s, err
}

func decodeEscrow(snap *firestore.DocumentSnapshot) (*entity.EscrowSession, error) {
	var doc escrowDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, errors.Internal("Failed to parse escrow session", err)
	}
	s, err := doc.toEntity()
	if err != nil {
		return nil, errors.Internal("Failed to parse escrow amounts", err)
	}
	return s, nil
}

type escrowEventDoc struct {
	ID        string    `firestore:"id"`
	OrderID   string    `firestore:"orderId"`
	From      string    `firestore:"from"`
	To        string    `firestore:"to"`
	ActorID   string    `firestore:"actorId"`
	Note      string    `firestore:"note"`
	CreatedAt time.Time `firestore:"createdAt"`
}

type firestoreEscrowRepository struct {
	client *firestore.Client
}

func NewFirestoreEscrowRepository(client *firestore.Client) repository.EscrowRepository {
	return &firestoreEscrowRepository{
		client: client,
	}
}

func (r *firestoreEscrowRepository) Create(ctx context.Context, session *entity.EscrowSession) error {
	_, err := r.client.Collection(escrowCollection).Doc(session.OrderID).Create(ctx, toEscrowDoc(session))
	return mapError(err, "Escrow session")
}

func (r *firestoreEscrowRepository) GetByOrderID(ctx context.Context, orderID string) (*entity.EscrowSession, error) {
	snap, err := r.client.Collection(escrowCollection).Doc(orderID).Get(ctx)
	if err != nil {
		return nil, mapError(err, "Escrow session")
	}
	return decodeEscrow(snap)
}

func (r *firestoreEscrowRepository) Mutate(ctx context.Context, orderID string, fn repository.EscrowMutation) (*entity.EscrowSession, error) {
	ref := r.client.Collection(escrowCollection).Doc(orderID)
	var result *entity.EscrowSession

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		session, err := decodeEscrow(snap)
		if err != nil {
			return err
		}

		if err := fn(session); err != nil {
			if stderrors.Is(err, repository.ErrSkipWrite) {
				result = session
				return nil
			}
			return err
		}

		session.Version++
		result = session
		return tx.Set(ref, toEscrowDoc(session))
	})
	if err != nil {
		return nil, mapError(err, "Escrow session")
	}
	return result, nil
}

func (r *firestoreEscrowRepository) ListAutoConfirmDue(ctx context.Context, now time.Time, limit int) ([]*entity.EscrowSession, error) {
	query := r.client.Collection(escrowCollection).
		Where("state", "==", string(entity.EscrowStateSellerConfirmed)).
		Where("autoConfirmAt", "<=", now).
		OrderBy("autoConfirmAt", firestore.Asc).
		Limit(limit)
	return r.collect(ctx, query)
}

func (r *firestoreEscrowRepository) ListUnposted(ctx context.Context, limit int) ([]*entity.EscrowSession, error) {
	query := r.client.Collection(escrowCollection).
		Where("state", "==", string(entity.EscrowStateSettled)).
		Where("settlementPosted", "==", false).
		Limit(limit)
	return r.collect(ctx, query)
}

func (r *firestoreEscrowRepository) collect(ctx context.Context, query firestore.Query) ([]*entity.EscrowSession, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	var sessions []*entity.EscrowSession
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, mapError(err, "Escrow session")
		}
		s, err := decodeEscrow(snap)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func (r *firestoreEscrowRepository) AppendEvent(ctx context.Context, event *entity.EscrowEvent) error {
	doc := &escrowEventDoc{
		ID:        event.ID,
		OrderID:   event.OrderID,
		From:      string(event.From),
		To:        string(event.To),
		ActorID:   event.ActorID,
		Note:      event.Note,
		CreatedAt: event.CreatedAt,
	}
	_, err := r.client.Collection(escrowCollection).Doc(event.OrderID).
		Collection(escrowEventsCollection).Doc(event.ID).Set(ctx, doc)
	return mapError(err, "Escrow event")
}

func (r *firestoreEscrowRepository) ListEvents(ctx context.Context, orderID string) ([]*entity.EscrowEvent, error) {
	iter := r.client.Collection(escrowCollection).Doc(orderID).
		Collection(escrowEventsCollection).OrderBy("createdAt", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var events []*entity.EscrowEvent
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, mapError(err, "Escrow event")
		}
		var doc escrowEventDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, errors.Internal("Failed to parse escrow event", err)
		}
		events = append(events, &entity.EscrowEvent{
			ID:        doc.ID,
			OrderID:   doc.OrderID,
			From:      entity.EscrowState(doc.From),
			To:        entity.EscrowState(doc.To),
			ActorID:   doc.ActorID,
			Note:      doc.Note,
			CreatedAt: doc.CreatedAt,
		})
	}
	return events, nil
}
