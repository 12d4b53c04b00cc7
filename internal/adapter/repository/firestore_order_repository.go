package repository

import (
	"context"
	stderrors "errors"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"pasarmarket/internal/domain/entity"
	"pasarmarket/internal/domain/repository"
	"pasarmarket/pkg/errors"
)

type orderDoc struct {
	ID                 string    `firestore:"id"`
	ListingID          string    `firestore:"listingId"`
	BuyerID            string    `firestore:"buyerId"`
	SellerID           string    `firestore:"sellerId"`
	Quantity           int       `firestore:"quantity"`
	UnitPrice          string    `firestore:"unitPrice"`
	TotalAmount        string    `firestore:"totalAmount"`
	PaymentMethod      string    `firestore:"paymentMethod"`
	PaymentReference   string    `firestore:"paymentReference"`
	Status             string    `firestore:"status"`
	CancellationReason string    `firestore:"cancellationReason"`
	CancelledBy        string    `firestore:"cancelledBy"`
	Version            int64     `firestore:"version"`
	CreatedAt          time.Time `firestore:"createdAt"`
	UpdatedAt          time.Time `firestore:"updatedAt"`
	CompletedAt        time.Time `firestore:"completedAt"`
	CancelledAt        time.Time `firestore:"cancelledAt"`
}

func toOrderDoc(o *entity.Order) *orderDoc {
	return &orderDoc{
		ID:                 o.ID,
		ListingID:          o.ListingID,
		BuyerID:            o.BuyerID,
		SellerID:           o.SellerID,
		Quantity:           o.Quantity,
		UnitPrice:          money(o.UnitPrice),
		TotalAmount:        money(o.TotalAmount),
		PaymentMethod:      o.PaymentMethod,
		PaymentReference:   o.PaymentReference,
		Status:             string(o.Status),
		CancellationReason: o.CancellationReason,
		CancelledBy:        o.CancelledBy,
		Version:            o.Version,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
		CompletedAt:        timeVal(o.CompletedAt),
		CancelledAt:        timeVal(o.CancelledAt),
	}
}

func (d *orderDoc) toEntity() (*entity.Order, error) {
	var err error
	o := &entity.Order{
		ID:                 d.ID,
		ListingID:          d.ListingID,
		BuyerID:            d.BuyerID,
		SellerID:           d.SellerID,
		Quantity:           d.Quantity,
		UnitPrice:          mustMoney(d.UnitPrice, &err),
		TotalAmount:        mustMoney(d.TotalAmount, &err),
		PaymentMethod:      d.PaymentMethod,
		PaymentReference:   d.PaymentReference,
		Status:             entity.OrderStatus(d.Status),
		CancellationReason: d.CancellationReason,
		CancelledBy:        d.CancelledBy,
		Version:            d.Version,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
		CompletedAt:        timePtr(d.CompletedAt),
		CancelledAt:        timePtr(d.CancelledAt),
	}
	return o, err
}

func decodeOrder(snap *firestore.DocumentSnapshot) (*entity.Order, error) {
	var doc orderDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, errors.Internal("Failed to parse order data", err)
	}
	o, err := doc.toEntity()
	if err != nil {
		return nil, errors.Internal("Failed to parse order amounts", err)
	}
	return o, nil
}

type firestoreOrderRepository struct {
	client *firestore.Client
}

func NewFirestoreOrderRepository(client *firestore.Client) repository.OrderRepository {
	return &firestoreOrderRepository{
		client: client,
	}
}

func (r *firestoreOrderRepository) Create(ctx context.Context, order *entity.Order) error {
	_, err := r.client.Collection(ordersCollection).Doc(order.ID).Create(ctx, toOrderDoc(order))
	return mapError(err, "Order")
}

func (r *firestoreOrderRepository) GetByID(ctx context.Context, id string) (*entity.Order, error) {
	snap, err := r.client.Collection(ordersCollection).Doc(id).Get(ctx)
	if err != nil {
		return nil, mapError(err, "Order")
	}
	return decodeOrder(snap)
}

func (r *firestoreOrderRepository) Mutate(ctx context.Context, id string, fn repository.OrderMutation) (*entity.Order, error) {
	ref := r.client.Collection(ordersCollection).Doc(id)
	var result *entity.Order

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		order, err := decodeOrder(snap)
		if err != nil {
			return err
		}

		if err := fn(order); err != nil {
			if stderrors.Is(err, repository.ErrSkipWrite) {
				result = order
				return nil
			}
			return err
		}

		order.Version++
		result = order
		return tx.Set(ref, toOrderDoc(order))
	})
	if err != nil {
		return nil, mapError(err, "Order")
	}
	return result, nil
}

func (r *firestoreOrderRepository) ListByUserID(ctx context.Context, userID, role string, limit, offset int) ([]*entity.Order, int64, error) {
	fields := []string{"buyerId", "sellerId"}
	switch role {
	case repository.RoleBuyer:
		fields = []string{"buyerId"}
	case repository.RoleSeller:
		fields = []string{"sellerId"}
	}

	seen := make(map[string]bool)
	var orders []*entity.Order
	for _, field := range fields {
		iter := r.client.Collection(ordersCollection).Where(field, "==", userID).Documents(ctx)
		for {
			snap, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				iter.Stop()
				return nil, 0, mapError(err, "Order")
			}
			o, err := decodeOrder(snap)
			if err != nil {
				iter.Stop()
				return nil, 0, err
			}
			if !seen[o.ID] {
				seen[o.ID] = true
				orders = append(orders, o)
			}
		}
		iter.Stop()
	}

	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})

	start, end := paginate(len(orders), limit, offset)
	return orders[start:end], int64(len(orders)), nil
}
