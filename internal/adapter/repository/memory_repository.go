package repository

import (
	"context"
	"sort"
	"time"

	"pasarmarket/internal/domain/entity"
	"pasarmarket/internal/domain/repository"
	"pasarmarket/pkg/errors"
)

// In-memory repositories back local runs and tests. They keep the same
// atomicity guarantees as the Firestore adapters.

type memoryListingRepository struct {
	table *memoryTable[*entity.Listing]
}

func NewMemoryListingRepository() repository.ListingRepository {
	return &memoryListingRepository{
		table: newMemoryTable((*entity.Listing).Clone),
	}
}

func (r *memoryListingRepository) Create(ctx context.Context, listing *entity.Listing) error {
	if !r.table.insert(listing.ID, listing) {
		return errors.AlreadyExists("Listing", nil)
	}
	return nil
}

func (r *memoryListingRepository) GetByID(ctx context.Context, id string) (*entity.Listing, error) {
	l, ok := r.table.get(id)
	if !ok {
		return nil, errors.NotFound("Listing", nil)
	}
	return l, nil
}

func (r *memoryListingRepository) List(ctx context.Context, filter repository.ListingFilter, limit, offset int) ([]*entity.Listing, int64, error) {
	matched := r.table.scan(filter.Matches)
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	start, end := paginate(len(matched), limit, offset)
	return matched[start:end], int64(len(matched)), nil
}

func (r *memoryListingRepository) Mutate(ctx context.Context, id string, fn repository.ListingMutation) (*entity.Listing, error) {
	l, found, err := r.table.mutate(id, func(l *entity.Listing) error {
		if err := fn(l); err != nil {
			return err
		}
		l.Version++
		return nil
	})
	if !found {
		return nil, errors.NotFound("Listing", nil)
	}
	return l, err
}

type memoryOrderRepository struct {
	table *memoryTable[*entity.Order]
}

func NewMemoryOrderRepository() repository.OrderRepository {
	return &memoryOrderRepository{
		table: newMemoryTable(func(o *entity.Order) *entity.Order { c := *o; return &c }),
	}
}

func (r *memoryOrderRepository) Create(ctx context.Context, order *entity.Order) error {
	if !r.table.insert(order.ID, order) {
		return errors.AlreadyExists("Order", nil)
	}
	return nil
}

func (r *memoryOrderRepository) GetByID(ctx context.Context, id string) (*entity.Order, error) {
	o, ok := r.table.get(id)
	if !ok {
		return nil, errors.NotFound("Order", nil)
	}
	return o, nil
}

func (r *memoryOrderRepository) Mutate(ctx context.Context, id string, fn repository.OrderMutation) (*entity.Order, error) {
	o, found, err := r.table.mutate(id, func(o *entity.Order) error {
		if err := fn(o); err != nil {
			return err
		}
		o.Version++
		return nil
	})
	if !found {
		return nil, errors.NotFound("Order", nil)
	}
	return o, err
}

func (r *memoryOrderRepository) ListByUserID(ctx context.Context, userID, role string, limit, offset int) ([]*entity.Order, int64, error) {
	orders := r.table.scan(func(o *entity.Order) bool {
		switch role {
		case repository.RoleBuyer:
			return o.BuyerID == userID
		case repository.RoleSeller:
			return o.SellerID == userID
		default:
			return o.IsParty(userID)
		}
	})
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	start, end := paginate(len(orders), limit, offset)
	return orders[start:end], int64(len(orders)), nil
}

type memoryEscrowRepository struct {
	table  *memoryTable[*entity.EscrowSession]
	events *memoryTable[*entity.EscrowEvent]
}

func NewMemoryEscrowRepository() repository.EscrowRepository {
	return &memoryEscrowRepository{
		table:  newMemoryTable(func(s *entity.EscrowSession) *entity.EscrowSession { c := *s; return &c }),
		events: newMemoryTable(func(e *entity.EscrowEvent) *entity.EscrowEvent { c := *e; return &c }),
	}
}

func (r *memoryEscrowRepository) Create(ctx context.Context, session *entity.EscrowSession) error {
	if !r.table.insert(session.OrderID, session) {
		return errors.AlreadyExists("Escrow session", nil)
	}
	return nil
}

func (r *memoryEscrowRepository) GetByOrderID(ctx context.Context, orderID string) (*entity.EscrowSession, error) {
	s, ok := r.table.get(orderID)
	if !ok {
		return nil, errors.NotFound("Escrow session", nil)
	}
	return s, nil
}

func (r *memoryEscrowRepository) Mutate(ctx context.Context, orderID string, fn repository.EscrowMutation) (*entity.EscrowSession, error) {
	s, found, err := r.table.mutate(orderID, func(s *entity.EscrowSession) error {
		if err := fn(s); err != nil {
			return err
		}
		s.Version++
		return nil
	})
	if !found {
		return nil, errors.NotFound("Escrow session", nil)
	}
	return s, err
}

func (r *memoryEscrowRepository) ListAutoConfirmDue(ctx context.Context, now time.Time, limit int) ([]*entity.EscrowSession, error) {
	due := r.table.scan(func(s *entity.EscrowSession) bool {
		return s.State == entity.EscrowStateSellerConfirmed && s.AutoConfirmAt != nil && !s.AutoConfirmAt.After(now)
	})
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].AutoConfirmAt.Before(*due[j].AutoConfirmAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *memoryEscrowRepository) ListUnposted(ctx context.Context, limit int) ([]*entity.EscrowSession, error) {
	unposted := r.table.scan(func(s *entity.EscrowSession) bool {
		return s.State == entity.EscrowStateSettled && !s.SettlementPosted
	})
	if limit > 0 && len(unposted) > limit {
		unposted = unposted[:limit]
	}
	return unposted, nil
}

func (r *memoryEscrowRepository) AppendEvent(ctx context.Context, event *entity.EscrowEvent) error {
	r.events.insert(event.ID, event)
	return nil
}

func (r *memoryEscrowRepository) ListEvents(ctx context.Context, orderID string) ([]*entity.EscrowEvent, error) {
	return r.events.scan(func(e *entity.EscrowEvent) bool { return e.OrderID == orderID }), nil
}

type memoryWithdrawalRepository struct {
	table *memoryTable[*entity.Withdrawal]
}

func NewMemoryWithdrawalRepository() repository.WithdrawalRepository {
	return &memoryWithdrawalRepository{
		table: newMemoryTable(func(w *entity.Withdrawal) *entity.Withdrawal { c := *w; return &c }),
	}
}

func (r *memoryWithdrawalRepository) Create(ctx context.Context, withdrawal *entity.Withdrawal) error {
	if !r.table.insert(withdrawal.ID, withdrawal) {
		return errors.AlreadyExists("Withdrawal", nil)
	}
	return nil
}

func (r *memoryWithdrawalRepository) GetByID(ctx context.Context, id string) (*entity.Withdrawal, error) {
	w, ok := r.table.get(id)
	if !ok {
		return nil, errors.NotFound("Withdrawal", nil)
	}
	return w, nil
}

func (r *memoryWithdrawalRepository) Mutate(ctx context.Context, id string, fn repository.WithdrawalMutation) (*entity.Withdrawal, error) {
	w, found, err := r.table.mutate(id, func(w *entity.Withdrawal) error { return fn(w) })
	if !found {
		return nil, errors.NotFound("Withdrawal", nil)
	}
	return w, err
}

func (r *memoryWithdrawalRepository) ListByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*entity.Withdrawal, error) {
	out := r.table.scan(func(w *entity.Withdrawal) bool { return w.AccountID == accountID })
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	start, end := paginate(len(out), limit, offset)
	return out[start:end], nil
}

type memoryReviewRepository struct {
	table *memoryTable[*entity.Review]
}

func NewMemoryReviewRepository() repository.ReviewRepository {
	return &memoryReviewRepository{
		table: newMemoryTable(func(r *entity.Review) *entity.Review { c := *r; return &c }),
	}
}

func (r *memoryReviewRepository) Create(ctx context.Context, review *entity.Review) error {
	if !r.table.insert(review.OrderID, review) {
		return errors.DuplicateReview("Order has already been reviewed")
	}
	return nil
}

func (r *memoryReviewRepository) GetByOrderID(ctx context.Context, orderID string) (*entity.Review, error) {
	review, ok := r.table.get(orderID)
	if !ok {
		return nil, errors.NotFound("Review", nil)
	}
	return review, nil
}
