package usecase

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pasarmarket/internal/domain/entity"
	"pasarmarket/internal/domain/repository"
	"pasarmarket/internal/domain/service"
	"pasarmarket/pkg/clock"
	"pasarmarket/pkg/errors"
	"pasarmarket/pkg/logger"
)

type OrderUseCase struct {
	orderRepo repository.OrderRepository
	listings  *ListingUseCase
	escrow    *EscrowUseCase
	payments  service.PaymentGateway
	notifier  service.Notifier
	clock     clock.Clock
	storage   StoragePolicy
}

func NewOrderUseCase(
	orderRepo repository.OrderRepository,
	listings *ListingUseCase,
	escrow *EscrowUseCase,
	payments service.PaymentGateway,
	notifier service.Notifier,
	clk clock.Clock,
	storage StoragePolicy,
) *OrderUseCase {
	if notifier == nil {
		notifier = service.NopNotifier{}
	}
	return &OrderUseCase{
		orderRepo: orderRepo,
		listings:  listings,
		escrow:    escrow,
		payments:  payments,
		notifier:  notifier,
		clock:     clk,
		storage:   storage,
	}
}

type CreateOrderInput struct {
	ListingID     string `json:"listing_id"`
	Quantity      int    `json:"quantity" validate:"required,min=1"`
	PaymentMethod string `json:"payment_method" validate:"required"`
}

type CancelOrderInput struct {
	Reason string `json:"reason" validate:"max=500"`
}

// OrderDetail pairs an order with its escrow session.
type OrderDetail struct {
	Order  *entity.Order         `json:"order"`
	Escrow *entity.EscrowSession `json:"escrow,omitempty"`
}

func (uc *OrderUseCase) CreateOrder(ctx context.Context, buyerID string, input CreateOrderInput) (*OrderDetail, error) {
	if input.Quantity <= 0 {
		return nil, errors.InvalidArgument("Quantity must be greater than zero", nil)
	}
	if strings.TrimSpace(input.PaymentMethod) == "" {
		return nil, errors.InvalidArgument("Payment method is required", nil)
	}

	listing, err := uc.listings.GetListing(ctx, input.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.SellerID == buyerID {
		return nil, errors.InvalidArgument("You cannot buy your own listing", nil)
	}

	orderID := uuid.New().String()
	token, err := uc.listings.ReserveQuantity(ctx, listing.ID, orderID, input.Quantity)
	if err != nil {
		return nil, err
	}

	now := uc.clock.Now()
	order := &entity.Order{
		ID:            orderID,
		ListingID:     listing.ID,
		BuyerID:       buyerID,
		SellerID:      token.SellerID,
		Quantity:      token.Quantity,
		UnitPrice:     token.UnitPrice,
		TotalAmount:   token.UnitPrice.Mul(decimal.NewFromInt(int64(token.Quantity))),
		PaymentMethod: input.PaymentMethod,
		Status:        entity.OrderStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = uc.storage.create(ctx, "create order", func(ctx context.Context) error {
		return uc.orderRepo.Create(ctx, order)
	})
	if err != nil {
		uc.releaseQuietly(ctx, *token)
		return nil, err
	}

	capture, err := uc.payments.Capture(ctx, service.CaptureRequest{
		OrderID: order.ID,
		BuyerID: buyerID,
		Amount:  order.TotalAmount,
		Method:  order.PaymentMethod,
	})
	if err != nil {
		logger.Warn("Payment capture failed for order %s: %v", order.ID, err)
		uc.releaseQuietly(ctx, *token)
		uc.markCancelled(ctx, order.ID, "payment failed", buyerID)
		return nil, errors.PaymentFailed("Payment could not be captured", err)
	}

	funded, err := uc.mutate(ctx, "await escrow", order.ID, func(o *entity.Order) error {
		o.PaymentReference = capture.Reference
		o.Status = entity.OrderStatusAwaitingEscrow
		o.UpdatedAt = uc.clock.Now()
		return nil
	})
	if err != nil {
		uc.compensate(ctx, order, *token, capture.Reference)
		return nil, err
	}
	order = funded

	session, err := uc.escrow.OpenSession(ctx, order)
	if err != nil {
		uc.compensate(ctx, order, *token, capture.Reference)
		return nil, err
	}

	logger.Info("Order %s created: buyer %s, listing %s, qty %d, total %s", order.ID, buyerID, listing.ID, order.Quantity, order.TotalAmount.StringFixed(2))
	uc.notify(ctx, service.EventOrderCreated, order)
	return &OrderDetail{Order: order, Escrow: session}, nil
}

// compensate undoes a half-created order after its payment was captured.
func (uc *OrderUseCase) compensate(ctx context.Context, order *entity.Order, token entity.ReservationToken, reference string) {
	uc.releaseQuietly(ctx, token)
	if err := uc.payments.Refund(ctx, reference, order.TotalAmount, "order creation failed"); err != nil {
		logger.Error("Refund of %s for failed order %s did not go through: %v", reference, order.ID, err)
	}
	uc.markCancelled(ctx, order.ID, "order creation failed", order.BuyerID)
}

func (uc *OrderUseCase) releaseQuietly(ctx context.Context, token entity.ReservationToken) {
	if err := uc.listings.ReleaseReservation(ctx, token); err != nil {
		logger.Error("Failed to release reservation of %d on listing %s for order %s: %v", token.Quantity, token.ListingID, token.OrderID, err)
	}
}

func (uc *OrderUseCase) markCancelled(ctx context.Context, orderID, reason, actorID string) {
	_, err := uc.mutate(ctx, "cancel order", orderID, func(o *entity.Order) error {
		if o.Status == entity.OrderStatusCancelled {
			return repository.ErrSkipWrite
		}
		now := uc.clock.Now()
		o.Status = entity.OrderStatusCancelled
		o.CancellationReason = reason
		o.CancelledBy = actorID
		o.CancelledAt = &now
		o.UpdatedAt = now
		return nil
	})
	if err != nil {
		logger.Error("Failed to mark order %s cancelled: %v", orderID, err)
	}
}

// CancelOrder is allowed only while escrow is still Open. The escrow write is
// conditional, so cancel can never race a confirmation into settlement.
func (uc *OrderUseCase) CancelOrder(ctx context.Context, orderID, actorID string, input CancelOrderInput) (*OrderDetail, error) {
	order, err := uc.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsParty(actorID) {
		return nil, errors.PermissionDenied("Only the buyer or seller can cancel this order")
	}
	if order.Status == entity.OrderStatusCancelled {
		session, _ := uc.escrow.GetSession(ctx, orderID)
		return &OrderDetail{Order: order, Escrow: session}, nil
	}
	if order.Status == entity.OrderStatusCompleted {
		return nil, errors.InvalidState("Completed orders cannot be cancelled")
	}

	session, _, err := uc.escrow.CancelSession(ctx, orderID, actorID)
	if err != nil {
		return nil, err
	}

	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		reason = "cancelled by " + actorRole(order, actorID)
	}

	cancelledNow := false
	order, err = uc.mutate(ctx, "cancel order", orderID, func(o *entity.Order) error {
		cancelledNow = false
		if o.Status == entity.OrderStatusCancelled {
			return repository.ErrSkipWrite
		}
		now := uc.clock.Now()
		o.Status = entity.OrderStatusCancelled
		o.CancellationReason = reason
		o.CancelledBy = actorID
		o.CancelledAt = &now
		o.UpdatedAt = now
		cancelledNow = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if cancelledNow {
		uc.releaseQuietly(ctx, order.Reservation())
		if order.PaymentReference != "" {
			if err := uc.payments.Refund(ctx, order.PaymentReference, order.TotalAmount, reason); err != nil {
				logger.Error("Refund for cancelled order %s failed: %v", order.ID, err)
			}
		}
		logger.Info("Order %s cancelled by %s: %s", order.ID, actorID, reason)
		uc.notify(ctx, service.EventOrderCancelled, order)
	}

	return &OrderDetail{Order: order, Escrow: session}, nil
}

func (uc *OrderUseCase) GetOrder(ctx context.Context, orderID, actorID string) (*OrderDetail, error) {
	order, err := uc.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsParty(actorID) {
		return nil, errors.PermissionDenied("Only the buyer or seller can view this order")
	}

	detail := &OrderDetail{Order: order}
	session, err := uc.escrow.GetSession(ctx, orderID)
	if err != nil && !errors.Is(err, errors.CodeNotFound) {
		return nil, err
	}
	detail.Escrow = session
	return detail, nil
}

func (uc *OrderUseCase) ListOrders(ctx context.Context, actorID, role string, page, pageSize int) ([]*entity.Order, int64, error) {
	switch role {
	case "", repository.RoleBuyer, repository.RoleSeller:
	default:
		return nil, 0, errors.InvalidArgument("role must be buyer or seller", nil)
	}
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	var orders []*entity.Order
	var total int64
	err := uc.storage.run(ctx, "list orders", func(ctx context.Context) error {
		var err error
		orders, total, err = uc.orderRepo.ListByUserID(ctx, actorID, role, pageSize, (page-1)*pageSize)
		return err
	})
	return orders, total, err
}

func (uc *OrderUseCase) getOrder(ctx context.Context, orderID string) (*entity.Order, error) {
	var order *entity.Order
	err := uc.storage.run(ctx, "get order", func(ctx context.Context) error {
		var err error
		order, err = uc.orderRepo.GetByID(ctx, orderID)
		return err
	})
	return order, err
}

func (uc *OrderUseCase) mutate(ctx context.Context, op, orderID string, fn repository.OrderMutation) (*entity.Order, error) {
	var order *entity.Order
	err := uc.storage.run(ctx, op, func(ctx context.Context) error {
		var err error
		order, err = uc.orderRepo.Mutate(ctx, orderID, fn)
		return err
	})
	return order, err
}

func (uc *OrderUseCase) notify(ctx context.Context, eventType service.EventType, order *entity.Order) {
	event := service.Event{
		Type:       eventType,
		OrderID:    order.ID,
		Recipients: []string{order.BuyerID, order.SellerID},
		Data: map[string]interface{}{
			"status":       order.Status,
			"listing_id":   order.ListingID,
			"quantity":     order.Quantity,
			"total_amount": order.TotalAmount.StringFixed(2),
		},
		OccurredAt: uc.clock.Now(),
	}
	if err := uc.notifier.Notify(ctx, event); err != nil {
		logger.Warn("Notification %s for order %s dropped: %v", eventType, order.ID, err)
	}
}

func actorRole(order *entity.Order, actorID string) string {
	if actorID == order.SellerID {
		return repository.RoleSeller
	}
	return repository.RoleBuyer
}
