package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pasarmarket/internal/domain/entity"
	"pasarmarket/internal/domain/repository"
	"pasarmarket/internal/domain/service"
	"pasarmarket/pkg/clock"
	"pasarmarket/pkg/errors"
	"pasarmarket/pkg/logger"
)

type EscrowConfig struct {
	FeeRate           decimal.Decimal
	PlatformAccountID string
	AutoConfirmWindow time.Duration
	SweepInterval     time.Duration
	SweepBatchSize    int
}

// SweepResult counts what one sweep pass did.
type SweepResult struct {
	AutoConfirmed int `json:"auto_confirmed"`
	Reposted      int `json:"reposted"`
	Failed        int `json:"failed"`
}

// EscrowUseCase drives the per-order escrow state machine and settles
// confirmed orders into the ledger exactly once.
type EscrowUseCase struct {
	escrowRepo repository.EscrowRepository
	orderRepo  repository.OrderRepository
	listings   *ListingUseCase
	ledger     *LedgerUseCase
	notifier   service.Notifier
	clock      clock.Clock
	storage    StoragePolicy
	config     EscrowConfig
}

func NewEscrowUseCase(
	escrowRepo repository.EscrowRepository,
	orderRepo repository.OrderRepository,
	listings *ListingUseCase,
	ledger *LedgerUseCase,
	notifier service.Notifier,
	clk clock.Clock,
	storage StoragePolicy,
	config EscrowConfig,
) *EscrowUseCase {
	if notifier == nil {
		notifier = service.NopNotifier{}
	}
	if config.SweepBatchSize <= 0 {
		config.SweepBatchSize = 100
	}
	return &EscrowUseCase{
		escrowRepo: escrowRepo,
		orderRepo:  orderRepo,
		listings:   listings,
		ledger:     ledger,
		notifier:   notifier,
		clock:      clk,
		storage:    storage,
		config:     config,
	}
}

// transition captures what a mutate callback changed. Callbacks may run
// more than once under Firestore contention, so it is reset on every run.
type transition struct {
	from, to entity.EscrowState
	changed  bool
}

func (t *transition) reset() { *t = transition{} }

func (t *transition) set(s *entity.EscrowSession, to entity.EscrowState) {
	t.from, t.to, t.changed = s.State, to, true
	s.State = to
}

// OpenSession starts escrow for an order whose payment has been captured.
func (uc *EscrowUseCase) OpenSession(ctx context.Context, order *entity.Order) (*entity.EscrowSession, error) {
	now := uc.clock.Now()
	session := &entity.EscrowSession{
		ID:          uuid.New().String(),
		OrderID:     order.ID,
		BuyerID:     order.BuyerID,
		SellerID:    order.SellerID,
		TotalAmount: order.TotalAmount,
		FeeRate:     uc.config.FeeRate,
		State:       entity.EscrowStateOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := uc.storage.create(ctx, "open escrow", func(ctx context.Context) error {
		return uc.escrowRepo.Create(ctx, session)
	})
	if err != nil {
		return nil, err
	}

	uc.recordEvent(ctx, order.ID, "", entity.EscrowStateOpen, order.BuyerID, "")
	return session, nil
}

func (uc *EscrowUseCase) GetSession(ctx context.Context, orderID string) (*entity.EscrowSession, error) {
	var session *entity.EscrowSession
	err := uc.storage.run(ctx, "get escrow", func(ctx context.Context) error {
		var err error
		session, err = uc.escrowRepo.GetByOrderID(ctx, orderID)
		return err
	})
	return session, err
}

func (uc *EscrowUseCase) ListEvents(ctx context.Context, orderID, actorID string) ([]*entity.EscrowEvent, error) {
	session, err := uc.GetSession(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actorID != session.BuyerID && actorID != session.SellerID {
		return nil, errors.PermissionDenied("Only the buyer or seller can view this escrow")
	}

	var events []*entity.EscrowEvent
	err = uc.storage.run(ctx, "list escrow events", func(ctx context.Context) error {
		var err error
		events, err = uc.escrowRepo.ListEvents(ctx, orderID)
		return err
	})
	return events, err
}

func (uc *EscrowUseCase) mutate(ctx context.Context, op, orderID string, fn repository.EscrowMutation) (*entity.EscrowSession, error) {
	var session *entity.EscrowSession
	err := uc.storage.run(ctx, op, func(ctx context.Context) error {
		var err error
		session, err = uc.escrowRepo.Mutate(ctx, orderID, fn)
		return err
	})
	return session, err
}

// claimSettlement moves a confirmed session into Settled and fixes the fee split.
func (uc *EscrowUseCase) claimSettlement(s *entity.EscrowSession, t *transition, now time.Time) {
	s.PlatformFee, s.SellerNet = entity.SplitFee(s.TotalAmount, s.FeeRate)
	s.CompletedAt = &now
	t.set(s, entity.EscrowStateSettled)
}

func (uc *EscrowUseCase) ConfirmBySeller(ctx context.Context, orderID, actorID string) (*entity.EscrowSession, error) {
	var t transition
	session, err := uc.mutate(ctx, "seller confirm", orderID, func(s *entity.EscrowSession) error {
		t.reset()
		if actorID != s.SellerID {
			return errors.PermissionDenied("Only the seller can confirm the transfer")
		}

		now := uc.clock.Now()
		switch s.State {
		case entity.EscrowStateSellerConfirmed, entity.EscrowStateSettled:
			return repository.ErrSkipWrite
		case entity.EscrowStateOpen:
			deadline := now.Add(uc.config.AutoConfirmWindow)
			s.SellerTransferredAt = &now
			s.AutoConfirmAt = &deadline
			t.set(s, entity.EscrowStateSellerConfirmed)
		case entity.EscrowStateBuyerConfirmed:
			s.SellerTransferredAt = &now
			uc.claimSettlement(s, &t, now)
		default:
			return errors.InvalidState("Escrow is " + string(s.State))
		}
		s.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	return uc.afterConfirm(ctx, session, t, actorID, "")
}

func (uc *EscrowUseCase) ConfirmByBuyer(ctx context.Context, orderID, actorID string) (*entity.EscrowSession, error) {
	var t transition
	session, err := uc.mutate(ctx, "buyer confirm", orderID, func(s *entity.EscrowSession) error {
		t.reset()
		if actorID != s.BuyerID {
			return errors.PermissionDenied("Only the buyer can confirm receipt")
		}

		now := uc.clock.Now()
		switch s.State {
		case entity.EscrowStateBuyerConfirmed, entity.EscrowStateSettled:
			return repository.ErrSkipWrite
		case entity.EscrowStateOpen:
			s.BuyerReceivedAt = &now
			t.set(s, entity.EscrowStateBuyerConfirmed)
		case entity.EscrowStateSellerConfirmed:
			s.BuyerReceivedAt = &now
			uc.claimSettlement(s, &t, now)
		default:
			return errors.InvalidState("Escrow is " + string(s.State))
		}
		s.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	return uc.afterConfirm(ctx, session, t, actorID, "")
}

func (uc *EscrowUseCase) afterConfirm(ctx context.Context, session *entity.EscrowSession, t transition, actorID, note string) (*entity.EscrowSession, error) {
	if t.changed {
		uc.recordEvent(ctx, session.OrderID, t.from, t.to, actorID, note)
		if t.to != entity.EscrowStateSettled {
			uc.notify(ctx, service.EventEscrowUpdated, session)
		}
	}
	if session.State == entity.EscrowStateSettled && !session.SettlementPosted {
		return uc.finishSettlement(ctx, session)
	}
	return session, nil
}

// finishSettlement posts the fee split and completes the order. Every step is
// idempotent so any caller that sees an unposted settled session may run it.
func (uc *EscrowUseCase) finishSettlement(ctx context.Context, session *entity.EscrowSession) (*entity.EscrowSession, error) {
	var postings []entity.LedgerPosting
	if session.SellerNet.IsPositive() {
		postings = append(postings, entity.LedgerPosting{
			AccountID: session.SellerID,
			Amount:    session.SellerNet,
			Bucket:    entity.BucketAvailable,
			Reason:    entity.LedgerReasonOrderSettlement,
			Reference: session.OrderID,
		})
	}
	if session.PlatformFee.IsPositive() {
		postings = append(postings, entity.LedgerPosting{
			AccountID: uc.config.PlatformAccountID,
			Amount:    session.PlatformFee,
			Bucket:    entity.BucketAvailable,
			Reason:    entity.LedgerReasonPlatformFee,
			Reference: session.OrderID,
		})
	}

	if len(postings) > 0 {
		if _, err := uc.ledger.AppendGroup(ctx, postings...); err != nil {
			logger.Error("Settlement posting failed for order %s: %v", session.OrderID, err)
			return nil, err
		}
	}

	completedNow := false
	order, err := uc.mutateOrder(ctx, "complete order", session.OrderID, func(o *entity.Order) error {
		completedNow = false
		if o.Status == entity.OrderStatusCompleted {
			return repository.ErrSkipWrite
		}
		if o.Status == entity.OrderStatusCancelled {
			return errors.InvalidState("Order was cancelled before settlement")
		}
		now := uc.clock.Now()
		o.Status = entity.OrderStatusCompleted
		o.CompletedAt = &now
		o.UpdatedAt = now
		completedNow = true
		return nil
	})
	if err != nil {
		logger.Error("Failed to complete order %s after settlement: %v", session.OrderID, err)
		return nil, err
	}

	if completedNow {
		if err := uc.listings.ConsumeReservation(ctx, order.Reservation()); err != nil {
			logger.Error("Failed to consume reservation for order %s: %v", order.ID, err)
		}
	}

	session, err = uc.mutate(ctx, "mark settlement posted", session.OrderID, func(s *entity.EscrowSession) error {
		if s.SettlementPosted {
			return repository.ErrSkipWrite
		}
		s.SettlementPosted = true
		s.UpdatedAt = uc.clock.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if completedNow {
		logger.Info("Order %s settled: seller %s +%s, platform +%s", session.OrderID, session.SellerID,
			session.SellerNet.StringFixed(2), session.PlatformFee.StringFixed(2))
		uc.notify(ctx, service.EventEscrowSettled, session)
	}
	return session, nil
}

func (uc *EscrowUseCase) mutateOrder(ctx context.Context, op, orderID string, fn repository.OrderMutation) (*entity.Order, error) {
	var order *entity.Order
	err := uc.storage.run(ctx, op, func(ctx context.Context) error {
		var err error
		order, err = uc.orderRepo.Mutate(ctx, orderID, fn)
		return err
	})
	return order, err
}

// OpenDispute freezes the session in Disputed. Resolution happens outside the engine.
func (uc *EscrowUseCase) OpenDispute(ctx context.Context, orderID, actorID, reason string) (*entity.EscrowSession, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, errors.InvalidArgument("Dispute reason is required", nil)
	}

	var t transition
	session, err := uc.mutate(ctx, "open dispute", orderID, func(s *entity.EscrowSession) error {
		t.reset()
		if actorID != s.BuyerID && actorID != s.SellerID {
			return errors.PermissionDenied("Only the buyer or seller can open a dispute")
		}
		if s.State == entity.EscrowStateDisputed {
			return repository.ErrSkipWrite
		}
		if !s.State.CanTransitionTo(entity.EscrowStateDisputed) {
			return errors.InvalidState("Escrow is " + string(s.State))
		}
		s.DisputeReason = reason
		s.DisputedBy = actorID
		s.UpdatedAt = uc.clock.Now()
		t.set(s, entity.EscrowStateDisputed)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if t.changed {
		logger.Warn("Dispute opened on order %s by %s: %s", orderID, actorID, reason)
		uc.recordEvent(ctx, orderID, t.from, t.to, actorID, reason)
		uc.notify(ctx, service.EventEscrowDisputed, session)
	}
	return session, nil
}

// CancelSession is the conditional Open -> Cancelled write. It reports
// whether this call made the transition.
func (uc *EscrowUseCase) CancelSession(ctx context.Context, orderID, actorID string) (*entity.EscrowSession, bool, error) {
	var t transition
	session, err := uc.mutate(ctx, "cancel escrow", orderID, func(s *entity.EscrowSession) error {
		t.reset()
		if s.State == entity.EscrowStateCancelled {
			return repository.ErrSkipWrite
		}
		if !s.State.CanTransitionTo(entity.EscrowStateCancelled) {
			return errors.InvalidState("Order can no longer be cancelled: escrow is " + string(s.State))
		}
		s.UpdatedAt = uc.clock.Now()
		t.set(s, entity.EscrowStateCancelled)
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if t.changed {
		uc.recordEvent(ctx, orderID, t.from, t.to, actorID, "")
	}
	return session, t.changed, nil
}

// SweepExpired auto-confirms seller-confirmed sessions whose buyer deadline
// has passed, then re-posts settled sessions left unposted by a crash.
func (uc *EscrowUseCase) SweepExpired(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	now := uc.clock.Now()

	var due []*entity.EscrowSession
	err := uc.storage.run(ctx, "list due escrows", func(ctx context.Context) error {
		var err error
		due, err = uc.escrowRepo.ListAutoConfirmDue(ctx, now, uc.config.SweepBatchSize)
		return err
	})
	if err != nil {
		return result, err
	}

	for _, candidate := range due {
		settled, err := uc.autoConfirm(ctx, candidate.OrderID, now)
		if err != nil {
			logger.Error("Auto-confirm failed for order %s: %v", candidate.OrderID, err)
			result.Failed++
			continue
		}
		if settled {
			result.AutoConfirmed++
		}
	}

	var unposted []*entity.EscrowSession
	err = uc.storage.run(ctx, "list unposted escrows", func(ctx context.Context) error {
		var err error
		unposted, err = uc.escrowRepo.ListUnposted(ctx, uc.config.SweepBatchSize)
		return err
	})
	if err != nil {
		return result, err
	}

	for _, session := range unposted {
		if _, err := uc.finishSettlement(ctx, session); err != nil {
			logger.Error("Settlement re-post failed for order %s: %v", session.OrderID, err)
			result.Failed++
			continue
		}
		logger.Warn("Re-posted settlement for order %s", session.OrderID)
		result.Reposted++
	}

	if result.AutoConfirmed > 0 || result.Reposted > 0 || result.Failed > 0 {
		logger.Info("Escrow sweep: %d auto-confirmed, %d re-posted, %d failed", result.AutoConfirmed, result.Reposted, result.Failed)
	}
	return result, nil
}

func (uc *EscrowUseCase) autoConfirm(ctx context.Context, orderID string, now time.Time) (bool, error) {
	var t transition
	session, err := uc.mutate(ctx, "auto-confirm", orderID, func(s *entity.EscrowSession) error {
		t.reset()
		if s.State != entity.EscrowStateSellerConfirmed || s.AutoConfirmAt == nil || s.AutoConfirmAt.After(now) {
			return repository.ErrSkipWrite
		}
		s.BuyerReceivedAt = &now
		s.BuyerAutoConfirmed = true
		s.UpdatedAt = now
		uc.claimSettlement(s, &t, now)
		return nil
	})
	if err != nil {
		return false, err
	}
	if !t.changed {
		return false, nil
	}

	logger.Warn("Escrow for order %s auto-confirmed: buyer silent past %s", orderID, session.AutoConfirmAt.Format(time.RFC3339))
	if _, err := uc.afterConfirm(ctx, session, t, entity.SweeperActor, entity.NoteAutoConfirmed); err != nil {
		return true, err
	}
	return true, nil
}

// RunAutoConfirmJob runs SweepExpired on a ticker and blocks until ctx is done.
func (uc *EscrowUseCase) RunAutoConfirmJob(ctx context.Context) error {
	interval := uc.config.SweepInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("Escrow auto-confirm job started (checking every %s)", interval)
	for {
		select {
		case <-ticker.C:
			if _, err := uc.SweepExpired(ctx); err != nil {
				logger.Error("Escrow sweep error: %v", err)
			}
		case <-ctx.Done():
			logger.Info("Escrow auto-confirm job stopped")
			return nil
		}
	}
}

func (uc *EscrowUseCase) recordEvent(ctx context.Context, orderID string, from, to entity.EscrowState, actorID, note string) {
	event := &entity.EscrowEvent{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		From:      from,
		To:        to,
		ActorID:   actorID,
		Note:      note,
		CreatedAt: uc.clock.Now(),
	}
	err := uc.storage.run(ctx, "append escrow event", func(ctx context.Context) error {
		return uc.escrowRepo.AppendEvent(ctx, event)
	})
	if err != nil {
		logger.Error("Failed to record escrow event %s -> %s for order %s: %v", from, to, orderID, err)
	}
}

func (uc *EscrowUseCase) notify(ctx context.Context, eventType service.EventType, session *entity.EscrowSession) {
	event := service.Event{
		Type:       eventType,
		OrderID:    session.OrderID,
		Recipients: []string{session.BuyerID, session.SellerID},
		Data: map[string]interface{}{
			"state": session.State,
		},
		OccurredAt: uc.clock.Now(),
	}
	if eventType == service.EventEscrowSettled {
		event.Data["seller_net"] = session.SellerNet.StringFixed(2)
		event.Data["platform_fee"] = session.PlatformFee.StringFixed(2)
	}
	if err := uc.notifier.Notify(ctx, event); err != nil {
		logger.Warn("Notification %s for order %s dropped: %v", eventType, session.OrderID, err)
	}
}
