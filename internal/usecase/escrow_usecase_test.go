package usecase

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"pasarmarket/internal/domain/entity"
	"pasarmarket/pkg/errors"
	"pasarmarket/pkg/logger"
)

func observeLogs(t *testing.T) *observer.ObservedLogs {
	core, logs := observer.New(zapcore.DebugLevel)
	logger.Replace(zap.New(core))
	t.Cleanup(func() { logger.Configure("test", "") })
	return logs
}

func TestSellerConfirmIsIdempotent(t *testing.T) {
	f := newFixture(t)
	l := f.listing(t, "seller", "50.00", 1)
	detail := f.order(t, "buyer", l.ID, 1)

	first, err := f.escrow.ConfirmBySeller(f.ctx, detail.Order.ID, "seller")
	require.NoError(t, err)
	assert.Equal(t, entity.EscrowStateSellerConfirmed, first.State)
	require.NotNil(t, first.AutoConfirmAt)
	assert.Equal(t, fixtureStart.Add(72*time.Hour), *first.AutoConfirmAt)

	f.clock.Advance(time.Hour)
	second, err := f.escrow.ConfirmBySeller(f.ctx, detail.Order.ID, "seller")
	require.NoError(t, err)
	assert.Equal(t, entity.EscrowStateSellerConfirmed, second.State)
	assert.Equal(t, *first.SellerTransferredAt, *second.SellerTransferredAt)

	_, err = f.escrow.ConfirmBySeller(f.ctx, detail.Order.ID, "buyer")
	assert.True(t, errors.Is(err, errors.CodePermissionDenied))

	events, err := f.escrow.ListEvents(f.ctx, detail.Order.ID, "buyer")
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestBuyerFirstThenSellerSettles(t *testing.T) {
	f := newFixture(t)
	l := f.listing(t, "seller", "0.10", 1)
	detail := f.order(t, "buyer", l.ID, 1)

	s, err := f.escrow.ConfirmByBuyer(f.ctx, detail.Order.ID, "buyer")
	require.NoError(t, err)
	assert.Equal(t, entity.EscrowStateBuyerConfirmed, s.State)

	s, err = f.escrow.ConfirmBySeller(f.ctx, detail.Order.ID, "seller")
	require.NoError(t, err)
	assert.Equal(t, entity.EscrowStateSettled, s.State)
	assert.True(t, s.PlatformFee.Add(s.SellerNet).Equal(s.TotalAmount))
	assert.NotNil(t, s.SellerTransferredAt)
	assert.NotNil(t, s.BuyerReceivedAt)

	again, err := f.escrow.ConfirmByBuyer(f.ctx, detail.Order.ID, "buyer")
	require.NoError(t, err)
	assert.Equal(t, entity.EscrowStateSettled, again.State)
}

func TestSettlementHappensExactlyOnce(t *testing.T) {
	f := newFixture(t)
	l := f.listing(t, "seller", "100.00", 3)
	detail := f.order(t, "buyer", l.ID, 2)
	orderID := detail.Order.ID

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.escrow.ConfirmBySeller(f.ctx, orderID, "seller")
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := f.escrow.ConfirmByBuyer(f.ctx, orderID, "buyer")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, "190.00", f.balance(t, "seller"))
	assert.Equal(t, "10.00", f.balance(t, "platform"))

	entries, err := f.ledger.ListEntries(f.ctx, "seller", 1, 50)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	got, _ := f.listings.GetListing(f.ctx, l.ID)
	assert.Equal(t, 0, got.ReservedQuantity)
	assert.Equal(t, 1, got.AvailableQuantity)

	for _, account := range []string{"seller", "platform"} {
		_, err := f.ledger.Reconcile(f.ctx, account)
		assert.NoError(t, err)
	}
}

func TestDisputeIsTerminal(t *testing.T) {
	f := newFixture(t)
	l := f.listing(t, "seller", "20.00", 1)
	detail := f.order(t, "buyer", l.ID, 1)

	_, err := f.escrow.OpenDispute(f.ctx, detail.Order.ID, "buyer", "")
	assert.True(t, errors.Is(err, errors.CodeInvalidArgument))

	_, err = f.escrow.OpenDispute(f.ctx, detail.Order.ID, "stranger", "fraud")
	assert.True(t, errors.Is(err, errors.CodePermissionDenied))

	s, err := f.escrow.OpenDispute(f.ctx, detail.Order.ID, "buyer", "item never arrived")
	require.NoError(t, err)
	assert.Equal(t, entity.EscrowStateDisputed, s.State)
	assert.Equal(t, "buyer", s.DisputedBy)

	again, err := f.escrow.OpenDispute(f.ctx, detail.Order.ID, "seller", "other reason")
	require.NoError(t, err)
	assert.Equal(t, "item never arrived", again.DisputeReason)

	_, err = f.escrow.ConfirmBySeller(f.ctx, detail.Order.ID, "seller")
	assert.True(t, errors.Is(err, errors.CodeInvalidState))
	_, err = f.orders.CancelOrder(f.ctx, detail.Order.ID, "buyer", CancelOrderInput{})
	assert.True(t, errors.Is(err, errors.CodeInvalidState))
}

func TestSettledCannotBeDisputed(t *testing.T) {
	f := newFixture(t)
	l := f.listing(t, "seller", "20.00", 1)
	detail := f.order(t, "buyer", l.ID, 1)
	_, err := f.escrow.ConfirmBySeller(f.ctx, detail.Order.ID, "seller")
	require.NoError(t, err)
	_, err = f.escrow.ConfirmByBuyer(f.ctx, detail.Order.ID, "buyer")
	require.NoError(t, err)

	_, err = f.escrow.OpenDispute(f.ctx, detail.Order.ID, "buyer", "late complaint")
	assert.True(t, errors.Is(err, errors.CodeInvalidState))
}

func TestSweepAutoConfirmsSilentBuyer(t *testing.T) {
	logs := observeLogs(t)
	f := newFixture(t)
	l := f.listing(t, "seller", "100.00", 3)
	detail := f.order(t, "buyer", l.ID, 2)

	_, err := f.escrow.ConfirmBySeller(f.ctx, detail.Order.ID, "seller")
	require.NoError(t, err)

	f.clock.Advance(71 * time.Hour)
	result, err := f.escrow.SweepExpired(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.AutoConfirmed)

	f.clock.Advance(2 * time.Hour)
	result, err = f.escrow.SweepExpired(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.AutoConfirmed)

	s, err := f.escrow.GetSession(f.ctx, detail.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.EscrowStateSettled, s.State)
	assert.True(t, s.BuyerAutoConfirmed)
	assert.True(t, s.SettlementPosted)
	assert.Equal(t, "190.00", f.balance(t, "seller"))

	events, err := f.escrow.ListEvents(f.ctx, detail.Order.ID, "seller")
	require.NoError(t, err)
	last := events[len(events)-1]
	assert.Equal(t, entity.EscrowStateSettled, last.To)
	assert.Equal(t, entity.SweeperActor, last.ActorID)
	assert.Equal(t, entity.NoteAutoConfirmed, last.Note)

	warned := false
	for _, entry := range logs.FilterLevelExact(zapcore.WarnLevel).All() {
		if strings.Contains(entry.Message, "auto-confirmed") {
			warned = true
		}
	}
	assert.True(t, warned)

	result, err = f.escrow.SweepExpired(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, result)
	assert.Equal(t, "190.00", f.balance(t, "seller"))
}

func TestSweepRepostsInterruptedSettlement(t *testing.T) {
	f := newFixture(t)
	l := f.listing(t, "seller", "40.00", 1)
	detail := f.order(t, "buyer", l.ID, 1)

	// A settlement claimed but never posted, as left behind by a crash.
	_, err := f.escrowRepo.Mutate(f.ctx, detail.Order.ID, func(s *entity.EscrowSession) error {
		now := f.clock.Now()
		s.SellerTransferredAt = &now
		s.BuyerReceivedAt = &now
		s.PlatformFee, s.SellerNet = entity.SplitFee(s.TotalAmount, s.FeeRate)
		s.State = entity.EscrowStateSettled
		return nil
	})
	require.NoError(t, err)

	result, err := f.escrow.SweepExpired(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Reposted)
	assert.Equal(t, "38.00", f.balance(t, "seller"))
	assert.Equal(t, "2.00", f.balance(t, "platform"))

	result, err = f.escrow.SweepExpired(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Reposted)
	assert.Equal(t, "38.00", f.balance(t, "seller"))

	order, err := f.orders.GetOrder(f.ctx, detail.Order.ID, "buyer")
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusCompleted, order.Order.Status)
}

func TestAutoConfirmJobSweepsOnTicker(t *testing.T) {
	f := newFixture(t)
	f.escrow.config.SweepInterval = 10 * time.Millisecond
	l := f.listing(t, "seller", "10.00", 1)
	detail := f.order(t, "buyer", l.ID, 1)

	_, err := f.escrow.ConfirmBySeller(f.ctx, detail.Order.ID, "seller")
	require.NoError(t, err)
	f.clock.Advance(73 * time.Hour)

	ctx, cancel := context.WithCancel(f.ctx)
	done := make(chan error, 1)
	go func() { done <- f.escrow.RunAutoConfirmJob(ctx) }()

	require.Eventually(t, func() bool {
		s, err := f.escrow.GetSession(f.ctx, detail.Order.ID)
		return err == nil && s.State == entity.EscrowStateSettled
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
	assert.Equal(t, "9.50", f.balance(t, "seller"))
}
