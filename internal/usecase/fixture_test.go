package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	repoimpl "pasarmarket/internal/adapter/repository"
	"pasarmarket/internal/domain/entity"
	"pasarmarket/internal/domain/repository"
	"pasarmarket/internal/domain/service"
	"pasarmarket/pkg/clock"
	"pasarmarket/pkg/errors"
)

var fixtureStart = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

type fakeGateway struct {
	mu       sync.Mutex
	fail     bool
	captured map[string]decimal.Decimal
	refunded map[string]decimal.Decimal
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{captured: map[string]decimal.Decimal{}, refunded: map[string]decimal.Decimal{}}
}

func (g *fakeGateway) Capture(ctx context.Context, req service.CaptureRequest) (*service.CaptureResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return nil, fmt.Errorf("card declined")
	}
	ref := "pay-" + req.OrderID
	g.captured[ref] = req.Amount
	return &service.CaptureResult{Reference: ref, Status: "captured"}, nil
}

func (g *fakeGateway) Refund(ctx context.Context, reference string, amount decimal.Decimal, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunded[reference] = g.refunded[reference].Add(amount)
	return nil
}

func (g *fakeGateway) refundedFor(reference string) decimal.Decimal {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refunded[reference]
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []service.Event
}

func (n *recordingNotifier) Notify(ctx context.Context, event service.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) count(t service.EventType) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e.Type == t {
			c++
		}
	}
	return c
}

type recordingArchive struct {
	mu      sync.Mutex
	reports []*entity.ReconcileReport
}

func (a *recordingArchive) ArchiveReconcileReport(ctx context.Context, report *entity.ReconcileReport) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reports = append(a.reports, report)
	return nil
}

// lostAckListingRepository commits writes but reports the next drops of them
// as unavailable, the way a commit whose acknowledgement was lost looks.
type lostAckListingRepository struct {
	repository.ListingRepository
	mu    sync.Mutex
	drops int
}

func (r *lostAckListingRepository) dropNext(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drops = n
}

func (r *lostAckListingRepository) Mutate(ctx context.Context, id string, fn repository.ListingMutation) (*entity.Listing, error) {
	l, err := r.ListingRepository.Mutate(ctx, id, fn)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil && r.drops > 0 {
		r.drops--
		return nil, errors.StorageUnavailable("commit acknowledgement lost", nil)
	}
	return l, err
}

type lostAckOrderRepository struct {
	repository.OrderRepository
	mu    sync.Mutex
	drops int
}

func (r *lostAckOrderRepository) Create(ctx context.Context, order *entity.Order) error {
	err := r.OrderRepository.Create(ctx, order)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil && r.drops > 0 {
		r.drops--
		return errors.StorageUnavailable("commit acknowledgement lost", nil)
	}
	return err
}

type fixture struct {
	ctx      context.Context
	clock    *clock.Fake
	gateway  *fakeGateway
	notifier *recordingNotifier
	archive  *recordingArchive

	listingRepo repository.ListingRepository
	orderRepo   repository.OrderRepository
	escrowRepo  repository.EscrowRepository
	walletRepo  repository.WalletRepository

	listings *ListingUseCase
	ledger   *LedgerUseCase
	escrow   *EscrowUseCase
	orders   *OrderUseCase
	reviews  *ReviewUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		ctx:         context.Background(),
		clock:       clock.NewFake(fixtureStart),
		gateway:     newFakeGateway(),
		notifier:    &recordingNotifier{},
		archive:     &recordingArchive{},
		listingRepo: repoimpl.NewMemoryListingRepository(),
		orderRepo:   repoimpl.NewMemoryOrderRepository(),
		escrowRepo:  repoimpl.NewMemoryEscrowRepository(),
	}
	ledgerRepo, walletRepo := repoimpl.NewMemoryLedgerRepositories()
	f.walletRepo = walletRepo

	policy := StoragePolicy{Timeout: time.Second, Retries: 2}
	f.listings = NewListingUseCase(f.listingRepo, f.clock, policy)
	f.ledger = NewLedgerUseCase(ledgerRepo, walletRepo, repoimpl.NewMemoryWithdrawalRepository(), f.archive, f.clock, policy)
	f.escrow = NewEscrowUseCase(f.escrowRepo, f.orderRepo, f.listings, f.ledger, f.notifier, f.clock, policy, EscrowConfig{
		FeeRate:           decimal.RequireFromString("0.05"),
		PlatformAccountID: "platform",
		AutoConfirmWindow: 72 * time.Hour,
		SweepInterval:     time.Minute,
		SweepBatchSize:    50,
	})
	f.orders = NewOrderUseCase(f.orderRepo, f.listings, f.escrow, f.gateway, f.notifier, f.clock, policy)
	f.reviews = NewReviewUseCase(repoimpl.NewMemoryReviewRepository(), f.orderRepo, f.escrowRepo, f.clock, policy)
	return f
}

func (f *fixture) listing(t *testing.T, seller, price string, qty int) *entity.Listing {
	t.Helper()
	l, err := f.listings.CreateListing(f.ctx, seller, CreateListingInput{
		Title:    "Vintage camera",
		Price:    decimal.RequireFromString(price),
		Quantity: qty,
	})
	require.NoError(t, err)
	return l
}

func (f *fixture) order(t *testing.T, buyer, listingID string, qty int) *OrderDetail {
	t.Helper()
	detail, err := f.orders.CreateOrder(f.ctx, buyer, CreateOrderInput{
		ListingID:     listingID,
		Quantity:      qty,
		PaymentMethod: "bank_transfer",
	})
	require.NoError(t, err)
	return detail
}

func (f *fixture) balance(t *testing.T, account string) string {
	t.Helper()
	b, err := f.ledger.GetBalance(f.ctx, account)
	require.NoError(t, err)
	return b.StringFixed(2)
}
