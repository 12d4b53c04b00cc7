package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"pasarmarket/pkg/logger"
)

// CaptureRequest asks the gateway to authorize and capture buyer funds for one order.
type CaptureRequest struct {
	OrderID string
	BuyerID string
	Amount  decimal.Decimal
	Method  string
}

type CaptureResult struct {
	Reference string
	Status    string
}

// PaymentGateway is the external collaborator holding buyer funds. Capture
// runs synchronously during order creation; Refund runs on cancellation.
type PaymentGateway interface {
	Capture(ctx context.Context, req CaptureRequest) (*CaptureResult, error)
	Refund(ctx context.Context, reference string, amount decimal.Decimal, reason string) error
}

// SimulatedPaymentGateway accepts every capture. Used for local runs.
type SimulatedPaymentGateway struct {
	mu       sync.Mutex
	captured map[string]decimal.Decimal
}

func NewSimulatedPaymentGateway() *SimulatedPaymentGateway {
	return &SimulatedPaymentGateway{captured: make(map[string]decimal.Decimal)}
}

func (g *SimulatedPaymentGateway) Capture(ctx context.Context, req CaptureRequest) (*CaptureResult, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("capture amount must be positive")
	}
	ref := "sim-" + req.OrderID

	g.mu.Lock()
	g.captured[ref] = req.Amount
	g.mu.Unlock()

	logger.Info("Simulated capture for order %s: %s via %s", req.OrderID, req.Amount.StringFixed(2), req.Method)
	return &CaptureResult{Reference: ref, Status: "captured"}, nil
}

func (g *SimulatedPaymentGateway) Refund(ctx context.Context, reference string, amount decimal.Decimal, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	held, ok := g.captured[reference]
	if !ok {
		return fmt.Errorf("unknown payment reference %s", reference)
	}
	if amount.GreaterThan(held) {
		return fmt.Errorf("refund %s exceeds captured %s", amount, held)
	}
	g.captured[reference] = held.Sub(amount)

	logger.Info("Simulated refund %s for %s: %s", amount.StringFixed(2), reference, reason)
	return nil
}
