package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type EscrowState string

const (
	EscrowStateOpen            EscrowState = "open"
	EscrowStateSellerConfirmed EscrowState = "seller_confirmed"
	EscrowStateBuyerConfirmed  EscrowState = "buyer_confirmed"
	EscrowStateSettled         EscrowState = "settled"
	EscrowStateDisputed        EscrowState = "disputed"
	EscrowStateCancelled       EscrowState = "cancelled"
)

const (
	// SweeperActor is recorded as the actor of transitions made by the timeout sweep.
	SweeperActor = "system:sweeper"
	// NoteAutoConfirmed marks a buyer confirmation the sweep made on the buyer's behalf.
	NoteAutoConfirmed = "auto-confirmed"

	CurrencyPrecision = 2
)

var escrowTransitions = map[EscrowState][]EscrowState{
	EscrowStateOpen:            {EscrowStateSellerConfirmed, EscrowStateBuyerConfirmed, EscrowStateDisputed, EscrowStateCancelled},
	EscrowStateSellerConfirmed: {EscrowStateSettled, EscrowStateDisputed},
	EscrowStateBuyerConfirmed:  {EscrowStateSettled, EscrowStateDisputed},
}

func (s EscrowState) CanTransitionTo(next EscrowState) bool {
	for _, allowed := range escrowTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s EscrowState) IsTerminal() bool {
	return len(escrowTransitions[s]) == 0
}

type EscrowSession struct {
	ID                  string          `json:"id"`
	OrderID             string          `json:"order_id"`
	BuyerID             string          `json:"buyer_id"`
	SellerID            string          `json:"seller_id"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
	FeeRate             decimal.Decimal `json:"fee_rate"`
	PlatformFee         decimal.Decimal `json:"platform_fee"`
	SellerNet           decimal.Decimal `json:"seller_net"`
	State               EscrowState     `json:"state"`
	SellerTransferredAt *time.Time      `json:"seller_transferred_at,omitempty"`
	BuyerReceivedAt     *time.Time      `json:"buyer_received_at,omitempty"`
	BuyerAutoConfirmed  bool            `json:"buyer_auto_confirmed"`
	AutoConfirmAt       *time.Time      `json:"auto_confirm_at,omitempty"`
	CompletedAt         *time.Time      `json:"completed_at,omitempty"`
	SettlementPosted    bool            `json:"settlement_posted"`
	DisputeReason       string          `json:"dispute_reason,omitempty"`
	DisputedBy          string          `json:"disputed_by,omitempty"`
	Version             int64           `json:"version"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// EscrowEvent is one audited state change of a session.
type EscrowEvent struct {
	ID        string      `json:"id"`
	OrderID   string      `json:"order_id"`
	From      EscrowState `json:"from"`
	To        EscrowState `json:"to"`
	ActorID   string      `json:"actor_id"`
	Note      string      `json:"note,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// SplitFee rounds the fee to currency precision and gives the seller the remainder,
// so fee + net always equals total.
func SplitFee(total, rate decimal.Decimal) (fee, net decimal.Decimal) {
	fee = total.Mul(rate).Round(CurrencyPrecision)
	net = total.Sub(fee)
	return fee, net
}
