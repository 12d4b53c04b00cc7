package entity

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestEscrowTransitionTable(t *testing.T) {
	cases := []struct {
		from, to EscrowState
		ok       bool
	}{
		{EscrowStateOpen, EscrowStateSellerConfirmed, true},
		{EscrowStateOpen, EscrowStateBuyerConfirmed, true},
		{EscrowStateOpen, EscrowStateCancelled, true},
		{EscrowStateOpen, EscrowStateSettled, false},
		{EscrowStateSellerConfirmed, EscrowStateSettled, true},
		{EscrowStateSellerConfirmed, EscrowStateCancelled, false},
		{EscrowStateBuyerConfirmed, EscrowStateSettled, true},
		{EscrowStateBuyerConfirmed, EscrowStateDisputed, true},
		{EscrowStateSettled, EscrowStateDisputed, false},
		{EscrowStateSettled, EscrowStateOpen, false},
		{EscrowStateCancelled, EscrowStateOpen, false},
		{EscrowStateDisputed, EscrowStateSettled, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}

	assert.True(t, EscrowStateSettled.IsTerminal())
	assert.True(t, EscrowStateCancelled.IsTerminal())
	assert.True(t, EscrowStateDisputed.IsTerminal())
	assert.False(t, EscrowStateOpen.IsTerminal())
}

func TestSplitFeeNeverLeaks(t *testing.T) {
	rate := decimal.RequireFromString("0.05")
	for _, raw := range []string{"200.00", "0.01", "0.09", "33.33", "99.99", "12345.67", "0.10"} {
		total := decimal.RequireFromString(raw)
		fee, net := SplitFee(total, rate)

		assert.True(t, fee.Add(net).Equal(total), "total %s", raw)
		assert.True(t, fee.Equal(fee.Round(CurrencyPrecision)))
		assert.False(t, net.IsNegative())
	}

	fee, net := SplitFee(decimal.RequireFromString("200.00"), rate)
	assert.Equal(t, "10.00", fee.StringFixed(2))
	assert.Equal(t, "190.00", net.StringFixed(2))
}
