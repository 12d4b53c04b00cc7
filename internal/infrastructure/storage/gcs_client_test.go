package storage

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pasarmarket/internal/domain/entity"
)

func TestReportObjectName(t *testing.T) {
	report := &entity.ReconcileReport{
		AccountID: "seller-1",
		CheckedAt: time.Date(2025, 5, 1, 9, 30, 15, 0, time.FixedZone("WIB", 7*3600)),
	}

	name := reportObjectName(report)
	assert.True(t, strings.HasPrefix(name, "reconcile/seller-1/2025-05-01/023015-"), name)
	assert.True(t, strings.HasSuffix(name, ".json"))
	assert.NotEqual(t, name, reportObjectName(report))
}

func TestEncodeReport(t *testing.T) {
	report := &entity.ReconcileReport{
		AccountID:     "seller-1",
		EntryCount:    3,
		LedgerSum:     decimal.RequireFromString("95.00"),
		WalletBalance: decimal.RequireFromString("90.00"),
		Issues:        []string{"wallet balance 90 does not match ledger sum 95"},
	}

	body, err := encodeReport(report)
	require.NoError(t, err)
	assert.False(t, report.CheckedAt.IsZero())

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "seller-1", decoded["account_id"])
	assert.Equal(t, "95", decoded["ledger_sum"])
	assert.Equal(t, false, decoded["consistent"])

	_, err = encodeReport(nil)
	assert.Error(t, err)
}
