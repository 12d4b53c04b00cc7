package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("OPERATOR_IDS", "ops-1, ops-2,,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.05", cfg.FeeRate.String())
	assert.Equal(t, "platform", cfg.PlatformAccountID)
	assert.Equal(t, 72*time.Hour, cfg.AutoConfirmWindow)
	assert.Equal(t, []string{"ops-1", "ops-2"}, cfg.OperatorIDs)
}

func TestLoadRejectsBadFeeRate(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("PLATFORM_FEE_RATE", "1.5")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRequiresProjectForFirestore(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "firestore")
	t.Setenv("FIREBASE_PROJECT_ID", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestDurationOverride(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("ESCROW_AUTO_CONFIRM_WINDOW", "90m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, cfg.AutoConfirmWindow)
}

func TestLoadRequiresMidtransKey(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("PAYMENT_GATEWAY", "midtrans")
	t.Setenv("MIDTRANS_SERVER_KEY", "")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("MIDTRANS_SERVER_KEY", "SB-Mid-server-test")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sandbox", cfg.MidtransEnvironment)
}
