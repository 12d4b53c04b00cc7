package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowHonoursBurstPerKey(t *testing.T) {
	current := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(60, 2)
	rl.now = func() time.Time { return current }

	ok, _ := rl.Allow("buyer-1")
	assert.True(t, ok)
	ok, _ = rl.Allow("buyer-1")
	assert.True(t, ok)

	ok, wait := rl.Allow("buyer-1")
	assert.False(t, ok)
	assert.InDelta(t, time.Second, wait, float64(10*time.Millisecond))

	ok, _ = rl.Allow("buyer-2")
	assert.True(t, ok, "keys are limited independently")

	current = current.Add(time.Second)
	ok, _ = rl.Allow("buyer-1")
	assert.True(t, ok)
}

func TestCleanupDropsIdleKeys(t *testing.T) {
	current := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(60, 1)
	rl.now = func() time.Time { return current }

	rl.Allow("a")
	current = current.Add(5 * time.Minute)
	rl.Allow("b")
	current = current.Add(6 * time.Minute)

	assert.Equal(t, 1, rl.Cleanup())
	assert.Len(t, rl.visitors, 1)
}
