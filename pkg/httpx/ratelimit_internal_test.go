package httpx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterStoreEvictsIdleBuckets(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := newLimiterStore(RateLimitConfig{RequestsPerWindow: 5, Window: time.Minute, Burst: 5})
	store.now = func() time.Time { return now }
	store.lastSweep = now

	first := store.get("a")
	store.get("b")
	require.Equal(t, 2, store.len())
	require.Same(t, first, store.get("a"), "a live key keeps its bucket")

	now = now.Add(3 * time.Minute)
	store.get("a")

	now = now.Add(3 * time.Minute)
	store.get("c")
	require.Equal(t, 2, store.len(), "b was idle past the refill time")
	require.Same(t, first, store.get("a"))
}

func TestLimiterStoreIdleCoversRefill(t *testing.T) {
	// 1000 tokens at 1 per minute take far longer than the floor to refill.
	store := newLimiterStore(RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1000})
	require.Equal(t, 1000*time.Minute, store.idle)

	store = newLimiterStore(StrictLimit)
	require.Equal(t, 5*time.Minute, store.idle)
}
