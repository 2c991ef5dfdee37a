package service

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/aussiebroadwan/lockbox/internal/auth/revocation"
	"github.com/aussiebroadwan/lockbox/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestHousekeepingDefaults(t *testing.T) {
	hk := NewHousekeepingService(&FaceRequestService{}, nil, slogx.Discard(), 0)
	require.Equal(t, 2*time.Minute, hk.Interval)
}

func TestHousekeepingSweeps(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := h.createUser(t, "sweep@example.com")

	stale, err := h.faces.Create(ctx, user.ID, time.Minute, nil, nil)
	require.NoError(t, err)
	fresh, err := h.faces.Create(ctx, user.ID, 10*time.Minute, nil, nil)
	require.NoError(t, err)
	h.clock.Advance(2 * time.Minute)

	reg := revocation.NewMemory()
	require.NoError(t, reg.Revoke(ctx, "gone", time.Now().Add(-time.Second)))
	require.NoError(t, reg.Revoke(ctx, "live", time.Now().Add(time.Hour)))

	hk := NewHousekeepingService(h.faces, reg, slogx.Discard(), time.Hour)
	hk.Start()
	hk.Stop() // the first cleanup runs before the loop can observe Stop

	got, err := h.store.FaceAuthRequests().GetFaceAuthRequest(ctx, stale.ID)
	require.NoError(t, err)
	require.Equal(t, domain.FaceAuthExpired, got.Status)

	got, err = h.store.FaceAuthRequests().GetFaceAuthRequest(ctx, fresh.ID)
	require.NoError(t, err)
	require.Equal(t, domain.FaceAuthPending, got.Status)

	require.Equal(t, 1, reg.Len())
}
