package http

import (
	"context"
	"net/http"
	"testing"

	"github.com/aussiebroadwan/lockbox/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

func TestDevicesAndFaceToggle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.createUser(t, "kim@example.com")
	session := env.session(t, "kim@example.com")

	t.Run("face id needs a device", func(t *testing.T) {
		err := session.EnableFace(ctx)
		var apiErr *authsdk.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	})

	t.Run("invalid platform", func(t *testing.T) {
		_, err := session.RegisterDevice(ctx, authsdk.RegisterDeviceRequest{PushToken: "tok", Platform: "windows"})
		var apiErr *authsdk.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, "Invalid device registration", apiErr.Message)
	})

	first, err := session.RegisterDevice(ctx, authsdk.RegisterDeviceRequest{PushToken: "tok-1", Platform: "ios", Name: "iPhone"})
	require.NoError(t, err)
	again, err := session.RegisterDevice(ctx, authsdk.RegisterDeviceRequest{PushToken: "tok-1", Platform: "ios", Name: "iPhone"})
	require.NoError(t, err)
	require.Equal(t, first.ID, again.ID, "same push token refreshes the device")

	devices, err := session.ListDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 1)

	require.NoError(t, session.EnableFace(ctx))
	me, err := session.Me(ctx)
	require.NoError(t, err)
	require.True(t, me.FaceEnabled)

	t.Run("other users cannot delete the device", func(t *testing.T) {
		env.createUser(t, "lee@example.com")
		other := env.session(t, "lee@example.com")
		require.ErrorIs(t, other.DeleteDevice(ctx, first.ID), authsdk.ErrNotFound)
	})

	require.NoError(t, session.DeleteDevice(ctx, first.ID))
	me, err = session.Me(ctx)
	require.NoError(t, err)
	require.False(t, me.FaceEnabled, "removing the last device disables face id")

	t.Run("unauthenticated", func(t *testing.T) {
		code, _ := env.do(t, http.MethodGet, "/devices", "", nil)
		require.Equal(t, http.StatusUnauthorized, code)
	})
}

func TestSystemEndpoints(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	live, err := env.client.GetLiveness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)
	require.Equal(t, "test", live.Version)

	ready, err := env.client.GetReadiness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Status)
	require.Equal(t, "ok", ready.Checks.Database)
	require.Equal(t, "ok", ready.Checks.Signer)
	require.Empty(t, ready.Checks.Redis)

	jwks, err := env.client.GetJWKS(ctx)
	require.NoError(t, err)
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "EdDSA", jwks.Keys[0].Alg)
}
