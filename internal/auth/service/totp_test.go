package service

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func wrongCode(t *testing.T, code string) string {
	t.Helper()
	n, err := strconv.Atoi(code)
	require.NoError(t, err)
	return fmt.Sprintf("%06d", (n+500000)%1000000)
}

func TestTOTPSetupAndConfirm(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := h.createUser(t, "totp@example.com")

	err := h.totp.ConfirmSetup(ctx, user.ID, "123456")
	require.ErrorIs(t, err, ErrTOTPSetupNotInitiated)

	setup, err := h.totp.Setup(ctx, user.ID)
	require.NoError(t, err)
	require.NotEmpty(t, setup.Secret)
	require.Contains(t, setup.URI, "otpauth://totp/")
	require.Equal(t, "Lockbox", setup.Issuer)
	require.Equal(t, user.Email, setup.Account)

	stored, err := h.store.Users().GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.False(t, stored.TOTPEnabled, "setup alone must not enable TOTP")
	require.NotContains(t, string(stored.TOTPSecret), setup.Secret, "secret must be stored sealed")

	code, err := totp.GenerateCode(setup.Secret, h.clock.Now())
	require.NoError(t, err)

	require.ErrorIs(t, h.totp.ConfirmSetup(ctx, user.ID, wrongCode(t, code)), ErrInvalidTOTPCode)
	require.NoError(t, h.totp.ConfirmSetup(ctx, user.ID, code))

	stored, err = h.store.Users().GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, stored.TOTPEnabled)

	_, err = h.totp.Setup(ctx, user.ID)
	require.ErrorIs(t, err, ErrTOTPAlreadyEnabled)
}

func TestTOTPVerifyLoginCode(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := h.createUser(t, "login-code@example.com")

	setup, err := h.totp.Setup(ctx, user.ID)
	require.NoError(t, err)
	code, err := totp.GenerateCode(setup.Secret, h.clock.Now())
	require.NoError(t, err)

	require.False(t, h.totp.VerifyLoginCode(ctx, user.ID, code), "not enabled yet")

	require.NoError(t, h.totp.ConfirmSetup(ctx, user.ID, code))
	require.True(t, h.totp.VerifyLoginCode(ctx, user.ID, code))
	require.True(t, h.totp.VerifyLoginCode(ctx, user.ID, " "+code[:3]+" "+code[3:]+" "))
	require.False(t, h.totp.VerifyLoginCode(ctx, user.ID, wrongCode(t, code)))
	require.False(t, h.totp.VerifyLoginCode(ctx, user.ID, ""))
	require.False(t, h.totp.VerifyLoginCode(ctx, "missing-user", code))

	t.Run("adjacent window accepted", func(t *testing.T) {
		prev, err := totp.GenerateCode(setup.Secret, h.clock.Now().Add(-30*time.Second))
		require.NoError(t, err)
		require.True(t, h.totp.VerifyLoginCode(ctx, user.ID, prev))
	})

	t.Run("undecryptable secret is just invalid", func(t *testing.T) {
		require.NoError(t, h.store.Users().UpdateTOTPSecret(ctx, user.ID, []byte("garbage-not-sealed-by-box")))
		require.False(t, h.totp.VerifyLoginCode(ctx, user.ID, code))
	})

	t.Run("disable clears everything", func(t *testing.T) {
		require.NoError(t, h.totp.Disable(ctx, user.ID))
		stored, err := h.store.Users().GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		require.False(t, stored.TOTPEnabled)
		require.Empty(t, stored.TOTPSecret)
		require.False(t, h.totp.VerifyLoginCode(ctx, user.ID, code))
	})
}
