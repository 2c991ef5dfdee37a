package service

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func TestLoginWithoutSecondFactor(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := h.createUser(t, "plain@example.com")

	res, err := h.login.Login(ctx, "  Plain@Example.com ", testPassword)
	require.NoError(t, err)
	require.False(t, res.TwoFactorRequired)
	require.Empty(t, res.TempToken)
	require.NotEmpty(t, res.AccessToken)
	require.Equal(t, user.ID, res.User.ID)

	claims, err := h.tokens.VerifyAccess(ctx, res.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.Subject)
}

func TestLoginInvalidCredentialsAreIndistinguishable(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.createUser(t, "known@example.com")

	_, errWrongPassword := h.login.Login(ctx, "known@example.com", "wrong password")
	_, errUnknownUser := h.login.Login(ctx, "nobody@example.com", testPassword)

	require.ErrorIs(t, errWrongPassword, ErrInvalidCredentials)
	require.ErrorIs(t, errUnknownUser, ErrInvalidCredentials)
	require.Equal(t, errWrongPassword.Error(), errUnknownUser.Error())
}

func TestTOTPLoginScenario(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := h.createUser(t, "u1@example.com")

	setup, err := h.totp.Setup(ctx, user.ID)
	require.NoError(t, err)
	code, err := totp.GenerateCode(setup.Secret, h.clock.Now())
	require.NoError(t, err)
	require.NoError(t, h.totp.ConfirmSetup(ctx, user.ID, code))

	res, err := h.login.Login(ctx, user.Email, testPassword)
	require.NoError(t, err)
	require.True(t, res.TwoFactorRequired)
	require.Empty(t, res.AccessToken, "no final credential before the second factor")
	require.Nil(t, res.User)
	require.Equal(t, []domain.TwoFactorMethod{{Type: domain.MethodTOTP, Name: "Authenticator App"}}, res.Methods)

	claims, err := h.tokens.VerifyIntermediate(ctx, res.TempToken)
	require.NoError(t, err)
	require.True(t, claims.SecondFactorPending)
	require.LessOrEqual(t, claims.Expiry().Sub(claims.IssuedAt.Time), 5*time.Minute)

	_, err = h.login.VerifyTOTPLogin(ctx, res.TempToken, wrongCode(t, code))
	require.ErrorIs(t, err, ErrUnauthorized)

	final, err := h.login.VerifyTOTPLogin(ctx, res.TempToken, code)
	require.NoError(t, err)
	require.NotEmpty(t, final.AccessToken)
	require.Equal(t, user.Email, final.User.Email)
	require.True(t, final.User.TOTPEnabled)

	access, err := h.tokens.VerifyAccess(ctx, final.AccessToken)
	require.NoError(t, err)
	require.Equal(t, []string{AMRPassword, AMRTOTP}, access.AMR)
}

func TestSecondFactorRejectsBadTempTokens(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := h.createUser(t, "temp@example.com")
	h.enableFace(t, user.ID, "device-1")

	final, err := h.tokens.IssueFinal(user)
	require.NoError(t, err)

	t.Run("final credential is not a temp token", func(t *testing.T) {
		_, err := h.login.VerifyTOTPLogin(ctx, final, "123456")
		require.ErrorIs(t, err, ErrUnauthorized)
		_, err = h.login.InitiateFaceAuth(ctx, final, FaceAuthOptions{})
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("expired temp token", func(t *testing.T) {
		res, err := h.login.Login(ctx, user.Email, testPassword)
		require.NoError(t, err)
		require.True(t, res.TwoFactorRequired)

		h.clock.Advance(5*time.Minute + time.Second)

		_, err = h.login.VerifyTOTPLogin(ctx, res.TempToken, "123456")
		require.ErrorIs(t, err, ErrUnauthorized)
		_, err = h.login.InitiateFaceAuth(ctx, res.TempToken, FaceAuthOptions{})
		require.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestInitiateFaceAuthScenario(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := h.createUser(t, "u2@example.com")
	h.enableFace(t, user.ID, "token-a", "token-b")
	h.push.failOn = map[string]bool{"token-b": true}

	res, err := h.login.Login(ctx, user.Email, testPassword)
	require.NoError(t, err)
	require.Equal(t, []domain.TwoFactorMethod{{Type: domain.MethodFace, Name: "Face ID"}}, res.Methods)

	handle, err := h.login.InitiateFaceAuth(ctx, res.TempToken, FaceAuthOptions{
		DeviceInfo: map[string]any{"browser": "chrome"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, handle.DevicesNotified)
	require.Equal(t, domain.FaceAuthPending, handle.Status)
	require.Equal(t, "face_auth_"+handle.RequestID, handle.Room)
	require.Equal(t, h.clock.Now().Add(DefaultFaceRequestTTL), handle.ExpiresAt)

	require.Len(t, h.push.calls, 1)
	require.ElementsMatch(t, []string{"token-a", "token-b"}, h.push.calls[0].tokens)
	require.Equal(t, handle.RequestID, h.push.calls[0].req.RequestID)
	require.Equal(t, "chrome", h.push.calls[0].req.DeviceInfo["browser"])

	require.Equal(t, []string{domain.StatusNotificationsSent}, h.channel.statuses(handle.RequestID))

	stored, err := h.faces.Get(ctx, handle.RequestID)
	require.NoError(t, err)
	require.Equal(t, user.ID, stored.UserID)
}

func TestInitiateFaceAuthPushFailureDoesNotAbort(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := h.createUser(t, "pushfail@example.com")
	h.enableFace(t, user.ID, "token-a")
	h.push.err = errBoom

	res, err := h.login.Login(ctx, user.Email, testPassword)
	require.NoError(t, err)

	handle, err := h.login.InitiateFaceAuth(ctx, res.TempToken, FaceAuthOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, handle.DevicesNotified)
}

func TestInitiateFaceAuthRequiresDevices(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := h.createUser(t, "nodevice@example.com")
	require.NoError(t, h.store.Users().SetFaceEnabled(ctx, user.ID, true))

	res, err := h.login.Login(ctx, user.Email, testPassword)
	require.NoError(t, err)

	_, err = h.login.InitiateFaceAuth(ctx, res.TempToken, FaceAuthOptions{})
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Empty(t, h.push.calls)
}

func startFaceAuth(t *testing.T, h *harness, user domain.User) (string, domain.FaceAuthHandle) {
	t.Helper()
	ctx := context.Background()
	res, err := h.login.Login(ctx, user.Email, testPassword)
	require.NoError(t, err)
	handle, err := h.login.InitiateFaceAuth(ctx, res.TempToken, FaceAuthOptions{})
	require.NoError(t, err)
	return res.TempToken, handle
}

func TestCompleteFaceAuthSuccess(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := h.createUser(t, "mobile@example.com")
	other := h.createUser(t, "other@example.com")
	h.enableFace(t, user.ID, "token-a")
	h.enableFace(t, other.ID, "token-b")

	_, sibling := startFaceAuth(t, h, user)
	_, otherHandle := startFaceAuth(t, h, other)
	temp, handle := startFaceAuth(t, h, user)

	res, err := h.login.CompleteFaceAuth(ctx, handle.RequestID, []byte("jpeg"))
	require.NoError(t, err)
	require.Equal(t, domain.CompletionResult{Success: true, Message: MsgFaceAuthSucceeded}, res)

	completions := h.channel.completions(handle.RequestID)
	require.Len(t, completions, 1)
	require.True(t, completions[0].Success)
	require.NotNil(t, completions[0].Data)
	require.Equal(t, user.ID, completions[0].Data.User.ID)

	access, err := h.tokens.VerifyAccess(ctx, completions[0].Data.AccessToken)
	require.NoError(t, err)
	require.Equal(t, []string{AMRPassword, AMRFace}, access.AMR)

	require.Contains(t, h.channel.statuses(handle.RequestID), domain.StatusVerifying)

	got, err := h.login.FaceAuthStatus(ctx, temp, handle.RequestID)
	require.NoError(t, err)
	require.Equal(t, domain.FaceAuthCompleted, got.Status)
	require.InDelta(t, 0.97, got.Metadata["probability"], 0.0001)

	got, err = h.faces.Get(ctx, sibling.RequestID)
	require.NoError(t, err)
	require.Equal(t, domain.FaceAuthFailed, got.Status)
	require.Equal(t, ReasonSuperseded, got.FailureReason)

	got, err = h.faces.Get(ctx, otherHandle.RequestID)
	require.NoError(t, err)
	require.Equal(t, domain.FaceAuthPending, got.Status)

	// A replay of the same request fails and reaches the room as a failure.
	res, err = h.login.CompleteFaceAuth(ctx, handle.RequestID, []byte("jpeg"))
	require.ErrorIs(t, err, ErrBadRequest)
	require.False(t, res.Success)
}

func TestCompleteFaceAuthRejected(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := h.createUser(t, "reject@example.com")
	h.enableFace(t, user.ID, "token-a")
	h.verifier.match = domain.FaceMatch{Authenticated: false, Probability: 0.12}

	_, handle := startFaceAuth(t, h, user)

	res, err := h.login.CompleteFaceAuth(ctx, handle.RequestID, []byte("jpeg"))
	require.ErrorIs(t, err, ErrUnauthorized)
	require.False(t, res.Success)
	require.Equal(t, MsgFaceAuthFailed, res.Message)

	stored, err := h.faces.Get(ctx, handle.RequestID)
	require.NoError(t, err)
	require.Equal(t, domain.FaceAuthFailed, stored.Status)
	require.NotEmpty(t, stored.FailureReason)

	completions := h.channel.completions(handle.RequestID)
	require.Len(t, completions, 1)
	require.False(t, completions[0].Success)
	require.Nil(t, completions[0].Data)
	require.Equal(t, MsgFaceAuthFailed, completions[0].Error)
}

func TestCompleteFaceAuthUpstreamError(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := h.createUser(t, "upstream@example.com")
	h.enableFace(t, user.ID, "token-a")
	h.verifier.err = errBoom

	_, handle := startFaceAuth(t, h, user)

	res, err := h.login.CompleteFaceAuth(ctx, handle.RequestID, []byte("jpeg"))
	require.ErrorIs(t, err, ErrUpstream)
	require.False(t, res.Success)
	require.NotContains(t, res.Message, "boom")

	stored, err := h.faces.Get(ctx, handle.RequestID)
	require.NoError(t, err)
	require.Equal(t, domain.FaceAuthFailed, stored.Status)

	completions := h.channel.completions(handle.RequestID)
	require.Len(t, completions, 1)
	require.False(t, completions[0].Success)
}

func TestCompleteFaceAuthInvalidRequest(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := h.createUser(t, "late@example.com")
	h.enableFace(t, user.ID, "token-a")

	_, err := h.login.CompleteFaceAuth(ctx, "00000000-0000-0000-0000-000000000000", []byte("jpeg"))
	require.ErrorIs(t, err, ErrNotFound)

	_, handle := startFaceAuth(t, h, user)
	h.clock.Advance(DefaultFaceRequestTTL)

	res, err := h.login.CompleteFaceAuth(ctx, handle.RequestID, []byte("jpeg"))
	require.ErrorIs(t, err, ErrBadRequest)
	require.False(t, res.Success)

	completions := h.channel.completions(handle.RequestID)
	require.Len(t, completions, 1)
	require.False(t, completions[0].Success)

	stored, err := h.store.FaceAuthRequests().GetFaceAuthRequest(ctx, handle.RequestID)
	require.NoError(t, err)
	require.Equal(t, domain.FaceAuthExpired, stored.Status)
}

func TestFaceAuthStatusOwnership(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice := h.createUser(t, "owner@example.com")
	mallory := h.createUser(t, "mallory@example.com")
	h.enableFace(t, alice.ID, "token-a")
	h.enableFace(t, mallory.ID, "token-m")

	_, handle := startFaceAuth(t, h, alice)
	malloryTemp, _ := startFaceAuth(t, h, mallory)

	_, err := h.login.FaceAuthStatus(ctx, malloryTemp, handle.RequestID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := h.createUser(t, "logout@example.com")

	res, err := h.login.Login(ctx, user.Email, testPassword)
	require.NoError(t, err)

	h.login.Logout(ctx, res.AccessToken)

	revoked, err := h.revocations.IsRevoked(ctx, res.AccessToken)
	require.NoError(t, err)
	require.True(t, revoked)

	// Entry is evicted once the credential would have expired anyway.
	require.Zero(t, h.revocations.Sweep(h.clock.Now()))
	require.Equal(t, 1, h.revocations.Sweep(h.clock.Now().Add(8*24*time.Hour)))

	t.Run("garbage and empty tokens are tolerated", func(t *testing.T) {
		h.login.Logout(ctx, "")
		h.login.Logout(ctx, "not-a-token")
		revoked, err := h.revocations.IsRevoked(ctx, "not-a-token")
		require.NoError(t, err)
		require.True(t, revoked)
	})
}
