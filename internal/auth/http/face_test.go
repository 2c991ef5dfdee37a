package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/aussiebroadwan/lockbox/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

type waitResult struct {
	resp     *authsdk.LoginResponse
	err      error
	statuses []string
}

// startWaiting opens the web client's realtime subscription and returns once
// the server has joined it to the room.
func startWaiting(t *testing.T, env *testEnv, tempToken, requestID string) <-chan waitResult {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	done := make(chan waitResult, 1)
	go func() {
		var statuses []string
		resp, err := env.client.WaitForFaceLogin(ctx, tempToken, requestID, func(s authsdk.FaceAuthStatus) {
			statuses = append(statuses, s.Status)
		})
		done <- waitResult{resp: resp, err: err, statuses: statuses}
	}()

	require.Eventually(t, func() bool {
		return env.hub.Members(domain.RoomName(requestID)) == 1
	}, 5*time.Second, 10*time.Millisecond)
	return done
}

func faceChallenge(t *testing.T, env *testEnv, email string) *authsdk.LoginResponse {
	t.Helper()
	_, challenge, err := env.client.Authenticate(context.Background(), email, testPassword)
	require.ErrorIs(t, err, authsdk.ErrSecondFactorRequired)
	return challenge
}

func TestFaceLoginEndToEnd(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := env.createUser(t, "frank@example.com")
	env.enableFace(t, user.ID, "push-a", "push-b")

	challenge := faceChallenge(t, env, "frank@example.com")
	require.Equal(t, []authsdk.TwoFactorMethod{{Type: "face_id", Name: "Face ID"}}, challenge.AvailableMethods)

	started, err := env.client.StartFaceLogin(ctx, authsdk.FaceLoginRequest{
		TempToken:  challenge.TempToken,
		DeviceInfo: map[string]any{"browser": "firefox"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, started.DevicesNotified)
	require.Equal(t, "pending", started.Status)
	require.Equal(t, "face_auth_"+started.RequestID, started.WebsocketRoom)
	require.WithinDuration(t, time.Now().Add(5*time.Minute), started.ExpiresAt, 5*time.Second)

	pushed := env.push.last()
	require.Equal(t, started.RequestID, pushed.RequestID)
	require.Equal(t, "firefox", pushed.DeviceInfo["browser"])
	require.NotEmpty(t, pushed.DeviceInfo["userAgent"])

	waiting := startWaiting(t, env, challenge.TempToken, started.RequestID)

	// The phone.
	result, err := env.client.CompleteFaceLogin(ctx, started.RequestID, []byte("jpeg bytes"))
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "Face verification successful", result.Message)

	got := <-waiting
	require.NoError(t, got.err)
	require.NotEmpty(t, got.resp.AccessToken)
	require.Equal(t, user.ID, got.resp.User.ID)
	require.Contains(t, got.statuses, domain.StatusVerifying)

	me, err := env.client.NewSession(got.resp.AccessToken).Me(ctx)
	require.NoError(t, err)
	require.Equal(t, user.ID, me.ID)

	status, err := env.client.FaceRequestStatus(ctx, challenge.TempToken, started.RequestID)
	require.NoError(t, err)
	require.Equal(t, "completed", status.Status)
	require.NotNil(t, status.CompletedAt)

	t.Run("second completion is refused", func(t *testing.T) {
		code, body := env.do(t, http.MethodPost, "/auth/2fa/face/complete", "", authsdk.FaceCompleteRequest{
			RequestID: started.RequestID,
			Image:     []byte("jpeg bytes"),
		})
		require.Equal(t, http.StatusBadRequest, code)
		require.Equal(t, false, body["success"])
		_, hasToken := body["access_token"]
		require.False(t, hasToken)
	})
}

func TestFaceLoginRejected(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := env.createUser(t, "grace@example.com")
	env.enableFace(t, user.ID, "push-a")
	env.faceMatches.Store(false)

	challenge := faceChallenge(t, env, "grace@example.com")
	started, err := env.client.StartFaceLogin(ctx, authsdk.FaceLoginRequest{TempToken: challenge.TempToken})
	require.NoError(t, err)

	waiting := startWaiting(t, env, challenge.TempToken, started.RequestID)

	code, body := env.do(t, http.MethodPost, "/auth/2fa/face/complete", "", authsdk.FaceCompleteRequest{
		RequestID: started.RequestID,
		Image:     []byte("someone else"),
	})
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, false, body["success"])
	require.Equal(t, "Face verification failed", body["message"])

	got := <-waiting
	var apiErr *authsdk.APIError
	require.ErrorAs(t, got.err, &apiErr)
	require.Equal(t, "Face verification failed", apiErr.Message)

	status, err := env.client.FaceRequestStatus(ctx, challenge.TempToken, started.RequestID)
	require.NoError(t, err)
	require.Equal(t, "failed", status.Status)
}

func TestFaceLoginErrors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	noFace := env.createUser(t, "heidi@example.com")
	withFace := env.createUser(t, "ivan@example.com")
	env.enableFace(t, withFace.ID, "push-a")

	t.Run("final credential is not a temp token", func(t *testing.T) {
		session := env.session(t, noFace.Email)
		_, err := env.client.StartFaceLogin(ctx, authsdk.FaceLoginRequest{TempToken: session.AccessToken()})
		require.ErrorIs(t, err, authsdk.ErrUnauthorized)
	})

	t.Run("face id not enabled", func(t *testing.T) {
		require.NoError(t, env.store.Users().UpdateTOTPSecret(ctx, noFace.ID, []byte("sealed")))
		require.NoError(t, env.store.Users().EnableTOTP(ctx, noFace.ID))

		challenge := faceChallenge(t, env, noFace.Email)
		_, err := env.client.StartFaceLogin(ctx, authsdk.FaceLoginRequest{TempToken: challenge.TempToken})
		require.ErrorIs(t, err, authsdk.ErrUnauthorized)
	})

	t.Run("forged temp token", func(t *testing.T) {
		_, err := env.client.StartFaceLogin(ctx, authsdk.FaceLoginRequest{TempToken: "forged"})
		require.ErrorIs(t, err, authsdk.ErrUnauthorized)
	})

	t.Run("negative timeout", func(t *testing.T) {
		challenge := faceChallenge(t, env, withFace.Email)
		_, err := env.client.StartFaceLogin(ctx, authsdk.FaceLoginRequest{TempToken: challenge.TempToken, TimeoutMinutes: -1})
		require.ErrorIs(t, err, authsdk.ErrInvalidRequest)
	})

	t.Run("unknown request id", func(t *testing.T) {
		code, body := env.do(t, http.MethodPost, "/auth/2fa/face/complete", "", authsdk.FaceCompleteRequest{
			RequestID: "0b6f1f0e-8f5e-4c8e-9a55-3f2d1c0b9a88",
			Image:     []byte("jpeg"),
		})
		require.Equal(t, http.StatusNotFound, code)
		require.Equal(t, false, body["success"])
	})

	t.Run("missing image", func(t *testing.T) {
		code, _ := env.do(t, http.MethodPost, "/auth/2fa/face/complete", "", map[string]any{"requestId": "x"})
		require.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("status of another user's request", func(t *testing.T) {
		challenge := faceChallenge(t, env, withFace.Email)
		started, err := env.client.StartFaceLogin(ctx, authsdk.FaceLoginRequest{TempToken: challenge.TempToken})
		require.NoError(t, err)

		other := env.createUser(t, "judy@example.com")
		env.enableFace(t, other.ID, "push-j")
		otherChallenge := faceChallenge(t, env, other.Email)

		_, err = env.client.FaceRequestStatus(ctx, otherChallenge.TempToken, started.RequestID)
		require.ErrorIs(t, err, authsdk.ErrNotFound)

		code, _ := env.do(t, http.MethodGet, "/auth/2fa/face/requests/"+started.RequestID, "", nil)
		require.Equal(t, http.StatusUnauthorized, code)
	})
}

func TestFaceLoginRoomRefusesLoggedOutCredential(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := env.createUser(t, "judy@example.com")

	// A final credential from before Face ID was turned on, then logged out.
	stale := env.session(t, user.Email)
	require.NoError(t, stale.Logout(ctx))
	_, err := stale.Me(ctx)
	require.ErrorIs(t, err, authsdk.ErrUnauthorized)

	env.enableFace(t, user.ID, "push-a")
	challenge := faceChallenge(t, env, user.Email)
	started, err := env.client.StartFaceLogin(ctx, authsdk.FaceLoginRequest{TempToken: challenge.TempToken})
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err = env.client.WaitForFaceLogin(waitCtx, stale.AccessToken(), started.RequestID, nil)
	require.ErrorIs(t, err, authsdk.ErrUnauthorized)
	require.Zero(t, env.hub.Members(domain.RoomName(started.RequestID)))

	// The owner's live temp token still joins.
	waiting := startWaiting(t, env, challenge.TempToken, started.RequestID)
	_, err = env.client.CompleteFaceLogin(ctx, started.RequestID, []byte("jpeg bytes"))
	require.NoError(t, err)
	got := <-waiting
	require.NoError(t, got.err)
	require.NotEmpty(t, got.resp.AccessToken)
}
