package authsdk_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/lockbox/pkg/authsdk"
	"github.com/aussiebroadwan/lockbox/pkg/httpx"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req authsdk.LoginRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		switch req.Email {
		case "plain@example.com":
			httpx.WriteJSON(w, http.StatusOK, authsdk.LoginResponse{
				Success:     true,
				AccessToken: "final",
				User:        &authsdk.UserProfile{ID: "u1", Email: req.Email},
			})
		case "mfa@example.com":
			httpx.WriteJSON(w, http.StatusOK, authsdk.LoginResponse{
				Success:           true,
				TwoFactorRequired: true,
				TempToken:         "temp",
				AvailableMethods:  []authsdk.TwoFactorMethod{{Type: "totp", Name: "Authenticator App"}},
			})
		default:
			authsdk.ErrInvalidCredentials.WriteError(w)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := authsdk.NewSDKClient(srv.URL + "/")
	ctx := context.Background()

	t.Run("no second factor", func(t *testing.T) {
		session, resp, err := client.Authenticate(ctx, "plain@example.com", "pw")
		require.NoError(t, err)
		require.Equal(t, "final", session.AccessToken())
		require.Equal(t, "u1", resp.User.ID)
	})

	t.Run("second factor required", func(t *testing.T) {
		session, resp, err := client.Authenticate(ctx, "mfa@example.com", "pw")
		require.ErrorIs(t, err, authsdk.ErrSecondFactorRequired)
		require.Nil(t, session)
		require.Equal(t, "temp", resp.TempToken)
		require.Len(t, resp.AvailableMethods, 1)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := client.Authenticate(ctx, "nobody@example.com", "pw")
		require.ErrorIs(t, err, authsdk.ErrInvalidCredentials)

		var apiErr *authsdk.APIError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	})
}

func TestSessionSendsBearer(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	record := func(r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, r.Header.Get("Authorization"))
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /devices", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		httpx.WriteJSON(w, http.StatusCreated, authsdk.DeviceResponse{
			Success: true,
			Device:  authsdk.DeviceInfo{ID: "d1", Platform: "ios"},
		})
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		httpx.WriteJSON(w, http.StatusOK, authsdk.StatusResponse{Success: true})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	session := authsdk.NewSDKClient(srv.URL).NewSession("tok")
	ctx := context.Background()

	d, err := session.RegisterDevice(ctx, authsdk.RegisterDeviceRequest{PushToken: "p", Platform: "ios"})
	require.NoError(t, err)
	require.Equal(t, "d1", d.ID)

	require.NoError(t, session.Logout(ctx))
	require.Empty(t, session.AccessToken())
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"Bearer tok", "Bearer tok"}, seen)
}

func TestErrorFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	_, err := authsdk.NewSDKClient(srv.URL).Login(context.Background(), "a@example.com", "pw")
	var apiErr *authsdk.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusTeapot, apiErr.StatusCode)
}

func TestWaitForFaceLogin(t *testing.T) {
	upgrader := websocket.Upgrader{}

	serve := func(frames ...any) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/realtime", r.URL.Path)
			assert.Equal(t, "req-1", r.URL.Query().Get("requestId"))
			assert.Equal(t, "temp", r.URL.Query().Get("token"))

			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			defer conn.Close()
			for _, f := range frames {
				if err := conn.WriteJSON(f); err != nil {
					return
				}
			}
			// Keep the socket open until the client hangs up.
			_, _, _ = conn.ReadMessage()
		}))
	}

	event := func(typ string, payload any) map[string]any {
		return map[string]any{"type": typ, "room": "face_auth_req-1", "payload": payload}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Run("success", func(t *testing.T) {
		srv := serve(
			map[string]any{"type": "joined", "room": "face_auth_req-1"},
			event("face_auth_status", map[string]any{"status": "verifying", "message": "Verifying face"}),
			event("face_auth_complete", map[string]any{
				"success": true,
				"data":    map[string]any{"access_token": "final", "user": map[string]any{"id": "u1"}},
			}),
		)
		defer srv.Close()

		var statuses []string
		resp, err := authsdk.NewSDKClient(srv.URL).WaitForFaceLogin(ctx, "temp", "req-1", func(s authsdk.FaceAuthStatus) {
			statuses = append(statuses, s.Status)
		})
		require.NoError(t, err)
		require.Equal(t, "final", resp.AccessToken)
		require.Equal(t, "u1", resp.User.ID)
		require.Equal(t, []string{"verifying"}, statuses)
	})

	t.Run("failure", func(t *testing.T) {
		srv := serve(event("face_auth_complete", map[string]any{"success": false, "error": "Face verification failed"}))
		defer srv.Close()

		_, err := authsdk.NewSDKClient(srv.URL).WaitForFaceLogin(ctx, "temp", "req-1", nil)
		var apiErr *authsdk.APIError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, "Face verification failed", apiErr.Message)
	})

	t.Run("join refused", func(t *testing.T) {
		srv := serve(map[string]any{"type": "error", "room": "face_auth_req-1", "message": "Unauthorized"})
		defer srv.Close()

		_, err := authsdk.NewSDKClient(srv.URL).WaitForFaceLogin(ctx, "temp", "req-1", nil)
		require.ErrorIs(t, err, authsdk.ErrUnauthorized)
	})

	t.Run("cancelled", func(t *testing.T) {
		srv := serve()
		defer srv.Close()

		short, cancelShort := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancelShort()

		_, err := authsdk.NewSDKClient(srv.URL).WaitForFaceLogin(short, "temp", "req-1", nil)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
