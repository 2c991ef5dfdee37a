package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/aussiebroadwan/lockbox/internal/auth/service"
	"github.com/aussiebroadwan/lockbox/pkg/authsdk"
	"github.com/aussiebroadwan/lockbox/pkg/httpx"
	"github.com/aussiebroadwan/lockbox/pkg/slogx"
)

// AuthHandler serves the password step, TOTP login, logout and the profile.
type AuthHandler struct {
	LoginService *service.LoginService
	UserService  *service.UserService
}

// HandleRegister handles POST /auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		slogx.FromContext(r.Context()).Debug("invalid register body", "err", err)
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	user, err := h.UserService.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		writeServiceError(w, r, "register failed", err)
		return
	}

	slogx.FromContext(r.Context()).Info("user registered", "user_id", user.ID)
	httpx.WriteJSON(w, http.StatusCreated, authsdk.RegisterResponse{
		Success: true,
		User:    toProfile(user.Profile()),
	})
}

// HandleLogin handles POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	result, err := h.LoginService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, "login failed", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toLoginResponse(result))
}

// HandleTOTPLogin handles POST /auth/2fa/totp/login
func (h *AuthHandler) HandleTOTPLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.TOTPLoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil || req.TempToken == "" || req.Code == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	result, err := h.LoginService.VerifyTOTPLogin(r.Context(), req.TempToken, req.Code)
	if err != nil {
		writeServiceError(w, r, "totp login failed", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toLoginResponse(result))
}

// HandleLogout handles POST /auth/logout. It reports success for missing,
// invalid and already revoked credentials alike.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if token, ok := httpx.BearerToken(r); ok {
		h.LoginService.Logout(r.Context(), token)
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.StatusResponse{Success: true, Message: "Logged out"})
}

// HandleMe handles GET /auth/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())
	if userID == "" {
		authsdk.ErrUnauthorized.WriteError(w)
		return
	}

	user, err := h.UserService.GetUserByID(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, "load profile failed", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    toProfile(user.Profile()),
	})
}

func toProfile(p domain.Profile) authsdk.UserProfile {
	return authsdk.UserProfile{
		ID:          p.ID,
		Email:       p.Email,
		Name:        p.Name,
		TOTPEnabled: p.TOTPEnabled,
		FaceEnabled: p.FaceEnabled,
	}
}

func toLoginResponse(res domain.LoginResult) authsdk.LoginResponse {
	if res.TwoFactorRequired {
		methods := make([]authsdk.TwoFactorMethod, 0, len(res.Methods))
		for _, m := range res.Methods {
			methods = append(methods, authsdk.TwoFactorMethod{Type: m.Type, Name: m.Name})
		}
		return authsdk.LoginResponse{
			Success:           true,
			TwoFactorRequired: true,
			TempToken:         res.TempToken,
			AvailableMethods:  methods,
		}
	}

	resp := authsdk.LoginResponse{Success: true, AccessToken: res.AccessToken}
	if res.User != nil {
		p := toProfile(*res.User)
		resp.User = &p
	}
	return resp
}
