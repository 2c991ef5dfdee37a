package http

import (
	"net/http"

	"github.com/aussiebroadwan/lockbox/internal/auth/service"
	"github.com/aussiebroadwan/lockbox/pkg/authsdk"
	"github.com/aussiebroadwan/lockbox/pkg/httpx"
	"github.com/aussiebroadwan/lockbox/pkg/slogx"
)

// SecondFactorHandler lets a logged-in user manage TOTP and Face ID.
type SecondFactorHandler struct {
	TOTPService *service.TOTPService
	UserService *service.UserService
}

// HandleTOTPSetup handles POST /auth/2fa/totp/setup
func (h *SecondFactorHandler) HandleTOTPSetup(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())

	setup, err := h.TOTPService.Setup(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, "totp setup failed", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.TOTPSetupResponse{
		Success: true,
		Secret:  setup.Secret,
		URI:     setup.URI,
		Issuer:  setup.Issuer,
		Account: setup.Account,
	})
}

// HandleTOTPConfirm handles POST /auth/2fa/totp/confirm
func (h *SecondFactorHandler) HandleTOTPConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := httpx.UserIDFromContext(ctx)

	var req authsdk.TOTPConfirmRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil || req.Code == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.TOTPService.ConfirmSetup(ctx, userID, req.Code); err != nil {
		writeServiceError(w, r, "totp confirm failed", err)
		return
	}

	slogx.FromContext(ctx).Info("totp enabled", "user_id", userID)
	httpx.WriteJSON(w, http.StatusOK, authsdk.StatusResponse{Success: true, Message: "TOTP enabled"})
}

// HandleTOTPDisable handles DELETE /auth/2fa/totp
func (h *SecondFactorHandler) HandleTOTPDisable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := httpx.UserIDFromContext(ctx)

	if err := h.TOTPService.Disable(ctx, userID); err != nil {
		writeServiceError(w, r, "totp disable failed", err)
		return
	}

	slogx.FromContext(ctx).Info("totp disabled", "user_id", userID)
	httpx.WriteJSON(w, http.StatusOK, authsdk.StatusResponse{Success: true, Message: "TOTP disabled"})
}

// HandleFaceEnable handles POST /auth/2fa/face/enable
func (h *SecondFactorHandler) HandleFaceEnable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := httpx.UserIDFromContext(ctx)

	if err := h.UserService.EnableFace(ctx, userID); err != nil {
		writeServiceError(w, r, "face enable failed", err)
		return
	}

	slogx.FromContext(ctx).Info("face id enabled", "user_id", userID)
	httpx.WriteJSON(w, http.StatusOK, authsdk.StatusResponse{Success: true, Message: "Face ID enabled"})
}

// HandleFaceDisable handles DELETE /auth/2fa/face
func (h *SecondFactorHandler) HandleFaceDisable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := httpx.UserIDFromContext(ctx)

	if err := h.UserService.DisableFace(ctx, userID); err != nil {
		writeServiceError(w, r, "face disable failed", err)
		return
	}

	slogx.FromContext(ctx).Info("face id disabled", "user_id", userID)
	httpx.WriteJSON(w, http.StatusOK, authsdk.StatusResponse{Success: true, Message: "Face ID disabled"})
}
