package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/service"
	"github.com/aussiebroadwan/lockbox/pkg/authsdk"
	"github.com/aussiebroadwan/lockbox/pkg/httpx"
	"github.com/aussiebroadwan/lockbox/pkg/slogx"
)

// FaceLoginHandler serves the Face ID branch of the login handshake.
type FaceLoginHandler struct {
	LoginService *service.LoginService
}

// HandleInitiate handles POST /auth/2fa/face/login/web
func (h *FaceLoginHandler) HandleInitiate(w http.ResponseWriter, r *http.Request) {
	var req authsdk.FaceLoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil || req.TempToken == "" || req.TimeoutMinutes < 0 {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	handle, err := h.LoginService.InitiateFaceAuth(r.Context(), req.TempToken, service.FaceAuthOptions{
		Timeout:    time.Duration(req.TimeoutMinutes) * time.Minute,
		DeviceInfo: browserContext(r, req.DeviceInfo),
	})
	if err != nil {
		writeServiceError(w, r, "initiate face auth failed", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.FaceLoginResponse{
		Success:         true,
		RequestID:       handle.RequestID,
		Status:          string(handle.Status),
		WebsocketRoom:   handle.Room,
		ExpiresAt:       handle.ExpiresAt,
		DevicesNotified: handle.DevicesNotified,
	})
}

// HandleComplete handles POST /auth/2fa/face/complete. The mobile app only
// ever learns success or failure.
func (h *FaceLoginHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	var req authsdk.FaceCompleteRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil || req.RequestID == "" || len(req.Image) == 0 {
		slogx.FromContext(r.Context()).Debug("invalid face completion body", "err", err)
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	result, err := h.LoginService.CompleteFaceAuth(r.Context(), req.RequestID, req.Image)
	if err != nil {
		apiErr, known := apiError(err)
		if !known {
			slogx.FromContext(r.Context()).Error("complete face auth failed", "request_id", req.RequestID, "err", err)
		}
		if result.Message != "" {
			apiErr = authsdk.NewAPIError(apiErr.StatusCode, result.Message)
		}
		apiErr.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.StatusResponse{
		Success: result.Success,
		Message: result.Message,
	})
}

// HandleStatus handles GET /auth/2fa/face/requests/{id}. The intermediate
// credential that started the request is the bearer.
func (h *FaceLoginHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	token, ok := httpx.BearerToken(r)
	if !ok {
		authsdk.ErrUnauthorized.WriteError(w)
		return
	}

	req, err := h.LoginService.FaceAuthStatus(r.Context(), token, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "face auth status failed", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.FaceRequestStatusResponse{
		Success:       true,
		RequestID:     req.ID,
		Status:        string(req.Status),
		ExpiresAt:     req.ExpiresAt,
		CompletedAt:   req.CompletedAt,
		FailureReason: req.FailureReason,
	})
}

// browserContext records where the attempt came from so the phone can show
// it. Client-supplied values win.
func browserContext(r *http.Request, supplied map[string]any) map[string]any {
	info := map[string]any{
		"userAgent": r.UserAgent(),
		"ipAddress": httpx.IPKeyExtractor(r),
	}
	for k, v := range supplied {
		info[k] = v
	}
	return info
}
