package http

import (
	"net/http"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/aussiebroadwan/lockbox/internal/auth/service"
	"github.com/aussiebroadwan/lockbox/pkg/authsdk"
	"github.com/aussiebroadwan/lockbox/pkg/httpx"
)

// DevicesHandler manages the push targets of the authenticated user.
type DevicesHandler struct {
	DeviceService *service.DeviceService
}

// HandleRegister handles POST /devices
func (h *DevicesHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterDeviceRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	d, err := h.DeviceService.Register(r.Context(), httpx.UserIDFromContext(r.Context()), req.PushToken, req.Platform, req.Name)
	if err != nil {
		writeServiceError(w, r, "register device failed", err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, authsdk.DeviceResponse{Success: true, Device: toDeviceInfo(d)})
}

// HandleList handles GET /devices
func (h *DevicesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	devices, err := h.DeviceService.List(r.Context(), httpx.UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, "list devices failed", err)
		return
	}

	out := make([]authsdk.DeviceInfo, 0, len(devices))
	for _, d := range devices {
		out = append(out, toDeviceInfo(d))
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.ListDevicesResponse{Success: true, Devices: out})
}

// HandleDelete handles DELETE /devices/{id}
func (h *DevicesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.DeviceService.Delete(r.Context(), httpx.UserIDFromContext(r.Context()), r.PathValue("id")); err != nil {
		writeServiceError(w, r, "delete device failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.StatusResponse{Success: true, Message: "Device removed"})
}

func toDeviceInfo(d domain.Device) authsdk.DeviceInfo {
	return authsdk.DeviceInfo{
		ID:         d.ID,
		Platform:   d.Platform,
		Name:       d.Name,
		CreatedAt:  d.CreatedAt,
		LastSeenAt: d.LastSeenAt,
	}
}
