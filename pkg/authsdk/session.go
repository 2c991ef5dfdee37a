package authsdk

import (
	"context"
	"net/http"
	"net/url"
	"sync"
)

// Session holds a final credential. Credentials are not refreshed: once the
// server rejects it the caller logs in again.
type Session struct {
	client *SDKClient

	mu          sync.RWMutex
	accessToken string
}

// AccessToken returns the session's credential.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// Logout revokes the credential server-side and clears it locally. The
// server reports success even for credentials it no longer accepts.
func (s *Session) Logout(ctx context.Context) error {
	err := s.client.Logout(ctx, s.AccessToken())

	s.mu.Lock()
	s.accessToken = ""
	s.mu.Unlock()

	return err
}

// Me returns the authenticated user's profile.
func (s *Session) Me(ctx context.Context) (*UserProfile, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/auth/me", nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		Success bool        `json:"success"`
		User    UserProfile `json:"user"`
	}
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// SetupTOTP starts authenticator enrollment. TOTP stays disabled until
// ConfirmTOTP succeeds.
func (s *Session) SetupTOTP(ctx context.Context) (*TOTPSetupResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/auth/2fa/totp/setup", nil)
	if err != nil {
		return nil, err
	}

	var out TOTPSetupResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfirmTOTP enables TOTP with a code from the authenticator app.
func (s *Session) ConfirmTOTP(ctx context.Context, code string) error {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/auth/2fa/totp/confirm", TOTPConfirmRequest{Code: code})
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil, http.StatusOK)
}

// DisableTOTP removes the authenticator secret.
func (s *Session) DisableTOTP(ctx context.Context) error {
	resp, err := s.doAuthRequest(ctx, http.MethodDelete, "/auth/2fa/totp", nil)
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil, http.StatusOK)
}

// EnableFace turns Face ID on. At least one device must be registered.
func (s *Session) EnableFace(ctx context.Context) error {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/auth/2fa/face/enable", nil)
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil, http.StatusOK)
}

// DisableFace turns Face ID off.
func (s *Session) DisableFace(ctx context.Context) error {
	resp, err := s.doAuthRequest(ctx, http.MethodDelete, "/auth/2fa/face", nil)
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil, http.StatusOK)
}

// RegisterDevice registers a push token. Registering the same token again
// refreshes the existing device.
func (s *Session) RegisterDevice(ctx context.Context, req RegisterDeviceRequest) (*DeviceInfo, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/devices", req)
	if err != nil {
		return nil, err
	}

	var out DeviceResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out.Device, nil
}

// ListDevices returns the user's registered devices.
func (s *Session) ListDevices(ctx context.Context) ([]DeviceInfo, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/devices", nil)
	if err != nil {
		return nil, err
	}

	var out ListDevicesResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Devices, nil
}

// DeleteDevice removes a device. Removing the last one also disables Face ID.
func (s *Session) DeleteDevice(ctx context.Context, deviceID string) error {
	resp, err := s.doAuthRequest(ctx, http.MethodDelete, "/devices/"+url.PathEscape(deviceID), nil)
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil, http.StatusOK)
}
