package authsdk

import (
	"time"

	"github.com/aussiebroadwan/lockbox/pkg/jwtx"
)

// ============================================================================
// Common Types
// ============================================================================

// StatusResponse is the envelope of every failure and of endpoints that only
// report success.
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// UserProfile is the user view returned with a final credential and from
// GET /auth/me.
type UserProfile struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	TOTPEnabled bool   `json:"totpEnabled"`
	FaceEnabled bool   `json:"faceEnabled"`
}

// TwoFactorMethod is one entry of available_2fa_methods.
type TwoFactorMethod struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// ============================================================================
// Login Types
// ============================================================================

// RegisterRequest creates a user with no second factor.
type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// RegisterResponse is returned from POST /auth/register.
type RegisterResponse struct {
	Success bool        `json:"success"`
	User    UserProfile `json:"user"`
}

// LoginRequest is the password step of the handshake.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned from POST /auth/login and POST /auth/2fa/totp/login.
//
// When TwoFactorRequired is set, AccessToken and User are empty and TempToken
// must be exchanged through one of AvailableMethods.
type LoginResponse struct {
	Success     bool         `json:"success"`
	AccessToken string       `json:"access_token,omitempty"`
	User        *UserProfile `json:"user,omitempty"`

	TwoFactorRequired bool              `json:"twoFactorRequired,omitempty"`
	TempToken         string            `json:"tempToken,omitempty"`
	AvailableMethods  []TwoFactorMethod `json:"available_2fa_methods,omitempty"`
}

// TOTPLoginRequest exchanges an intermediate credential and a TOTP code.
type TOTPLoginRequest struct {
	TempToken string `json:"tempToken"`
	Code      string `json:"code"`
}

// ============================================================================
// Face ID Types
// ============================================================================

// FaceLoginRequest starts a Face ID attempt from the web client.
type FaceLoginRequest struct {
	TempToken      string         `json:"tempToken"`
	TimeoutMinutes int            `json:"timeoutMinutes,omitempty"`
	DeviceInfo     map[string]any `json:"deviceInfo,omitempty"`
}

// FaceLoginResponse tells the web client which realtime room to join.
type FaceLoginResponse struct {
	Success         bool      `json:"success"`
	RequestID       string    `json:"requestId"`
	Status          string    `json:"status"`
	WebsocketRoom   string    `json:"websocketRoom"`
	ExpiresAt       time.Time `json:"expiresAt"`
	DevicesNotified int       `json:"devicesNotified"`
}

// FaceCompleteRequest is sent by the mobile app. Image is the raw capture;
// encoding/json carries it as base64.
type FaceCompleteRequest struct {
	RequestID string `json:"requestId"`
	Image     []byte `json:"image"`
}

// FaceRequestStatusResponse is returned from GET /auth/2fa/face/requests/{id}.
type FaceRequestStatusResponse struct {
	Success       bool       `json:"success"`
	RequestID     string     `json:"requestId"`
	Status        string     `json:"status"`
	ExpiresAt     time.Time  `json:"expiresAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	FailureReason string     `json:"failureReason,omitempty"`
}

// ============================================================================
// Second-Factor Management Types
// ============================================================================

// TOTPSetupResponse carries the secret to load into an authenticator app.
type TOTPSetupResponse struct {
	Success bool   `json:"success"`
	Secret  string `json:"secret"`
	URI     string `json:"uri"`
	Issuer  string `json:"issuer"`
	Account string `json:"account"`
}

// TOTPConfirmRequest proves possession of the secret and enables TOTP.
type TOTPConfirmRequest struct {
	Code string `json:"code"`
}

// ============================================================================
// Device Types
// ============================================================================

// RegisterDeviceRequest registers a mobile app installation for push.
type RegisterDeviceRequest struct {
	PushToken string `json:"pushToken"`
	Platform  string `json:"platform"`
	Name      string `json:"name,omitempty"`
}

// DeviceInfo describes one registered device. The push token is never echoed.
type DeviceInfo struct {
	ID         string    `json:"id"`
	Platform   string    `json:"platform"`
	Name       string    `json:"name,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

// DeviceResponse is returned from POST /devices.
type DeviceResponse struct {
	Success bool       `json:"success"`
	Device  DeviceInfo `json:"device"`
}

// ListDevicesResponse is returned from GET /devices.
type ListDevicesResponse struct {
	Success bool         `json:"success"`
	Devices []DeviceInfo `json:"devices"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`

	// Redis is only reported when a shared registry is configured.
	Redis string `json:"redis,omitempty"`
}

// ============================================================================
// JWKS Types
// ============================================================================

// JWKSResponse contains the JSON Web Key Set used by the box and reservation
// services to verify final credentials.
type JWKSResponse jwtx.JWKS
