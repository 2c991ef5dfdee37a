package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/lockbox/internal/auth/service"
	"github.com/aussiebroadwan/lockbox/pkg/authsdk"
	"github.com/aussiebroadwan/lockbox/pkg/slogx"
)

// apiError maps a service error onto the stable client message. Unknown
// errors become a 500; the caller logs them.
func apiError(err error) (*authsdk.APIError, bool) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return authsdk.ErrInvalidCredentials, true
	case errors.Is(err, service.ErrUnauthorized):
		return authsdk.ErrUnauthorized, true
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrUserNotFound):
		return authsdk.ErrNotFound, true
	case errors.Is(err, service.ErrBadRequest):
		return authsdk.ErrRequestNotActive, true
	case errors.Is(err, service.ErrUpstream):
		return authsdk.ErrVerificationUnavailable, true

	case errors.Is(err, service.ErrEmailTaken):
		return authsdk.NewAPIError(http.StatusConflict, "Email already registered"), true
	case errors.Is(err, service.ErrInvalidEmail):
		return authsdk.NewAPIError(http.StatusBadRequest, "Invalid email address"), true
	case errors.Is(err, service.ErrWeakPassword):
		return authsdk.NewAPIError(http.StatusBadRequest, "Password too short"), true
	case errors.Is(err, service.ErrInvalidDevice):
		return authsdk.NewAPIError(http.StatusBadRequest, "Invalid device registration"), true
	case errors.Is(err, service.ErrNoDevices):
		return authsdk.NewAPIError(http.StatusBadRequest, "Register a device before enabling Face ID"), true
	case errors.Is(err, service.ErrTOTPSetupNotInitiated):
		return authsdk.NewAPIError(http.StatusBadRequest, "TOTP setup not initiated"), true
	case errors.Is(err, service.ErrTOTPAlreadyEnabled):
		return authsdk.NewAPIError(http.StatusBadRequest, "TOTP already enabled"), true
	case errors.Is(err, service.ErrInvalidTOTPCode):
		return authsdk.NewAPIError(http.StatusBadRequest, "Invalid TOTP code"), true
	}
	return authsdk.ErrServerError, false
}

// writeServiceError writes err as {"success": false, "message": ...}.
func writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	apiErr, known := apiError(err)
	if !known {
		slogx.FromContext(r.Context()).Error(msg, "err", err)
	} else if errors.Is(err, service.ErrUpstream) {
		slogx.FromContext(r.Context()).Warn(msg, "err", err)
	}
	apiErr.WriteError(w)
}
