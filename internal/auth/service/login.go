package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/aussiebroadwan/lockbox/internal/auth/store"
	"github.com/aussiebroadwan/lockbox/pkg/cryptox"
	"github.com/aussiebroadwan/lockbox/pkg/slogx"
)

// Stable messages handed to the mobile app and the realtime room.
const (
	MsgNotificationsSent    = "Face ID request sent to your devices"
	MsgVerifying            = "Verifying face"
	MsgFaceAuthSucceeded    = "Face verification successful"
	MsgFaceAuthFailed       = "Face verification failed"
	MsgFaceRequestNotActive = "Face verification request is no longer valid"
)

// FaceAuthOptions are the optional inputs of InitiateFaceAuth.
type FaceAuthOptions struct {
	Timeout    time.Duration
	DeviceInfo map[string]any
}

// LoginService is the login handshake: password, then an optional TOTP or
// Face ID step, then a final credential.
type LoginService struct {
	Store        store.Store
	Tokens       *TokenService
	TOTP         *TOTPService
	FaceRequests *FaceRequestService
	Push         PushGateway
	Faces        FaceVerifier
	Channel      ChannelPublisher
	Revocations  Revoker

	dummyOnce sync.Once
	dummyHash string
}

// Login checks the password. Users without a second factor get a final
// credential, everyone else an intermediate credential and the method list.
func (s *LoginService) Login(ctx context.Context, email, password string) (domain.LoginResult, error) {
	log := slogx.FromContext(ctx)
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Spend the same time as a real comparison.
			_ = cryptox.VerifyPassword(password, s.dummyPasswordHash())
			return domain.LoginResult{}, ErrInvalidCredentials
		}
		return domain.LoginResult{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			log.Error("password verification error", "user_id", user.ID, "err", err)
		}
		return domain.LoginResult{}, ErrInvalidCredentials
	}

	if !user.RequiresSecondFactor() {
		return s.finalize(user, AMRPassword)
	}

	temp, err := s.Tokens.IssueIntermediate(user)
	if err != nil {
		return domain.LoginResult{}, fmt.Errorf("issue intermediate credential: %w", err)
	}

	log.Info("second factor required", "user_id", user.ID)
	return domain.LoginResult{
		TwoFactorRequired: true,
		TempToken:         temp,
		Methods:           user.SecondFactorMethods(),
	}, nil
}

// VerifyTOTPLogin exchanges an intermediate credential and a valid TOTP code
// for a final credential.
func (s *LoginService) VerifyTOTPLogin(ctx context.Context, tempToken, code string) (domain.LoginResult, error) {
	claims, err := s.Tokens.VerifyIntermediate(ctx, tempToken)
	if err != nil {
		return domain.LoginResult{}, err
	}

	if !s.TOTP.VerifyLoginCode(ctx, claims.Subject, code) {
		slogx.FromContext(ctx).Info("totp login rejected", "user_id", claims.Subject)
		return domain.LoginResult{}, ErrUnauthorized
	}

	user, err := s.loadUser(ctx, claims.Subject)
	if err != nil {
		return domain.LoginResult{}, err
	}
	return s.finalize(user, AMRPassword, AMRTOTP)
}

// InitiateFaceAuth opens a face request and pushes it to every registered
// device of the user. The web client then joins the returned room.
func (s *LoginService) InitiateFaceAuth(
	ctx context.Context,
	tempToken string,
	opts FaceAuthOptions,
) (domain.FaceAuthHandle, error) {
	log := slogx.FromContext(ctx)

	claims, err := s.Tokens.VerifyIntermediate(ctx, tempToken)
	if err != nil {
		return domain.FaceAuthHandle{}, err
	}

	user, err := s.loadUser(ctx, claims.Subject)
	if err != nil {
		return domain.FaceAuthHandle{}, err
	}
	if !user.FaceEnabled {
		log.Info("face login attempted without face id enabled", "user_id", user.ID)
		return domain.FaceAuthHandle{}, ErrUnauthorized
	}

	devices, err := s.Store.Devices().ListUserDevices(ctx, user.ID)
	if err != nil {
		return domain.FaceAuthHandle{}, fmt.Errorf("list devices: %w", err)
	}
	if len(devices) == 0 {
		log.Info("face login attempted with no registered devices", "user_id", user.ID)
		return domain.FaceAuthHandle{}, ErrUnauthorized
	}

	req, err := s.FaceRequests.Create(ctx, user.ID, opts.Timeout, opts.DeviceInfo, nil)
	if err != nil {
		return domain.FaceAuthHandle{}, err
	}

	tokens := make([]string, 0, len(devices))
	for _, d := range devices {
		tokens = append(tokens, d.PushToken)
	}
	s.dispatchPush(ctx, tokens, domain.FacePushRequest{
		RequestID:  req.ID,
		UserID:     user.ID,
		ExpiresAt:  req.ExpiresAt,
		DeviceInfo: opts.DeviceInfo,
	})

	if err := s.Channel.PublishStatus(ctx, req.ID, domain.StatusNotificationsSent, MsgNotificationsSent); err != nil {
		log.Warn("publish face auth status failed", "request_id", req.ID, "err", err)
	}

	return domain.FaceAuthHandle{
		RequestID:       req.ID,
		Status:          req.Status,
		Room:            domain.RoomName(req.ID),
		ExpiresAt:       req.ExpiresAt,
		DevicesNotified: len(devices),
	}, nil
}

func (s *LoginService) dispatchPush(ctx context.Context, tokens []string, req domain.FacePushRequest) {
	log := slogx.FromContext(ctx)

	outcomes, err := s.Push.SendFaceAuthRequest(ctx, tokens, req)
	if err != nil {
		// The request stays pending; the user can still approve on a device
		// that did receive it, or the request expires.
		log.Error("push dispatch failed", "request_id", req.RequestID, "err", err)
		return
	}

	delivered := 0
	for _, o := range outcomes {
		if o.Delivered {
			delivered++
			continue
		}
		log.Warn("push not delivered",
			"request_id", req.RequestID,
			"token", cryptox.FingerprintToken(o.PushToken),
			"error", o.Error)
	}
	log.Info("face auth push dispatched",
		slog.String("request_id", req.RequestID),
		slog.Int("devices", len(tokens)),
		slog.Int("delivered", delivered))
}

// CompleteFaceAuth is called by the mobile app with a face image. The final
// credential goes to the web client through the realtime room only; the
// mobile caller learns success or failure and nothing else.
func (s *LoginService) CompleteFaceAuth(ctx context.Context, requestID string, image []byte) (domain.CompletionResult, error) {
	log := slogx.FromContext(ctx)

	req, err := s.FaceRequests.ValidateActionable(ctx, requestID)
	if err != nil {
		s.publishFailure(ctx, requestID, MsgFaceRequestNotActive)
		return failed(MsgFaceRequestNotActive), s.requestError(err)
	}

	if err := s.Channel.PublishStatus(ctx, req.ID, domain.StatusVerifying, MsgVerifying); err != nil {
		log.Warn("publish face auth status failed", "request_id", req.ID, "err", err)
	}

	match, err := s.Faces.VerifyFace(ctx, req.UserID, image)
	if err != nil {
		log.Error("face verification service failed", "request_id", req.ID, "err", err)
		if _, cerr := s.FaceRequests.Complete(ctx, req.ID, false, "verification service unavailable", nil); cerr != nil {
			log.Warn("mark face request failed", "request_id", req.ID, "err", cerr)
		}
		s.publishFailure(ctx, req.ID, MsgFaceAuthFailed)
		return failed(MsgFaceAuthFailed), fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	result := map[string]any{"probability": match.Probability}

	if !match.Authenticated {
		if _, err := s.FaceRequests.Complete(ctx, req.ID, false, "face not recognized", result); err != nil {
			s.publishFailure(ctx, req.ID, MsgFaceRequestNotActive)
			return failed(MsgFaceRequestNotActive), s.requestError(err)
		}
		log.Info("face verification rejected", "request_id", req.ID, "user_id", req.UserID)
		s.publishFailure(ctx, req.ID, MsgFaceAuthFailed)
		return failed(MsgFaceAuthFailed), ErrUnauthorized
	}

	user, err := s.loadUser(ctx, req.UserID)
	if err != nil {
		s.publishFailure(ctx, req.ID, MsgFaceAuthFailed)
		return failed(MsgFaceAuthFailed), err
	}

	if _, err := s.FaceRequests.Complete(ctx, req.ID, true, "", result); err != nil {
		// A concurrent completion already published its own result.
		if errors.Is(err, ErrFaceRequestExpired) {
			s.publishFailure(ctx, req.ID, MsgFaceRequestNotActive)
		}
		return failed(MsgFaceRequestNotActive), s.requestError(err)
	}

	login, err := s.finalize(user, AMRPassword, AMRFace)
	if err != nil {
		log.Error("issue final credential after face match", "request_id", req.ID, "err", err)
		s.publishFailure(ctx, req.ID, MsgFaceAuthFailed)
		return failed(MsgFaceAuthFailed), err
	}

	if err := s.Channel.PublishCompletion(ctx, req.ID, domain.FaceAuthCompletePayload{
		Success: true,
		Data: &domain.FaceAuthCompleteData{
			AccessToken: login.AccessToken,
			User:        *login.User,
		},
	}); err != nil {
		log.Error("publish face auth completion failed", "request_id", req.ID, "err", err)
	}

	if n, err := s.FaceRequests.CancelPendingForUser(ctx, user.ID); err != nil {
		log.Warn("cancel sibling face requests", "user_id", user.ID, "err", err)
	} else if n > 0 {
		log.Info("cancelled sibling face requests", "user_id", user.ID, "count", n)
	}

	log.Info("face login completed", "request_id", req.ID, "user_id", user.ID)
	return domain.CompletionResult{Success: true, Message: MsgFaceAuthSucceeded}, nil
}

// FaceAuthStatus lets the web client poll a request it started when it missed
// the realtime event. Requests of other users look like unknown ids.
func (s *LoginService) FaceAuthStatus(ctx context.Context, tempToken, requestID string) (domain.FaceAuthRequest, error) {
	claims, err := s.Tokens.VerifyIntermediate(ctx, tempToken)
	if err != nil {
		return domain.FaceAuthRequest{}, err
	}

	req, err := s.FaceRequests.Get(ctx, requestID)
	if err != nil {
		return domain.FaceAuthRequest{}, s.requestError(err)
	}
	if req.UserID != claims.Subject {
		return domain.FaceAuthRequest{}, ErrNotFound
	}
	return req, nil
}

// Logout revokes the credential. It never fails from the caller's point of
// view: an invalid token is revoked anyway and registry errors are logged.
func (s *LoginService) Logout(ctx context.Context, token string) {
	log := slogx.FromContext(ctx)
	if token == "" {
		return
	}

	var expiresAt time.Time
	if claims, err := s.Tokens.Verify(token); err == nil {
		expiresAt = claims.Expiry()
		log.Info("logout", "user_id", claims.Subject)
	} else {
		log.Debug("logout with unverifiable token", "err", err)
	}

	if err := s.Revocations.Revoke(ctx, token, expiresAt); err != nil {
		log.Error("revoke credential failed", "err", err)
	}
}

func (s *LoginService) finalize(user domain.User, amr ...string) (domain.LoginResult, error) {
	token, err := s.Tokens.IssueFinal(user, amr...)
	if err != nil {
		return domain.LoginResult{}, fmt.Errorf("issue final credential: %w", err)
	}
	profile := user.Profile()
	return domain.LoginResult{AccessToken: token, User: &profile}, nil
}

func (s *LoginService) loadUser(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUnauthorized
		}
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// requestError maps face request failures onto the client taxonomy.
func (s *LoginService) requestError(err error) error {
	switch {
	case errors.Is(err, ErrFaceRequestNotFound):
		return ErrNotFound
	case errors.Is(err, ErrFaceRequestExpired), errors.Is(err, ErrFaceRequestNotPending):
		return ErrBadRequest
	default:
		return err
	}
}

func (s *LoginService) publishFailure(ctx context.Context, requestID, message string) {
	err := s.Channel.PublishCompletion(ctx, requestID, domain.FaceAuthCompletePayload{
		Success: false,
		Error:   message,
	})
	if err != nil {
		slogx.FromContext(ctx).Warn("publish face auth failure", "request_id", requestID, "err", err)
	}
}

func (s *LoginService) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		h, err := cryptox.HashPassword("lockbox-timing-equalisation")
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

func failed(message string) domain.CompletionResult {
	return domain.CompletionResult{Success: false, Message: message}
}
