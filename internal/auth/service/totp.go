package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/aussiebroadwan/lockbox/internal/auth/store"
	"github.com/aussiebroadwan/lockbox/pkg/cryptox"
	"github.com/aussiebroadwan/lockbox/pkg/slogx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

var (
	ErrTOTPSetupNotInitiated = errors.New("TOTP setup not initiated")
	ErrInvalidTOTPCode       = errors.New("invalid TOTP code")
	ErrTOTPAlreadyEnabled    = errors.New("TOTP already enabled for this user")
)

// totpValidateOpts accepts the current 30s step and one step either side.
var totpValidateOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// TOTPService owns the authenticator-app secret of each user. The secret is
// only ever stored sealed by Box.
type TOTPService struct {
	Store  store.Store
	Box    *cryptox.SecretBox
	Issuer string // shown in the authenticator app, e.g. "Lockbox"

	Now func() time.Time
}

func (s *TOTPService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Setup generates a fresh secret and stores it sealed. TOTP stays disabled
// until ConfirmSetup sees a valid code.
func (s *TOTPService) Setup(ctx context.Context, userID string) (domain.TOTPSetup, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return domain.TOTPSetup{}, fmt.Errorf("get user: %w", err)
	}
	if user.TOTPEnabled {
		return domain.TOTPSetup{}, ErrTOTPAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: user.Email,
	})
	if err != nil {
		return domain.TOTPSetup{}, fmt.Errorf("generate TOTP secret: %w", err)
	}

	sealed, err := s.Box.Seal([]byte(key.Secret()))
	if err != nil {
		return domain.TOTPSetup{}, fmt.Errorf("seal TOTP secret: %w", err)
	}
	if err := s.Store.Users().UpdateTOTPSecret(ctx, userID, sealed); err != nil {
		return domain.TOTPSetup{}, fmt.Errorf("store TOTP secret: %w", err)
	}

	return domain.TOTPSetup{
		Secret:  key.Secret(),
		URI:     key.URL(),
		Issuer:  key.Issuer(),
		Account: key.AccountName(),
	}, nil
}

// ConfirmSetup enables TOTP once the user proves possession of the secret.
func (s *TOTPService) ConfirmSetup(ctx context.Context, userID, code string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if len(user.TOTPSecret) == 0 {
		return ErrTOTPSetupNotInitiated
	}

	if !s.check(ctx, user, code) {
		return ErrInvalidTOTPCode
	}

	if err := s.Store.Users().EnableTOTP(ctx, userID); err != nil {
		return fmt.Errorf("enable TOTP: %w", err)
	}
	return nil
}

// VerifyLoginCode reports whether code is valid for an enabled TOTP user. It
// never fails: a missing user, a disabled factor or an undecryptable secret
// are all just false.
func (s *TOTPService) VerifyLoginCode(ctx context.Context, userID, code string) bool {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slogx.FromContext(ctx).Error("totp: load user", "user_id", userID, "err", err)
		}
		return false
	}
	if !user.TOTPEnabled || len(user.TOTPSecret) == 0 {
		return false
	}
	return s.check(ctx, user, code)
}

// Disable clears the secret and turns TOTP off.
func (s *TOTPService) Disable(ctx context.Context, userID string) error {
	if err := s.Store.Users().DisableTOTP(ctx, userID); err != nil {
		return fmt.Errorf("disable TOTP: %w", err)
	}
	return nil
}

func (s *TOTPService) check(ctx context.Context, user domain.User, code string) bool {
	code = normalizeTOTPCode(code)
	if code == "" {
		return false
	}

	secret, err := s.Box.Open(user.TOTPSecret)
	if err != nil {
		slogx.FromContext(ctx).Warn("totp: secret could not be opened", "user_id", user.ID, "err", err)
		return false
	}

	ok, err := totp.ValidateCustom(code, string(secret), s.now().UTC(), totpValidateOpts)
	return err == nil && ok
}

func normalizeTOTPCode(code string) string {
	return strings.ReplaceAll(strings.TrimSpace(code), " ", "")
}
