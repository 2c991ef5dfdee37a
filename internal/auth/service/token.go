package service

import (
	"context"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/aussiebroadwan/lockbox/pkg/jwtx"
	"github.com/aussiebroadwan/lockbox/pkg/slogx"
)

// Authentication method references stamped into the amr claim.
const (
	AMRPassword = "pwd"
	AMRTOTP     = "otp"
	AMRFace     = "face"
)

type TokenService struct {
	KeyManager *jwtx.KeyManager
	Issuer     string

	// IntermediateTTL is capped at jwtx.DefaultIntermediateTTL.
	IntermediateTTL time.Duration
	AccessTTL       time.Duration

	Now func() time.Time
}

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *TokenService) intermediateTTL() time.Duration {
	if s.IntermediateTTL <= 0 || s.IntermediateTTL > jwtx.DefaultIntermediateTTL {
		return jwtx.DefaultIntermediateTTL
	}
	return s.IntermediateTTL
}

func (s *TokenService) accessTTL() time.Duration {
	if s.AccessTTL <= 0 {
		return jwtx.DefaultAccessTTL
	}
	return s.AccessTTL
}

// IssueIntermediate mints the credential returned after a correct password
// when a second factor is still required.
func (s *TokenService) IssueIntermediate(u domain.User) (string, error) {
	claims := jwtx.NewIntermediateClaims(u.ID, u.Email, s.Issuer, s.intermediateTTL(), s.now())
	return s.KeyManager.Signer.Sign(claims)
}

// IssueFinal mints a session credential. amr lists the factors that were
// satisfied.
func (s *TokenService) IssueFinal(u domain.User, amr ...string) (string, error) {
	if len(amr) == 0 {
		amr = []string{AMRPassword}
	}
	claims := jwtx.NewAccessClaims(u.ID, u.Email, s.Issuer, amr, s.accessTTL(), s.now())
	return s.KeyManager.Signer.Sign(claims)
}

// Verify returns the claims of any credential this service issued. The error
// keeps the jwtx classification for logging.
func (s *TokenService) Verify(token string) (jwtx.Claims, error) {
	return s.KeyManager.Verifier.Verify(token)
}

// VerifyIntermediate accepts only a valid intermediate credential with the
// second factor still pending. Every failure is ErrUnauthorized.
func (s *TokenService) VerifyIntermediate(ctx context.Context, token string) (jwtx.Claims, error) {
	claims, err := s.Verify(token)
	if err != nil {
		slogx.FromContext(ctx).Debug("intermediate credential rejected", "err", err)
		return jwtx.Claims{}, ErrUnauthorized
	}
	if !claims.IsIntermediate() {
		slogx.FromContext(ctx).Debug("credential is not intermediate", "kind", claims.Kind, "sub", claims.Subject)
		return jwtx.Claims{}, ErrUnauthorized
	}
	return claims, nil
}

// VerifyAccess accepts only a valid final credential. Revocation is checked
// by the caller.
func (s *TokenService) VerifyAccess(ctx context.Context, token string) (jwtx.Claims, error) {
	claims, err := s.Verify(token)
	if err != nil {
		slogx.FromContext(ctx).Debug("access credential rejected", "err", err)
		return jwtx.Claims{}, ErrUnauthorized
	}
	if !claims.IsAccess() {
		return jwtx.Claims{}, ErrUnauthorized
	}
	return claims, nil
}
