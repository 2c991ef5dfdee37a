package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credential kinds carried in the "typ" claim.
const (
	// KindIntermediate marks a short-lived credential proving only that the
	// password step succeeded. It must never authorize regular endpoints.
	KindIntermediate = "intermediate"

	// KindAccess marks a final session credential.
	KindAccess = "access"
)

// Default lifetimes.
const (
	DefaultIntermediateTTL = 5 * time.Minute
	DefaultAccessTTL       = 7 * 24 * time.Hour
)

// Claims are the credential claims shared by the auth service and the
// box/reservation services that verify final credentials.
type Claims struct {
	jwt.RegisteredClaims

	// Kind is KindIntermediate or KindAccess.
	Kind string `json:"typ"`

	Email string `json:"email,omitempty"`

	// SecondFactorPending is set on intermediate credentials only.
	SecondFactorPending bool `json:"2fa_pending,omitempty"`

	// Authentication Methods Reference ["pwd","otp","face"]
	AMR []string `json:"amr,omitempty"`
}

// NewIntermediateClaims builds claims for a credential that only unlocks the
// second-factor endpoints.
func NewIntermediateClaims(subject, email, issuer string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims:    registered(subject, issuer, ttl, now),
		Kind:                KindIntermediate,
		Email:               email,
		SecondFactorPending: true,
		AMR:                 []string{"pwd"},
	}
}

// NewAccessClaims builds claims for a final session credential.
func NewAccessClaims(subject, email, issuer string, amr []string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: registered(subject, issuer, ttl, now),
		Kind:             KindAccess,
		Email:            email,
		AMR:              amr,
	}
}

func registered(subject, issuer string, ttl time.Duration, now time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        NewJTI(),
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// IsIntermediate reports whether the claims describe a pending second-factor credential.
func (c *Claims) IsIntermediate() bool {
	return c.Kind == KindIntermediate && c.SecondFactorPending
}

// IsAccess reports whether the claims describe a final session credential.
func (c *Claims) IsAccess() bool {
	return c.Kind == KindAccess && !c.SecondFactorPending
}

// Expiry returns the expiry time, or the zero time when the claim is absent.
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
