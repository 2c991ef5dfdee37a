package jwtx

import (
	"errors"
	"fmt"
	"time"
)

// KeyManager wires one Ed25519 signing key to the KeySet published on the
// JWKS endpoint and a verifier over that set.
type KeyManager struct {
	Signer   Signer
	Verifier Verifier
	KeySet   *KeySet
}

// KeyManagerOptions configures a KeyManager.
type KeyManagerOptions struct {
	// Issuer is the iss claim enforced on verification.
	Issuer string

	// Leeway tolerates clock skew between instances.
	Leeway time.Duration

	// Now overrides the verification clock.
	Now func() time.Time
}

// NewKeyManager loads the PEM signing key and builds the verification side.
// The key id is the key's thumbprint so every instance sharing the key file
// advertises the same kid.
func NewKeyManager(pemKey []byte, opts KeyManagerOptions) (*KeyManager, error) {
	if opts.Issuer == "" {
		return nil, errors.New("jwtx: Issuer is required")
	}

	signer, err := NewSignerEdDSA("", pemKey)
	if err != nil {
		return nil, err
	}

	keyset := NewKeySet()
	if err := keyset.AddSigner(signer); err != nil {
		return nil, fmt.Errorf("jwtx: add signer to keyset: %w", err)
	}

	return &KeyManager{
		Signer: signer,
		Verifier: NewVerifierEdDSA(keyset, VerifyOptions{
			Issuer: opts.Issuer,
			Leeway: opts.Leeway,
			Now:    opts.Now,
		}),
		KeySet: keyset,
	}, nil
}

// IsReady returns true if the KeyManager has a verification key loaded.
func (km *KeyManager) IsReady() bool {
	return km.KeySet.IsReady()
}
