// Package revocation keeps the set of final credentials that were explicitly
// invalidated before their natural expiry.
package revocation

import (
	"context"
	"time"
)

// DefaultTTL bounds an entry whose credential expiry is unknown. It matches
// the default lifetime of a final credential.
const DefaultTTL = 7 * 24 * time.Hour

// Registry records revoked credentials. Once Revoke returns, every later
// IsRevoked call for the same token on this process reports true until the
// entry is evicted after expiresAt.
type Registry interface {
	// Revoke is idempotent. A zero expiresAt keeps the entry for DefaultTTL.
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

func evictAt(expiresAt, now time.Time) time.Time {
	if expiresAt.IsZero() {
		return now.Add(DefaultTTL)
	}
	return expiresAt
}
