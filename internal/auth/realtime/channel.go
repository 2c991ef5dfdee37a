package realtime

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/aussiebroadwan/lockbox/pkg/jwtx"
	"github.com/aussiebroadwan/lockbox/pkg/slogx"
)

var (
	// ErrInvalidCredential rejects a join without saying why.
	ErrInvalidCredential = errors.New("realtime: invalid credential")
	ErrUnknownRoom       = errors.New("realtime: unknown room")
)

// CredentialVerifier checks a credential presented on join.
type CredentialVerifier interface {
	Verify(token string) (jwtx.Claims, error)
}

// RevocationChecker reports whether a credential was logged out.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// RequestLookup resolves the face request behind a room.
type RequestLookup interface {
	Get(ctx context.Context, id string) (domain.FaceAuthRequest, error)
}

// Channel guards room membership. When a credential is supplied it must
// verify, must not be revoked and, if Requests is set, must belong to the
// owner of the request.
type Channel struct {
	Hub         *Hub
	Verifier    CredentialVerifier
	Revocations RevocationChecker
	Requests    RequestLookup

	// RequireCredential rejects joins that carry no credential.
	RequireCredential bool
}

// Join subscribes sub to the room of requestID.
func (c *Channel) Join(ctx context.Context, sub Subscriber, requestID, credential string) error {
	log := slogx.FromContext(ctx)
	if requestID == "" {
		return ErrUnknownRoom
	}

	if credential == "" {
		if c.RequireCredential {
			return ErrInvalidCredential
		}
		c.Hub.Join(domain.RoomName(requestID), sub)
		return nil
	}

	claims, err := c.Verifier.Verify(credential)
	if err != nil {
		log.Debug("realtime join rejected", "request_id", requestID, "err", err)
		return ErrInvalidCredential
	}

	if c.Revocations != nil {
		revoked, err := c.Revocations.IsRevoked(ctx, credential)
		if err != nil {
			log.Error("revocation lookup failed", "request_id", requestID, "err", err)
			return ErrInvalidCredential
		}
		if revoked {
			log.Debug("realtime join rejected for revoked credential", "request_id", requestID, "sub", claims.Subject)
			return ErrInvalidCredential
		}
	}

	if c.Requests != nil {
		req, err := c.Requests.Get(ctx, requestID)
		if err != nil || req.UserID != claims.Subject {
			log.Debug("realtime join rejected for request owner", "request_id", requestID, "sub", claims.Subject)
			return ErrInvalidCredential
		}
	}

	c.Hub.Join(domain.RoomName(requestID), sub)
	return nil
}

// Leave unsubscribes sub from the room of requestID.
func (c *Channel) Leave(sub Subscriber, requestID string) {
	c.Hub.Leave(domain.RoomName(requestID), sub)
}
