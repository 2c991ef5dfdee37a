package service

import (
	"context"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
)

// PushGateway wakes the user's mobile devices for a face request. A partial
// failure is reported per token in the outcomes and is not an error.
type PushGateway interface {
	SendFaceAuthRequest(ctx context.Context, pushTokens []string, req domain.FacePushRequest) ([]domain.PushOutcome, error)
}

// FaceVerifier matches an image against the user's enrolled face.
type FaceVerifier interface {
	VerifyFace(ctx context.Context, userID string, image []byte) (domain.FaceMatch, error)
}

// ChannelPublisher fans events out to the realtime room of a face request.
type ChannelPublisher interface {
	PublishStatus(ctx context.Context, requestID, status, message string) error
	PublishCompletion(ctx context.Context, requestID string, result domain.FaceAuthCompletePayload) error
}

// Revoker records credentials invalidated by logout.
type Revoker interface {
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
}

// RevocationSweeper evicts revocation entries whose credential has expired.
type RevocationSweeper interface {
	Sweep(now time.Time) int
}
