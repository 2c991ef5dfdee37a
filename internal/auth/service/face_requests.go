package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/aussiebroadwan/lockbox/internal/auth/store"
	"github.com/google/uuid"
)

const (
	DefaultFaceRequestTTL    = 5 * time.Minute
	MinFaceRequestTTL        = time.Minute
	DefaultFaceRequestMaxTTL = 15 * time.Minute

	ReasonSuperseded = "superseded by successful login"
	ReasonExpired    = "expired"
)

var (
	ErrFaceRequestNotFound   = errors.New("face request not found")
	ErrFaceRequestExpired    = errors.New("face request expired")
	ErrFaceRequestNotPending = errors.New("face request is no longer pending")
)

// FaceRequestService drives the pending -> completed|failed|expired state
// machine of Face ID attempts. Expiry is applied lazily on every read and in
// bulk by SweepExpired.
type FaceRequestService struct {
	Store store.Store

	DefaultTTL time.Duration
	MaxTTL     time.Duration

	Now func() time.Time
}

func (s *FaceRequestService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// ttl resolves a requested timeout: zero means the default, anything else is
// clamped to [MinFaceRequestTTL, MaxTTL].
func (s *FaceRequestService) ttl(requested time.Duration) time.Duration {
	def := s.DefaultTTL
	if def <= 0 {
		def = DefaultFaceRequestTTL
	}
	maxTTL := s.MaxTTL
	if maxTTL <= 0 {
		maxTTL = DefaultFaceRequestMaxTTL
	}

	if requested <= 0 {
		requested = def
	}
	return min(max(requested, MinFaceRequestTTL), maxTTL)
}

// Create opens a new pending request. Earlier pending requests of the user
// are left alone.
func (s *FaceRequestService) Create(
	ctx context.Context,
	userID string,
	ttl time.Duration,
	deviceInfo, metadata map[string]any,
) (domain.FaceAuthRequest, error) {
	now := s.now()
	req := domain.FaceAuthRequest{
		ID:         uuid.NewString(),
		UserID:     userID,
		Status:     domain.FaceAuthPending,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl(ttl)),
		DeviceInfo: deviceInfo,
		Metadata:   metadata,
	}
	if err := s.Store.FaceAuthRequests().CreateFaceAuthRequest(ctx, req); err != nil {
		return domain.FaceAuthRequest{}, fmt.Errorf("create face request: %w", err)
	}
	return req, nil
}

// Get returns the request, first moving it to expired if it is pending past
// its expiry.
func (s *FaceRequestService) Get(ctx context.Context, id string) (domain.FaceAuthRequest, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.FaceAuthRequest{}, ErrFaceRequestNotFound
	}

	req, err := s.Store.FaceAuthRequests().GetFaceAuthRequest(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.FaceAuthRequest{}, ErrFaceRequestNotFound
		}
		return domain.FaceAuthRequest{}, fmt.Errorf("get face request: %w", err)
	}

	if req.Status == domain.FaceAuthPending && req.IsExpired(s.now()) {
		return s.expire(ctx, req)
	}
	return req, nil
}

// ValidateActionable returns the request only if it can still be completed.
func (s *FaceRequestService) ValidateActionable(ctx context.Context, id string) (domain.FaceAuthRequest, error) {
	req, err := s.Get(ctx, id)
	if err != nil {
		return domain.FaceAuthRequest{}, err
	}

	if req.IsActionable(s.now()) {
		return req, nil
	}
	switch req.Status {
	case domain.FaceAuthPending, domain.FaceAuthExpired:
		return domain.FaceAuthRequest{}, ErrFaceRequestExpired
	default:
		return domain.FaceAuthRequest{}, ErrFaceRequestNotPending
	}
}

// Complete moves an actionable request to completed (success) or failed. The
// write is a compare-and-swap on pending, so of two concurrent calls exactly
// one wins and the other gets ErrFaceRequestNotPending.
func (s *FaceRequestService) Complete(
	ctx context.Context,
	id string,
	success bool,
	failureReason string,
	metadata map[string]any,
) (domain.FaceAuthRequest, error) {
	req, err := s.ValidateActionable(ctx, id)
	if err != nil {
		return domain.FaceAuthRequest{}, err
	}

	to := domain.FaceAuthCompleted
	if !success {
		to = domain.FaceAuthFailed
	} else {
		failureReason = ""
	}

	merged := maps.Clone(req.Metadata)
	if merged == nil {
		merged = make(map[string]any, len(metadata))
	}
	maps.Copy(merged, metadata)

	updated, err := s.Store.FaceAuthRequests().TransitionFaceAuthRequest(ctx, store.FaceAuthTransition{
		ID:            id,
		To:            to,
		At:            s.now(),
		FailureReason: failureReason,
		Metadata:      merged,
	})
	switch {
	case err == nil:
		return updated, nil
	case errors.Is(err, store.ErrConflict):
		// Lost a race, or the request expired between the read and the write.
		cur, gerr := s.Get(ctx, id)
		if gerr == nil && cur.Status == domain.FaceAuthExpired {
			return domain.FaceAuthRequest{}, ErrFaceRequestExpired
		}
		return domain.FaceAuthRequest{}, ErrFaceRequestNotPending
	case errors.Is(err, store.ErrNotFound):
		return domain.FaceAuthRequest{}, ErrFaceRequestNotFound
	default:
		return domain.FaceAuthRequest{}, fmt.Errorf("complete face request: %w", err)
	}
}

// CancelPendingForUser fails every pending request of the user so a stale
// sibling cannot succeed after one attempt already did.
func (s *FaceRequestService) CancelPendingForUser(ctx context.Context, userID string) (int64, error) {
	n, err := s.Store.FaceAuthRequests().FailPendingForUser(ctx, userID, "", ReasonSuperseded, s.now())
	if err != nil {
		return 0, fmt.Errorf("cancel pending face requests: %w", err)
	}
	return n, nil
}

// SweepExpired marks every pending request past its expiry as expired.
func (s *FaceRequestService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.Store.FaceAuthRequests().ExpirePending(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("sweep expired face requests: %w", err)
	}
	return n, nil
}

func (s *FaceRequestService) expire(ctx context.Context, req domain.FaceAuthRequest) (domain.FaceAuthRequest, error) {
	updated, err := s.Store.FaceAuthRequests().TransitionFaceAuthRequest(ctx, store.FaceAuthTransition{
		ID:            req.ID,
		To:            domain.FaceAuthExpired,
		At:            s.now(),
		FailureReason: ReasonExpired,
		Metadata:      req.Metadata,
	})
	if err == nil {
		return updated, nil
	}
	if errors.Is(err, store.ErrConflict) {
		// Someone else moved it to a terminal state first.
		cur, gerr := s.Store.FaceAuthRequests().GetFaceAuthRequest(ctx, req.ID)
		if gerr != nil {
			return domain.FaceAuthRequest{}, fmt.Errorf("reload face request: %w", gerr)
		}
		return cur, nil
	}
	return domain.FaceAuthRequest{}, fmt.Errorf("expire face request: %w", err)
}
