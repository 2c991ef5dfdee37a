package domain

import "time"

type FaceAuthStatus string

const (
	FaceAuthPending   FaceAuthStatus = "pending"
	FaceAuthCompleted FaceAuthStatus = "completed"
	FaceAuthExpired   FaceAuthStatus = "expired"
	FaceAuthFailed    FaceAuthStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s FaceAuthStatus) IsTerminal() bool {
	return s == FaceAuthCompleted || s == FaceAuthExpired || s == FaceAuthFailed
}

// FaceAuthRequest tracks one Face ID attempt. It moves from pending to exactly
// one of completed, failed or expired and never changes again.
type FaceAuthRequest struct {
	ID            string // UUID, shared with the mobile app via push
	UserID        string
	Status        FaceAuthStatus
	CreatedAt     time.Time
	ExpiresAt     time.Time
	CompletedAt   *time.Time
	FailureReason string
	DeviceInfo    map[string]any // browser/context supplied at initiation
	Metadata      map[string]any // result details recorded at completion
}

// IsExpired reports whether the request is past its expiry, regardless of
// whether the stored status caught up yet.
func (r FaceAuthRequest) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// IsActionable reports whether the request can still be completed.
func (r FaceAuthRequest) IsActionable(now time.Time) bool {
	return r.Status == FaceAuthPending && !r.IsExpired(now)
}

// FaceAuthHandle is returned to the web client after initiating Face ID.
type FaceAuthHandle struct {
	RequestID       string
	Status          FaceAuthStatus
	Room            string
	ExpiresAt       time.Time
	DevicesNotified int
}

// CompletionResult is the only thing the mobile app learns. It never carries
// a credential.
type CompletionResult struct {
	Success bool
	Message string
}

// PushOutcome is the per-token delivery result of a push dispatch.
type PushOutcome struct {
	PushToken string
	Delivered bool
	Error     string
}

// FaceMatch is the verdict of the external face verification service.
type FaceMatch struct {
	Authenticated bool    `json:"authenticated"`
	Probability   float64 `json:"probability"`
}

// FacePushRequest is the context pushed to every device of the user so the
// app can open the verification screen for RequestID.
type FacePushRequest struct {
	RequestID  string
	UserID     string
	ExpiresAt  time.Time
	DeviceInfo map[string]any
}
