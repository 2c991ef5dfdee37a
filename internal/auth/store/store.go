package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrConflict is returned when a compare-and-swap update finds the row in
	// a different state than expected.
	ErrConflict = errors.New("store: conflict")
)

// Store is the root data access interface. Concrete drivers implement this.
// Sub-repositories are exposed as methods so a Tx can hand out tx-scoped
// repos and nobody starts a transaction inside a transaction.
type Store interface {
	Users() Users
	Devices() Devices
	FaceAuthRequests() FaceAuthRequests

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail matches case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user. Returns ErrAlreadyExists on duplicate email.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdateTOTPSecret stores a sealed secret without enabling TOTP.
	UpdateTOTPSecret(ctx context.Context, userID string, sealed []byte) error

	// EnableTOTP marks TOTP as enabled. Requires a stored secret.
	EnableTOTP(ctx context.Context, userID string) error

	// DisableTOTP clears the secret and the enabled flag.
	DisableTOTP(ctx context.Context, userID string) error

	// SetFaceEnabled toggles Face ID as a second factor.
	SetFaceEnabled(ctx context.Context, userID string, enabled bool) error
}

type Devices interface {
	// UpsertDevice registers a device. A push token already registered to the
	// same user refreshes that row instead of creating a duplicate.
	UpsertDevice(ctx context.Context, d domain.Device) (domain.Device, error)

	ListUserDevices(ctx context.Context, userID string) ([]domain.Device, error)

	// DeleteDevice removes a device owned by userID.
	DeleteDevice(ctx context.Context, userID, deviceID string) error
}

type FaceAuthRequests interface {
	CreateFaceAuthRequest(ctx context.Context, r domain.FaceAuthRequest) error

	GetFaceAuthRequest(ctx context.Context, id string) (domain.FaceAuthRequest, error)

	// TransitionFaceAuthRequest moves a pending request to a terminal status.
	// It is a compare-and-swap on status = pending: ErrConflict if the request
	// already left pending, ErrNotFound if it does not exist.
	TransitionFaceAuthRequest(ctx context.Context, t FaceAuthTransition) (domain.FaceAuthRequest, error)

	// FailPendingForUser marks every pending request of the user, except
	// exceptID, as failed with reason. Returns the number of rows changed.
	FailPendingForUser(ctx context.Context, userID, exceptID, reason string, now time.Time) (int64, error)

	// ExpirePending marks every pending request whose expiry is at or before
	// now as expired. Returns the number of rows changed.
	ExpirePending(ctx context.Context, now time.Time) (int64, error)
}

// FaceAuthTransition describes a pending -> terminal status change.
type FaceAuthTransition struct {
	ID            string
	To            domain.FaceAuthStatus
	At            time.Time
	FailureReason string
	Metadata      map[string]any
}
