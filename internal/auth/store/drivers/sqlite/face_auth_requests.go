package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/aussiebroadwan/lockbox/internal/auth/store"
)

type faceAuthRequestsRepo struct {
	db dbtx
}

const faceAuthColumns = `id, user_id, status, created_at, expires_at, completed_at, failure_reason, device_info, metadata`

func scanFaceAuthRequest(row interface{ Scan(...any) error }) (domain.FaceAuthRequest, error) {
	var (
		req                  domain.FaceAuthRequest
		status               string
		createdAt, expiresAt int64
		completedAt          sql.NullInt64
		reason               sql.NullString
		deviceInfo, metadata string
	)
	if err := row.Scan(&req.ID, &req.UserID, &status, &createdAt, &expiresAt,
		&completedAt, &reason, &deviceInfo, &metadata); err != nil {
		return domain.FaceAuthRequest{}, mapNotFound(err)
	}

	req.Status = domain.FaceAuthStatus(status)
	req.CreatedAt = fromMillis(createdAt)
	req.ExpiresAt = fromMillis(expiresAt)
	req.CompletedAt = mapNullMillis(completedAt)
	req.FailureReason = mapNullString(reason)

	var err error
	if req.DeviceInfo, err = decodeJSONMap(deviceInfo); err != nil {
		return domain.FaceAuthRequest{}, fmt.Errorf("decode device_info: %w", err)
	}
	if req.Metadata, err = decodeJSONMap(metadata); err != nil {
		return domain.FaceAuthRequest{}, fmt.Errorf("decode metadata: %w", err)
	}
	return req, nil
}

func (r *faceAuthRequestsRepo) CreateFaceAuthRequest(ctx context.Context, req domain.FaceAuthRequest) error {
	deviceInfo, err := encodeJSONMap(req.DeviceInfo)
	if err != nil {
		return fmt.Errorf("encode device_info: %w", err)
	}
	metadata, err := encodeJSONMap(req.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if req.Status == "" {
		req.Status = domain.FaceAuthPending
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO face_auth_requests (`+faceAuthColumns+`)
		VALUES (?, ?, ?, ?, ?, NULL, NULL, ?, ?)`,
		req.ID, req.UserID, string(req.Status),
		toMillis(req.CreatedAt), toMillis(req.ExpiresAt),
		deviceInfo, metadata,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *faceAuthRequestsRepo) GetFaceAuthRequest(ctx context.Context, id string) (domain.FaceAuthRequest, error) {
	return scanFaceAuthRequest(r.db.QueryRowContext(ctx,
		`SELECT `+faceAuthColumns+` FROM face_auth_requests WHERE id = ?`, id))
}

// TransitionFaceAuthRequest is a single conditional UPDATE so two concurrent
// completions cannot both win. A completion additionally requires the request
// to be unexpired at t.At.
func (r *faceAuthRequestsRepo) TransitionFaceAuthRequest(
	ctx context.Context,
	t store.FaceAuthTransition,
) (domain.FaceAuthRequest, error) {
	if !t.To.IsTerminal() {
		return domain.FaceAuthRequest{}, fmt.Errorf("sqlite: invalid target status %q", t.To)
	}
	metadata, err := encodeJSONMap(t.Metadata)
	if err != nil {
		return domain.FaceAuthRequest{}, fmt.Errorf("encode metadata: %w", err)
	}

	at := toMillis(t.At)
	req, err := scanFaceAuthRequest(r.db.QueryRowContext(ctx, `
		UPDATE face_auth_requests SET
			status         = ?,
			completed_at   = ?,
			failure_reason = ?,
			metadata       = ?
		WHERE id = ?
		  AND status = 'pending'
		  AND (? <> 'completed' OR expires_at > ?)
		RETURNING `+faceAuthColumns,
		string(t.To), at, mapStringNull(t.FailureReason), metadata,
		t.ID,
		string(t.To), at,
	))
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.FaceAuthRequest{}, err
	}

	// Nothing updated: distinguish a missing row from a lost race.
	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM face_auth_requests WHERE id = ?`, t.ID).Scan(&exists)
	if err != nil {
		return domain.FaceAuthRequest{}, mapNotFound(err)
	}
	return domain.FaceAuthRequest{}, store.ErrConflict
}

func (r *faceAuthRequestsRepo) FailPendingForUser(
	ctx context.Context,
	userID, exceptID, reason string,
	now time.Time,
) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE face_auth_requests SET
			status         = 'failed',
			completed_at   = ?,
			failure_reason = ?
		WHERE user_id = ? AND status = 'pending' AND id <> ?`,
		toMillis(now), reason, userID, exceptID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *faceAuthRequestsRepo) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE face_auth_requests SET
			status         = 'expired',
			completed_at   = ?,
			failure_reason = 'expired'
		WHERE status = 'pending' AND expires_at <= ?`,
		toMillis(now), toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
