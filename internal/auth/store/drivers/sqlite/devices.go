package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
)

type devicesRepo struct {
	db dbtx
}

const deviceColumns = `id, user_id, push_token, platform, name, created_at, last_seen_at`

func scanDevice(row interface{ Scan(...any) error }) (domain.Device, error) {
	var (
		d                   domain.Device
		createdAt, lastSeen int64
	)
	if err := row.Scan(&d.ID, &d.UserID, &d.PushToken, &d.Platform, &d.Name, &createdAt, &lastSeen); err != nil {
		return domain.Device{}, mapNotFound(err)
	}
	d.CreatedAt = fromMillis(createdAt)
	d.LastSeenAt = fromMillis(lastSeen)
	return d, nil
}

func (r *devicesRepo) UpsertDevice(ctx context.Context, d domain.Device) (domain.Device, error) {
	now := time.Now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	if d.LastSeenAt.IsZero() {
		d.LastSeenAt = d.CreatedAt
	}

	return scanDevice(r.db.QueryRowContext(ctx, `
		INSERT INTO devices (`+deviceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, push_token) DO UPDATE SET
			platform     = excluded.platform,
			name         = excluded.name,
			last_seen_at = excluded.last_seen_at
		RETURNING `+deviceColumns,
		d.ID, d.UserID, d.PushToken, d.Platform, d.Name,
		toMillis(d.CreatedAt), toMillis(d.LastSeenAt),
	))
}

func (r *devicesRepo) ListUserDevices(ctx context.Context, userID string) ([]domain.Device, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+deviceColumns+` FROM devices
		WHERE user_id = ?
		ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *devicesRepo) DeleteDevice(ctx context.Context, userID, deviceID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM devices WHERE id = ? AND user_id = ?`, deviceID, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}
