package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/aussiebroadwan/lockbox/internal/auth/store"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, email, name, password_hash, totp_secret, totp_enabled, face_enabled, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (domain.User, error) {
	var (
		u                   domain.User
		secret              []byte
		totpOn, faceOn      int
		createdAt, updateAt int64
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &secret, &totpOn, &faceOn, &createdAt, &updateAt); err != nil {
		return domain.User{}, mapNotFound(err)
	}
	if len(secret) > 0 {
		u.TOTPSecret = secret
	}
	u.TOTPEnabled = totpOn == 1
	u.FaceEnabled = faceOn == 1
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updateAt)
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`, email))
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.PasswordHash, nullBytes(u.TOTPSecret),
		boolToInt(u.TOTPEnabled), boolToInt(u.FaceEnabled),
		toMillis(u.CreatedAt), toMillis(u.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *usersRepo) UpdateTOTPSecret(ctx context.Context, userID string, sealed []byte) error {
	return r.exec(ctx, `
		UPDATE users SET totp_secret = ?, updated_at = ? WHERE id = ?`,
		nullBytes(sealed), toMillis(time.Now()), userID)
}

func (r *usersRepo) EnableTOTP(ctx context.Context, userID string) error {
	return r.exec(ctx, `
		UPDATE users SET totp_enabled = 1, updated_at = ?
		WHERE id = ? AND totp_secret IS NOT NULL`,
		toMillis(time.Now()), userID)
}

func (r *usersRepo) DisableTOTP(ctx context.Context, userID string) error {
	return r.exec(ctx, `
		UPDATE users SET totp_enabled = 0, totp_secret = NULL, updated_at = ? WHERE id = ?`,
		toMillis(time.Now()), userID)
}

func (r *usersRepo) SetFaceEnabled(ctx context.Context, userID string, enabled bool) error {
	return r.exec(ctx, `
		UPDATE users SET face_enabled = ?, updated_at = ? WHERE id = ?`,
		boolToInt(enabled), toMillis(time.Now()), userID)
}

// exec runs a single-row update and reports ErrNotFound when nothing matched.
func (r *usersRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// nullBytes binds an empty secret as SQL NULL.
func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
