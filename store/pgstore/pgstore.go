// Package pgstore persists two-factor profiles and session verifications in
// PostgreSQL. Profile updates run inside a transaction holding a row lock
// (SELECT ... FOR UPDATE), which serializes concurrent verifications of the
// same user.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/twofactor/session"
	"github.com/MrEthical07/twofactor/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const profileColumns = `user_id, account_name, enabled, secret, pending_secret, backup_codes,
	failed_attempts, locked_until, last_used_counter, enabled_at, version`

const (
	insertUserSQL = `INSERT INTO two_factor_profiles (user_id, account_name)
	VALUES ($1, $2)
	ON CONFLICT (user_id) DO NOTHING`

	selectProfileSQL = `SELECT ` + profileColumns + ` FROM two_factor_profiles WHERE user_id = $1`

	updateProfileSQL = `UPDATE two_factor_profiles SET
		account_name = $2,
		enabled = $3,
		secret = $4,
		pending_secret = $5,
		backup_codes = $6,
		failed_attempts = $7,
		locked_until = $8,
		last_used_counter = $9,
		enabled_at = $10,
		version = $11,
		updated_at = now()
	WHERE user_id = $1`

	upsertVerificationSQL = `INSERT INTO two_factor_sessions (user_id, session_id, verified_at, expires_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (user_id, session_id)
	DO UPDATE SET verified_at = EXCLUDED.verified_at, expires_at = EXCLUDED.expires_at`

	selectVerificationSQL = `SELECT user_id, session_id, verified_at, expires_at
	FROM two_factor_sessions WHERE user_id = $1 AND session_id = $2`

	deleteVerificationSQL     = `DELETE FROM two_factor_sessions WHERE user_id = $1 AND session_id = $2`
	deleteUserVerificationSQL = `DELETE FROM two_factor_sessions WHERE user_id = $1`
	pruneVerificationSQL      = `DELETE FROM two_factor_sessions WHERE expires_at IS NOT NULL AND expires_at <= $1`
)

// Store implements [store.ProfileStore], [store.VerificationStore] and
// [store.Pruner] on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps pool. Run [Migrate] before first use.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// PutUser registers a user. An existing profile is left untouched.
func (s *Store) PutUser(ctx context.Context, userID, accountName string) error {
	if _, err := s.pool.Exec(ctx, insertUserSQL, userID, accountName); err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}

// GetProfile loads the profile of userID.
func (s *Store) GetProfile(ctx context.Context, userID string) (store.Profile, error) {
	return scanProfile(s.pool.QueryRow(ctx, selectProfileSQL, userID))
}

// UpdateProfile runs fn on the row locked with SELECT ... FOR UPDATE.
func (s *Store) UpdateProfile(ctx context.Context, userID string, fn store.UpdateFunc) (store.Profile, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return store.Profile{}, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	p, err := scanProfile(tx.QueryRow(ctx, selectProfileSQL+" FOR UPDATE", userID))
	if err != nil {
		return store.Profile{}, err
	}

	if err := fn(&p); err != nil {
		return store.Profile{}, err
	}
	p.UserID = userID
	p.Version++

	codes, err := json.Marshal(backupCodesOrEmpty(p.BackupCodes))
	if err != nil {
		return store.Profile{}, err
	}

	if _, err := tx.Exec(ctx, updateProfileSQL,
		p.UserID,
		p.AccountName,
		p.Enabled,
		p.Secret,
		p.PendingSecret,
		codes,
		int32(p.Lockout.FailedAttempts),
		nullTime(p.Lockout.LockedUntil),
		p.LastUsedCounter,
		nullTime(p.EnabledAt),
		int64(p.Version),
	); err != nil {
		return store.Profile{}, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return store.Profile{}, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return p, nil
}

// MarkVerified upserts the verification row of v.
func (s *Store) MarkVerified(ctx context.Context, v session.Verification) error {
	if _, err := s.pool.Exec(ctx, upsertVerificationSQL, v.UserID, v.SessionID, v.VerifiedAt, nullTime(v.ExpiresAt)); err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}

// GetVerification loads one verification row.
func (s *Store) GetVerification(ctx context.Context, userID, sessionID string) (session.Verification, error) {
	var (
		v         session.Verification
		expiresAt *time.Time
	)
	err := s.pool.QueryRow(ctx, selectVerificationSQL, userID, sessionID).
		Scan(&v.UserID, &v.SessionID, &v.VerifiedAt, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return session.Verification{}, session.ErrVerificationNotFound
		}
		return session.Verification{}, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	if expiresAt != nil {
		v.ExpiresAt = *expiresAt
	}
	return v, nil
}

// DeleteVerification removes one verification row.
func (s *Store) DeleteVerification(ctx context.Context, userID, sessionID string) error {
	if _, err := s.pool.Exec(ctx, deleteVerificationSQL, userID, sessionID); err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}

// DeleteUserVerifications removes every row of userID and reports how many.
func (s *Store) DeleteUserVerifications(ctx context.Context, userID string) (int, error) {
	tag, err := s.pool.Exec(ctx, deleteUserVerificationSQL, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return int(tag.RowsAffected()), nil
}

// PruneExpired deletes rows whose expires_at is at or before now.
func (s *Store) PruneExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, pruneVerificationSQL, now)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return int(tag.RowsAffected()), nil
}

func scanProfile(row pgx.Row) (store.Profile, error) {
	var (
		p           store.Profile
		codes       []byte
		failed      int32
		lockedUntil *time.Time
		enabledAt   *time.Time
		version     int64
	)

	err := row.Scan(
		&p.UserID,
		&p.AccountName,
		&p.Enabled,
		&p.Secret,
		&p.PendingSecret,
		&codes,
		&failed,
		&lockedUntil,
		&p.LastUsedCounter,
		&enabledAt,
		&version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Profile{}, store.ErrProfileNotFound
		}
		return store.Profile{}, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	if len(codes) > 0 {
		if err := json.Unmarshal(codes, &p.BackupCodes); err != nil {
			return store.Profile{}, fmt.Errorf("decode backup codes: %w", err)
		}
	}
	if len(p.BackupCodes) == 0 {
		p.BackupCodes = nil
	}
	p.Lockout.FailedAttempts = uint32(failed)
	if lockedUntil != nil {
		p.Lockout.LockedUntil = *lockedUntil
	}
	if enabledAt != nil {
		p.EnabledAt = *enabledAt
	}
	p.Version = uint64(version)
	return p, nil
}

func backupCodesOrEmpty(codes []store.BackupCode) []store.BackupCode {
	if codes == nil {
		return []store.BackupCode{}
	}
	return codes
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

var (
	_ store.ProfileStore      = (*Store)(nil)
	_ store.VerificationStore = (*Store)(nil)
	_ store.Pruner            = (*Store)(nil)
)
