package store

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/twofactor/session"
)

var (
	// ErrProfileNotFound is returned when no profile exists for a user.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("store unavailable")
	// ErrConflict is returned when an optimistic update kept losing races.
	ErrConflict = errors.New("concurrent profile update conflict")
)

// UpdateFunc mutates a profile in place. Returning an error aborts the update
// without writing; the error is returned unchanged by UpdateProfile. The
// function may run more than once when the backend retries.
type UpdateFunc func(p *Profile) error

// ProfileStore reads and atomically mutates user profiles. UpdateProfile must
// serialize concurrent updates of the same user so no write is lost.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (Profile, error)
	UpdateProfile(ctx context.Context, userID string, fn UpdateFunc) (Profile, error)
}

// VerificationStore persists which (user, session) pairs completed 2FA.
// GetVerification returns session.ErrVerificationNotFound for a missing row.
type VerificationStore interface {
	MarkVerified(ctx context.Context, v session.Verification) error
	GetVerification(ctx context.Context, userID, sessionID string) (session.Verification, error)
	DeleteVerification(ctx context.Context, userID, sessionID string) error
	DeleteUserVerifications(ctx context.Context, userID string) (int, error)
}

// Pruner is implemented by verification stores that need explicit cleanup of
// expired rows.
type Pruner interface {
	PruneExpired(ctx context.Context, now time.Time) (int, error)
}
