package session

import (
	"errors"
	"time"
)

// ErrVerificationNotFound is returned when no verification exists for a
// (user, session) pair.
var ErrVerificationNotFound = errors.New("verification not found")

// Verification records that one login session of a user completed 2FA.
// Rows are written once per successful verification and never mutated.
type Verification struct {
	UserID     string
	SessionID  string
	VerifiedAt time.Time
	// ExpiresAt is zero when the row lives as long as the login session.
	ExpiresAt time.Time
}

// Active reports whether v still authorizes its session at now. A row older
// than ttl is treated as absent; ttl <= 0 disables the age check.
func (v Verification) Active(now time.Time, ttl time.Duration) bool {
	if v.VerifiedAt.IsZero() {
		return false
	}
	if !v.ExpiresAt.IsZero() && !now.Before(v.ExpiresAt) {
		return false
	}
	if ttl > 0 && !now.Before(v.VerifiedAt.Add(ttl)) {
		return false
	}
	return true
}

// Matches reports whether v belongs to exactly subj.
func (v Verification) Matches(subj Subject) bool {
	return subj.SessionID != "" && v.UserID == subj.UserID && v.SessionID == subj.SessionID
}
