package flows

import (
	"time"

	"github.com/MrEthical07/twofactor/store"
)

// AttemptOutcome is the result of one proof-of-possession attempt.
type AttemptOutcome uint8

const (
	// AttemptAccepted means the proof matched and the counter was reset.
	AttemptAccepted AttemptOutcome = iota
	// AttemptRejected means the proof did not match and the counter advanced.
	AttemptRejected
	// AttemptLockedNow means this failure reached the threshold.
	AttemptLockedNow
	// AttemptBlocked means the user was already locked; nothing was checked.
	AttemptBlocked
)

func (o AttemptOutcome) String() string {
	switch o {
	case AttemptAccepted:
		return "accepted"
	case AttemptRejected:
		return "rejected"
	case AttemptLockedNow:
		return "locked_now"
	case AttemptBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Lockout is the failed-attempt state machine guarding TOTP login.
//
//	Unlocked(n) --fail, n+1 <  Max--> Unlocked(n+1)
//	Unlocked(n) --fail, n+1 >= Max--> Locked(until = now + Duration)
//	Unlocked(n) --success---------->  Unlocked(0)
//	Locked      --any, now < until->  Locked (attempt not evaluated)
//	Locked      --any, now >= until-> Unlocked(0), then evaluated
type Lockout struct {
	MaxAttempts uint32
	Duration    time.Duration
}

// Locked reports whether s blocks attempts at now.
func (l Lockout) Locked(s store.LockoutState, now time.Time) bool {
	return now.Before(s.LockedUntil)
}

// Begin prepares s for an attempt at now. An expired lock is cleared together
// with its counter. It reports whether the attempt must be refused.
func (l Lockout) Begin(s *store.LockoutState, now time.Time) bool {
	if s.LockedUntil.IsZero() {
		return false
	}
	if now.Before(s.LockedUntil) {
		return true
	}
	*s = store.LockoutState{}
	return false
}

// Fail records a failed attempt and reports whether it triggered a lock.
func (l Lockout) Fail(s *store.LockoutState, now time.Time) bool {
	s.FailedAttempts++
	if l.MaxAttempts > 0 && s.FailedAttempts >= l.MaxAttempts {
		s.LockedUntil = now.Add(l.Duration)
		return true
	}
	return false
}

// Succeed resets s.
func (l Lockout) Succeed(s *store.LockoutState) {
	*s = store.LockoutState{}
}

// Attempt runs one full transition. check is only called when s is not
// locked; it reports whether the presented proof matched.
func (l Lockout) Attempt(s *store.LockoutState, now time.Time, check func() bool) AttemptOutcome {
	if l.Begin(s, now) {
		return AttemptBlocked
	}
	if check() {
		l.Succeed(s)
		return AttemptAccepted
	}
	if l.Fail(s, now) {
		return AttemptLockedNow
	}
	return AttemptRejected
}
