package twofactor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	internalaudit "github.com/MrEthical07/twofactor/internal/audit"
	"github.com/MrEthical07/twofactor/internal/flows"
	"github.com/MrEthical07/twofactor/session"
	"github.com/MrEthical07/twofactor/store"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Engine runs every two-factor operation against a profile store and a
// verification store. Build one with [New]; it is safe for concurrent use.
type Engine struct {
	config      Config
	profiles    store.ProfileStore
	sessions    store.VerificationStore
	clock       clockwork.Clock
	random      io.Reader
	randomIndex func(int) (int, error)
	lockout     flows.Lockout
	totp        *totpManager
	audit       *internalaudit.Dispatcher
	metrics     *Metrics
	log         *zap.Logger
}

// errNoChange aborts a profile update without writing. It never leaves the
// engine.
var errNoChange = errors.New("no profile change")

// Close flushes pending audit events and stops the dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// Config returns a copy of the configuration the engine was built with.
func (e *Engine) Config() Config {
	if e == nil {
		return defaultConfig()
	}
	return cloneConfig(e.config)
}

// AuditDropped reports how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters. It is empty when
// metrics are disabled.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() error {
	if e == nil || e.profiles == nil || e.sessions == nil || e.totp == nil {
		return ErrEngineNotReady
	}
	return nil
}

// storeError classifies a failure returned by a store or by an update
// closure and logs the infrastructure ones.
func (e *Engine) storeError(op string, subj session.Subject, err error) error {
	switch {
	case errors.Is(err, store.ErrProfileNotFound):
		return ErrUserNotFound
	case errors.Is(err, ErrAlreadyEnabled):
		return ErrAlreadyEnabled
	case errors.Is(err, ErrSecretUnavailable):
		e.log.Error("two-factor secret unreadable",
			zap.String("event", op),
			zap.String("user_id", subj.UserID),
			zap.Error(err),
		)
		return err
	}

	e.metricInc(MetricStoreError)
	e.log.Error("two-factor store failure",
		zap.String("event", op),
		zap.String("user_id", subj.UserID),
		zap.String("session_id", subj.SessionID),
		zap.Error(err),
	)
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// markVerified writes the verification row for exactly subj.
func (e *Engine) markVerified(ctx context.Context, subj session.Subject, now time.Time) error {
	if !subj.HasSession() {
		return nil
	}

	v := session.Verification{
		UserID:     subj.UserID,
		SessionID:  subj.SessionID,
		VerifiedAt: now,
	}
	if ttl := e.config.Session.VerificationTTL; ttl > 0 {
		v.ExpiresAt = now.Add(ttl)
	}
	if err := e.sessions.MarkVerified(ctx, v); err != nil {
		return e.storeError("mark_verified", subj, err)
	}
	return nil
}

// attemptResult is what a lockout-guarded update observed.
type attemptResult struct {
	// refused is set when precheck rejected the call before any proof ran.
	refused *Outcome
	outcome flows.AttemptOutcome
	// lockedUntil is the lock deadline after the attempt, zero when unlocked.
	lockedUntil time.Time
	profile     store.Profile
}

// attempt runs one TOTP login proof inside a single profile update.
//
// precheck may refuse the call outright. prove runs only when the user is not
// locked; accept runs after a successful proof and applies the operation's
// state change. A failed proof only advances the attempt counter.
func (e *Engine) attempt(
	ctx context.Context,
	userID string,
	now time.Time,
	precheck func(p *store.Profile) *Outcome,
	prove func(p *store.Profile) (bool, error),
	accept func(p *store.Profile),
) (attemptResult, error) {
	var res attemptResult

	updated, err := e.profiles.UpdateProfile(ctx, userID, func(p *store.Profile) error {
		res = attemptResult{}

		if precheck != nil {
			if out := precheck(p); out != nil {
				res.refused = out
				return errNoChange
			}
		}

		var proveErr error
		res.outcome = e.lockout.Attempt(&p.Lockout, now, func() bool {
			ok, err := prove(p)
			if err != nil {
				proveErr = err
				return false
			}
			return ok
		})
		if proveErr != nil {
			return proveErr
		}

		res.lockedUntil = p.Lockout.LockedUntil
		if res.outcome == flows.AttemptBlocked {
			return errNoChange
		}
		if res.outcome == flows.AttemptAccepted && accept != nil {
			accept(p)
		}
		return nil
	})
	if errors.Is(err, errNoChange) {
		return res, nil
	}
	if err != nil {
		return res, err
	}

	res.profile = updated
	return res, nil
}

// proof runs a proof-of-possession inside a single profile update without
// consulting or advancing the lockout state. A failed proof writes nothing;
// the outcome is then AttemptRejected.
func (e *Engine) proof(
	ctx context.Context,
	userID string,
	precheck func(p *store.Profile) *Outcome,
	prove func(p *store.Profile) (bool, error),
	accept func(p *store.Profile),
) (attemptResult, error) {
	var res attemptResult

	updated, err := e.profiles.UpdateProfile(ctx, userID, func(p *store.Profile) error {
		res = attemptResult{}

		if precheck != nil {
			if out := precheck(p); out != nil {
				res.refused = out
				return errNoChange
			}
		}

		ok, err := prove(p)
		if err != nil {
			return err
		}
		if !ok {
			res.outcome = flows.AttemptRejected
			return errNoChange
		}

		res.outcome = flows.AttemptAccepted
		if accept != nil {
			accept(p)
		}
		return nil
	})
	if errors.Is(err, errNoChange) {
		return res, nil
	}
	if err != nil {
		return res, err
	}

	res.profile = updated
	return res, nil
}

// lockFailure maps a non-accepted attempt to its client outcome. rejectMsg
// is used for a plain mismatch.
func lockFailure(res attemptResult, rejectMsg string) (Outcome, *time.Time) {
	switch res.outcome {
	case flows.AttemptBlocked:
		return failure(CodeAccountLocked, MsgTooManyAttempts), timePtr(res.lockedUntil)
	case flows.AttemptLockedNow:
		return failure(CodeAccountLocked, MsgAccountLocked), timePtr(res.lockedUntil)
	default:
		return failure(CodeInvalidCode, rejectMsg), nil
	}
}

// recordAttempt updates metrics, logs and audit for a rejected or blocked
// attempt.
func (e *Engine) recordAttempt(ctx context.Context, subj session.Subject, event string, res attemptResult, failMetric MetricID) {
	switch res.outcome {
	case flows.AttemptBlocked:
		e.metricInc(MetricLockedRejected)
		e.log.Debug("attempt refused while locked",
			zap.String("event", event),
			zap.String("user_id", subj.UserID),
			zap.Time("locked_until", res.lockedUntil),
		)
		e.emitAudit(ctx, auditEventLockedRejected, false, subj, ErrAccountLocked, func() map[string]string {
			return map[string]string{"operation": event, "locked_until": res.lockedUntil.UTC().Format(time.RFC3339)}
		})
	case flows.AttemptLockedNow:
		e.metricInc(failMetric)
		e.metricInc(MetricLockoutTriggered)
		e.log.Warn("two-factor lockout triggered",
			zap.String("event", event),
			zap.String("user_id", subj.UserID),
			zap.Time("locked_until", res.lockedUntil),
		)
		e.emitAudit(ctx, auditEventLockoutTriggered, false, subj, ErrAccountLocked, func() map[string]string {
			return map[string]string{"operation": event, "locked_until": res.lockedUntil.UTC().Format(time.RFC3339)}
		})
	case flows.AttemptRejected:
		e.metricInc(failMetric)
		e.log.Debug("two-factor attempt rejected",
			zap.String("event", event),
			zap.String("user_id", subj.UserID),
			zap.String("session_id", subj.SessionID),
		)
	}
}
