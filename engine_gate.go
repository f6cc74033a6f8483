package twofactor

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/twofactor/session"
	"github.com/MrEthical07/twofactor/store"
	"go.uber.org/zap"
)

// RequireVerified is the gate in front of protected operations. It returns
// nil when the user has no 2FA enabled or when exactly subj's session holds a
// live verification, and ErrSessionUnverified otherwise. Any other error is
// an infrastructure failure.
func (e *Engine) RequireVerified(ctx context.Context, subj session.Subject) error {
	if err := e.ready(); err != nil {
		return err
	}

	start := e.clock.Now()
	verified, err := e.checkVerified(ctx, subj, start)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricGateLatency, e.clock.Since(start))
	}
	if err != nil {
		return err
	}

	if !verified {
		e.metricInc(MetricGateRejected)
		e.log.Debug("session not two-factor verified",
			zap.String("user_id", subj.UserID),
			zap.String("session_id", subj.SessionID),
		)
		e.emitAudit(ctx, auditEventGateRejected, false, subj, ErrSessionUnverified, nil)
		return ErrSessionUnverified
	}

	e.metricInc(MetricGateAllowed)
	return nil
}

// NeedsVerification reports whether a client holding subj must be sent to the
// code prompt before protected operations succeed.
func (e *Engine) NeedsVerification(ctx context.Context, subj session.Subject) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}

	verified, err := e.checkVerified(ctx, subj, e.clock.Now())
	if err != nil {
		return false, err
	}
	return !verified, nil
}

func (e *Engine) checkVerified(ctx context.Context, subj session.Subject, now time.Time) (bool, error) {
	profile, err := e.profiles.GetProfile(ctx, subj.UserID)
	if errors.Is(err, store.ErrProfileNotFound) {
		return true, nil
	}
	if err != nil {
		return false, e.storeError("gate", subj, err)
	}
	if !profile.Enabled {
		return true, nil
	}
	if !subj.HasSession() {
		return false, nil
	}

	v, err := e.sessions.GetVerification(ctx, subj.UserID, subj.SessionID)
	if errors.Is(err, session.ErrVerificationNotFound) {
		return false, nil
	}
	if err != nil {
		return false, e.storeError("gate", subj, err)
	}
	// Rows are written after the profile update commits, so a row from an
	// earlier enrollment can outlive a Disable that ran in between. Such a row
	// predates EnabledAt. Stores keep at least microsecond precision.
	if v.VerifiedAt.Before(profile.EnabledAt.Truncate(time.Microsecond)) {
		return false, nil
	}
	return v.Matches(subj) && v.Active(now, e.config.Session.VerificationTTL), nil
}

// RevokeSession drops the verification row of subj's session, typically on
// logout. Revoking an unverified session is not an error.
func (e *Engine) RevokeSession(ctx context.Context, subj session.Subject) error {
	if err := e.ready(); err != nil {
		return err
	}
	if !subj.HasSession() {
		return ErrSessionRequired
	}

	if err := e.sessions.DeleteVerification(ctx, subj.UserID, subj.SessionID); err != nil {
		return e.storeError("session_revoke", subj, err)
	}

	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, auditEventSessionRevoked, true, subj, nil, nil)
	return nil
}

// PruneExpiredSessions deletes expired verification rows from stores that
// keep them until explicitly pruned. Stores that expire rows on their own
// report 0.
func (e *Engine) PruneExpiredSessions(ctx context.Context) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}

	pruner, ok := e.sessions.(store.Pruner)
	if !ok {
		return 0, nil
	}

	n, err := pruner.PruneExpired(ctx, e.clock.Now())
	if err != nil {
		return 0, e.storeError("session_prune", session.Subject{}, err)
	}
	if n > 0 {
		e.log.Info("expired verifications pruned", zap.Int("count", n))
	}
	return n, nil
}

// RunPruner calls PruneExpiredSessions every interval until ctx is done.
func (e *Engine) RunPruner(ctx context.Context, interval time.Duration) error {
	if err := e.ready(); err != nil {
		return err
	}

	ticker := e.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			if _, err := e.PruneExpiredSessions(ctx); err != nil {
				e.log.Warn("verification prune failed", zap.Error(err))
			}
		}
	}
}
