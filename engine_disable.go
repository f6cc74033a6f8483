package twofactor

import (
	"context"
	"strconv"
	"time"

	"github.com/MrEthical07/twofactor/internal/flows"
	"github.com/MrEthical07/twofactor/session"
	"github.com/MrEthical07/twofactor/store"
	"go.uber.org/zap"
)

// Disable turns 2FA off after checking a TOTP code, or an unused backup code
// when isBackupCode is set. Every verified session of the user is dropped.
// A failed proof leaves the profile untouched, lockout state included.
func (e *Engine) Disable(ctx context.Context, subj session.Subject, code string, isBackupCode bool) (DisableResult, error) {
	if err := e.ready(); err != nil {
		return DisableResult{}, err
	}
	now := e.clock.Now()

	res, err := e.proof(ctx, subj.UserID,
		func(p *store.Profile) *Outcome {
			if !p.Enabled {
				out := failure(CodeNotSetup, MsgNotEnabled)
				return &out
			}
			return nil
		},
		func(p *store.Profile) (bool, error) {
			if isBackupCode {
				return flows.ConsumeBackupCode(subj.UserID, code, p.BackupCodes, now), nil
			}
			secret, err := e.totp.Open(p.Secret)
			if err != nil {
				return false, err
			}
			ok, _, _ := e.totp.Verify(secret, code, now, p.LastUsedCounter)
			return ok, nil
		},
		func(p *store.Profile) {
			p.Enabled = false
			p.Secret = ""
			p.PendingSecret = ""
			p.BackupCodes = nil
			p.Lockout = store.LockoutState{}
			p.LastUsedCounter = 0
			p.EnabledAt = time.Time{}
		},
	)
	if err != nil {
		return DisableResult{}, e.storeError("disable", subj, err)
	}
	if res.refused != nil {
		return DisableResult{Outcome: *res.refused}, nil
	}

	if res.outcome != flows.AttemptAccepted {
		out := failure(CodeInvalidCode, MsgInvalidCode)
		failMetric := MetricTOTPFailure
		if isBackupCode {
			failMetric = MetricBackupCodeFailed
		}
		e.emitAudit(ctx, auditEventTOTPFailure, false, subj, out.Err(), func() map[string]string {
			return map[string]string{"operation": "disable", "backup_code": strconv.FormatBool(isBackupCode)}
		})
		e.recordAttempt(ctx, subj, "disable", res, failMetric)
		return DisableResult{Outcome: out}, nil
	}

	dropped, err := e.sessions.DeleteUserVerifications(ctx, subj.UserID)
	if err != nil {
		return DisableResult{}, e.storeError("disable", subj, err)
	}

	e.metricInc(MetricDisabled)
	e.log.Info("two-factor disabled",
		zap.String("user_id", subj.UserID),
		zap.Int("sessions_dropped", dropped),
	)
	e.emitAudit(ctx, auditEventTOTPDisabled, true, subj, nil, func() map[string]string {
		return map[string]string{
			"backup_code":      strconv.FormatBool(isBackupCode),
			"sessions_dropped": strconv.Itoa(dropped),
		}
	})
	return DisableResult{Outcome: succeeded}, nil
}
