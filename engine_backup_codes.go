package twofactor

import (
	"context"
	"strconv"

	"github.com/MrEthical07/twofactor/internal/flows"
	"github.com/MrEthical07/twofactor/session"
	"github.com/MrEthical07/twofactor/store"
	"go.uber.org/zap"
)

// VerifyBackupCode consumes one unused backup code and marks subj's session
// verified. It neither checks nor advances the lockout of [Engine.VerifyCode],
// so a user locked out of TOTP can still recover with a backup code.
func (e *Engine) VerifyBackupCode(ctx context.Context, subj session.Subject, code string) (BackupCodeResult, error) {
	if err := e.ready(); err != nil {
		return BackupCodeResult{}, err
	}
	if !subj.HasSession() {
		return BackupCodeResult{Outcome: failure(CodeSessionRequired, MsgSessionRequired)}, nil
	}
	now := e.clock.Now()

	res, err := e.proof(ctx, subj.UserID,
		func(p *store.Profile) *Outcome {
			if !p.Enabled {
				out := failure(CodeNotSetup, MsgNotEnabled)
				return &out
			}
			if p.RemainingBackupCodes() == 0 {
				out := failure(CodeNoBackupCodes, MsgNoBackupCodes)
				return &out
			}
			return nil
		},
		func(p *store.Profile) (bool, error) {
			return flows.ConsumeBackupCode(subj.UserID, code, p.BackupCodes, now), nil
		},
		nil,
	)
	if err != nil {
		return BackupCodeResult{}, e.storeError("backup_code_verify", subj, err)
	}
	if res.refused != nil {
		return BackupCodeResult{Outcome: *res.refused}, nil
	}

	if res.outcome != flows.AttemptAccepted {
		out := failure(CodeInvalidCode, MsgInvalidBackupCode)
		e.emitAudit(ctx, auditEventBackupCodeFailed, false, subj, out.Err(), nil)
		e.recordAttempt(ctx, subj, "backup_code_verify", res, MetricBackupCodeFailed)
		return BackupCodeResult{Outcome: out}, nil
	}

	if err := e.markVerified(ctx, subj, now); err != nil {
		return BackupCodeResult{}, err
	}

	remaining := res.profile.RemainingBackupCodes()
	e.metricInc(MetricBackupCodeUsed)
	e.log.Info("backup code consumed",
		zap.String("user_id", subj.UserID),
		zap.String("session_id", subj.SessionID),
		zap.Int("remaining", remaining),
	)
	e.emitAudit(ctx, auditEventBackupCodeUsed, true, subj, nil, func() map[string]string {
		return map[string]string{"remaining": strconv.Itoa(remaining)}
	})
	return BackupCodeResult{Outcome: succeeded, RemainingCodes: intPtr(remaining)}, nil
}

// RegenerateBackupCodes replaces the whole backup code set after checking a
// current TOTP code. Backup codes are not accepted as proof here. A wrong
// code does not advance the lockout counter.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, subj session.Subject, totpCode string) (BackupCodesResult, error) {
	if err := e.ready(); err != nil {
		return BackupCodesResult{}, err
	}
	now := e.clock.Now()

	plain, records, err := flows.GenerateBackupCodes(subj.UserID, e.config.BackupCodes.Count, e.config.BackupCodes.Length, e.randomIndex)
	if err != nil {
		return BackupCodesResult{}, err
	}

	var counter int64
	res, err := e.proof(ctx, subj.UserID,
		func(p *store.Profile) *Outcome {
			if !p.Enabled || p.Secret == "" {
				out := failure(CodeNotSetup, MsgNotEnabled)
				return &out
			}
			return nil
		},
		func(p *store.Profile) (bool, error) {
			secret, err := e.totp.Open(p.Secret)
			if err != nil {
				return false, err
			}
			var ok bool
			ok, counter, _ = e.totp.Verify(secret, totpCode, now, p.LastUsedCounter)
			return ok, nil
		},
		func(p *store.Profile) {
			p.LastUsedCounter = max(p.LastUsedCounter, counter)
			p.BackupCodes = records
		},
	)
	if err != nil {
		return BackupCodesResult{}, e.storeError("backup_codes_regenerate", subj, err)
	}
	if res.refused != nil {
		return BackupCodesResult{Outcome: *res.refused}, nil
	}

	if res.outcome != flows.AttemptAccepted {
		out := failure(CodeInvalidCode, MsgInvalidCode)
		e.emitAudit(ctx, auditEventTOTPFailure, false, subj, out.Err(), func() map[string]string {
			return map[string]string{"operation": "backup_codes_regenerate"}
		})
		e.recordAttempt(ctx, subj, "backup_codes_regenerate", res, MetricTOTPFailure)
		return BackupCodesResult{Outcome: out}, nil
	}

	e.metricInc(MetricBackupCodesRegenerated)
	e.log.Info("backup codes regenerated", zap.String("user_id", subj.UserID))
	e.emitAudit(ctx, auditEventBackupCodesGenerated, true, subj, nil, func() map[string]string {
		return map[string]string{"count": strconv.Itoa(len(plain))}
	})
	return BackupCodesResult{Outcome: succeeded, BackupCodes: plain}, nil
}
