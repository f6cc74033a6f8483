package twofactor

import (
	"context"
	"errors"
	"strconv"

	"github.com/MrEthical07/twofactor/internal/flows"
	"github.com/MrEthical07/twofactor/session"
	"github.com/MrEthical07/twofactor/store"
	"go.uber.org/zap"
)

// BeginSetup provisions a new secret for subj's user and stores it as the
// pending secret, replacing any earlier pending one. 2FA stays disabled until
// [Engine.CompleteSetup] confirms a code.
//
// It returns ErrAlreadyEnabled when 2FA is already active and
// ErrUserNotFound for an unknown user.
func (e *Engine) BeginSetup(ctx context.Context, subj session.Subject) (*SetupResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	profile, err := e.profiles.GetProfile(ctx, subj.UserID)
	if err != nil {
		return nil, e.storeError("setup_begin", subj, err)
	}
	if profile.Enabled {
		return nil, ErrAlreadyEnabled
	}

	account := profile.AccountName
	if account == "" {
		account = subj.UserID
	}

	secret, url, err := e.totp.Generate(account)
	if err != nil {
		return nil, err
	}
	sealed, err := e.totp.Seal(secret)
	if err != nil {
		return nil, err
	}

	_, err = e.profiles.UpdateProfile(ctx, subj.UserID, func(p *store.Profile) error {
		if p.Enabled {
			return ErrAlreadyEnabled
		}
		p.PendingSecret = sealed
		return nil
	})
	if err != nil {
		return nil, e.storeError("setup_begin", subj, err)
	}

	result := &SetupResult{Secret: secret, OTPAuthURL: url}
	if qr, err := e.totp.QRCode(url); err != nil {
		e.log.Warn("qr code rendering failed", zap.String("user_id", subj.UserID), zap.Error(err))
	} else {
		result.QRCode = qr
	}

	e.metricInc(MetricSetupStarted)
	e.emitAudit(ctx, auditEventTOTPSetupRequested, true, subj, nil, nil)
	return result, nil
}

// CompleteSetup confirms the pending secret with a code from the user's
// authenticator. On success 2FA is enabled, a fresh backup code set is issued
// and the calling session is marked verified.
//
// A wrong code does not advance the lockout counter.
func (e *Engine) CompleteSetup(ctx context.Context, subj session.Subject, code string) (CompleteSetupResult, error) {
	if err := e.ready(); err != nil {
		return CompleteSetupResult{}, err
	}
	now := e.clock.Now()

	plain, records, err := flows.GenerateBackupCodes(subj.UserID, e.config.BackupCodes.Count, e.config.BackupCodes.Length, e.randomIndex)
	if err != nil {
		return CompleteSetupResult{}, err
	}

	var result CompleteSetupResult
	_, err = e.profiles.UpdateProfile(ctx, subj.UserID, func(p *store.Profile) error {
		result = CompleteSetupResult{}

		if p.Enabled {
			result.Outcome = failure(CodeNotSetup, MsgAlreadyEnabled)
			return errNoChange
		}
		if p.PendingSecret == "" {
			result.Outcome = failure(CodeNotSetup, MsgNoSetupInProgress)
			return errNoChange
		}

		secret, err := e.totp.Open(p.PendingSecret)
		if err != nil {
			return err
		}
		ok, counter, _ := e.totp.Verify(secret, code, now, 0)
		if !ok {
			result.Outcome = failure(CodeInvalidCode, MsgInvalidCode)
			return errNoChange
		}

		p.Enabled = true
		p.Secret = p.PendingSecret
		p.PendingSecret = ""
		p.BackupCodes = records
		p.LastUsedCounter = counter
		p.EnabledAt = now
		p.Lockout = store.LockoutState{}

		result.Outcome = succeeded
		result.BackupCodes = plain
		return nil
	})
	if err != nil && !errors.Is(err, errNoChange) {
		return CompleteSetupResult{}, e.storeError("setup_complete", subj, err)
	}

	if !result.Success {
		e.metricInc(MetricSetupFailed)
		e.log.Debug("two-factor setup not completed",
			zap.String("user_id", subj.UserID),
			zap.String("error", result.Error),
		)
		e.emitAudit(ctx, auditEventTOTPSetupFailed, false, subj, result.Err(), nil)
		return result, nil
	}

	if err := e.markVerified(ctx, subj, now); err != nil {
		return CompleteSetupResult{}, err
	}

	e.metricInc(MetricSetupCompleted)
	e.log.Info("two-factor enabled", zap.String("user_id", subj.UserID))
	e.emitAudit(ctx, auditEventTOTPEnabled, true, subj, nil, func() map[string]string {
		return map[string]string{"backup_codes": strconv.Itoa(len(plain))}
	})
	return result, nil
}

// VerifyCode checks a TOTP code for subj's session. A match resets the
// attempt counter and marks exactly that session verified. Failures advance
// the per-user counter and lock the user once it reaches the configured
// maximum.
func (e *Engine) VerifyCode(ctx context.Context, subj session.Subject, code string) (VerifyResult, error) {
	if err := e.ready(); err != nil {
		return VerifyResult{}, err
	}
	if !subj.HasSession() {
		return VerifyResult{Outcome: failure(CodeSessionRequired, MsgSessionRequired)}, nil
	}
	now := e.clock.Now()

	var (
		counter int64
		replay  bool
	)
	res, err := e.attempt(ctx, subj.UserID, now,
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
			ok, counter, replay = e.totp.Verify(secret, code, now, p.LastUsedCounter)
			return ok, nil
		},
		func(p *store.Profile) {
			p.LastUsedCounter = max(p.LastUsedCounter, counter)
		},
	)
	if err != nil {
		return VerifyResult{}, e.storeError("totp_verify", subj, err)
	}
	if res.refused != nil {
		return VerifyResult{Outcome: *res.refused}, nil
	}

	if res.outcome != flows.AttemptAccepted {
		out, lockedUntil := lockFailure(res, MsgInvalidCode)
		if res.outcome != flows.AttemptBlocked {
			if replay {
				e.metricInc(MetricTOTPReplay)
				e.emitAudit(ctx, auditEventTOTPReplay, false, subj, ErrInvalidCode, nil)
			}
			e.emitAudit(ctx, auditEventTOTPFailure, false, subj, out.Err(), nil)
		}
		e.recordAttempt(ctx, subj, "totp_verify", res, MetricTOTPFailure)
		return VerifyResult{Outcome: out, LockedUntil: lockedUntil}, nil
	}

	if err := e.markVerified(ctx, subj, now); err != nil {
		return VerifyResult{}, err
	}

	e.metricInc(MetricTOTPSuccess)
	e.emitAudit(ctx, auditEventTOTPSuccess, true, subj, nil, nil)
	return VerifyResult{Outcome: succeeded}, nil
}

// Status summarizes subj's 2FA profile. An unknown user reports a zero
// Status.
func (e *Engine) Status(ctx context.Context, subj session.Subject) (Status, error) {
	if err := e.ready(); err != nil {
		return Status{}, err
	}

	profile, err := e.profiles.GetProfile(ctx, subj.UserID)
	if errors.Is(err, store.ErrProfileNotFound) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, e.storeError("status", subj, err)
	}

	now := e.clock.Now()
	remaining := profile.RemainingBackupCodes()
	st := Status{
		Enabled:              profile.Enabled,
		PendingSetup:         !profile.Enabled && profile.PendingSecret != "",
		HasBackupCodes:       remaining > 0,
		RemainingBackupCodes: remaining,
	}
	if e.lockout.Locked(profile.Lockout, now) {
		st.Locked = true
		st.LockedUntil = timePtr(profile.Lockout.LockedUntil)
	}
	return st, nil
}
