package twofactor

import (
	"context"
	"errors"

	"github.com/MrEthical07/twofactor/session"
)

const (
	auditEventTOTPSetupRequested   = "totp_setup_requested"
	auditEventTOTPEnabled          = "totp_enabled"
	auditEventTOTPSetupFailed      = "totp_setup_failed"
	auditEventTOTPSuccess          = "totp_success"
	auditEventTOTPFailure          = "totp_failure"
	auditEventTOTPReplay           = "totp_replay"
	auditEventLockoutTriggered     = "lockout_triggered"
	auditEventLockedRejected       = "locked_rejected"
	auditEventBackupCodeUsed       = "backup_code_used"
	auditEventBackupCodeFailed     = "backup_code_failed"
	auditEventBackupCodesGenerated = "backup_codes_generated"
	auditEventTOTPDisabled         = "totp_disabled"
	auditEventGateRejected         = "gate_rejected"
	auditEventSessionRevoked       = "session_revoked"
)

// AuditErrorCode is the machine-readable Error field of an audit event.
type AuditErrorCode string

const (
	auditErrInvalidCode       AuditErrorCode = "invalid_code"
	auditErrAccountLocked     AuditErrorCode = "account_locked"
	auditErrNotSetup          AuditErrorCode = "not_setup"
	auditErrSessionUnverified AuditErrorCode = "session_unverified"
	auditErrSessionRequired   AuditErrorCode = "session_required"
	auditErrNoBackupCodes     AuditErrorCode = "no_backup_codes"
	auditErrUserNotFound      AuditErrorCode = "user_not_found"
	auditErrUnavailable       AuditErrorCode = "backend_unavailable"
	auditErrInternal          AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subj session.Subject,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.clock.Now().UTC(),
		EventType: eventType,
		UserID:    subj.UserID,
		SessionID: subj.SessionID,
		RequestID: RequestIDFromContext(ctx),
		IP:        ClientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCode):
		return auditErrInvalidCode
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrNotSetup), errors.Is(err, ErrAlreadyEnabled):
		return auditErrNotSetup
	case errors.Is(err, ErrSessionUnverified):
		return auditErrSessionUnverified
	case errors.Is(err, ErrSessionRequired):
		return auditErrSessionRequired
	case errors.Is(err, ErrNoBackupCodes):
		return auditErrNoBackupCodes
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrSecretUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
