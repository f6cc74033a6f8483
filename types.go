package twofactor

import (
	"time"

	internalaudit "github.com/MrEthical07/twofactor/internal/audit"
)

// ErrorCode classifies a failed result for clients.
type ErrorCode string

const (
	CodeInvalidCode     ErrorCode = "invalid_code"
	CodeAccountLocked   ErrorCode = "account_locked"
	CodeNotSetup        ErrorCode = "not_setup"
	CodeSessionRequired ErrorCode = "session_required"
	CodeNoBackupCodes   ErrorCode = "no_backup_codes"
)

// Err maps the code to its sentinel error.
func (c ErrorCode) Err() error {
	switch c {
	case "":
		return nil
	case CodeInvalidCode:
		return ErrInvalidCode
	case CodeAccountLocked:
		return ErrAccountLocked
	case CodeNotSetup:
		return ErrNotSetup
	case CodeSessionRequired:
		return ErrSessionRequired
	case CodeNoBackupCodes:
		return ErrNoBackupCodes
	default:
		return ErrInvalidCode
	}
}

// Outcome is the common part of every operation result. Expected failures
// (wrong code, lock, missing setup) are reported here; the accompanying error
// return is reserved for infrastructure failures.
type Outcome struct {
	Success bool      `json:"success"`
	Code    ErrorCode `json:"code,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// Err returns nil for a successful outcome and the sentinel matching Code
// otherwise, so callers can use errors.Is.
func (o Outcome) Err() error {
	if o.Success {
		return nil
	}
	return o.Code.Err()
}

func failure(code ErrorCode, msg string) Outcome {
	return Outcome{Code: code, Error: msg}
}

var succeeded = Outcome{Success: true}

// SetupResult is returned by [Engine.BeginSetup]. Secret is the base32 key
// the user enters in an authenticator app.
type SetupResult struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauthUrl"`
	// QRCode is a PNG data URI of OTPAuthURL, empty when rendering is off.
	QRCode string `json:"qrCode,omitempty"`
}

// CompleteSetupResult carries the plaintext backup codes on success. They are
// never retrievable again.
type CompleteSetupResult struct {
	Outcome
	BackupCodes []string `json:"backupCodes,omitempty"`
}

// VerifyResult is returned by [Engine.VerifyCode]. LockedUntil is set when
// the call was refused by, or triggered, a lockout.
type VerifyResult struct {
	Outcome
	LockedUntil *time.Time `json:"lockedUntil,omitempty"`
}

// BackupCodeResult is returned by [Engine.VerifyBackupCode].
type BackupCodeResult struct {
	Outcome
	RemainingCodes *int `json:"remainingCodes,omitempty"`
}

// BackupCodesResult carries a replacement backup code set in plaintext.
type BackupCodesResult struct {
	Outcome
	BackupCodes []string `json:"backupCodes,omitempty"`
}

// DisableResult is returned by [Engine.Disable].
type DisableResult struct {
	Outcome
}

// Status summarizes a user's 2FA profile for display.
type Status struct {
	Enabled              bool       `json:"enabled"`
	PendingSetup         bool       `json:"pendingSetup"`
	HasBackupCodes       bool       `json:"hasBackupCodes"`
	RemainingBackupCodes int        `json:"remainingBackupCodes"`
	Locked               bool       `json:"locked"`
	LockedUntil          *time.Time `json:"lockedUntil,omitempty"`
}

// AuditEvent is an alias of the internal audit event model.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the engine's dispatcher.
type AuditSink = internalaudit.Sink

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func intPtr(n int) *int {
	return &n
}
