package twofactor

import "errors"

var (
	// ErrInvalidCode is returned when a TOTP or backup code does not match.
	ErrInvalidCode = errors.New("invalid code")
	// ErrAccountLocked is returned while the user's failed-attempt lock is active.
	ErrAccountLocked = errors.New("account temporarily locked")
	// ErrNotSetup is returned when the operation needs 2FA state that does not exist.
	ErrNotSetup = errors.New("two-factor authentication not set up")
	// ErrSessionUnverified is returned by the gate when the calling session has not completed 2FA.
	ErrSessionUnverified = errors.New(MsgTwoFactorRequired)
	// ErrSessionRequired is returned when the subject carries no session id.
	ErrSessionRequired = errors.New("session id required")
	// ErrNoBackupCodes is returned when every backup code has been consumed.
	ErrNoBackupCodes = errors.New("no backup codes available")
	// ErrAlreadyEnabled is returned by BeginSetup when 2FA is already active.
	ErrAlreadyEnabled = errors.New("two-factor authentication already enabled")
	// ErrUserNotFound is returned when the profile store has no record for the user.
	ErrUserNotFound = errors.New("user not found")
	// ErrStoreUnavailable wraps profile or verification store failures.
	ErrStoreUnavailable = errors.New("two-factor store unavailable")
	// ErrSecretUnavailable is returned when a stored secret cannot be decrypted.
	ErrSecretUnavailable = errors.New("two-factor secret unavailable")
	// ErrEngineNotReady is returned when an Engine method is called on a nil or unbuilt engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// Messages carried in result Error fields. Clients display them verbatim.
const (
	MsgInvalidCode       = "Invalid verification code"
	MsgInvalidBackupCode = "Invalid backup code"
	MsgTooManyAttempts   = "Too many failed attempts"
	MsgAccountLocked     = "Account temporarily locked"
	MsgNoSetupInProgress = "No 2FA setup in progress"
	MsgAlreadyEnabled    = "2FA is already enabled"
	MsgNotEnabled        = "2FA is not enabled"
	MsgNoBackupCodes     = "No backup codes available"
	MsgSessionRequired   = "Session ID required"
	MsgTwoFactorRequired = "Two-factor authentication required"
)
