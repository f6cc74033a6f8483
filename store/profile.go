package store

import "time"

// Profile is the two-factor slice of a user record.
//
// Secret is set only while Enabled is true. PendingSecret holds a provisioned
// but unconfirmed secret between BeginSetup and CompleteSetup. Both may hold
// ciphertext when secret encryption is configured.
type Profile struct {
	UserID          string       `json:"userId"`
	AccountName     string       `json:"accountName,omitempty"`
	Enabled         bool         `json:"enabled"`
	Secret          string       `json:"secret,omitempty"`
	PendingSecret   string       `json:"pendingSecret,omitempty"`
	BackupCodes     []BackupCode `json:"backupCodes,omitempty"`
	Lockout         LockoutState `json:"lockout"`
	LastUsedCounter int64        `json:"lastUsedCounter,omitempty"`
	EnabledAt       time.Time    `json:"enabledAt"`
	Version         uint64       `json:"version"`
}

// BackupCode is a hashed single-use recovery code.
type BackupCode struct {
	Hash       string    `json:"hash"`
	Consumed   bool      `json:"consumed,omitempty"`
	ConsumedAt time.Time `json:"consumedAt"`
}

// LockoutState holds the consecutive failure counter and the lock deadline.
// The two fields always change together.
type LockoutState struct {
	FailedAttempts uint32    `json:"failedAttempts"`
	LockedUntil    time.Time `json:"lockedUntil"`
}

// Clone returns a deep copy of p.
func (p Profile) Clone() Profile {
	out := p
	if p.BackupCodes != nil {
		out.BackupCodes = make([]BackupCode, len(p.BackupCodes))
		copy(out.BackupCodes, p.BackupCodes)
	}
	return out
}

// RemainingBackupCodes counts unconsumed backup codes.
func (p Profile) RemainingBackupCodes() int {
	n := 0
	for _, c := range p.BackupCodes {
		if !c.Consumed {
			n++
		}
	}
	return n
}
