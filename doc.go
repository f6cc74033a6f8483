// Package twofactor is a TOTP second-factor engine: secret provisioning,
// code verification with a per-user lockout, single-use backup codes and a
// per-session verification gate.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// twofactor is the public surface. It exposes [Engine], [Builder], [Config]
// and the result types. Profiles and verification rows live behind the
// interfaces in the store package; memstore, redisstore and pgstore implement
// them. Pure logic (lockout transitions, backup code hashing) lives under
// internal/flows, and code generation lives in otp.
//
// # Results and errors
//
// Expected failures such as a wrong code, an active lock or missing setup are
// reported in the result's [Outcome] with an [ErrorCode] and a display
// message. The error return is reserved for infrastructure failures and for
// calls that cannot be served at all ([ErrUserNotFound], [ErrAlreadyEnabled]).
//
// # Consistency
//
// Every state change of a profile happens inside one
// store.ProfileStore.UpdateProfile call, so concurrent attempts for the same
// user never lose a failed-attempt increment or consume a backup code twice.
package twofactor
