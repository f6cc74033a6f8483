// Package flows contains the pure state transitions behind the 2FA engine.
//
// The lockout state machine ([Lockout]) and backup code handling operate on
// values from the store package and never perform I/O. The engine drives
// them inside a single ProfileStore.UpdateProfile closure, so every
// transition is applied atomically with the rest of the profile.
//
// # Architecture boundaries
//
// Flow functions mutate the profile fragment they are given. They do NOT
// read clocks or random sources directly; time and randomness are passed in.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import the root twofactor package (to avoid import cycles).
//   - Emit audit events or metrics; the engine does that after commit.
package flows
