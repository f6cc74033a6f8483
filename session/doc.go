// Package session models per-session two-factor verification: the structured
// [Subject] a caller presents, the [Verification] row written once a session
// completes 2FA, and a Redis-backed [Store] for those rows.
//
// # Binary encoding
//
// Verifications are stored in Redis in a compact versioned binary format. The
// encoder is append-only: new versions add fields but never reinterpret old
// ones.
//
// # Architecture boundaries
//
// This package owns subject decoding and verification persistence. It does NOT
// verify codes, track lockout, or decide whether a user has 2FA enabled; those
// responsibilities belong to the Engine.
//
// # What this package must NOT do
//
//   - Import twofactor or any store package (no upward imports).
//   - Treat a verification for one session as valid for another.
package session
