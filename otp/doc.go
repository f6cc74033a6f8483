// Package otp implements HOTP (RFC 4226) and TOTP (RFC 6238) code generation
// and verification.
//
// # Architecture boundaries
//
// This package is pure computation. It decodes base32 secrets, derives codes
// from a secret and a point in time, and compares candidate codes in constant
// time. Secret storage, replay tracking and lockout policy belong to the
// engine.
//
// # What this package must NOT do
//
//   - Read the wall clock. Callers pass the time explicitly.
//   - Perform I/O or hold state between calls.
package otp
