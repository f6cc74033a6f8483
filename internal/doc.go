// Package internal holds helpers that are private to the twofactor module.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: pure lockout and backup code transitions
//   - limiters: per-key throttles for the HTTP layer (in-process and Redis)
//   - logging: zap logger construction
//   - qrcode: enrollment QR rendering
//   - secretbox: AES-256-GCM sealing of TOTP secrets at rest
//
// # What this package must NOT do
//
//   - Export types that appear in the public twofactor API.
//   - Be imported by any package outside the twofactor module.
package internal
