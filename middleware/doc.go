// Package middleware exposes HTTP adapters that put the twofactor Auth Gate in
// front of handlers.
//
// # Middleware
//
//   - [Authenticate] decodes the bearer token into a [session.Subject] and
//     stores it in the request context. It never touches the engine.
//   - [Guard] does the same, then calls Engine.RequireVerified and rejects
//     sessions that still owe a second factor.
//
// Handlers read the caller with [SubjectFromContext].
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Token
// verification is delegated to a [SubjectParser] (normally *jwt.Manager) and
// the verification decision to Engine.RequireVerified.
//
// # What this package must NOT do
//
//   - Create tokens.
//   - Access a profile or verification store directly.
//   - Make decisions beyond pass/reject from the engine.
package middleware
