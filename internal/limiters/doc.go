// Package limiters throttles the HTTP endpoints that accept second-factor
// codes. It complements the per-user lockout, which lives in the profile and
// is enforced by the engine.
//
// # Limiters
//
//   - [Local] is an in-process token bucket per key (golang.org/x/time/rate).
//   - [Window] is a fixed-window counter in Redis shared by every replica.
//
// Both satisfy the httpapi Limiter interface through Allow.
//
// # What this package must NOT do
//
//   - Import the root twofactor package.
//   - Decide consequences beyond allow or deny; callers map a denial to 429.
package limiters
