// Package jwt issues and verifies the bearer tokens that carry a
// [session.Subject]. The token subject claim holds the composite
// "userId|sessionId" form; the session id is also copied into a sid claim.
package jwt
