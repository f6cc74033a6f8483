// Package httpapi serves the twofactor operations over HTTP with a chi
// router.
//
// # Routes
//
// All routes require a bearer subject (middleware.Authenticate) but not a
// completed second factor:
//
//	GET  /status
//	POST /setup
//	POST /setup/complete          {"code"}
//	POST /verify                  {"code"}
//	POST /verify/backup           {"code"}
//	POST /backup-codes/regenerate {"totpCode"}
//	POST /disable                 {"code", "isBackupCode"}
//	POST /logout
//
// Routes that accept a code are throttled per client IP through the injected
// [Limiter]. Engine results are written as 200 JSON whether or not the code
// matched; infrastructure failures are 500.
//
// # What this package must NOT do
//
//   - Implement any verification or lockout logic.
//   - Issue tokens.
package httpapi
