// Package store defines the persistence contracts of the two-factor engine:
// the per-user [Profile] with its atomic read-modify-write [ProfileStore], and
// the [VerificationStore] holding per-session verification rows.
//
// Implementations live in sub-packages: memstore (in-process), redisstore
// (profiles on Redis; verification rows use session.Store) and pgstore
// (PostgreSQL for both).
package store
