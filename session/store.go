package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is returned when the Redis backend cannot be reached.
var ErrRedisUnavailable = errors.New("redis unavailable")

const deleteVerificationScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
end
if redis.call("SCARD", KEYS[2]) == 0 then
  redis.call("DEL", KEYS[2])
end
return existed
`

var deleteVerificationLua = redis.NewScript(deleteVerificationScript)

// Store persists [Verification] rows in Redis. Each row lives under its own
// key with a TTL matching its ExpiresAt, and a per-user set indexes the
// session ids so all of a user's rows can be dropped at once.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	clock  clockwork.Clock
}

// NewStore returns a Store that namespaces its keys under prefix.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "tfs"
	}
	return &Store{redis: client, prefix: prefix, clock: clockwork.NewRealClock()}
}

// WithClock replaces the clock Ping measures with. A nil clock is ignored.
func (s *Store) WithClock(c clockwork.Clock) *Store {
	if c != nil {
		s.clock = c
	}
	return s
}

// The user id is wrapped in a hash tag so a row and its index share a slot.
func (s *Store) key(userID, sessionID string) string {
	return s.prefix + ":v:{" + userID + "}" + SubjectSeparator + sessionID
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":u:{" + userID + "}"
}

// MarkVerified writes v, replacing any earlier row for the same session.
func (s *Store) MarkVerified(ctx context.Context, v Verification) error {
	if v.UserID == "" || v.SessionID == "" {
		return errors.New("verification requires user and session")
	}

	var ttl time.Duration
	if !v.ExpiresAt.IsZero() {
		ttl = v.ExpiresAt.Sub(v.VerifiedAt)
		if ttl <= 0 {
			return nil
		}
	}

	data, err := Encode(v)
	if err != nil {
		return err
	}

	rowKey := s.key(v.UserID, v.SessionID)
	userKey := s.userKey(v.UserID)

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, rowKey, data, ttl)
		pipe.SAdd(ctx, userKey, v.SessionID)
		if ttl > 0 {
			// Every row shares the same TTL, so the newest row expires last.
			pipe.Expire(ctx, userKey, ttl)
		} else {
			pipe.Persist(ctx, userKey)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// GetVerification returns the row for (userID, sessionID) or
// [ErrVerificationNotFound].
func (s *Store) GetVerification(ctx context.Context, userID, sessionID string) (Verification, error) {
	if userID == "" || sessionID == "" {
		return Verification{}, ErrVerificationNotFound
	}

	data, err := s.redis.Get(ctx, s.key(userID, sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Verification{}, ErrVerificationNotFound
		}
		return Verification{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	v, err := Decode(data)
	if err != nil {
		return Verification{}, fmt.Errorf("decode verification: %w", err)
	}
	if v.UserID != userID || v.SessionID != sessionID {
		return Verification{}, ErrVerificationNotFound
	}
	return v, nil
}

// DeleteVerification removes one session's row. Deleting a missing row is
// not an error.
func (s *Store) DeleteVerification(ctx context.Context, userID, sessionID string) error {
	if userID == "" || sessionID == "" {
		return nil
	}

	keys := []string{s.key(userID, sessionID), s.userKey(userID)}
	if err := deleteVerificationLua.Run(ctx, s.redis, keys, sessionID).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// DeleteUserVerifications removes every row of userID and reports how many
// still existed.
func (s *Store) DeleteUserVerifications(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, nil
	}

	userKey := s.userKey(userID)
	sessionIDs, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	rowKeys := make([]string, 0, len(sessionIDs))
	for _, sessionID := range sessionIDs {
		rowKeys = append(rowKeys, s.key(userID, sessionID))
	}

	var deleted *redis.IntCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(rowKeys) > 0 {
			deleted = pipe.Del(ctx, rowKeys...)
		}
		pipe.Del(ctx, userKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if deleted == nil {
		return 0, nil
	}
	return int(deleted.Val()), nil
}

// SessionIDs lists the sessions indexed for userID. A listed row may have
// expired since it was indexed.
func (s *Store) SessionIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ids, nil
}

// Ping measures a Redis round-trip.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := s.clock.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return s.clock.Since(start), nil
}
