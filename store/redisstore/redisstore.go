// Package redisstore keeps two-factor profiles in Redis as JSON documents and
// serializes updates with WATCH/MULTI optimistic transactions.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrEthical07/twofactor/store"
	"github.com/redis/go-redis/v9"
)

const defaultMaxRetries = 16

// Store implements [store.ProfileStore] on Redis.
type Store struct {
	redis      redis.UniversalClient
	prefix     string
	maxRetries int
}

// New returns a Store that namespaces its keys under prefix.
func New(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "tfp"
	}
	return &Store{redis: client, prefix: prefix, maxRetries: defaultMaxRetries}
}

func (s *Store) key(userID string) string {
	return s.prefix + ":p:" + userID
}

// PutUser registers a user. An existing profile is left untouched.
func (s *Store) PutUser(ctx context.Context, userID, accountName string) error {
	if userID == "" {
		return errors.New("user id required")
	}
	data, err := json.Marshal(store.Profile{UserID: userID, AccountName: accountName})
	if err != nil {
		return err
	}
	if err := s.redis.SetNX(ctx, s.key(userID), data, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}

// GetProfile decodes the profile document of userID.
func (s *Store) GetProfile(ctx context.Context, userID string) (store.Profile, error) {
	data, err := s.redis.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return store.Profile{}, store.ErrProfileNotFound
		}
		return store.Profile{}, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return decodeProfile(data)
}

// UpdateProfile runs fn inside a WATCH on the profile key and commits with
// MULTI/EXEC. A concurrent writer makes EXEC fail; the update is then retried
// from a fresh read, up to a bounded number of attempts.
func (s *Store) UpdateProfile(ctx context.Context, userID string, fn store.UpdateFunc) (store.Profile, error) {
	key := s.key(userID)

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		var (
			out   store.Profile
			fnErr error
		)

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return store.ErrProfileNotFound
				}
				return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
			}

			p, err := decodeProfile(data)
			if err != nil {
				return err
			}
			if err := fn(&p); err != nil {
				fnErr = err
				return err
			}
			p.UserID = userID
			p.Version++

			next, err := json.Marshal(p)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, next, 0)
				return nil
			})
			if err != nil {
				return err
			}
			out = p
			return nil
		}, key)

		switch {
		case err == nil:
			return out, nil
		case fnErr != nil:
			return store.Profile{}, fnErr
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, store.ErrProfileNotFound), errors.Is(err, store.ErrUnavailable):
			return store.Profile{}, err
		default:
			return store.Profile{}, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
		}
	}

	return store.Profile{}, store.ErrConflict
}

func decodeProfile(data []byte) (store.Profile, error) {
	var p store.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return store.Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	return p, nil
}

var _ store.ProfileStore = (*Store)(nil)
