package redisstore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/MrEthical07/twofactor/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, "tfp"), mr
}

func TestPutUserIsIdempotent(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutUser(ctx, "u1", "alice@example.com"))
	_, err := s.UpdateProfile(ctx, "u1", func(p *store.Profile) error {
		p.PendingSecret = "PENDING"
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, s.PutUser(ctx, "u1", "other@example.com"))

	p, err := s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", p.AccountName)
	assert.Equal(t, "PENDING", p.PendingSecret)
}

func TestGetProfileMissing(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	_, err := s.GetProfile(context.Background(), "nobody")
	require.ErrorIs(t, err, store.ErrProfileNotFound)

	_, err = s.UpdateProfile(context.Background(), "nobody", func(*store.Profile) error { return nil })
	require.ErrorIs(t, err, store.ErrProfileNotFound)
}

func TestUpdateProfileAbortDoesNotWrite(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutUser(ctx, "u1", ""))

	abort := errors.New("abort")
	_, err := s.UpdateProfile(ctx, "u1", func(p *store.Profile) error {
		p.Enabled = true
		return abort
	})
	require.ErrorIs(t, err, abort)

	p, err := s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, p.Enabled)
	assert.Zero(t, p.Version)
}

func TestUpdateProfileNoLostUpdates(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutUser(ctx, "u1", ""))

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int64
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				_, err := s.UpdateProfile(ctx, "u1", func(p *store.Profile) error {
					p.Lockout.FailedAttempts++
					return nil
				})
				if err == nil {
					succeeded.Add(1)
				} else if !errors.Is(err, store.ErrConflict) {
					t.Errorf("unexpected update error: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	p, err := s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, uint32(succeeded.Load()), p.Lockout.FailedAttempts)
	assert.Equal(t, uint64(succeeded.Load()), p.Version)
	assert.Positive(t, succeeded.Load())
}

func TestUpdateProfileUnavailable(t *testing.T) {
	t.Parallel()

	s, mr := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutUser(ctx, "u1", ""))

	mr.SetError("ERR injected failure")
	_, err := s.GetProfile(ctx, "u1")
	require.ErrorIs(t, err, store.ErrUnavailable)
	mr.SetError("")
}
