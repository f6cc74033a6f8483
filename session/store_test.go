package session

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

func newVerificationStoreTest(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return NewStore(rdb, "tfs"), mr
}

func testVerification(userID, sessionID string) Verification {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	return Verification{
		UserID:     userID,
		SessionID:  sessionID,
		VerifiedAt: now,
		ExpiresAt:  now.Add(24 * time.Hour),
	}
}

func TestStoreMarkAndGetVerification(t *testing.T) {
	store, _ := newVerificationStoreTest(t)
	ctx := context.Background()

	if err := store.MarkVerified(ctx, testVerification("u1", "s1")); err != nil {
		t.Fatalf("MarkVerified: %v", err)
	}

	got, err := store.GetVerification(ctx, "u1", "s1")
	if err != nil {
		t.Fatalf("GetVerification: %v", err)
	}
	if got.UserID != "u1" || got.SessionID != "s1" || got.VerifiedAt.IsZero() {
		t.Fatalf("unexpected verification: %+v", got)
	}

	if _, err := store.GetVerification(ctx, "u1", "s2"); !errors.Is(err, ErrVerificationNotFound) {
		t.Fatalf("expected other session to be unverified, got %v", err)
	}
}

func TestStoreVerificationExpiresWithTTL(t *testing.T) {
	store, mr := newVerificationStoreTest(t)
	ctx := context.Background()

	if err := store.MarkVerified(ctx, testVerification("u1", "s1")); err != nil {
		t.Fatalf("MarkVerified: %v", err)
	}

	mr.FastForward(24*time.Hour + time.Second)

	if _, err := store.GetVerification(ctx, "u1", "s1"); !errors.Is(err, ErrVerificationNotFound) {
		t.Fatalf("expected expired verification, got %v", err)
	}
}

func TestStoreDeleteVerificationIdempotent(t *testing.T) {
	store, mr := newVerificationStoreTest(t)
	ctx := context.Background()

	if err := store.MarkVerified(ctx, testVerification("u1", "s1")); err != nil {
		t.Fatalf("MarkVerified: %v", err)
	}
	if err := store.DeleteVerification(ctx, "u1", "s1"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := store.DeleteVerification(ctx, "u1", "s1"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := store.GetVerification(ctx, "u1", "s1"); !errors.Is(err, ErrVerificationNotFound) {
		t.Fatalf("expected deleted verification, got %v", err)
	}
	if mr.Exists(store.userKey("u1")) {
		t.Fatal("expected empty user index to be removed")
	}
}

func TestStoreDeleteUserVerifications(t *testing.T) {
	store, _ := newVerificationStoreTest(t)
	ctx := context.Background()

	for _, sid := range []string{"s1", "s2", "s3"} {
		if err := store.MarkVerified(ctx, testVerification("u1", sid)); err != nil {
			t.Fatalf("MarkVerified(%s): %v", sid, err)
		}
	}
	if err := store.MarkVerified(ctx, testVerification("u2", "s1")); err != nil {
		t.Fatalf("MarkVerified(u2): %v", err)
	}

	ids, err := store.SessionIDs(ctx, "u1")
	if err != nil {
		t.Fatalf("SessionIDs: %v", err)
	}
	sort.Strings(ids)
	if len(ids) != 3 || ids[0] != "s1" || ids[2] != "s3" {
		t.Fatalf("unexpected session index: %v", ids)
	}

	n, err := store.DeleteUserVerifications(ctx, "u1")
	if err != nil {
		t.Fatalf("DeleteUserVerifications: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 deleted rows, got %d", n)
	}
	for _, sid := range []string{"s1", "s2", "s3"} {
		if _, err := store.GetVerification(ctx, "u1", sid); !errors.Is(err, ErrVerificationNotFound) {
			t.Fatalf("expected %s removed, got %v", sid, err)
		}
	}
	if _, err := store.GetVerification(ctx, "u2", "s1"); err != nil {
		t.Fatalf("other user must keep its row: %v", err)
	}

	n, err = store.DeleteUserVerifications(ctx, "u1")
	if err != nil || n != 0 {
		t.Fatalf("expected idempotent delete, n=%d err=%v", n, err)
	}
}

func TestStoreMarkVerifiedRequiresSession(t *testing.T) {
	store, _ := newVerificationStoreTest(t)
	if err := store.MarkVerified(context.Background(), Verification{UserID: "u1"}); err == nil {
		t.Fatal("expected error for verification without session")
	}
}

func TestStorePingUsesInjectedClock(t *testing.T) {
	store, mr := newVerificationStoreTest(t)
	store.WithClock(clockwork.NewFakeClock())

	rtt, err := store.Ping(context.Background())
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	// A fake clock does not move while the round-trip runs.
	if rtt != 0 {
		t.Fatalf("expected zero round-trip on a fake clock, got %v", rtt)
	}

	mr.Close()
	if _, err := store.Ping(context.Background()); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
