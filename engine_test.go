package twofactor

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/MrEthical07/twofactor/otp"
	"github.com/MrEthical07/twofactor/session"
	"github.com/MrEthical07/twofactor/store/memstore"
	"github.com/jonboulle/clockwork"
)

// Ten seconds into a 30-second step, so a 30s advance always lands on the
// next counter.
var testEpoch = time.Date(2026, time.March, 2, 9, 0, 10, 0, time.UTC)

var (
	aliceWeb    = session.Subject{UserID: "alice", SessionID: "web-1"}
	aliceMobile = session.Subject{UserID: "alice", SessionID: "mobile-1"}
)

func engineTestConfig() Config {
	cfg := DefaultConfig()
	cfg.TOTP.Issuer = "twofactor"
	cfg.TOTP.RenderQRCode = false
	return cfg
}

type engineHarness struct {
	engine *Engine
	store  *memstore.Store
	clock  *clockwork.FakeClock
}

func newEngineHarness(t *testing.T, mutate func(*Config)) engineHarness {
	t.Helper()

	cfg := engineTestConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	st := memstore.New()
	st.PutUser("alice", "alice@example.com")
	st.PutUser("bob", "bob@example.com")
	clock := clockwork.NewFakeClockAt(testEpoch)

	engine, err := New().
		WithConfig(cfg).
		WithStore(st).
		WithClock(clock).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return engineHarness{engine: engine, store: st, clock: clock}
}

// enroll runs the full setup for subj and moves the clock to the next step so
// the enrolling code is not replayed by later calls.
func (h engineHarness) enroll(t *testing.T, subj session.Subject) (string, []string) {
	t.Helper()
	ctx := context.Background()

	setup, err := h.engine.BeginSetup(ctx, subj)
	if err != nil {
		t.Fatalf("BeginSetup failed: %v", err)
	}
	res, err := h.engine.CompleteSetup(ctx, subj, otp.ComputeCode(setup.Secret, h.clock.Now()))
	if err != nil {
		t.Fatalf("CompleteSetup failed: %v", err)
	}
	if !res.Success {
		t.Fatalf("CompleteSetup not successful: %+v", res)
	}
	h.clock.Advance(otp.Period)
	return setup.Secret, res.BackupCodes
}

func (h engineHarness) code(secret string) string {
	return otp.ComputeCode(secret, h.clock.Now())
}

// wrongCode returns a well-formed code that matches no step in the accepted
// window.
func (h engineHarness) wrongCode(secret string) string {
	now := h.clock.Now()
	taken := map[string]bool{}
	for step := -otp.MaxSkew; step <= otp.MaxSkew; step++ {
		taken[otp.ComputeCode(secret, now.Add(time.Duration(step)*otp.Period))] = true
	}
	n, _ := strconv.Atoi(otp.ComputeCode(secret, now))
	for {
		n = (n + 1) % 1000000
		candidate := strconv.Itoa(n)
		for len(candidate) < otp.Digits {
			candidate = "0" + candidate
		}
		if !taken[candidate] {
			return candidate
		}
	}
}

func (h engineHarness) failedAttempts(t *testing.T, userID string) uint32 {
	t.Helper()
	p, err := h.store.GetProfile(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	return p.Lockout.FailedAttempts
}

func TestBuildRequiresStores(t *testing.T) {
	if _, err := New().Build(); err == nil {
		t.Fatal("expected Build without stores to fail")
	}

	st := memstore.New()
	if _, err := New().WithProfileStore(st).Build(); err == nil {
		t.Fatal("expected Build without verification store to fail")
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := engineTestConfig()
	cfg.Lockout.MaxAttempts = 0

	_, err := New().WithConfig(cfg).WithStore(memstore.New()).Build()
	if err == nil {
		t.Fatal("expected invalid config to fail Build")
	}
}

func TestBuilderIsSingleUse(t *testing.T) {
	b := New().WithStore(memstore.New())
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestNilEngineReportsNotReady(t *testing.T) {
	var e *Engine
	if _, err := e.VerifyCode(context.Background(), aliceWeb, "123456"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if err := e.RequireVerified(context.Background(), aliceWeb); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if e.AuditDropped() != 0 {
		t.Fatal("expected zero drops on nil engine")
	}
	e.Close()
}
