package twofactor

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/twofactor/otp"
	"github.com/MrEthical07/twofactor/session"
)

func TestDisableWithTOTPClearsStateAndSessions(t *testing.T) {
	h := newEngineHarness(t, nil)
	ctx := context.Background()
	secret, _ := h.enroll(t, aliceWeb)

	if res, err := h.engine.VerifyCode(ctx, aliceMobile, h.code(secret)); err != nil || !res.Success {
		t.Fatalf("VerifyCode failed: %+v %v", res, err)
	}
	h.clock.Advance(otp.Period)

	res, err := h.engine.Disable(ctx, aliceWeb, h.code(secret), false)
	if err != nil {
		t.Fatalf("Disable failed: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}

	p, err := h.store.GetProfile(ctx, "alice")
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if p.Enabled || p.Secret != "" || p.PendingSecret != "" || len(p.BackupCodes) != 0 || p.Lockout.FailedAttempts != 0 {
		t.Fatalf("expected cleared profile, got %+v", p)
	}

	for _, subj := range []session.Subject{aliceWeb, aliceMobile} {
		if _, err := h.store.GetVerification(ctx, subj.UserID, subj.SessionID); !errors.Is(err, session.ErrVerificationNotFound) {
			t.Fatalf("expected verification of %s to be dropped, got %v", subj, err)
		}
	}

	// With 2FA off the gate lets any session through.
	if err := h.engine.RequireVerified(ctx, session.Subject{UserID: "alice", SessionID: "fresh"}); err != nil {
		t.Fatalf("expected gate to pass after disable, got %v", err)
	}
}

func TestDisableWithBackupCode(t *testing.T) {
	h := newEngineHarness(t, nil)
	_, codes := h.enroll(t, aliceWeb)

	res, err := h.engine.Disable(context.Background(), aliceWeb, codes[3], true)
	if err != nil {
		t.Fatalf("Disable failed: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}

	st, err := h.engine.Status(context.Background(), aliceWeb)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.Enabled || st.HasBackupCodes {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestDisableWrongCodeLeavesStateUnchanged(t *testing.T) {
	h := newEngineHarness(t, nil)
	ctx := context.Background()
	secret, codes := h.enroll(t, aliceWeb)

	res, err := h.engine.Disable(ctx, aliceWeb, h.wrongCode(secret), false)
	if err != nil {
		t.Fatalf("Disable failed: %v", err)
	}
	if res.Success || res.Error != MsgInvalidCode {
		t.Fatalf("unexpected result %+v", res)
	}

	// The TOTP code is not a backup code.
	res, err = h.engine.Disable(ctx, aliceWeb, h.code(secret), true)
	if err != nil {
		t.Fatalf("Disable failed: %v", err)
	}
	if res.Success {
		t.Fatal("expected TOTP code to be rejected in backup mode")
	}

	p, err := h.store.GetProfile(ctx, "alice")
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if !p.Enabled || p.Secret == "" || p.RemainingBackupCodes() != len(codes) {
		t.Fatalf("expected 2FA state untouched, got %+v", p)
	}
	if p.Lockout.FailedAttempts != 0 || !p.Lockout.LockedUntil.IsZero() {
		t.Fatalf("expected lockout state untouched, got %+v", p.Lockout)
	}
	if err := h.engine.RequireVerified(ctx, aliceWeb); err != nil {
		t.Fatalf("expected enrolling session to stay verified, got %v", err)
	}
}

func TestRepeatedWrongDisableDoesNotLockLogin(t *testing.T) {
	h := newEngineHarness(t, nil)
	ctx := context.Background()
	secret, codes := h.enroll(t, aliceWeb)

	for i := 0; i < 5; i++ {
		res, err := h.engine.Disable(ctx, aliceWeb, h.wrongCode(secret), false)
		if err != nil {
			t.Fatalf("Disable failed: %v", err)
		}
		if res.Code != CodeInvalidCode || res.Error != MsgInvalidCode {
			t.Fatalf("attempt %d: expected invalid code, got %+v", i+1, res)
		}
	}

	verify, err := h.engine.VerifyCode(ctx, aliceMobile, h.code(secret))
	if err != nil {
		t.Fatalf("VerifyCode failed: %v", err)
	}
	if !verify.Success {
		t.Fatalf("expected TOTP login after failed disables, got %+v", verify)
	}

	backup, err := h.engine.VerifyBackupCode(ctx, session.Subject{UserID: "alice", SessionID: "tablet-1"}, codes[0])
	if err != nil {
		t.Fatalf("VerifyBackupCode failed: %v", err)
	}
	if !backup.Success {
		t.Fatalf("expected backup code login after failed disables, got %+v", backup)
	}
}

func TestDisableWhenNotEnabled(t *testing.T) {
	h := newEngineHarness(t, nil)

	res, err := h.engine.Disable(context.Background(), aliceWeb, "123456", false)
	if err != nil {
		t.Fatalf("Disable failed: %v", err)
	}
	if res.Code != CodeNotSetup || res.Error != MsgNotEnabled {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestDisableThenReenroll(t *testing.T) {
	h := newEngineHarness(t, nil)
	ctx := context.Background()
	secret, _ := h.enroll(t, aliceWeb)

	if res, err := h.engine.Disable(ctx, aliceWeb, h.code(secret), false); err != nil || !res.Success {
		t.Fatalf("Disable failed: %+v %v", res, err)
	}

	next, _ := h.enroll(t, aliceWeb)
	if next == secret {
		t.Fatal("expected a new secret on re-enrollment")
	}
}
