package flows

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func sequentialIndex() func(int) (int, error) {
	i := 0
	return func(max int) (int, error) {
		n := i % max
		i++
		return n, nil
	}
}

func TestGenerateBackupCodesFormatAndHash(t *testing.T) {
	codes, records, err := GenerateBackupCodes("u1", 8, 8, nil)
	if err != nil {
		t.Fatalf("GenerateBackupCodes failed: %v", err)
	}
	if len(codes) != 8 || len(records) != 8 {
		t.Fatalf("expected 8 codes, got %d/%d", len(codes), len(records))
	}

	for i, code := range codes {
		if len(code) != 9 || code[4] != '-' {
			t.Fatalf("unexpected display format %q", code)
		}
		for _, r := range strings.ReplaceAll(code, "-", "") {
			if !strings.ContainsRune(BackupCodeAlphabet, r) {
				t.Fatalf("code %q contains %q outside the alphabet", code, r)
			}
		}
		if records[i].Hash != BackupCodeHash("u1", CanonicalizeBackupCode(code)) {
			t.Fatalf("record %d does not hash its code", i)
		}
		if strings.Contains(records[i].Hash, strings.ReplaceAll(code, "-", "")) {
			t.Fatal("plaintext code must not be stored")
		}
	}
}

func TestGenerateBackupCodesRejectsBadParams(t *testing.T) {
	if _, _, err := GenerateBackupCodes("u1", 0, 8, nil); err != ErrInvalidBackupCodeParams {
		t.Fatalf("expected ErrInvalidBackupCodeParams, got %v", err)
	}
}

func TestGenerateBackupCodesUsesIndexSource(t *testing.T) {
	codes, _, err := GenerateBackupCodes("u1", 1, 8, sequentialIndex())
	if err != nil {
		t.Fatalf("GenerateBackupCodes failed: %v", err)
	}
	if codes[0] != "ABCD-EFGH" {
		t.Fatalf("expected ABCD-EFGH, got %s", codes[0])
	}
}

func TestConsumeBackupCodeSingleUse(t *testing.T) {
	codes, records, err := GenerateBackupCodes("u1", 3, 8, nil)
	if err != nil {
		t.Fatalf("GenerateBackupCodes failed: %v", err)
	}
	now := time.Unix(1700000000, 0)

	if !ConsumeBackupCode("u1", strings.ToLower(codes[1]), records, now) {
		t.Fatal("expected lowercase code with dash to match")
	}
	if !records[1].Consumed || !records[1].ConsumedAt.Equal(now) {
		t.Fatalf("expected record consumed at %v, got %+v", now, records[1])
	}
	if ConsumeBackupCode("u1", codes[1], records, now) {
		t.Fatal("expected consumed code to be rejected")
	}
	if records[0].Consumed || records[2].Consumed {
		t.Fatal("other codes must stay unconsumed")
	}
}

func TestConsumeBackupCodeIsScopedToUser(t *testing.T) {
	codes, records, err := GenerateBackupCodes("u1", 1, 8, nil)
	if err != nil {
		t.Fatalf("GenerateBackupCodes failed: %v", err)
	}
	if ConsumeBackupCode("u2", codes[0], records, time.Now()) {
		t.Fatal("hash must bind the code to its user")
	}
	if ConsumeBackupCode("u1", "  ", records, time.Now()) {
		t.Fatal("blank code must not match")
	}
}

func TestCanonicalizeBackupCode(t *testing.T) {
	if got := CanonicalizeBackupCode(" abcd-ef gh "); got != "ABCDEFGH" {
		t.Fatalf("unexpected canonical form %q", got)
	}
}

func TestRandomIndexFromReader(t *testing.T) {
	idx := RandomIndexFrom(bytes.NewReader(bytes.Repeat([]byte{0}, 64)))
	n, err := idx(32)
	if err != nil {
		t.Fatalf("random index failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 from zero reader, got %d", n)
	}

	empty := RandomIndexFrom(bytes.NewReader(nil))
	if _, err := empty(32); err == nil {
		t.Fatal("expected error from exhausted reader")
	}
}
