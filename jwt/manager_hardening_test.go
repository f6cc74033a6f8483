package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/twofactor/session"
	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

var tokenEpoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func signClaims(t *testing.T, method gjwt.SigningMethod, key interface{}, kid string, claims SubjectClaims) string {
	t.Helper()
	tok := gjwt.NewWithClaims(method, claims)
	if kid != "" {
		tok.Header["kid"] = kid
	}
	signed, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestIssueParseRoundTrip(t *testing.T) {
	pub, priv := newEdKeys(t)
	clock := clockwork.NewFakeClockAt(tokenEpoch)
	m, err := NewManager(Config{
		AccessTTL:     time.Hour,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Clock:         clock,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	want := session.Subject{UserID: "alice", SessionID: "web-1"}
	token, err := m.Issue(want)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	got, err := m.ParseSubject(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != want {
		t.Fatalf("subject = %+v, want %+v", got, want)
	}

	claims, err := m.ParseClaims(token)
	if err != nil {
		t.Fatalf("parse claims: %v", err)
	}
	if claims.Subject != "alice|web-1" || claims.SID != "web-1" {
		t.Fatalf("unexpected claims: sub=%q sid=%q", claims.Subject, claims.SID)
	}
	if !claims.IssuedAt.Time.Equal(tokenEpoch) {
		t.Fatalf("iat = %v, want %v", claims.IssuedAt.Time, tokenEpoch)
	}

	clock.Advance(time.Hour + time.Second)
	if _, err := m.ParseSubject(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to fail with ErrInvalidToken, got %v", err)
	}
}

func TestIssueWithoutSession(t *testing.T) {
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("secret-secret-secret-secret")})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, err := m.Issue(session.Subject{UserID: "bob"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	subj, err := m.ParseSubject(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if subj.UserID != "bob" || subj.HasSession() {
		t.Fatalf("unexpected subject %+v", subj)
	}
}

func TestIssueForUserAssignsSession(t *testing.T) {
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("secret-secret-secret-secret")})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, subj, err := m.IssueForUser("alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !subj.HasSession() {
		t.Fatal("expected a session id")
	}
	parsed, err := m.ParseSubject(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != subj {
		t.Fatalf("parsed %+v, want %+v", parsed, subj)
	}

	_, other, err := m.IssueForUser("alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if other.SessionID == subj.SessionID {
		t.Fatal("expected distinct session ids")
	}
}

func TestIssueRejectsBadUserID(t *testing.T) {
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("secret-secret-secret-secret")})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	for _, uid := range []string{"", "  ", "a|b"} {
		if _, err := m.Issue(session.Subject{UserID: uid, SessionID: "s"}); !errors.Is(err, session.ErrInvalidSubject) {
			t.Fatalf("uid %q: expected ErrInvalidSubject, got %v", uid, err)
		}
	}
}

func TestVerifyOnlyManagerCannotIssue(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := m.Issue(session.Subject{UserID: "alice"}); err == nil {
		t.Fatal("expected issue without private key to fail")
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := SubjectClaims{SID: "s1", RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "u|s1",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token := signClaims(t, gjwt.SigningMethodHS256, []byte("secret-secret-secret-secret"), "", claims)

	if _, err := m.ParseSubject(token); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestParseRequiresExpiry(t *testing.T) {
	key := []byte("secret-secret-secret-secret")
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: key})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	token := signClaims(t, gjwt.SigningMethodHS256, key, "", SubjectClaims{RegisteredClaims: gjwt.RegisteredClaims{Subject: "u"}})
	if _, err := m.ParseSubject(token); err == nil {
		t.Fatal("expected token without exp to fail")
	}
}

func TestParseRejectsSessionMismatch(t *testing.T) {
	key := []byte("secret-secret-secret-secret")
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: key})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	claims := SubjectClaims{SID: "web-2", RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "alice|web-1",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token := signClaims(t, gjwt.SigningMethodHS256, key, "", claims)
	if _, err := m.ParseSubject(token); !errors.Is(err, ErrSessionMismatch) {
		t.Fatalf("expected ErrSessionMismatch, got %v", err)
	}

	claims.Subject = "|web-1"
	claims.SID = ""
	token = signClaims(t, gjwt.SigningMethodHS256, key, "", claims)
	if _, err := m.ParseSubject(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for empty user, got %v", err)
	}
}

func TestParseIssuerAudienceAndLeeway(t *testing.T) {
	_, priv := newEdKeys(t)
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     priv.Public().(ed25519.PublicKey),
		Issuer:        "twofactor",
		Audience:      "api",
		Leeway:        30 * time.Second,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, err := m.Issue(session.Subject{UserID: "u", SessionID: "s1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.ParseSubject(token); err != nil {
		t.Fatalf("expected valid token to parse: %v", err)
	}

	base := func(issuer, audience string, exp, iat time.Duration) SubjectClaims {
		return SubjectClaims{SID: "s1", RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "u|s1",
			Issuer:    issuer,
			Audience:  gjwt.ClaimStrings{audience},
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(exp)),
			IssuedAt:  gjwt.NewNumericDate(time.Now().Add(iat)),
		}}
	}

	badIssuer := signClaims(t, gjwt.SigningMethodEdDSA, priv, "", base("other", "api", time.Minute, 0))
	if _, err := m.ParseSubject(badIssuer); err == nil {
		t.Fatal("expected wrong issuer to fail")
	}

	badAudience := signClaims(t, gjwt.SigningMethodEdDSA, priv, "", base("twofactor", "other-api", time.Minute, 0))
	if _, err := m.ParseSubject(badAudience); err == nil {
		t.Fatal("expected wrong audience to fail")
	}

	within := signClaims(t, gjwt.SigningMethodEdDSA, priv, "", base("twofactor", "api", -15*time.Second, -time.Minute))
	if _, err := m.ParseSubject(within); err != nil {
		t.Fatalf("expected token within leeway to pass: %v", err)
	}

	expired := signClaims(t, gjwt.SigningMethodEdDSA, priv, "", base("twofactor", "api", -2*time.Minute, -3*time.Minute))
	if _, err := m.ParseSubject(expired); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestParseRejectsFutureIssuedAt(t *testing.T) {
	key := []byte("secret-secret-secret-secret")
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: key, MaxFutureIAT: time.Minute})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	claims := SubjectClaims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "u|s",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Hour)),
		IssuedAt:  gjwt.NewNumericDate(time.Now().Add(30 * time.Minute)),
	}}
	token := signClaims(t, gjwt.SigningMethodHS256, key, "", claims)
	if _, err := m.ParseSubject(token); err == nil {
		t.Fatal("expected future iat to fail")
	}
}

func TestParseUnknownKidFails(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	pub2, _ := newEdKeys(t)
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv1,
		PublicKey:     pub1,
		KeyID:         "k1",
		VerifyKeys: map[string][]byte{
			"k1": pub1,
		},
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := SubjectClaims{SID: "s1", RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "u|s1",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	unknown := signClaims(t, gjwt.SigningMethodEdDSA, priv1, "k2", claims)
	if _, err := m.ParseSubject(unknown); err == nil {
		t.Fatal("expected unknown kid failure")
	}

	missing := signClaims(t, gjwt.SigningMethodEdDSA, priv1, "", claims)
	if _, err := m.ParseSubject(missing); err == nil {
		t.Fatal("expected missing kid failure")
	}

	good := signClaims(t, gjwt.SigningMethodEdDSA, priv1, "k1", claims)
	if _, err := m.ParseSubject(good); err != nil {
		t.Fatalf("expected known kid token to pass: %v", err)
	}

	m2, _ := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub2, VerifyKeys: map[string][]byte{"k2": pub2}})
	if _, err := m2.ParseSubject(good); err == nil {
		t.Fatal("expected parse failure with mismatched key set")
	}
}

func TestNewManagerValidation(t *testing.T) {
	pub, _ := newEdKeys(t)
	cases := []struct {
		name string
		cfg  Config
	}{
		{"zero ttl", Config{SigningMethod: MethodHS256, PrivateKey: []byte("k")}},
		{"negative leeway", Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("k"), Leeway: -time.Second}},
		{"huge leeway", Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("k"), Leeway: time.Hour}},
		{"hs256 without key", Config{AccessTTL: time.Minute, SigningMethod: MethodHS256}},
		{"ed25519 without keys", Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519}},
		{"bad public key", Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: []byte("short")}},
		{"empty kid", Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, VerifyKeys: map[string][]byte{" ": pub}}},
		{"kid not in set", Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, KeyID: "k9", VerifyKeys: map[string][]byte{"k1": pub}}},
		{"unknown method", Config{AccessTTL: time.Minute, SigningMethod: "rs256"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewManager(tc.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
