package otp

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/binary"
	"hash"
	"strconv"
	"strings"
	"time"
)

const (
	// Digits is the length of codes produced by ComputeCode.
	Digits = 6
	// Period is the TOTP time step.
	Period = 30 * time.Second
	// MaxSkew bounds the number of adjacent steps Verify will accept.
	MaxSkew = 2
)

// Algorithm names the HMAC hash used for code derivation.
type Algorithm string

const (
	AlgorithmSHA1   Algorithm = "SHA1"
	AlgorithmSHA256 Algorithm = "SHA256"
	AlgorithmSHA512 Algorithm = "SHA512"
)

func (a Algorithm) hash() func() hash.Hash {
	switch a {
	case AlgorithmSHA256:
		return sha256.New
	case AlgorithmSHA512:
		return sha512.New
	default:
		return sha1.New
	}
}

// Counter returns the 30-second step index for t.
func Counter(t time.Time) int64 {
	return t.UnixMilli() / 1000 / int64(Period/time.Second)
}

// HOTP derives a code of the given length from key and counter using RFC 4226
// dynamic truncation.
func HOTP(key []byte, counter uint64, digits int, algorithm Algorithm) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(algorithm.hash(), key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	value := uint32(sum[offset]&0x7f)<<24 |
		uint32(sum[offset+1])<<16 |
		uint32(sum[offset+2])<<8 |
		uint32(sum[offset+3])

	mod := uint32(1)
	for i := 0; i < digits; i++ {
		mod *= 10
	}

	code := strconv.FormatUint(uint64(value%mod), 10)
	if len(code) < digits {
		code = strings.Repeat("0", digits-len(code)) + code
	}
	return code
}

// ComputeCode returns the 6-digit SHA1 TOTP code for a base32 secret at t.
// It is deterministic for a given (secret, t) pair.
func ComputeCode(secret string, t time.Time) string {
	return HOTP(DecodeSecret(secret), uint64(Counter(t)), Digits, AlgorithmSHA1)
}

// Verify reports whether code matches secret at t, tolerating skew steps on
// either side. On a match it returns the step counter that matched so callers
// can reject replays of the same step.
func Verify(secret, code string, t time.Time, skew int) (bool, int64) {
	code = strings.TrimSpace(code)
	if len(code) != Digits || !isNumeric(code) {
		return false, 0
	}
	if skew < 0 {
		skew = 0
	}
	if skew > MaxSkew {
		skew = MaxSkew
	}

	key := DecodeSecret(secret)
	if len(key) == 0 {
		return false, 0
	}

	current := Counter(t)
	for i := -skew; i <= skew; i++ {
		counter := current + int64(i)
		if counter < 0 {
			continue
		}
		expected := HOTP(key, uint64(counter), Digits, AlgorithmSHA1)
		if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1 {
			return true, counter
		}
	}

	return false, 0
}

func isNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
