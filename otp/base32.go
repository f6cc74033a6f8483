package otp

import "strings"

const base32Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

// DecodeSecret decodes a base32 secret leniently: letters are upper-cased,
// characters outside A-Z2-7 (padding, spaces, dashes) are dropped, and
// trailing bits that do not fill a byte are discarded.
func DecodeSecret(secret string) []byte {
	out := make([]byte, 0, len(secret)*5/8)
	var buffer uint32
	var bits uint

	for _, r := range strings.ToUpper(secret) {
		idx := strings.IndexRune(base32Alphabet, r)
		if idx < 0 {
			continue
		}
		buffer = buffer<<5 | uint32(idx)
		bits += 5
		if bits >= 8 {
			bits -= 8
			out = append(out, byte(buffer>>bits))
			buffer &= 1<<bits - 1
		}
	}

	return out
}

// NormalizeSecret returns the canonical upper-case, unpadded form of secret.
func NormalizeSecret(secret string) string {
	var b strings.Builder
	b.Grow(len(secret))
	for _, r := range strings.ToUpper(secret) {
		if strings.ContainsRune(base32Alphabet, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
