package flows

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/MrEthical07/twofactor/store"
)

// BackupCodeAlphabet omits characters that are easy to confuse (I, O, 0, 1).
const BackupCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// ErrInvalidBackupCodeParams is returned for a non-positive count or length.
var ErrInvalidBackupCodeParams = errors.New("backup code count and length must be > 0")

// GenerateBackupCodes draws count codes of length characters. It returns the
// display form handed to the user once, and the hashed records to persist.
func GenerateBackupCodes(userID string, count, length int, randomIndex func(int) (int, error)) ([]string, []store.BackupCode, error) {
	if count <= 0 || length <= 0 {
		return nil, nil, ErrInvalidBackupCodeParams
	}

	codes := make([]string, 0, count)
	records := make([]store.BackupCode, 0, count)
	for i := 0; i < count; i++ {
		raw, err := NewBackupCode(length, randomIndex)
		if err != nil {
			return nil, nil, err
		}
		records = append(records, store.BackupCode{Hash: BackupCodeHash(userID, raw)})
		codes = append(codes, FormatBackupCode(raw))
	}
	return codes, records, nil
}

// ConsumeBackupCode marks the unconsumed entry matching code as used at now.
// Every entry is compared so the running time does not depend on which code
// matched. It returns false when nothing matched.
func ConsumeBackupCode(userID, code string, codes []store.BackupCode, now time.Time) bool {
	canonical := CanonicalizeBackupCode(code)
	if canonical == "" {
		return false
	}
	want := []byte(BackupCodeHash(userID, canonical))

	match := -1
	for i := range codes {
		eq := subtle.ConstantTimeCompare(want, []byte(codes[i].Hash)) == 1
		if eq && !codes[i].Consumed && match < 0 {
			match = i
		}
	}
	if match < 0 {
		return false
	}
	codes[match].Consumed = true
	codes[match].ConsumedAt = now
	return true
}

// NewBackupCode draws one code of length characters from BackupCodeAlphabet.
func NewBackupCode(length int, randomIndex func(int) (int, error)) (string, error) {
	if randomIndex == nil {
		randomIndex = cryptoRandomIndex
	}
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := randomIndex(len(BackupCodeAlphabet))
		if err != nil {
			return "", err
		}
		b.WriteByte(BackupCodeAlphabet[n])
	}
	return b.String(), nil
}

// FormatBackupCode inserts a dash in the middle of codes of 8 or more
// characters.
func FormatBackupCode(code string) string {
	n := len(code)
	if n < 8 {
		return code
	}
	mid := n / 2
	return code[:mid] + "-" + code[mid:]
}

// CanonicalizeBackupCode uppercases code and strips dashes and spaces.
func CanonicalizeBackupCode(code string) string {
	s := strings.ToUpper(strings.TrimSpace(code))
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	return s
}

// BackupCodeHash returns hex(sha256(userID || 0x00 || canonicalCode)).
func BackupCodeHash(userID, canonicalCode string) string {
	data := make([]byte, 0, len(userID)+1+len(canonicalCode))
	data = append(data, userID...)
	data = append(data, 0)
	data = append(data, canonicalCode...)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// RandomIndexFrom returns a uniform index source reading from r.
func RandomIndexFrom(r io.Reader) func(int) (int, error) {
	if r == nil {
		return cryptoRandomIndex
	}
	return func(max int) (int, error) {
		n, err := rand.Int(r, big.NewInt(int64(max)))
		if err != nil {
			return 0, err
		}
		return int(n.Int64()), nil
	}
}

func cryptoRandomIndex(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}
