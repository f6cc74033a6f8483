package twofactor

import (
	"errors"
	"io"
	"time"

	"github.com/MrEthical07/twofactor/internal/qrcode"
	"github.com/MrEthical07/twofactor/internal/secretbox"
	"github.com/MrEthical07/twofactor/otp"
	potp "github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const totpSecretBytes = 20

// totpManager provisions secrets, seals them for storage and matches codes.
type totpManager struct {
	config TOTPConfig
	box    *secretbox.Box
	random io.Reader
}

func newTOTPManager(cfg TOTPConfig, random io.Reader) (*totpManager, error) {
	m := &totpManager{config: cfg, random: random}
	if cfg.EncryptionKey == "" {
		return m, nil
	}

	key, err := secretbox.ParseKey(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}
	box, err := secretbox.New(key, random)
	if err != nil {
		return nil, err
	}
	m.box = box
	return m, nil
}

// Generate returns a fresh base32 secret and its otpauth URL.
func (m *totpManager) Generate(accountName string) (string, string, error) {
	if m == nil {
		return "", "", ErrEngineNotReady
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.config.Issuer,
		AccountName: accountName,
		Period:      uint(otp.Period / time.Second),
		SecretSize:  totpSecretBytes,
		Digits:      potp.DigitsSix,
		Algorithm:   potp.AlgorithmSHA1,
		Rand:        m.random,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// QRCode renders url as a PNG data URI, or "" when rendering is off.
func (m *totpManager) QRCode(url string) (string, error) {
	if m == nil || !m.config.RenderQRCode {
		return "", nil
	}
	return qrcode.DataURI(url, m.config.QRCodeSize)
}

// Seal prepares a plaintext secret for the profile store.
func (m *totpManager) Seal(secret string) (string, error) {
	if m.box == nil {
		return secret, nil
	}
	sealed, err := m.box.Seal(secret)
	if err != nil {
		return "", errors.Join(ErrSecretUnavailable, err)
	}
	return sealed, nil
}

// Open reverses Seal.
func (m *totpManager) Open(stored string) (string, error) {
	if stored == "" {
		return "", ErrSecretUnavailable
	}
	if m.box == nil {
		return stored, nil
	}
	plain, err := m.box.Open(stored)
	if err != nil {
		return "", errors.Join(ErrSecretUnavailable, err)
	}
	return plain, nil
}

// Verify matches code against secret at now. A match whose step is not newer
// than lastUsed is reported as a replay and rejected when replay protection
// is on.
func (m *totpManager) Verify(secret, code string, now time.Time, lastUsed int64) (ok bool, counter int64, replay bool) {
	ok, counter = otp.Verify(secret, code, now, m.config.Skew)
	if !ok {
		return false, 0, false
	}
	if m.config.EnforceReplayProtection && counter <= lastUsed {
		return false, counter, true
	}
	return true, counter, false
}
