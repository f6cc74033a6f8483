package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"time"
)

const (
	verificationFormatVersionCurrent = 1
)

var errEncodedTooLong = errors.New("verification field too long")

// Encode serializes v into the versioned binary format stored in Redis.
func Encode(v Verification) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(2 + len(v.UserID) + len(v.SessionID) + 17)

	buf.WriteByte(verificationFormatVersionCurrent)

	if len(v.UserID) > 255 || len(v.SessionID) > 255 {
		return nil, errEncodedTooLong
	}
	buf.WriteByte(byte(len(v.UserID)))
	buf.WriteString(v.UserID)
	buf.WriteByte(byte(len(v.SessionID)))
	buf.WriteString(v.SessionID)

	if err := binary.Write(&buf, binary.BigEndian, v.VerifiedAt.UnixNano()); err != nil {
		return nil, err
	}

	var expires int64
	if !v.ExpiresAt.IsZero() {
		expires = v.ExpiresAt.UnixNano()
	}
	if err := binary.Write(&buf, binary.BigEndian, expires); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses data produced by [Encode].
func Decode(data []byte) (Verification, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return Verification{}, err
	}
	if version != verificationFormatVersionCurrent {
		return Verification{}, errors.New("invalid verification version")
	}

	userID, err := readShortString(reader)
	if err != nil {
		return Verification{}, err
	}
	sessionID, err := readShortString(reader)
	if err != nil {
		return Verification{}, err
	}

	var verifiedAt, expiresAt int64
	if err := binary.Read(reader, binary.BigEndian, &verifiedAt); err != nil {
		return Verification{}, err
	}
	if err := binary.Read(reader, binary.BigEndian, &expiresAt); err != nil {
		return Verification{}, err
	}
	if reader.Len() != 0 {
		return Verification{}, errors.New("trailing verification bytes")
	}

	v := Verification{
		UserID:     userID,
		SessionID:  sessionID,
		VerifiedAt: time.Unix(0, verifiedAt).UTC(),
	}
	if expiresAt != 0 {
		v.ExpiresAt = time.Unix(0, expiresAt).UTC()
	}
	return v, nil
}

func readShortString(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
