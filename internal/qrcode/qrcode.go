// Package qrcode renders otpauth enrollment URLs as PNG data URIs.
package qrcode

import (
	"encoding/base64"
	"errors"

	qr "github.com/skip2/go-qrcode"
)

// DefaultSize is the edge length in pixels used when size is not positive.
const DefaultSize = 256

const dataURIPrefix = "data:image/png;base64,"

var ErrEmptyContent = errors.New("qr content is empty")

// PNG encodes content at medium error correction.
func PNG(content string, size int) ([]byte, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}
	if size <= 0 {
		size = DefaultSize
	}
	return qr.Encode(content, qr.Medium, size)
}

// DataURI returns content as an inline "data:image/png;base64," URI suitable
// for an <img> src attribute.
func DataURI(content string, size int) (string, error) {
	png, err := PNG(content, size)
	if err != nil {
		return "", err
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(png), nil
}
