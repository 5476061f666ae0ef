package utils

import (
	"encoding/base64"
	"errors"
	"regexp"
	"strings"
)

var ErrEmptyPayload = errors.New("no image data provided")

var dataURIPrefix = regexp.MustCompile(`^data:image/\w+;base64,`)

// DecodeImageDataURI strips a "data:image/...;base64," prefix if present and
// decodes the remaining payload. Bare base64 is accepted as well.
func DecodeImageDataURI(s string) ([]byte, error) {
	payload := strings.TrimSpace(dataURIPrefix.ReplaceAllString(strings.TrimSpace(s), ""))
	if payload == "" {
		return nil, ErrEmptyPayload
	}
	b, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// some encoders drop the padding
		b, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, err
		}
	}
	if len(b) == 0 {
		return nil, ErrEmptyPayload
	}
	return b, nil
}

// EncodeImageDataURI is the inverse of DecodeImageDataURI for JPEG stills.
func EncodeImageDataURI(b []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(b)
}
