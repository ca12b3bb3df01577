// Package signature prepares signature images for placement: payload
// validation at the file-input boundary, data-URL handling, and the
// background-removal pass applied to uploaded images.
package signature

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"strings"
)

// Common errors for the payload boundary.
var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrDecodeFailed      = errors.New("image decode failed")
	ErrInvalidDataURL    = errors.New("invalid data URL")
	ErrPayloadTooLarge   = errors.New("image payload exceeds size limit")
	ErrEmptyPayload      = errors.New("empty image payload")
)

// Format identifies an accepted raster image format.
type Format string

const (
	FormatPNG  Format = "PNG"
	FormatJPEG Format = "JPEG"
)

// MIMEType returns the MIME type for the format.
func (f Format) MIMEType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatJPEG:
		return "image/jpeg"
	default:
		return ""
	}
}

var pngMagic = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// Sniff identifies the payload format from its magic number.
func Sniff(data []byte) (Format, error) {
	if len(data) < 8 {
		return "", ErrEmptyPayload
	}
	if bytes.Equal(data[:8], pngMagic) {
		return FormatPNG, nil
	}
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return FormatJPEG, nil
	}
	return "", fmt.Errorf("%w: unrecognized magic number", ErrUnsupportedFormat)
}

// ValidatePayload checks that data is a well-formed image of an accepted
// format. It decodes only the header, not the full pixel data.
func ValidatePayload(data []byte) error {
	if _, err := Sniff(data); err != nil {
		return err
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	return nil
}

// ParseDataURL splits a data URL of the form
// "data:<mime>;base64,<payload>" into its MIME type and decoded bytes.
func ParseDataURL(s string) (mime string, data []byte, err error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing data: prefix", ErrInvalidDataURL)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing payload separator", ErrInvalidDataURL)
	}
	mime, encoded := meta, ""
	if m, enc, found := strings.Cut(meta, ";"); found {
		mime, encoded = m, enc
	}
	if encoded != "base64" {
		return "", nil, fmt.Errorf("%w: only base64 encoding is accepted", ErrInvalidDataURL)
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return mime, data, nil
}

// ToDataURL serializes bytes as a base64 data URL with the given MIME type.
func ToDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodePayload accepts either raw image bytes or a data URL string encoded
// as bytes, and returns the raw image bytes in both cases.
func DecodePayload(data []byte) ([]byte, error) {
	if bytes.HasPrefix(data, []byte("data:")) {
		_, raw, err := ParseDataURL(string(data))
		if err != nil {
			return nil, err
		}
		return raw, nil
	}
	return data, nil
}

// SourcePolicy is the acceptance gate for uploaded signature images.
type SourcePolicy struct {
	// MaxBytes caps the decoded payload size. Zero means no cap.
	MaxBytes int

	// AcceptedMIMETypes restricts uploads by declared MIME type.
	// Empty means the default accepted set (PNG and JPEG).
	AcceptedMIMETypes []string
}

// DefaultSourcePolicy returns the default upload gate: 5 MiB, PNG or JPEG.
func DefaultSourcePolicy() SourcePolicy {
	return SourcePolicy{
		MaxBytes:          5 * 1024 * 1024,
		AcceptedMIMETypes: []string{"image/png", "image/jpeg"},
	}
}

func (p SourcePolicy) accepts(mime string) bool {
	types := p.AcceptedMIMETypes
	if len(types) == 0 {
		types = []string{"image/png", "image/jpeg"}
	}
	for _, t := range types {
		if t == mime {
			return true
		}
	}
	return false
}

// Check verifies a data URL against the policy and returns the decoded
// image bytes. The declared MIME type must match the sniffed format.
func (p SourcePolicy) Check(dataURL string) ([]byte, error) {
	mime, data, err := ParseDataURL(dataURL)
	if err != nil {
		return nil, err
	}
	if !p.accepts(mime) {
		return nil, fmt.Errorf("%w: MIME type %q not accepted", ErrUnsupportedFormat, mime)
	}
	if p.MaxBytes > 0 && len(data) > p.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrPayloadTooLarge, len(data), p.MaxBytes)
	}
	format, err := Sniff(data)
	if err != nil {
		return nil, err
	}
	if format.MIMEType() != mime {
		return nil, fmt.Errorf("%w: declared %q but payload is %s", ErrUnsupportedFormat, mime, format)
	}
	if err := ValidatePayload(data); err != nil {
		return nil, err
	}
	return data, nil
}
