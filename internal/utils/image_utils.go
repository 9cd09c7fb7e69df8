package utils

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

const defaultMIMEType = "image/jpeg"

// StripDataURI removes a "data:image/...;base64," prefix and surrounding whitespace
func StripDataURI(image string) string {
	image = strings.TrimSpace(image)
	if strings.HasPrefix(image, "data:") {
		if i := strings.Index(image, ","); i >= 0 {
			return image[i+1:]
		}
	}
	return image
}

// MIMEType returns the media type from a data URI, or image/jpeg
func MIMEType(image string) string {
	image = strings.TrimSpace(image)
	if !strings.HasPrefix(image, "data:") {
		return defaultMIMEType
	}
	header, _, found := strings.Cut(image[len("data:"):], ",")
	if !found {
		return defaultMIMEType
	}
	mime, _, _ := strings.Cut(header, ";")
	if mime == "" {
		return defaultMIMEType
	}
	return mime
}

// ToDataURI returns the image as a data URI, keeping an existing prefix
func ToDataURI(image string) string {
	image = strings.TrimSpace(image)
	if strings.HasPrefix(image, "data:") {
		return image
	}
	return "data:" + defaultMIMEType + ";base64," + image
}

// DecodeImage decodes base64 image data, with or without a data-URI prefix
func DecodeImage(image string) ([]byte, error) {
	raw := StripDataURI(image)
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(raw, "="))
		if err != nil {
			return nil, fmt.Errorf("invalid base64 image: %w", err)
		}
	}
	return data, nil
}

// ImageHash returns the hex SHA-256 of the decoded image, falling back to the raw string
func ImageHash(image string) string {
	data, err := DecodeImage(image)
	if err != nil {
		data = []byte(StripDataURI(image))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ImageFormat returns the short format name genai expects ("jpeg", "png")
func ImageFormat(image string) string {
	_, format, found := strings.Cut(MIMEType(image), "/")
	if !found || format == "" {
		return "jpeg"
	}
	return format
}

// EncodeImage turns file contents into a data URI. Contents that already are a
// data URI are returned trimmed.
func EncodeImage(data []byte) string {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "data:") {
		return trimmed
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		mime = defaultMIMEType
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
