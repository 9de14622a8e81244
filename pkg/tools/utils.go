package tools

import "encoding/base64"

// Base64Encode converts a byte slice to a standard Base64 string.
func Base64Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// Base64Decode converts a standard Base64 string back to bytes.
func Base64Decode(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// DataURL builds an RFC 2397 data URL from already encoded Base64 content.
func DataURL(mimeType, b64 string) string {
	return "data:" + mimeType + ";base64," + b64
}
