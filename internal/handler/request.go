package handler

import (
	"encoding/base64"
	"strings"
)

// HeaderValidationID carries the per-invocation id. It is kept out of the
// body so that the same bytes always produce the same body.
const HeaderValidationID = "X-Validation-Id"

// Request is the validation event.
type Request struct {
	FileBase64 string `json:"file_base64"`
	Format     string `json:"format,omitempty"`
	Sheet      string `json:"sheet,omitempty"`
	S3Bucket   string `json:"s3_bucket,omitempty"`
	S3Key      string `json:"s3_key,omitempty"`
}

// HasObject reports whether the event names an object instead of inline bytes.
func (r Request) HasObject() bool {
	return r.S3Key != ""
}

// Response is the function-style envelope. Body is the JSON-encoded
// core.ValidationResult.
type Response struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

var encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

// decodeBase64 accepts the standard or URL alphabet with or without padding.
// Whitespace anywhere in s and a data URL prefix are ignored; any other
// character outside the alphabet is an error.
func decodeBase64(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ";base64,"); i >= 0 {
			s = s[i+len(";base64,"):]
		}
	}

	var firstErr error
	for _, enc := range encodings {
		data, err := enc.DecodeString(s)
		if err == nil {
			return data, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}
