package api

import (
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// ErrorPayload is the JSON body the backend sends with failed requests.
// Handlers use either {"error": "..."} or {"message": "..."}.
type ErrorPayload struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// APIError is returned for every transport or HTTP-status failure.
// StatusCode is zero when no response was received.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Payload    *ErrorPayload
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	if e.IsTransport() {
		return fmt.Sprintf("API %s %s: %v", e.Method, e.Path, e.Err)
	}

	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("API %s %s (%d): %s", e.Method, e.Path, e.StatusCode, msg)
	}

	return fmt.Sprintf("API %s %s returned status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error { return e.Err }

// IsTransport reports whether the request failed before any HTTP
// response was received.
func (e *APIError) IsTransport() bool {
	return e.StatusCode == 0
}

// Message returns the backend's error text, preferring "error" over
// "message". Empty when the backend sent no structured body.
func (e *APIError) Message() string {
	if e.Payload == nil {
		return ""
	}

	if e.Payload.Error != "" {
		return e.Payload.Error
	}

	return e.Payload.Message
}

// Temporary reports whether retrying the request later could succeed.
func (e *APIError) Temporary() bool {
	return e.IsTransport() || isTransientStatus(e.StatusCode)
}

// IsTransient reports whether err (or any error in its chain) is an
// APIError worth retrying after a backoff.
func IsTransient(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Temporary()
}

// StatusCode returns the HTTP status carried by err, or zero.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}

	return 0
}

// Message extracts the text to show a user for err. A structured backend
// message is returned verbatim; anything else yields fallback.
func Message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if msg := apiErr.Message(); msg != "" {
			return msg
		}
	}

	return fallback
}

// parsePayload pulls "error"/"message" out of a response body. Returns
// nil when the body is not JSON or carries neither string field.
func parsePayload(body []byte) *ErrorPayload {
	if !gjson.ValidBytes(body) {
		return nil
	}

	errField := gjson.GetBytes(body, "error")
	msgField := gjson.GetBytes(body, "message")

	if errField.Type != gjson.String && msgField.Type != gjson.String {
		return nil
	}

	return &ErrorPayload{Error: errField.Str, Message: msgField.Str}
}

// isTransientStatus returns true for HTTP status codes that indicate a
// temporary server-side problem worth retrying.
func isTransientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}

	return false
}

// sanitizeResponseBody truncates and sanitizes a response body for
// inclusion in error messages. Limits to 256 bytes and replaces
// non-printable characters to prevent log injection.
func sanitizeResponseBody(body []byte) string {
	const maxLen = 256
	if len(body) > maxLen {
		body = body[:maxLen]
	}

	var clean []byte

	for len(body) > 0 {
		r, size := utf8.DecodeRune(body)
		if r == utf8.RuneError && size <= 1 {
			clean = append(clean, '?')
			body = body[1:]

			continue
		}

		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			clean = append(clean, '?')
		} else {
			clean = append(clean, body[:size]...)
		}

		body = body[size:]
	}

	return string(clean)
}
