package bose

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error is a structured RPC failure reported by the speaker. Status is the
// HTTP-like status from the envelope header, Code the vendor error code.
type Error struct {
	Status   int
	Code     int
	Message  string
	Resource string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("speaker error %d (code %d) on %s: %s", e.Status, e.Code, e.Resource, e.Message)
	}
	return fmt.Sprintf("speaker error %d (code %d) on %s", e.Status, e.Code, e.Resource)
}

// IsUnauthorized reports whether err is a 401 from the speaker, which means
// the control token needs refreshing.
func IsUnauthorized(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Status == http.StatusUnauthorized
}

// IsNotSupported reports whether err indicates the device rejected the
// resource as unsupported. Capability reports are advisory, so callers treat
// this as "skip the feature", not as a failure.
func IsNotSupported(err error) bool {
	var se *Error
	return errors.As(err, &se) && (se.Status == http.StatusNotFound || se.Status == http.StatusMethodNotAllowed)
}

type errorBody struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error,omitempty"`
}

// errorFromResponse builds an *Error from a non-2xx response frame.
func errorFromResponse(msg *Message) *Error {
	e := &Error{Status: msg.Header.Status, Resource: msg.Header.Resource}

	var body errorBody
	if err := json.Unmarshal(msg.Body, &body); err == nil {
		e.Code = body.Error.Code
		e.Message = body.Error.Message
	}
	return e
}
