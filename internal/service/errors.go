package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies an error crossing the client boundary.
type Kind string

const (
	// KindValidation is detected client-side; no request was sent.
	KindValidation Kind = "VALIDATION"

	// KindAuthRejected means the server rejected the access token.
	KindAuthRejected Kind = "AUTH_REJECTED"

	// KindSessionExpired means the refresh token is invalid or absent.
	// The session has been cleared.
	KindSessionExpired Kind = "SESSION_EXPIRED"

	// KindRequestFailed is a 4xx/5xx answer to a substantive operation.
	KindRequestFailed Kind = "REQUEST_FAILED"

	// KindTransport means no response was obtained at all.
	KindTransport Kind = "TRANSPORT"
)

// Error is the client-level error type.
type Error struct {
	Kind    Kind
	Message string

	// Status is the HTTP status for RequestFailed and AuthRejected errors.
	Status int

	// Detail is the server-supplied "detail" or "error" message, if any.
	Detail string

	// Fields holds per-field error arrays returned by the server
	// or produced by client-side validation.
	Fields map[string][]string

	Err error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	} else if len(e.Fields) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, e.FieldSummary())
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches another *Error by kind when the target carries no message,
// so errors.Is(err, ErrSessionExpired) holds for any session expiry.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind && (t.Message == "" || t.Message == e.Message)
}

// FieldSummary renders Fields as "field: msg, msg; field: msg" in field order.
func (e *Error) FieldSummary() string {
	if e == nil || len(e.Fields) == 0 {
		return ""
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, strings.Join(e.Fields[name], ", ")))
	}
	return strings.Join(parts, "; ")
}

// Sentinels usable with errors.Is.
var (
	ErrSessionExpired   = &Error{Kind: KindSessionExpired}
	ErrAuthRejected     = &Error{Kind: KindAuthRejected}
	ErrValidation       = &Error{Kind: KindValidation}
	ErrRequestFailed    = &Error{Kind: KindRequestFailed}
	ErrTransport        = &Error{Kind: KindTransport}
	ErrNotAuthenticated = errors.New("not logged in")
)

// Validation builds a client-side validation error for a single field.
func Validation(field, message string) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: message,
		Fields:  map[string][]string{field: {message}},
	}
}

// SessionExpired builds a terminal authentication error.
func SessionExpired(err error) *Error {
	return &Error{Kind: KindSessionExpired, Message: "session expired, please log in again", Err: err}
}

// AuthRejected records a 401 answer to a request that carried, or needed,
// an access token.
func AuthRejected(status int, body []byte) *Error {
	e := &Error{Kind: KindAuthRejected, Message: "access token rejected", Status: status}
	parseDetail(e, body)
	return e
}

// Transport wraps a network failure.
func Transport(err error) *Error {
	return &Error{Kind: KindTransport, Message: "network error", Err: err}
}

// RequestFailed builds an error from a non-2xx response body.
// The body may carry {"detail": "..."}, {"error": "..."} or per-field arrays.
func RequestFailed(message string, status int, body []byte) *Error {
	e := &Error{Kind: KindRequestFailed, Message: message, Status: status}
	parseDetail(e, body)
	return e
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

func parseDetail(e *Error, body []byte) {
	if len(body) == 0 {
		return
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return
	}
	for key, value := range raw {
		var s string
		if json.Unmarshal(value, &s) == nil {
			if key == "detail" || key == "error" {
				e.Detail = s
				continue
			}
			addField(e, key, s)
			continue
		}
		var list []string
		if json.Unmarshal(value, &list) == nil {
			for _, msg := range list {
				addField(e, key, msg)
			}
		}
	}
}

func addField(e *Error, field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}
