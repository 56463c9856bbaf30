// Package goerror carries the error classes that the HTTP layer turns into
// status codes and the {message, error} envelope.
package goerror

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
)

var (
	// ErrNotFound is returned by stores when a row does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrConflict is returned by stores on a unique-key violation.
	ErrConflict = errors.New("resource conflict")
)

// Type groups codes by who is at fault.
type Type int

const (
	TypeServer Type = iota
	TypeBusiness
	TypeValidation
)

func (t Type) String() string {
	switch t {
	case TypeValidation:
		return "validation"
	case TypeBusiness:
		return "business"
	default:
		return "server"
	}
}

// Code selects the HTTP status of an Error.
type Code int

const (
	CodeInternal Code = iota
	CodeInvalidFormat
	CodeInvalidInput
	CodeNotFound
	CodeConflict
	CodeUnavailable
)

var codeStatus = map[Code]int{
	CodeInternal:      http.StatusInternalServerError,
	CodeInvalidFormat: http.StatusBadRequest,
	CodeInvalidInput:  http.StatusUnprocessableEntity,
	CodeNotFound:      http.StatusNotFound,
	CodeConflict:      http.StatusConflict,
	CodeUnavailable:   http.StatusServiceUnavailable,
}

var codeName = map[Code]string{
	CodeInternal:      "internal",
	CodeInvalidFormat: "invalid_format",
	CodeInvalidInput:  "invalid_input",
	CodeNotFound:      "not_found",
	CodeConflict:      "conflict",
	CodeUnavailable:   "unavailable",
}

func (c Code) String() string {
	if n, ok := codeName[c]; ok {
		return n
	}
	return codeName[CodeInternal]
}

// Error pairs a client-safe message with the underlying cause.
type Error struct {
	err     error
	msg     string
	errType Type
	code    Code
	fields  map[string]string
}

// Error returns the cause when there is one, so logs keep the detail while
// responses use Msg.
func (e *Error) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return e.msg
}

func (e *Error) String() string {
	return fmt.Sprintf("%s/%s: %s (%v)", e.errType, e.code, e.msg, e.err)
}

func (e *Error) Msg() string                { return e.msg }
func (e *Error) Type() Type                 { return e.errType }
func (e *Error) Code() Code                 { return e.code }
func (e *Error) Fields() map[string]string  { return e.fields }
func (e *Error) Unwrap() error              { return e.err }

// StatusCode maps the code to an HTTP status, 500 for unknown codes.
func (e *Error) StatusCode() int {
	if sc, ok := codeStatus[e.code]; ok {
		return sc
	}
	return http.StatusInternalServerError
}

// NewServer hides err behind a generic message.
func NewServer(err error) error {
	return &Error{err: err, msg: "Internal server error", errType: TypeServer, code: CodeInternal}
}

// NewUnavailable reports a dependency that is down (database, broker).
func NewUnavailable(err error) error {
	return &Error{err: err, msg: "Service unavailable", errType: TypeServer, code: CodeUnavailable}
}

func NewBusiness(msg string, code Code) error {
	return &Error{msg: msg, errType: TypeBusiness, code: code}
}

// NewInvalidInput wraps a validator error, or builds per-field messages from
// kv pairs (field, message, ...). An odd kv length is a malformed call and
// reports an invalid body.
func NewInvalidInput(err error, kv ...string) error {
	e := &Error{err: err, msg: "Validation error", errType: TypeValidation, code: CodeInvalidInput}
	if err != nil {
		return e
	}
	if len(kv)%2 != 0 {
		return NewInvalidFormat()
	}

	e.fields = make(map[string]string, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		e.fields[kv[i]] = kv[i+1]
	}
	return e
}

// WithFields returns a copy of a validation error with extra field messages.
func WithFields(err error, fields map[string]string) error {
	var gerr *Error
	if !errors.As(err, &gerr) {
		return err
	}

	cp := *gerr
	cp.fields = maps.Clone(gerr.fields)
	if cp.fields == nil {
		cp.fields = make(map[string]string, len(fields))
	}
	maps.Copy(cp.fields, fields)
	return &cp
}

func NewInvalidFormat(msgs ...string) error {
	msg := "Invalid request body"
	if len(msgs) > 0 {
		msg = msgs[0]
	}
	return &Error{msg: msg, errType: TypeValidation, code: CodeInvalidFormat}
}
