// Package apperr is the error taxonomy shared by the services and the web layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation Kind = "VALIDATION_ERROR"
	KindNotFound   Kind = "NOT_FOUND"
	KindConflict   Kind = "CONFLICT"
	KindAuth       Kind = "AUTH_ERROR"
	KindBackend    Kind = "BACKEND_ERROR"
)

// Error carries a Kind plus optional per-field messages for inline display.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(message string, fields map[string]string) error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

func NotFound(message string) error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Conflict(message, field string) error {
	e := &Error{Kind: KindConflict, Message: message}
	if field != "" {
		e.Fields = map[string]string{field: message}
	}
	return e
}

func Auth(message string, err error) error {
	return &Error{Kind: KindAuth, Message: message, Fields: map[string]string{"password": message}, Err: err}
}

func Backend(message string, err error) error {
	return &Error{Kind: KindBackend, Message: message, Err: err}
}

// As returns the *Error in err's chain. Errors outside the taxonomy become Backend.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindBackend, Message: "backend unavailable", Err: err}
}

func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return As(err).Kind
}

func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

func HTTPStatus(k Kind) int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindAuth:
		return http.StatusUnauthorized
	default:
		return http.StatusServiceUnavailable
	}
}
