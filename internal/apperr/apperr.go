// Package apperr carries the error taxonomy of the settlement core and maps
// each category onto an HTTP status code.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Category represents the category of an error
type Category string

const (
	CategoryAuthentication Category = "authentication"
	CategoryValidation     Category = "validation"
	CategoryNotFound       Category = "not_found"
	CategoryConflict       Category = "conflict"
	CategoryForbidden      Category = "forbidden"
	CategoryPersistence    Category = "persistence"
	CategoryUpstream       Category = "upstream"
)

var statusByCategory = map[Category]int{
	CategoryAuthentication: http.StatusUnauthorized,
	CategoryValidation:     http.StatusBadRequest,
	CategoryNotFound:       http.StatusNotFound,
	CategoryConflict:       http.StatusConflict,
	CategoryForbidden:      http.StatusForbidden,
	CategoryPersistence:    http.StatusInternalServerError,
	CategoryUpstream:       http.StatusBadGateway,
}

// Error is an error with a category and a stable machine-readable code.
type Error struct {
	Category Category
	Code     string
	Message  string
	Cause    error
}

func New(category Category, code, message string) *Error {
	return &Error{Category: category, Code: code, Message: message}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match a wrapped copy against its sentinel by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Category == e.Category
}

// StatusCode returns the HTTP status for the category.
func (e *Error) StatusCode() int {
	if code, ok := statusByCategory[e.Category]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// Wrap returns a copy of sentinel carrying cause and a more specific message.
func Wrap(sentinel *Error, cause error, message string) *Error {
	if message == "" {
		message = sentinel.Message
	}
	return &Error{Category: sentinel.Category, Code: sentinel.Code, Message: message, Cause: cause}
}

// Persistence marks err as a transient storage failure the caller should retry.
func Persistence(op string, err error) *Error {
	return &Error{Category: CategoryPersistence, Code: "PERSISTENCE", Message: op, Cause: err}
}

// StatusOf returns the HTTP status for any error; uncategorized errors are 500.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode()
	}
	return http.StatusInternalServerError
}

// CodeOf returns the machine-readable code, or "INTERNAL".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "INTERNAL"
}
