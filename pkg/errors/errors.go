// Package errors provides structured error handling for the engine. It
// defines error types that map to JSON-RPC error codes and carry a category
// for programmatic handling, covering the engine's failure taxonomy:
// protocol-decode errors, handler errors, cancellation, and connection loss.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Category classifies an error for handling decisions.
type Category string

const (
	CategoryProtocol   Category = "protocol"
	CategoryValidation Category = "validation"
	CategoryNotFound   Category = "not_found"
	CategoryHandler    Category = "handler"
	CategoryCancelled  Category = "cancelled"
	CategoryTransport  Category = "transport"
	CategoryInternal   Category = "internal"
)

// MCPError is the interface implemented by all engine errors that can cross
// the wire as a JSON-RPC error object.
type MCPError interface {
	error

	// Code returns the JSON-RPC error code.
	Code() int

	// Message returns the human-readable message as it appears on the wire.
	Message() string

	// Data returns optional structured error data.
	Data() any

	// Category returns the error category.
	Category() Category

	// Unwrap returns the underlying cause, if any.
	Unwrap() error
}

type baseError struct {
	code     int
	message  string
	data     any
	category Category
	cause    error
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Code() int          { return e.code }
func (e *baseError) Message() string    { return e.message }
func (e *baseError) Data() any          { return e.data }
func (e *baseError) Category() Category { return e.category }
func (e *baseError) Unwrap() error      { return e.cause }

// New creates an MCPError with the given code, message and category.
func New(code int, message string, category Category) MCPError {
	return &baseError{code: code, message: message, category: category}
}

// Newf creates an MCPError with a formatted message.
func Newf(code int, category Category, format string, args ...any) MCPError {
	return &baseError{code: code, message: fmt.Sprintf(format, args...), category: category}
}

// Wrap attaches a code, message and category to an existing error.
func Wrap(err error, code int, message string, category Category) MCPError {
	return &baseError{code: code, message: message, category: category, cause: err}
}

// WithData returns a copy of the error carrying structured data.
func WithData(err MCPError, data any) MCPError {
	return &baseError{
		code:     err.Code(),
		message:  err.Message(),
		data:     data,
		category: err.Category(),
		cause:    err.Unwrap(),
	}
}

// As extracts an MCPError from an error chain.
func As(err error) (MCPError, bool) {
	var mcpErr MCPError
	if stderrors.As(err, &mcpErr) {
		return mcpErr, true
	}
	return nil, false
}

// IsCategory reports whether err carries the given category.
func IsCategory(err error, category Category) bool {
	if mcpErr, ok := As(err); ok {
		return mcpErr.Category() == category
	}
	return false
}

// IsCode reports whether err carries the given JSON-RPC code.
func IsCode(err error, code int) bool {
	if mcpErr, ok := As(err); ok {
		return mcpErr.Code() == code
	}
	return false
}

// Convenience constructors for the engine's common failures.

// NewInvalidParams builds an invalid-params error.
func NewInvalidParams(message string) MCPError {
	return New(CodeInvalidParams, message, CategoryValidation)
}

// NewMethodNotFound builds a method-not-found error for the given method.
func NewMethodNotFound(method string) MCPError {
	return Newf(CodeMethodNotFound, CategoryProtocol, "method not found: %s", method)
}

// NewResourceNotFound builds a resource-not-found error for the given URI.
func NewResourceNotFound(uri string) MCPError {
	return Newf(CodeResourceNotFound, CategoryNotFound, "resource not found: %s", uri)
}

// NewInvalidCursor builds an invalid-cursor error.
func NewInvalidCursor(cause error) MCPError {
	return Wrap(cause, CodeInvalidCursor, "invalid pagination cursor", CategoryValidation)
}
