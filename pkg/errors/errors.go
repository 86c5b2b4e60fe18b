package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind classifies an application error.
type Kind int

const (
	// KindUnknown is any error not produced by this package.
	KindUnknown Kind = iota
	// KindInvalidInput is a request the service refuses to process.
	KindInvalidInput
	// KindNotFound is a reference to a record that does not exist.
	KindNotFound
	// KindStorage is a failure of the relational store.
	KindStorage
	// KindFileSystem is a failure reading or writing image files.
	KindFileSystem
)

// String returns the snake_case name used in API error payloads.
func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindStorage:
		return "storage_error"
	case KindFileSystem:
		return "filesystem_error"
	default:
		return "internal_error"
	}
}

// Common application errors
var (
	ErrImageRequired = NewValidationError("image", "image is required")
	ErrImageEmpty    = NewValidationError("image", "image is empty")
	ErrUserNotFound  = NewNotFoundError("user", "user not found")
)

// ValidationError represents a validation failure with field-level details
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed: %s - %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// GRPCStatus returns the gRPC status for this error
func (e *ValidationError) GRPCStatus() *status.Status {
	return status.New(codes.InvalidArgument, e.Error())
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	Message  string
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		Message:  message,
	}
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// GRPCStatus returns the gRPC status for this error
func (e *NotFoundError) GRPCStatus() *status.Status {
	return status.New(codes.NotFound, e.Error())
}

// StorageError represents a failure of the relational store
type StorageError struct {
	Op  string
	Err error
}

// NewStorageError creates a new storage error for the given operation
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{
		Op:  op,
		Err: err,
	}
}

// Error implements the error interface
func (e *StorageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage: %s", e.Op)
}

// Unwrap returns the wrapped error
func (e *StorageError) Unwrap() error {
	return e.Err
}

// GRPCStatus returns the gRPC status for this error
func (e *StorageError) GRPCStatus() *status.Status {
	return status.New(codes.Internal, "storage failure")
}

// FileSystemError represents a failed image file operation
type FileSystemError struct {
	Op   string
	Path string
	Err  error
}

// NewFileSystemError creates a new filesystem error
func NewFileSystemError(op, path string, err error) *FileSystemError {
	return &FileSystemError{
		Op:   op,
		Path: path,
		Err:  err,
	}
}

// Error implements the error interface
func (e *FileSystemError) Error() string {
	return fmt.Sprintf("filesystem: %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the wrapped error
func (e *FileSystemError) Unwrap() error {
	return e.Err
}

// GRPCStatus returns the gRPC status for this error
func (e *FileSystemError) GRPCStatus() *status.Status {
	return status.New(codes.Internal, "filesystem failure")
}

// GRPCStatuser interface for errors that can provide gRPC status
type GRPCStatuser interface {
	GRPCStatus() *status.Status
}

// KindOf reports the kind of the first typed error in err's chain.
func KindOf(err error) Kind {
	var (
		validationErr *ValidationError
		notFoundErr   *NotFoundError
		storageErr    *StorageError
		fsErr         *FileSystemError
	)

	switch {
	case err == nil:
		return KindUnknown
	case stderrors.As(err, &validationErr):
		return KindInvalidInput
	case stderrors.As(err, &notFoundErr):
		return KindNotFound
	case stderrors.As(err, &storageErr):
		return KindStorage
	case stderrors.As(err, &fsErr):
		return KindFileSystem
	default:
		return KindUnknown
	}
}

// HTTPStatus maps an error to the HTTP status code returned by the REST API.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
