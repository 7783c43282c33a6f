// Package errors provides the error classification used across schoolcache.
// Store and remote faults are wrapped with component/operation context and a
// class (transient, invalid, fatal) so callers can decide whether to retry,
// degrade to a cache miss, or surface the failure.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may be retried
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input or corrupt data
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that should stop processing
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Lifecycle errors
	ErrAlreadyStarted = errors.New("already started")
	ErrNotStarted     = errors.New("not started")
	ErrShuttingDown   = errors.New("shutting down")

	// Connection errors
	ErrNoConnection      = errors.New("no connection available")
	ErrConnectionLost    = errors.New("connection lost")
	ErrConnectionTimeout = errors.New("connection timeout")

	// Data errors
	ErrInvalidData    = errors.New("invalid data format")
	ErrInvalidKey     = errors.New("invalid cache key")
	ErrDataCorrupted  = errors.New("data corrupted")
	ErrParsingFailed  = errors.New("parsing failed")
	ErrSchemaMismatch = errors.New("schema version mismatch")

	// Storage errors
	ErrStorageFull        = errors.New("storage full")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrBucketNotFound     = errors.New("bucket not found")
	ErrKeyNotFound        = errors.New("key not found")
	ErrQuotaExceeded      = errors.New("quota exceeded")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing required configuration")

	// Retry errors
	ErrRateLimited        = errors.New("rate limited")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
)

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// IsTransient checks if an error is transient and should be retried
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}

	if errors.Is(err, ErrConnectionTimeout) ||
		errors.Is(err, ErrConnectionLost) ||
		errors.Is(err, ErrNoConnection) ||
		errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Cancellation is the caller giving up, not a condition worth retrying.
	if errors.Is(err, context.Canceled) {
		return false
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "connection", "network", "temporary", "unavailable", "busy"} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsFatal checks if an error is fatal and should stop processing
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}

	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingConfig) ||
		errors.Is(err, ErrStorageFull) ||
		errors.Is(err, ErrQuotaExceeded)
}

// IsInvalid checks if an error is due to invalid input or unreadable data
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}

	return errors.Is(err, ErrInvalidData) ||
		errors.Is(err, ErrInvalidKey) ||
		errors.Is(err, ErrParsingFailed) ||
		errors.Is(err, ErrDataCorrupted) ||
		errors.Is(err, ErrSchemaMismatch)
}

// Classify returns the error class for an error.
// Unknown errors default to transient.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ErrorTransient
	case IsFatal(err):
		return ErrorFatal
	case IsInvalid(err):
		return ErrorInvalid
	default:
		return ErrorTransient
	}
}

func newClassified(class ErrorClass, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorTransient, wrappedErr, component, method, wrappedErr.Error())
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorFatal, wrappedErr, component, method, wrappedErr.Error())
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorInvalid, wrappedErr, component, method, wrappedErr.Error())
}

// Message returns the text a caller should see for err, or "" when err is nil.
// Classified errors expose their wrapped message; other errors their Error().
func Message(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
