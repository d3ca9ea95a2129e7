package helpers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"runtime-observer/src/logger"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type ObserverError struct {
	Message string
	Cause   error
}

func (e *ObserverError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ObserverError) Unwrap() error {
	return e.Cause
}

// Distinct error types for errors.As checks at the boundary
type ConfigurationError struct{ ObserverError }
type NetworkError struct{ ObserverError }
type DecodeError struct{ ObserverError }
type DatabaseError struct{ ObserverError }
type ValidationError struct{ ObserverError }

// NewDecodeError wraps a payload decoding failure
func NewDecodeError(message string, cause error) error {
	return &DecodeError{ObserverError{Message: message, Cause: cause}}
}

// NewValidationError reports a request that cannot be served
func NewValidationError(message string) error {
	return &ValidationError{ObserverError{Message: message}}
}

// NewDatabaseError wraps a storage failure
func NewDatabaseError(message string, cause error) error {
	return &DatabaseError{ObserverError{Message: message, Cause: cause}}
}

// IsDecodeError reports whether err came from a payload codec
func IsDecodeError(err error) bool {
	var target *DecodeError
	return errors.As(err, &target)
}

// IsValidationError reports whether err is a ValidationError
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// -----------------------------------------------------------------------------
// Error Handler
// -----------------------------------------------------------------------------

type ErrorHandler struct {
	Logger                 *logger.Logger
	BaseDelay              time.Duration
	MaxErrorsBeforeRestart int

	mu         sync.Mutex
	errorCount int
}

func NewErrorHandler(log *logger.Logger) *ErrorHandler {
	if log == nil {
		log = logger.NewLogger(nil, "ErrorHandler")
	}
	return &ErrorHandler{
		Logger:                 log,
		BaseDelay:              time.Second,
		MaxErrorsBeforeRestart: 10,
	}
}

// -----------------------------------------------------------------------------

func (e *ErrorHandler) ErrorCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errorCount
}

// Healthy is false once consecutive failures reach MaxErrorsBeforeRestart
func (e *ErrorHandler) Healthy() bool {
	return e.ErrorCount() < e.MaxErrorsBeforeRestart
}

func (e *ErrorHandler) ResetErrorCount() {
	e.mu.Lock()
	e.errorCount = 0
	e.mu.Unlock()
}

// -----------------------------------------------------------------------------

// ExecuteWithRetry runs fn up to maxRetries times with exponential backoff and
// categorizes the final error by operation name. Cancelling ctx aborts the wait.
func (e *ErrorHandler) ExecuteWithRetry(ctx context.Context, operation string, fn func() error, maxRetries int) error {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := fn()
		if err == nil {
			e.mu.Lock()
			if e.errorCount > 0 {
				e.errorCount--
			}
			e.mu.Unlock()
			return nil
		}
		lastErr = err

		if attempt == maxRetries-1 {
			break
		}

		delay := e.BaseDelay * time.Duration(1<<attempt)
		e.Logger.Warning("%s failed (attempt %d/%d): %v. Retrying in %v", operation, attempt+1, maxRetries, err, delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	e.mu.Lock()
	e.errorCount++
	e.mu.Unlock()
	e.Logger.Error("%s failed after %d attempts: %v", operation, maxRetries, lastErr)
	return classify(operation, lastErr)
}

func classify(operation string, err error) error {
	base := ObserverError{Message: fmt.Sprintf("%s failed", operation), Cause: err}
	lowerOp := strings.ToLower(operation)
	switch {
	case strings.Contains(lowerOp, "fetch"), strings.Contains(lowerOp, "network"), strings.Contains(lowerOp, "connect"):
		return &NetworkError{base}
	case strings.Contains(lowerOp, "save"), strings.Contains(lowerOp, "load"), strings.Contains(lowerOp, "database"):
		return &DatabaseError{base}
	case strings.Contains(lowerOp, "decode"):
		return &DecodeError{base}
	}
	return &base
}

// -----------------------------------------------------------------------------

func (e *ErrorHandler) Handle(err error, context string) {
	if err != nil {
		e.Logger.Error("Error in %s: %v", context, err)
	}
}
