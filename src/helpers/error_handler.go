package helpers

import (
	"fmt"
	"sync"
	"time"

	"visits-observer/src/logger"
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

// Distinct error types for errors.As checks
type ConfigurationError struct{ ObserverError }
type TransportError struct{ ObserverError }
type TriggerError struct{ ObserverError }

// MalformedEventError is returned when an inbound event cannot become a series point.
type MalformedEventError struct {
	ObserverError
	Field string
}

func NewMalformedEventError(field string, cause error) *MalformedEventError {
	msg := "malformed event"
	if field != "" {
		msg = fmt.Sprintf("malformed event: field %q", field)
	}
	return &MalformedEventError{ObserverError: ObserverError{Message: msg, Cause: cause}, Field: field}
}

func NewTransportError(message string, cause error) *TransportError {
	return &TransportError{ObserverError{Message: message, Cause: cause}}
}

func NewTriggerError(message string, cause error) *TriggerError {
	return &TriggerError{ObserverError{Message: message, Cause: cause}}
}

func NewConfigurationError(message string, cause error) *ConfigurationError {
	return &ConfigurationError{ObserverError{Message: message, Cause: cause}}
}

// -----------------------------------------------------------------------------
// Error Handler
// -----------------------------------------------------------------------------

type ErrorHandler struct {
	Logger     *logger.Logger
	BaseDelay  time.Duration
	mu         sync.Mutex
	errorCount int
}

func NewErrorHandler(log *logger.Logger) *ErrorHandler {
	return &ErrorHandler{
		Logger:    log,
		BaseDelay: time.Second,
	}
}

// -----------------------------------------------------------------------------

func (e *ErrorHandler) ErrorCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errorCount
}

// -----------------------------------------------------------------------------

func (e *ErrorHandler) ResetErrorCount() {
	e.mu.Lock()
	e.errorCount = 0
	e.mu.Unlock()
}

// -----------------------------------------------------------------------------

// ExecuteWithRetry runs fn up to maxRetries times with exponential backoff.
// The final failure is wrapped as a TransportError.
func (e *ErrorHandler) ExecuteWithRetry(operation string, fn func() error, maxRetries int) error {
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == maxRetries-1 {
			break
		}

		delay := e.BaseDelay * (1 << attempt)
		e.Logger.Warning("%s failed (attempt %d/%d): %v. Retrying in %v", operation, attempt+1, maxRetries, err, delay)
		time.Sleep(delay)
	}

	e.Handle(lastErr, operation)
	return NewTransportError(fmt.Sprintf("%s failed after %d attempts", operation, maxRetries), lastErr)
}

// -----------------------------------------------------------------------------

// Handle logs err under context and counts it. Malformed events and trigger
// failures are expected traffic and logged at warning level.
func (e *ErrorHandler) Handle(err error, context string) {
	if err == nil {
		return
	}

	e.mu.Lock()
	e.errorCount++
	e.mu.Unlock()

	switch err.(type) {
	case *MalformedEventError, *TriggerError:
		e.Logger.Warning("Error in %s: %v", context, err)
	default:
		e.Logger.Error("Error in %s: %v", context, err)
	}
}
