// Package engine provides the planning agent state machine.
// This file contains error classification and handling.

package engine

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	ErrDuplicateToolName = errors.New("duplicate tool name")
	ErrToolNameEmpty     = errors.New("tool name is empty")
	ErrToolNotFound      = errors.New("tool not found")
	ErrBrainUnavailable  = errors.New("brain unavailable")
	ErrBrainProtocol     = errors.New("brain protocol error")
	ErrAgentBusy         = errors.New("agent is already running")
)

// RetryClass indicates whether an error should be retried.
type RetryClass string

const (
	RetryClassRetryable    RetryClass = "retryable"     // Definitely retry
	RetryClassMaybe        RetryClass = "maybe"         // Retry with caution (limited attempts)
	RetryClassNonRetryable RetryClass = "non_retryable" // Never retry
)

// EngineError wraps errors with classification metadata.
type EngineError struct {
	Err         error
	Class       RetryClass
	HTTPStatus  int    // HTTP status code if applicable
	RetryAfter  string // Retry-After header value if present
	IsRateLimit bool
	IsTimeout   bool
	IsNetwork   bool
	IsAuth      bool
	IsQuota     bool
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("engine error: %s", e.Class)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewEngineError creates a new EngineError with classification.
func NewEngineError(err error, class RetryClass) *EngineError {
	return &EngineError{
		Err:   err,
		Class: class,
	}
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// ClassifyBrainError classifies an error from a Brain call.
func ClassifyBrainError(err error) RetryClass {
	if err == nil {
		return RetryClassNonRetryable
	}

	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Class
	}

	// A malformed reply will not fix itself.
	if errors.Is(err, ErrBrainProtocol) {
		return RetryClassNonRetryable
	}

	errStr := strings.ToLower(err.Error())

	// Rate limit errors (429) - retryable, respect Retry-After
	if containsAny(errStr, "429", "rate limit", "rate_limit", "too many requests", "overloaded") {
		return RetryClassRetryable
	}

	// Server errors (5xx) - retryable
	if containsAny(errStr, "500", "502", "503", "504",
		"internal server error", "bad gateway", "service unavailable", "gateway timeout") {
		return RetryClassRetryable
	}

	// Context deadline exceeded - maybe (limited retries)
	if containsAny(errStr, "context deadline exceeded", "deadline exceeded") {
		return RetryClassMaybe
	}

	// Network/timeout errors - retryable
	if containsAny(errStr, "timeout", "connection reset", "connection refused",
		"no such host", "network", "dns", "temporary failure") {
		return RetryClassRetryable
	}

	// Length/context overflow - maybe
	if containsAny(errStr, "context length", "token limit", "maximum context length") {
		return RetryClassMaybe
	}

	// Everything else (auth, bad request, quota, safety refusals, unknown) is not retried.
	return RetryClassNonRetryable
}

// ClassifyToolError classifies an error from a tool execution.
func ClassifyToolError(err error, toolRetryable bool) RetryClass {
	if err == nil || !toolRetryable {
		return RetryClassNonRetryable
	}

	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Class
	}

	var validationErr *ToolValidationError
	var panicErr *ToolPanicError
	if errors.Is(err, ErrToolNotFound) || errors.As(err, &validationErr) || errors.As(err, &panicErr) {
		return RetryClassNonRetryable
	}

	errStr := strings.ToLower(err.Error())

	if containsAny(errStr, "timeout", "connection reset", "connection refused",
		"network", "temporary failure") {
		return RetryClassRetryable
	}

	if containsAny(errStr, "500", "502", "503", "504",
		"internal server error", "service unavailable") {
		return RetryClassRetryable
	}

	if containsAny(errStr, "file locked", "resource temporarily unavailable", "temporary") {
		return RetryClassRetryable
	}

	return RetryClassNonRetryable
}

// ExtractRetryAfter extracts the Retry-After header value from an error.
// Returns 0 if not found or invalid.
func ExtractRetryAfter(err error) time.Duration {
	var engineErr *EngineError
	if errors.As(err, &engineErr) && engineErr.RetryAfter != "" {
		var seconds int
		if _, err := fmt.Sscanf(engineErr.RetryAfter, "%d", &seconds); err == nil {
			return time.Duration(seconds) * time.Second
		}
		if t, err := time.Parse(time.RFC1123, engineErr.RetryAfter); err == nil {
			if d := time.Until(t); d > 0 {
				return d
			}
		}
	}

	errStr := strings.ToLower(err.Error())
	if i := strings.Index(errStr, "retry after"); i >= 0 {
		var seconds int
		if _, err := fmt.Sscanf(errStr[i:], "retry after %d", &seconds); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	return 0
}

// WrapBrainError wraps a Brain backend error with classification metadata.
// Transport failures are wrapped so they match ErrBrainUnavailable; protocol errors keep their sentinel.
func WrapBrainError(err error, httpStatus int, retryAfter string) error {
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrBrainUnavailable) && !errors.Is(err, ErrBrainProtocol) {
		err = fmt.Errorf("%w: %w", ErrBrainUnavailable, err)
	}

	return &EngineError{
		Err:         err,
		Class:       ClassifyBrainError(err),
		HTTPStatus:  httpStatus,
		RetryAfter:  retryAfter,
		IsRateLimit: httpStatus == http.StatusTooManyRequests,
		IsTimeout:   httpStatus == http.StatusGatewayTimeout || httpStatus == http.StatusRequestTimeout,
		IsNetwork:   httpStatus == 0 || httpStatus >= 500,
		IsAuth:      httpStatus == http.StatusUnauthorized || httpStatus == http.StatusForbidden,
		IsQuota:     httpStatus == http.StatusPaymentRequired,
	}
}

// RetryExhaustedError indicates that all retry attempts have been exhausted.
type RetryExhaustedError struct {
	Err         error
	Attempts    int
	MaxAttempts int
	IsGuarded   bool // True if this was a "maybe" class error with limited retries
}

func (e *RetryExhaustedError) Error() string {
	if e.IsGuarded {
		return fmt.Sprintf("guarded retries exhausted after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}

// NewRetryExhaustedError creates a new RetryExhaustedError.
func NewRetryExhaustedError(err error, attempts, maxAttempts int, isGuarded bool) *RetryExhaustedError {
	return &RetryExhaustedError{
		Err:         err,
		Attempts:    attempts,
		MaxAttempts: maxAttempts,
		IsGuarded:   isGuarded,
	}
}

// IsRetryExhausted checks if an error is a RetryExhaustedError.
func IsRetryExhausted(err error) bool {
	var retryExhausted *RetryExhaustedError
	return errors.As(err, &retryExhausted)
}

// ToolValidationError indicates that tool arguments failed JSON schema validation.
type ToolValidationError struct {
	ToolName string
	Errors   []string
}

func (e *ToolValidationError) Error() string {
	return fmt.Sprintf("tool %s validation failed: %s", e.ToolName, strings.Join(e.Errors, "; "))
}

// ToolPanicError records a panic raised inside a tool's Execute.
type ToolPanicError struct {
	ToolName string
	Value    any
}

func (e *ToolPanicError) Error() string {
	return fmt.Sprintf("tool %s panicked: %v", e.ToolName, e.Value)
}

// DecisionParseError reports a planning reply that could not be turned into a tool call decision.
type DecisionParseError struct {
	Reply  string
	Reason string
	Err    error
}

func (e *DecisionParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid planning reply (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid planning reply (%s)", e.Reason)
}

func (e *DecisionParseError) Unwrap() error {
	return e.Err
}

// StepError wraps an error with the step, state and operation it happened in.
type StepError struct {
	Err       error
	Step      int
	State     StateName
	ToolName  string
	Operation string // "brain_call", "tool_execution", "parse"
}

func (e *StepError) Error() string {
	if e.ToolName != "" {
		return fmt.Sprintf("[step=%d state=%s op=%s tool=%s] %v",
			e.Step, e.State, e.Operation, e.ToolName, e.Err)
	}
	return fmt.Sprintf("[step=%d state=%s op=%s] %v",
		e.Step, e.State, e.Operation, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
