package engine

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy defines retry behavior for a specific operation type.
type RetryPolicy struct {
	MaxRetries   int           // Maximum number of retry attempts (0 = no retries)
	InitialDelay time.Duration // Initial delay before first retry
	MaxDelay     time.Duration // Maximum delay cap
	Multiplier   float64       // Exponential backoff multiplier (e.g., 2.0)
	Jitter       bool          // Whether to add random jitter to delays
}

// RetryConfig holds separate retry policies for Brain and tool calls.
type RetryConfig struct {
	BrainPolicy RetryPolicy
	ToolPolicy  RetryPolicy
}

// maybeRetryCap bounds retries for errors classified as RetryClassMaybe.
const maybeRetryCap = 2

// DefaultRetryConfig returns the policies used when none is configured.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		BrainPolicy: RetryPolicy{
			MaxRetries:   3,
			InitialDelay: 1 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
			Jitter:       true,
		},
		ToolPolicy: RetryPolicy{
			MaxRetries:   2,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     10 * time.Second,
			Multiplier:   2.0,
			Jitter:       true,
		},
	}
}

// RetryableFunc is a function that can be retried.
type RetryableFunc[T any] func(ctx context.Context) (T, error)

// RetryNotify is told about each retry before its backoff starts.
type RetryNotify func(attempt int, delay time.Duration, err error)

// RetryWithPolicy calls fn until it succeeds, classifyError rejects the error,
// or the policy runs out of attempts. With MaxRetries == 0 the first error is
// returned unwrapped; otherwise exhaustion yields a RetryExhaustedError.
func RetryWithPolicy[T any](
	ctx context.Context,
	policy RetryPolicy,
	fn RetryableFunc[T],
	classifyError func(error) RetryClass,
	onRetry RetryNotify,
) (T, error) {
	var zero T

	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		class := classifyError(err)
		switch {
		case class == RetryClassNonRetryable, policy.MaxRetries == 0:
			return zero, err
		case attempt >= policy.MaxRetries:
			return zero, NewRetryExhaustedError(err, attempt, policy.MaxRetries, false)
		case class == RetryClassMaybe && attempt >= maybeRetryCap:
			return zero, NewRetryExhaustedError(err, attempt, maybeRetryCap, true)
		}

		delay := calculateDelay(policy, attempt, err)
		if onRetry != nil {
			onRetry(attempt+1, delay, err)
		}
		if err := sleepCtx(ctx, delay); err != nil {
			return zero, fmt.Errorf("context cancelled during retry: %w", err)
		}
	}
}

// RetryBrainCall sends msgs to brain, bounding each attempt by timeout and
// retrying the failures ClassifyBrainError deems transient.
func RetryBrainCall(
	ctx context.Context,
	policy RetryPolicy,
	brain Brain,
	timeout time.Duration,
	msgs []ChatMessage,
	hint OutputHint,
	onRetry RetryNotify,
) (BrainReply, error) {
	return RetryWithPolicy(ctx, policy,
		func(ctx context.Context) (BrainReply, error) {
			return chatWithTimeout(ctx, brain, timeout, msgs, hint)
		},
		ClassifyBrainError,
		onRetry,
	)
}

func chatWithTimeout(ctx context.Context, brain Brain, timeout time.Duration, msgs []ChatMessage, hint OutputHint) (BrainReply, error) {
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	reply, err := brain.Chat(callCtx, msgs, hint)
	if err != nil && ctx.Err() == nil && callCtx.Err() == context.DeadlineExceeded {
		return BrainReply{}, NewEngineError(
			fmt.Errorf("%w: brain call timed out after %s", ErrBrainUnavailable, timeout),
			RetryClassRetryable,
		)
	}
	return reply, err
}

// RetryToolCall invokes call through reg. Only tools implementing RetryableTool
// and reporting true are retried; every other tool gets a single attempt.
// The returned ToolResult is the last attempt's, so its Output and Err are
// what gets recorded even when err is a RetryExhaustedError.
func RetryToolCall(
	ctx context.Context,
	policy RetryPolicy,
	reg *Registry,
	call ToolCallDecision,
	onRetry RetryNotify,
) (ToolResult, error) {
	retryable := false
	if t, ok := reg.Lookup(call.ToolName); ok {
		if rt, ok := t.(RetryableTool); ok {
			retryable = rt.Retryable()
		}
	}
	if !retryable {
		policy = RetryPolicy{}
	}

	var last ToolResult
	_, err := RetryWithPolicy(ctx, policy,
		func(ctx context.Context) (struct{}, error) {
			last = reg.Invoke(ctx, call.ToolName, call.Arguments)
			return struct{}{}, last.Err
		},
		func(err error) RetryClass { return ClassifyToolError(err, retryable) },
		onRetry,
	)
	return last, err
}

// calculateDelay returns the wait before retry number attempt+1. A server
// supplied Retry-After wins over exponential backoff; both are capped at MaxDelay.
func calculateDelay(policy RetryPolicy, attempt int, err error) time.Duration {
	if retryAfter := ExtractRetryAfter(err); retryAfter > 0 {
		return min(retryAfter, policy.MaxDelay)
	}

	backoff := float64(policy.InitialDelay) * math.Pow(policy.Multiplier, float64(attempt))
	delay := policy.MaxDelay
	if backoff < float64(policy.MaxDelay) {
		delay = time.Duration(backoff)
	}
	if policy.Jitter {
		delay += time.Duration(rand.Float64() * 0.2 * float64(delay))
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
