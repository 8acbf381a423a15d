package runner

import "errors"

// ErrTaskNotRegistered means an invocation named a task the registry does not
// know. The firing is recorded as a failure, never silently dropped.
var ErrTaskNotRegistered = errors.New("runner: task not registered")

// RetryableError wraps an error a task body classified as transient. Only
// wrapped errors are retried; everything else is terminal on first failure.
type RetryableError struct {
	Err error
}

// Retryable marks err as transient so the runner retries it with backoff.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

func (e *RetryableError) Error() string {
	return "transient: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Retryable marks the classification for consumers that match structurally
// instead of importing this type.
func (e *RetryableError) Retryable() bool { return true }

// IsRetryable reports whether err was classified as transient by the body.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
