package runner

import "fmt"

type SchedulerError string

func (e SchedulerError) Error() string {
	return string(e)
}

const (
	ErrInvalidConcurrency   = SchedulerError("ErrInvalidConcurrency")
	ErrInvalidAttempts      = SchedulerError("ErrInvalidAttempts")
	ErrInvalidDelay         = SchedulerError("ErrInvalidDelay")
	ErrNoExecutor           = SchedulerError("ErrNoExecutor")
	ErrRunnerAlreadyStarted = SchedulerError("ErrRunnerAlreadyStarted")
)

// AttemptError is a fault contained at the boundary of one attempt.
type AttemptError struct {
	Index int
	Err   error
	// Panic holds the recovered value when the executor panicked.
	Panic any
}

func NewAttemptError(index int, err error) *AttemptError {
	return &AttemptError{Index: index, Err: err}
}

func (e *AttemptError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("attempt %d: panic: %v", e.Index, e.Panic)
	}
	return fmt.Sprintf("attempt %d: %v", e.Index, e.Err)
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}
