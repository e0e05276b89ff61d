package runner

import (
	"context"
	"time"

	"sessionq/internal/config"
	"sessionq/internal/usage"
)

// Executor performs one end-to-end session attempt. index is 1-based and
// unique within a run; cfg must be treated as read-only.
//
// A returned error is a fault; the Outcome may still carry the usage
// gathered before the fault. A session that completes but misses its goal
// returns Succeeded=false and a nil error.
type Executor interface {
	Execute(ctx context.Context, index int, cfg config.Config) (Outcome, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, index int, cfg config.Config) (Outcome, error)

func (f ExecutorFunc) Execute(ctx context.Context, index int, cfg config.Config) (Outcome, error) {
	return f(ctx, index, cfg)
}

// Outcome is the result of one attempt. It is immutable once handed to the
// progress and outcome sinks.
type Outcome struct {
	Index     int
	Succeeded bool
	Usage     *usage.Record
	Err       error
	Duration  time.Duration
}

// Progress counts completed attempts. Completed only grows and every
// attempt, whatever its result, is counted exactly once.
type Progress struct {
	Completed int `json:"completed" yaml:"completed"`
	Succeeded int `json:"succeeded" yaml:"succeeded"`
	Failed    int `json:"failed" yaml:"failed"`
	Total     int `json:"total" yaml:"total"`
}

// Done reports whether every attempt has completed.
func (p Progress) Done() bool {
	return p.Completed >= p.Total
}

// Fraction returns Completed/Total, 1 for an empty run.
func (p Progress) Fraction() float64 {
	if p.Total == 0 {
		return 1
	}
	return float64(p.Completed) / float64(p.Total)
}

// SuccessRate returns the percentage of completed attempts that succeeded.
func (p Progress) SuccessRate() float64 {
	if p.Completed == 0 {
		return 0
	}
	return float64(p.Succeeded) / float64(p.Completed) * 100
}

// ProgressFunc receives a progress update after each completed attempt.
type ProgressFunc func(Progress)

// OutcomeFunc receives each outcome in completion order.
type OutcomeFunc func(Outcome)
