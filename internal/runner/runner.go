package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sessionq/internal/config"
	"sessionq/internal/stats"
)

const (
	stateInit = iota
	stateRunning
	stateDone
)

const tracerName = "sessionq/internal/runner"

// DelayFunc picks the pause between two waves.
type DelayFunc func(config.DelayRange) time.Duration

// Runner executes TotalAttempts session attempts in waves of at most
// Concurrency. A wave is fully drained before the next one starts.
type Runner struct {
	cfg  config.Config
	exec Executor
	agg  *stats.Aggregator

	onProgress ProgressFunc
	onOutcome  OutcomeFunc
	delay      DelayFunc
	logger     *log.Entry

	status   atomic.Uint32
	inflight atomic.Int64

	mu       sync.Mutex
	progress Progress
}

type Option func(*Runner)

// WithAggregator forwards every reported usage record to agg.
func WithAggregator(agg *stats.Aggregator) Option {
	return func(r *Runner) { r.agg = agg }
}

// WithProgress registers the progress sink. Calls are serialized and
// Completed strictly increases between them.
func WithProgress(fn ProgressFunc) Option {
	return func(r *Runner) { r.onProgress = fn }
}

// WithOutcome registers the outcome sink, called before the matching progress update.
func WithOutcome(fn OutcomeFunc) Option {
	return func(r *Runner) { r.onOutcome = fn }
}

// WithDelayFunc replaces the uniform inter-wave delay.
func WithDelayFunc(fn DelayFunc) Option {
	return func(r *Runner) { r.delay = fn }
}

func WithLogger(entry *log.Entry) Option {
	return func(r *Runner) { r.logger = entry }
}

func NewRunner(cfg config.Config, exec Executor, opts ...Option) *Runner {
	r := &Runner{
		cfg:    cfg,
		exec:   exec,
		delay:  config.DelayRange.Draw,
		logger: log.WithField("component", "runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.progress = Progress{Total: cfg.TotalAttempts}
	return r
}

func (r *Runner) validate() error {
	switch {
	case r.exec == nil:
		return ErrNoExecutor
	case r.cfg.Concurrency < 1:
		return ErrInvalidConcurrency
	case r.cfg.TotalAttempts < 0:
		return ErrInvalidAttempts
	case r.cfg.InterBatchDelay.MinMs < 0 || r.cfg.InterBatchDelay.MinMs > r.cfg.InterBatchDelay.MaxMs:
		return ErrInvalidDelay
	}
	return nil
}

// Run blocks until every attempt has completed or ctx is cancelled. Faults
// inside attempts never abort the run; only invalid settings do. On
// cancellation no further wave is started and ctx.Err() is returned with
// the progress reached so far.
func (r *Runner) Run(ctx context.Context) (Progress, error) {
	if err := r.validate(); err != nil {
		return Progress{}, err
	}
	if !r.status.CompareAndSwap(stateInit, stateRunning) {
		return r.Progress(), ErrRunnerAlreadyStarted
	}
	defer r.status.Store(stateDone)

	total := r.cfg.TotalAttempts
	if total == 0 {
		return r.Progress(), nil
	}

	pool, err := ants.NewPool(r.cfg.Concurrency, ants.WithPanicHandler(r.workerPanicHandler))
	if err != nil {
		return r.Progress(), err
	}
	defer pool.Release()

	r.logger.WithFields(log.Fields{
		"attempts":    total,
		"concurrency": r.cfg.Concurrency,
	}).Info("run started")

	wave := 0
	for next := 1; next <= total; {
		if err := ctx.Err(); err != nil {
			r.logger.WithField("completed", r.Progress().Completed).Warn("run cancelled")
			return r.Progress(), err
		}

		size := min(r.cfg.Concurrency, total-next+1)
		wave++
		r.runWave(ctx, pool, wave, next, size)
		next += size

		if next <= total {
			if err := r.pause(ctx); err != nil {
				r.logger.WithField("completed", r.Progress().Completed).Warn("run cancelled")
				return r.Progress(), err
			}
		}
	}

	p := r.Progress()
	r.logger.WithFields(log.Fields{
		"completed": p.Completed,
		"succeeded": p.Succeeded,
	}).Info("run finished")
	return p, nil
}

// runWave starts size attempts from index first and waits for all of them.
func (r *Runner) runWave(ctx context.Context, pool *ants.Pool, wave, first, size int) {
	r.logger.WithFields(log.Fields{"wave": wave, "first": first, "size": size}).Debug("wave started")

	var wg sync.WaitGroup
	for index := first; index < first+size; index++ {
		index := index // per-iteration copy; module targets go1.21 loop semantics
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			r.complete(r.attempt(ctx, index))
		})
		if err != nil {
			wg.Done()
			r.complete(Outcome{Index: index, Err: NewAttemptError(index, err)})
		}
	}
	wg.Wait()
	metricWaves.Inc()
}

// attempt runs the executor for one index and converts every fault,
// including panics, into a failed Outcome.
func (r *Runner) attempt(ctx context.Context, index int) (out Outcome) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "session.attempt",
		trace.WithAttributes(attribute.Int("attempt.index", index)))

	start := time.Now()
	r.inflight.Add(1)
	metricInflight.Inc()

	defer func() {
		if p := recover(); p != nil {
			attemptErr := &AttemptError{Index: index, Panic: p}
			if err, ok := p.(error); ok {
				attemptErr.Err = err
			}
			out = Outcome{Err: attemptErr}
		}
		out.Index = index
		out.Duration = time.Since(start)

		r.inflight.Add(-1)
		metricInflight.Dec()

		span.SetAttributes(attribute.Bool("attempt.succeeded", out.Succeeded))
		if out.Usage != nil {
			span.SetAttributes(attribute.Int64("attempt.bytes", int64(out.Usage.TotalBytes)))
		}
		if out.Err != nil {
			span.RecordError(out.Err)
			span.SetStatus(codes.Error, out.Err.Error())
		}
		span.End()
	}()

	out, err := r.exec.Execute(ctx, index, r.cfg)
	if err != nil {
		out.Succeeded = false
		out.Err = NewAttemptError(index, err)
	}
	return out
}

// complete accounts one finished attempt. Sinks are called under the lock
// so that consumers observe updates in completion order.
func (r *Runner) complete(out Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.progress.Completed++
	if out.Succeeded {
		r.progress.Succeeded++
	} else {
		r.progress.Failed++
	}

	if out.Usage != nil && r.agg != nil {
		r.agg.Ingest(*out.Usage)
	}
	recordOutcome(out)

	entry := r.logger.WithFields(log.Fields{"attempt": out.Index, "duration": out.Duration.Round(time.Millisecond)})
	switch {
	case out.Err != nil:
		entry.WithError(out.Err).Warn("attempt failed with error")
	case !out.Succeeded:
		entry.Info("attempt did not reach its goal")
	default:
		entry.Debug("attempt succeeded")
	}

	if r.onOutcome != nil {
		r.onOutcome(out)
	}
	if r.onProgress != nil {
		r.onProgress(r.progress)
	}
}

// pause sleeps for the inter-wave delay unless ctx is cancelled first.
func (r *Runner) pause(ctx context.Context) error {
	d := r.delay(r.cfg.InterBatchDelay)
	if d <= 0 {
		return ctx.Err()
	}
	r.logger.WithField("delay", d).Debug("pausing between waves")

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *Runner) workerPanicHandler(p interface{}) {
	r.logger.WithField("cause", p).Error("worker panic")
}

// Progress returns the current progress.
func (r *Runner) Progress() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress
}

// Inflight returns the number of attempts currently executing.
func (r *Runner) Inflight() int64 {
	return r.inflight.Load()
}

// Config returns the run configuration.
func (r *Runner) Config() config.Config {
	return r.cfg
}
