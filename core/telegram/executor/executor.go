// Package executor wraps remote chat API calls with timeout, retry with
// backoff and jitter, and rate-limit compliance. Callers receive either nil
// or a typed *Failure; faults never propagate unclassified.
package executor

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"quizbot/core/logger"
)

const (
	defaultMaxRetries       = 3
	defaultBaseDelay        = 1 * time.Second
	defaultMaxDelay         = 30 * time.Second
	defaultCallTimeout      = 60 * time.Second
	defaultMaxRateLimitWait = 60 * time.Second
)

// Reporter receives exactly one terminal outcome per executed call.
type Reporter interface {
	RecordSuccess()
	RecordFailure()
}

// Op is an idempotent-enough remote call.
type Op func(ctx context.Context) error

// Options tune the executor. Zero values select defaults.
type Options struct {
	// MaxRetries is the total number of attempts for transient/unknown
	// failures.
	MaxRetries int
	// BaseDelay seeds the exponential backoff between attempts.
	BaseDelay time.Duration
	// MaxDelay caps the backoff.
	MaxDelay time.Duration
	// CallTimeout bounds each individual attempt.
	CallTimeout time.Duration
	// MaxRateLimitWait caps a server-requested rate-limit wait.
	MaxRateLimitWait time.Duration

	Reporter Reporter
}

// Executor executes remote operations under the retry policy. Safe for
// concurrent use; it holds no per-call state.
type Executor struct {
	opts Options

	randMu sync.Mutex
	rand   *rand.Rand

	// wait is swapped out by tests to observe requested delays.
	wait func(ctx context.Context, d time.Duration) error
}

// New constructs an Executor with sane defaults for zeroed options.
func New(opts Options) *Executor {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = defaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = defaultMaxDelay
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.MaxRateLimitWait <= 0 {
		opts.MaxRateLimitWait = defaultMaxRateLimitWait
	}
	return &Executor{
		opts: opts,
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
		wait: waitContext,
	}
}

// Execute runs op under the retry policy. Rate-limit waits do not count
// against the attempt budget; client errors abort immediately. The terminal
// outcome is reported to the Reporter exactly once.
func (e *Executor) Execute(ctx context.Context, action string, op Op) error {
	var (
		lastErr  error
		lastKind = KindUnknown
	)

	attempt := 0
	for attempt < e.opts.MaxRetries {
		attemptCtx, cancel := context.WithTimeout(ctx, e.opts.CallTimeout)
		err := op(attemptCtx)
		cancel()

		if err == nil {
			e.reportSuccess()
			if attempt > 0 {
				logger.Info(ctx, "executor", "call.retry.success",
					slog.String("action", action),
					slog.Int("attempt", attempt+1),
				)
			}
			return nil
		}

		kind, retryAfter := Classify(err)
		lastErr, lastKind = err, kind

		switch kind {
		case KindRateLimited:
			// A scheduling constraint, not a failure: wait as told and
			// retry without consuming the attempt budget.
			wait := retryAfter + time.Second
			if wait > e.opts.MaxRateLimitWait {
				wait = e.opts.MaxRateLimitWait
			}
			logger.Warn(ctx, "executor", "call.rate_limited",
				slog.String("action", action),
				slog.Duration("wait", wait),
			)
			if werr := e.wait(ctx, wait); werr != nil {
				return e.fail(ctx, action, lastKind, werr, attempt+1)
			}
			continue

		case KindClient:
			return e.fail(ctx, action, kind, err, attempt+1)

		case KindTransient, KindUnknown:
			attempt++
			if attempt >= e.opts.MaxRetries {
				return e.fail(ctx, action, kind, err, attempt)
			}
			delay := e.retryDelay(kind, attempt-1)
			logger.Warn(ctx, "executor", "call.retry",
				slog.String("action", action),
				slog.String("error_kind", kind.String()),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("err", logger.SanitizeError(err)),
			)
			if werr := e.wait(ctx, delay); werr != nil {
				return e.fail(ctx, action, kind, werr, attempt)
			}
		}
	}

	return e.fail(ctx, action, lastKind, lastErr, attempt)
}

// retryDelay implements min(base*2^attempt, cap) plus up to 10% jitter for
// transient failures; unknown failures retry after a fixed conservative
// delay.
func (e *Executor) retryDelay(kind Kind, attempt int) time.Duration {
	if kind == KindUnknown {
		return time.Second
	}
	delay := e.opts.BaseDelay << uint(attempt)
	if delay > e.opts.MaxDelay || delay <= 0 {
		delay = e.opts.MaxDelay
	}
	e.randMu.Lock()
	jitter := time.Duration(e.rand.Float64() * 0.1 * float64(delay))
	e.randMu.Unlock()
	return delay + jitter
}

func (e *Executor) fail(ctx context.Context, action string, kind Kind, err error, attempts int) error {
	e.reportFailure()
	logger.Error(ctx, "executor", "call.fail",
		slog.String("action", action),
		slog.String("error_kind", kind.String()),
		slog.Int("attempts", attempts),
		slog.String("err", logger.SanitizeError(err)),
	)
	return &Failure{Kind: kind, Err: err}
}

func (e *Executor) reportSuccess() {
	if e.opts.Reporter != nil {
		e.opts.Reporter.RecordSuccess()
	}
}

func (e *Executor) reportFailure() {
	if e.opts.Reporter != nil {
		e.opts.Reporter.RecordFailure()
	}
}

func waitContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
