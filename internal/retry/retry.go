// Package retry runs an operation with bounded retries and jittered
// exponential backoff.
//
// The error returned after the last allowed attempt, or after a
// non-retryable failure, is the operation's own error value, unwrapped.
// Callers match on the cause with errors.Is / errors.As.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"net/http"
	"time"
)

// Policy configures one execution. Zero-value fields are filled from the
// executor's defaults.
type Policy struct {
	// MaxAttempts is the number of retries after the first try, so the
	// operation runs at most MaxAttempts+1 times.
	MaxAttempts int

	// BaseDelay is the delay before the first retry; it doubles per attempt.
	BaseDelay time.Duration

	// MaxDelay caps every delay, jitter included.
	MaxDelay time.Duration

	// Jitter is the ceiling of the uniform random delay added per step.
	Jitter time.Duration

	// Retryable decides whether err is worth another attempt.
	Retryable func(err error) bool

	// OnRetry observes each retry before the delay: attempt is 1 for the
	// first retry.
	OnRetry func(attempt int, err error)
}

// DefaultPolicy returns the policy used when nothing is overridden.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Jitter:      250 * time.Millisecond,
		Retryable:   DefaultRetryable,
	}
}

// Option overrides part of the policy for a single execution.
type Option func(*Policy)

// WithMaxAttempts sets the number of retries after the first try.
func WithMaxAttempts(n int) Option {
	return func(p *Policy) { p.MaxAttempts = n }
}

// WithDelays sets base and max delay.
func WithDelays(base, max time.Duration) Option {
	return func(p *Policy) {
		p.BaseDelay = base
		p.MaxDelay = max
	}
}

// WithJitter sets the jitter ceiling.
func WithJitter(j time.Duration) Option {
	return func(p *Policy) { p.Jitter = j }
}

// WithRetryable replaces the retry predicate.
func WithRetryable(fn func(error) bool) Option {
	return func(p *Policy) { p.Retryable = fn }
}

// WithOnRetry installs a retry observer.
func WithOnRetry(fn func(attempt int, err error)) Option {
	return func(p *Policy) { p.OnRetry = fn }
}

// Executor runs operations under a base policy.
type Executor struct {
	policy Policy

	// test hooks
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(ceiling time.Duration) time.Duration
}

// New returns an executor whose base policy is p, with zero fields taken
// from DefaultPolicy. A negative MaxAttempts disables retries.
func New(p Policy) *Executor {
	def := DefaultPolicy()
	if p.MaxAttempts < 0 {
		p.MaxAttempts = 0
	} else if p.MaxAttempts == 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Retryable == nil {
		p.Retryable = def.Retryable
	}
	return &Executor{
		policy: p,
		sleep:  sleepContext,
		jitter: uniformJitter,
	}
}

// Do runs op until it succeeds, fails with a non-retryable error, or runs
// out of attempts.
//
// If ctx is cancelled while waiting between attempts, the last operation
// error is returned; ctx.Err() tells the caller why the loop stopped.
func (e *Executor) Do(ctx context.Context, op func(ctx context.Context) error, opts ...Option) error {
	p := e.policy
	for _, opt := range opts {
		opt(&p)
	}
	e.fillFromBase(&p)

	for attempt := 0; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if attempt >= p.MaxAttempts || !p.Retryable(err) {
			return err
		}

		delay := e.Backoff(p, attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err)
		}
		if e.sleep(ctx, delay) != nil {
			return err
		}
	}
}

// fillFromBase replaces unusable per-call overrides with the executor's
// own settings.
func (e *Executor) fillFromBase(p *Policy) {
	if p.MaxAttempts < 0 {
		p.MaxAttempts = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = e.policy.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = e.policy.MaxDelay
	}
	if p.Jitter < 0 {
		p.Jitter = e.policy.Jitter
	}
	if p.Retryable == nil {
		p.Retryable = e.policy.Retryable
	}
}

// Backoff returns the delay before retry number attempt+1:
// min(MaxDelay, BaseDelay*2^attempt + jitter).
func (e *Executor) Backoff(p Policy, attempt int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt && d < p.MaxDelay; i++ {
		d *= 2
	}
	d += e.jitter(p.Jitter)
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, e *Executor, op func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	var out T
	err := e.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	}, opts...)
	return out, err
}

// transient is implemented by errors that know they are worth retrying,
// such as transport-level network failures.
type transient interface {
	Transient() bool
}

// httpStatus is implemented by errors carrying an HTTP response status.
type httpStatus interface {
	HTTPStatus() int
}

// DefaultRetryable retries network failures, 5xx responses and 429, and
// nothing else. Client errors are not retried: the same request would fail
// the same way and may duplicate side effects.
func DefaultRetryable(err error) bool {
	var t transient
	if errors.As(err, &t) {
		return t.Transient()
	}

	var hs httpStatus
	if errors.As(err, &hs) {
		return RetryableStatus(hs.HTTPStatus())
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var ne net.Error
	return errors.As(err, &ne)
}

// RetryableStatus reports whether an HTTP status is worth retrying.
func RetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func uniformJitter(ceiling time.Duration) time.Duration {
	if ceiling <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(ceiling) + 1))
}
