package web

// limiter.go bounds concurrent lead writes.
//
// Writes take a slot from a semaphore. When every slot is held, a request
// waits up to maxWait and is then answered with 429 and Retry-After, which
// the client's retry executor treats as transient.

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"
)

// ErrBusy is returned when no write slot frees up within the wait limit.
var ErrBusy = errors.New("too many concurrent writes, please try again later")

const (
	DefaultMaxConcurrent = 8
	DefaultMaxWait       = 2 * time.Second
)

// Limiter controls concurrent request processing using a semaphore.
type Limiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewLimiter allows at most maxConcurrent requests at once. Requests that
// cannot get a slot within maxWait receive ErrBusy.
func NewLimiter(maxConcurrent int, maxWait time.Duration) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	return &Limiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire takes a slot. The caller must Release it.
func (l *Limiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-timer.C:
		return ErrBusy
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot taken by Acquire.
func (l *Limiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
	<-l.semaphore
}

// LimiterStatus is a snapshot for the health endpoint.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"maxConcurrent"`
}

func (l *Limiter) Status() LimiterStatus {
	l.mu.RLock()
	active := l.active
	l.mu.RUnlock()

	return LimiterStatus{
		Active:        active,
		Available:     cap(l.semaphore) - len(l.semaphore),
		MaxConcurrent: cap(l.semaphore),
	}
}

// Middleware wraps a handler so it runs inside a slot. onBusy, if set, is
// called for each request turned away.
func (l *Limiter) Middleware(onBusy func()) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := l.Acquire(r.Context()); err != nil {
				if errors.Is(err, ErrBusy) {
					if onBusy != nil {
						onBusy()
					}
					w.Header().Set("Retry-After", "1")
					writeError(w, r, http.StatusTooManyRequests, err.Error())
				}
				return
			}
			defer l.Release()
			next.ServeHTTP(w, r)
		})
	}
}
