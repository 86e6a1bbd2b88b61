package core

// limiter.go bounds how many spreadsheets are validated at once.
//
// Each validation holds a whole workbook in memory, so the HTTP layer takes a
// slot before decoding and gives it back when the response is written. When
// every slot is taken, callers wait up to maxWait and then get
// ErrTooManyValidations. WaitForDrain lets shutdown wait for in-flight work.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrTooManyValidations is returned when no slot frees up within the wait time.
var ErrTooManyValidations = errors.New("too many validations in progress, please try again later")

const (
	// DefaultMaxConcurrent is used when NewLimiter gets a non-positive limit.
	DefaultMaxConcurrent = 5

	// DefaultMaxWait is used when NewLimiter gets a non-positive wait.
	DefaultMaxWait = 30 * time.Second
)

// Limiter is a counting semaphore with a bounded wait.
type Limiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int32
}

// NewLimiter allows at most maxConcurrent holders at a time.
func NewLimiter(maxConcurrent int, maxWait time.Duration) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	return &Limiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot, waiting at most maxWait. The caller must Release it.
// A cancelled ctx returns ctx.Err(); an expired wait returns ErrTooManyValidations.
func (l *Limiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyValidations
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *Limiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return true
	default:
		return false
	}
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *Limiter) Release() {
	l.active.Add(-1)
	<-l.slots
}

// ActiveCount returns the number of slots in use.
func (l *Limiter) ActiveCount() int {
	return int(l.active.Load())
}

// MaxConcurrent returns the configured limit.
func (l *Limiter) MaxConcurrent() int {
	return cap(l.slots)
}

// WaitForDrain blocks until no slot is in use or ctx is done.
func (l *Limiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// LimiterStatus is a snapshot for the health endpoint.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state.
func (l *Limiter) Status() LimiterStatus {
	return LimiterStatus{
		Active:        l.ActiveCount(),
		Available:     cap(l.slots) - len(l.slots),
		MaxConcurrent: cap(l.slots),
	}
}
