package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	errAcquireTimeout  = errors.New("pool: timeout waiting for a stub")
	errSemaphoreClosed = errors.New("pool: semaphore closed")
)

// semaphore bounds the number of borrowed stubs. Each token is one stub
// lent to a caller.
type semaphore struct {
	tokens  chan struct{}
	waiting atomic.Int32

	done      chan struct{}
	closeOnce sync.Once
}

func newSemaphore(size int) *semaphore {
	if size < 1 {
		size = 1
	}
	return &semaphore{
		tokens: make(chan struct{}, size),
		done:   make(chan struct{}),
	}
}

// Acquire takes a token, waiting at most timeout. A non-positive timeout
// does not wait.
func (s *semaphore) Acquire(ctx context.Context, timeout time.Duration) error {
	select {
	case <-s.done:
		return errSemaphoreClosed
	default:
	}

	// Fast path: a free token.
	select {
	case s.tokens <- struct{}{}:
		return nil
	default:
	}
	if timeout <= 0 {
		return errAcquireTimeout
	}

	s.waiting.Add(1)
	defer s.waiting.Add(-1)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case s.tokens <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errAcquireTimeout
	case <-s.done:
		return errSemaphoreClosed
	}
}

// Release returns a token. It must follow a successful Acquire.
func (s *semaphore) Release() {
	select {
	case <-s.tokens:
	default:
	}
}

// Close wakes all waiters with errSemaphoreClosed. Tokens held by callers
// may still be released.
func (s *semaphore) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Stats returns tokens in use, waiters and capacity.
func (s *semaphore) Stats() (inUse, waiting, size int) {
	return len(s.tokens), int(s.waiting.Load()), cap(s.tokens)
}
