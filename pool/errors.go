package pool

import "errors"

var (
	// ErrPoolExhausted is returned when no stub became free within the
	// borrow wait. Callers may retry or back off.
	ErrPoolExhausted = errors.New("pool: no stub available")

	// ErrPoolClosed is returned by operations on a shut down pool.
	ErrPoolClosed = errors.New("pool: closed")

	// ErrIllegalState is returned for misuse: returning a stub the pool did
	// not lend, or shutting down twice.
	ErrIllegalState = errors.New("pool: illegal state")
)
