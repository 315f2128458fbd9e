package pool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/smnsjas/go-wspool/config"
	"github.com/smnsjas/go-wspool/configurator"
	"github.com/smnsjas/go-wspool/soap"
	"github.com/smnsjas/go-wspool/wirelog"
)

// DefaultName is used when the configuration names no pool.
const DefaultName = "default"

// Option configures a Pool.
type Option func(*options)

type options struct {
	logger        *slog.Logger
	clock         Clock
	evictInterval time.Duration
	clientOpts    []soap.Option
}

// WithLogger sets the logger for pool events. Nil disables them.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock sets the clock used for idle times.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithEvictionInterval sets how often idle stubs are checked against
// pool.max-idle-time. Zero derives the interval from the idle time; a
// negative value disables background eviction.
func WithEvictionInterval(d time.Duration) Option {
	return func(o *options) { o.evictInterval = d }
}

// WithClientOptions sets options for the clients created by NewSOAP and
// NewPorts. Other constructors ignore them.
func WithClientOptions(opts ...soap.Option) Option {
	return func(o *options) { o.clientOpts = append(o.clientOpts, opts...) }
}

func applyOptions(opts []Option) options {
	o := options{logger: slog.Default(), clock: realClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Name       string
	Size       int
	Idle       int
	Borrowed   int
	Waiting    int
	Created    uint64
	Destroyed  uint64
	Borrows    uint64
	Timeouts   uint64
	Generation uint64
}

type entry[T comparable] struct {
	stub      T
	info      StubInfo
	idleSince time.Time
	logged    bool
}

// Pool lends configured stubs to callers, at most Size at a time.
//
// Returned stubs are reused most-recently-returned first. Reconfigure swaps
// the factory configuration and discards idle stubs; stubs borrowed at that
// moment keep their old configuration and are discarded when returned.
type Pool[T comparable] struct {
	name    string
	factory *Factory[T]
	sem     *semaphore
	clock   Clock
	events  *EventLogger
	logger  *slog.Logger

	// reconfigMu is held exclusively by Reconfigure and shared by stub
	// construction, so no stub is built across a configuration swap.
	reconfigMu sync.RWMutex

	mu       sync.Mutex
	idle     []*entry[T]
	borrowed map[T]*entry[T]
	closed   bool
	maxWait  time.Duration
	maxIdle  time.Duration

	created   uint64
	destroyed uint64
	borrows   uint64
	timeouts  uint64

	stopEvict chan struct{}
	evictDone chan struct{}
}

// New returns a pool building stubs with create and configuring them with
// conf. cfg is validated and its transport context built before New
// returns.
func New[T comparable](create Creator[T], conf configurator.Configurator[T], cfg config.Client, opts ...Option) (*Pool[T], error) {
	o := applyOptions(opts)

	name := cfg.Pool.Name
	if name == "" {
		name = DefaultName
	}
	events := NewEventLogger(o.logger, name)
	events.clock = o.clock

	factory, err := NewFactory(create, conf, cfg, events)
	if err != nil {
		return nil, err
	}

	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := &Pool[T]{
		name:     name,
		factory:  factory,
		sem:      newSemaphore(cfg.Pool.Size),
		clock:    o.clock,
		events:   events,
		logger:   logger.With("pool", name),
		borrowed: make(map[T]*entry[T]),
		maxWait:  cfg.Pool.MaxWait.Std(),
		maxIdle:  cfg.Pool.MaxIdleTime.Std(),
	}
	p.startEvictor(o.evictInterval)
	return p, nil
}

// Name returns the pool name.
func (p *Pool[T]) Name() string {
	return p.name
}

// Factory returns the stub factory.
func (p *Pool[T]) Factory() *Factory[T] {
	return p.factory
}

// Borrow lends a stub, reusing an idle one when possible. When Size stubs
// are already lent it waits up to pool.max-wait, then fails with
// ErrPoolExhausted.
func (p *Pool[T]) Borrow(ctx context.Context) (T, error) {
	var zero T

	p.mu.Lock()
	closed, wait := p.closed, p.maxWait
	p.mu.Unlock()
	if closed {
		return zero, ErrPoolClosed
	}

	if err := p.sem.Acquire(ctx, wait); err != nil {
		switch {
		case errors.Is(err, errSemaphoreClosed):
			return zero, ErrPoolClosed
		case errors.Is(err, errAcquireTimeout):
			p.mu.Lock()
			p.timeouts++
			p.mu.Unlock()
			inUse, waiting, size := p.sem.Stats()
			p.events.Log(EventExhausted, SeverityWarning, OutcomeFailure, "", p.factory.Generation(), map[string]any{
				"in_use": inUse, "waiting": waiting, "size": size, "wait": wait.String(),
			})
			return zero, fmt.Errorf("%w: %d of %d stubs in use after %s", ErrPoolExhausted, inUse, size, wait)
		}
		return zero, err
	}

	stub, err := p.take()
	if err != nil {
		p.sem.Release()
		return zero, err
	}
	return stub, nil
}

// BorrowWithLogging lends a stub with its wire traffic routed to sink. The
// sink is detached when the stub is returned.
func (p *Pool[T]) BorrowWithLogging(ctx context.Context, sink wirelog.Sink) (T, error) {
	stub, err := p.Borrow(ctx)
	if err != nil {
		return stub, err
	}
	if err := p.factory.Configurator().AttachLogging(stub, sink); err != nil {
		if rerr := p.Return(stub); rerr != nil {
			p.logger.Error("pool: return after failed attach", "error", rerr)
		}
		var zero T
		return zero, fmt.Errorf("pool: attach logging: %w", err)
	}

	p.mu.Lock()
	e := p.borrowed[stub]
	if e != nil {
		e.logged = true
	}
	p.mu.Unlock()
	p.events.Log(EventLoggingAttach, SeverityDebug, OutcomeSuccess, "", p.factory.Generation(), nil)
	return stub, nil
}

// take pops a reusable idle stub or builds a new one. The caller holds a
// semaphore token.
func (p *Pool[T]) take() (T, error) {
	var zero T

	p.reconfigMu.RLock()
	defer p.reconfigMu.RUnlock()

	gen := p.factory.Generation()
	now := p.clock.Now()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return zero, ErrPoolClosed
	}
	var stale []*entry[T]
	var reused *entry[T]
	for len(p.idle) > 0 {
		e := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		if e.info.Generation != gen || p.expiredLocked(e, now) {
			stale = append(stale, e)
			continue
		}
		reused = e
		break
	}
	if reused != nil {
		p.borrowed[reused.stub] = reused
		p.borrows++
	}
	p.mu.Unlock()

	p.destroy(stale, EventStubDiscarded)
	if reused != nil {
		p.events.Log(EventStubBorrowed, SeverityDebug, OutcomeSuccess, reused.info.Address, gen,
			map[string]any{"reused": true})
		return reused.stub, nil
	}

	stub, info, err := p.factory.Build()
	if err != nil {
		p.events.Log(EventBuildFailed, SeverityError, OutcomeFailure, "", gen, map[string]any{"error": err.Error()})
		return zero, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.destroy([]*entry[T]{{stub: stub, info: info}}, EventStubDiscarded)
		return zero, ErrPoolClosed
	}
	if _, dup := p.borrowed[stub]; dup {
		p.mu.Unlock()
		return zero, fmt.Errorf("%w: creator returned a stub that is already lent", ErrIllegalState)
	}
	p.borrowed[stub] = &entry[T]{stub: stub, info: info}
	p.created++
	p.borrows++
	p.mu.Unlock()

	p.events.Log(EventStubCreated, SeverityInfo, OutcomeSuccess, info.Address, info.Generation,
		map[string]any{"protocol_version": string(info.ProtocolVersion)})
	return stub, nil
}

func (p *Pool[T]) expiredLocked(e *entry[T], now time.Time) bool {
	return p.maxIdle > 0 && now.Sub(e.idleSince) > p.maxIdle
}

// Return gives a borrowed stub back. Stubs built under an earlier
// configuration, or returned after Shutdown, are discarded. A stub the pool
// did not lend yields ErrIllegalState.
func (p *Pool[T]) Return(stub T) error {
	p.mu.Lock()
	e, ok := p.borrowed[stub]
	if ok {
		delete(p.borrowed, stub)
	}
	p.mu.Unlock()
	if !ok {
		p.events.Log(EventUnknownReturn, SeverityWarning, OutcomeFailure, "", p.factory.Generation(), nil)
		return fmt.Errorf("%w: stub was not borrowed from pool %q", ErrIllegalState, p.name)
	}

	if e.logged {
		if err := p.factory.Configurator().AttachLogging(stub, nil); err != nil {
			p.logger.Warn("pool: detach logging failed", "error", err)
		}
		e.logged = false
	}

	gen := p.factory.Generation()
	p.mu.Lock()
	discard := p.closed || e.info.Generation != gen
	if !discard {
		e.idleSince = p.clock.Now()
		p.idle = append(p.idle, e)
	}
	p.mu.Unlock()
	p.sem.Release()

	if discard {
		p.destroy([]*entry[T]{e}, EventStubDiscarded)
		return nil
	}
	p.events.Log(EventStubReturned, SeverityDebug, OutcomeSuccess, e.info.Address, gen, nil)
	return nil
}

// Do borrows a stub, runs fn with it and returns it, also when fn panics.
func (p *Pool[T]) Do(ctx context.Context, fn func(T) error) error {
	stub, err := p.Borrow(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := p.Return(stub); rerr != nil {
			p.logger.Error("pool: return after Do failed", "error", rerr)
		}
	}()
	return fn(stub)
}

// Info returns the configuration a borrowed stub was built with.
func (p *Pool[T]) Info(stub T) (StubInfo, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.borrowed[stub]
	if !ok {
		return StubInfo{}, false
	}
	return e.info, true
}

// Clear discards idle stubs. Borrowed stubs are not affected.
func (p *Pool[T]) Clear() {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	p.destroy(idle, EventStubDiscarded)
	p.events.Log(EventCleared, SeverityInfo, OutcomeSuccess, "", p.factory.Generation(),
		map[string]any{"discarded": len(idle)})
}

// EvictIdle discards idle stubs unused for longer than pool.max-idle-time
// and returns how many were discarded.
func (p *Pool[T]) EvictIdle() int {
	now := p.clock.Now()

	p.mu.Lock()
	var expired []*entry[T]
	kept := p.idle[:0]
	for _, e := range p.idle {
		if p.expiredLocked(e, now) {
			expired = append(expired, e)
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(p.idle); i++ {
		p.idle[i] = nil
	}
	p.idle = kept
	p.mu.Unlock()

	p.destroy(expired, EventEvictedIdle)
	return len(expired)
}

// Reconfigure applies cfg: the factory is reconfigured and idle stubs are
// discarded in one step that new borrows wait for. Stubs already lent keep
// their configuration until returned. On error the previous configuration
// stays active and idle stubs are kept.
func (p *Pool[T]) Reconfigure(cfg config.Client) error {
	p.reconfigMu.Lock()
	defer p.reconfigMu.Unlock()

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrPoolClosed
	}

	if err := p.factory.Reconfigure(cfg); err != nil {
		p.events.Log(EventReconfigured, SeverityError, OutcomeFailure, cfg.EndpointURL, p.factory.Generation(),
			map[string]any{"error": err.Error()})
		return err
	}

	p.mu.Lock()
	p.maxWait = cfg.Pool.MaxWait.Std()
	p.maxIdle = cfg.Pool.MaxIdleTime.Std()
	p.mu.Unlock()
	p.Clear()

	if _, _, size := p.sem.Stats(); cfg.Pool.Size != size {
		p.logger.Warn("pool: size change takes effect on a new pool", "configured", cfg.Pool.Size, "size", size)
	}
	p.events.Log(EventReconfigured, SeverityInfo, OutcomeSuccess, cfg.EndpointURL, p.factory.Generation(), nil)
	return nil
}

// Shutdown discards idle stubs and closes the pool. Waiting and later
// borrows fail with ErrPoolClosed; stubs still lent are discarded when
// returned. A second Shutdown yields ErrIllegalState.
func (p *Pool[T]) Shutdown() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("%w: pool %q already shut down", ErrIllegalState, p.name)
	}
	p.closed = true
	borrowed := len(p.borrowed)
	p.mu.Unlock()

	p.sem.Close()
	p.stopEvictor()
	p.Clear()
	p.events.Log(EventShutdown, SeverityInfo, OutcomeSuccess, "", p.factory.Generation(),
		map[string]any{"still_borrowed": borrowed})
	return nil
}

// Stats returns a snapshot of the pool counters.
func (p *Pool[T]) Stats() Stats {
	_, waiting, size := p.sem.Stats()
	gen := p.factory.Generation()

	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Name:       p.name,
		Size:       size,
		Idle:       len(p.idle),
		Borrowed:   len(p.borrowed),
		Waiting:    waiting,
		Created:    p.created,
		Destroyed:  p.destroyed,
		Borrows:    p.borrows,
		Timeouts:   p.timeouts,
		Generation: gen,
	}
}

// destroy closes stubs that implement io.Closer.
func (p *Pool[T]) destroy(entries []*entry[T], eventType string) {
	if len(entries) == 0 {
		return
	}
	p.mu.Lock()
	p.destroyed += uint64(len(entries))
	p.mu.Unlock()

	for _, e := range entries {
		if c, ok := any(e.stub).(io.Closer); ok {
			if err := c.Close(); err != nil {
				p.events.Log(EventCloseStubError, SeverityWarning, OutcomeFailure, e.info.Address, e.info.Generation,
					map[string]any{"error": err.Error()})
			}
		}
		p.events.Log(eventType, SeverityDebug, OutcomeSuccess, e.info.Address, e.info.Generation, nil)
	}
}

func (p *Pool[T]) startEvictor(interval time.Duration) {
	if p.maxIdle <= 0 || interval < 0 {
		return
	}
	if interval == 0 {
		interval = max(p.maxIdle/2, time.Second)
	}
	p.stopEvict = make(chan struct{})
	p.evictDone = make(chan struct{})
	go func() {
		defer close(p.evictDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.EvictIdle()
			case <-p.stopEvict:
				return
			}
		}
	}()
}

func (p *Pool[T]) stopEvictor() {
	if p.stopEvict == nil {
		return
	}
	close(p.stopEvict)
	<-p.evictDone
}
