package soap

import (
	"fmt"
	"sort"
	"sync"
)

// Phase orders interceptors within a chain. Lower phases run first.
type Phase int

// Outbound phases.
const (
	PhaseSetup Phase = iota * 10
	PhasePreStream
	PhaseWrite
)

// Inbound phases.
const (
	PhaseReceive Phase = 100 + iota*10
	PhaseRead
	PhasePostInvoke
)

// Tag identifies an interceptor for replacement. Two interceptors with equal
// tags are interchangeable: adding one replaces the other.
type Tag struct {
	Direction Direction
	Owner     string
}

// String returns a readable form, e.g. "wirelog/in".
func (t Tag) String() string {
	return t.Owner + "/" + t.Direction.String()
}

// Interceptor observes or modifies a message in a chain.
type Interceptor interface {
	Tag() Tag
	Phase() Phase
	HandleMessage(msg *Message) error
}

// Chain is an ordered set of interceptors, safe for concurrent use.
// Handling works on a snapshot, so the chain may change while messages
// are in flight.
type Chain struct {
	mu      sync.RWMutex
	entries []Interceptor
}

// Add inserts i in phase order, after existing interceptors of the same
// phase. An interceptor with an equal tag is removed first.
func (c *Chain) Add(i Interceptor) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeLocked(i.Tag())
	pos := sort.Search(len(c.entries), func(n int) bool {
		return c.entries[n].Phase() > i.Phase()
	})
	c.entries = append(c.entries, nil)
	copy(c.entries[pos+1:], c.entries[pos:])
	c.entries[pos] = i
}

// Remove deletes the interceptor tagged t. It reports whether one was found.
func (c *Chain) Remove(t Tag) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeLocked(t)
}

func (c *Chain) removeLocked(t Tag) bool {
	for n, e := range c.entries {
		if e.Tag() == t {
			c.entries = append(c.entries[:n], c.entries[n+1:]...)
			return true
		}
	}
	return false
}

// Get returns the interceptor tagged t.
func (c *Chain) Get(t Tag) (Interceptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.entries {
		if e.Tag() == t {
			return e, true
		}
	}
	return nil, false
}

// Len returns the number of interceptors.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Interceptors returns a copy of the chain in execution order.
func (c *Chain) Interceptors() []Interceptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Interceptor(nil), c.entries...)
}

// Handle runs msg through the chain, stopping at the first error.
func (c *Chain) Handle(msg *Message) error {
	for _, i := range c.Interceptors() {
		if err := i.HandleMessage(msg); err != nil {
			return fmt.Errorf("interceptor %s: %w", i.Tag(), err)
		}
	}
	return nil
}
