package binding

import (
	"sort"
	"sync"
)

// Request context property keys.
const (
	// EndpointAddress holds the endpoint URL (string).
	EndpointAddress = "binding.endpoint.address"

	// SocketFactory holds the TLS socket factory (*trust.SocketFactory).
	// Absent means the platform default.
	SocketFactory = "binding.tls.socket-factory"

	// VerifyHost holds whether host names are verified (bool). Absent
	// means the socket factory's own setting, or true without one.
	VerifyHost = "binding.tls.verify-host"

	// ConnectTimeout bounds connect plus TLS handshake (time.Duration).
	ConnectTimeout = "binding.connect.timeout"

	// RequestTimeout bounds the wait for a response (time.Duration).
	RequestTimeout = "binding.request.timeout"

	// Authenticator holds the HTTP authenticator (auth.Authenticator).
	Authenticator = "binding.http.authenticator"

	// ProtocolVersion holds the SOAP version (soap.Version).
	ProtocolVersion = "binding.soap.version"
)

// RequestContext is a property map applied to a port on its next call. It
// is safe for concurrent use.
type RequestContext struct {
	mu    sync.RWMutex
	props map[string]any
	rev   uint64
}

func newRequestContext() *RequestContext {
	return &RequestContext{props: make(map[string]any)}
}

// Put stores value under key.
func (c *RequestContext) Put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.props[key] = value
	c.rev++
}

// Get returns the value stored under key.
func (c *RequestContext) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.props[key]
	return v, ok
}

// Delete removes key.
func (c *RequestContext) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.props[key]; ok {
		delete(c.props, key)
		c.rev++
	}
}

// Keys returns the stored keys in order.
func (c *RequestContext) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.props))
	for k := range c.props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// snapshot returns a copy of the properties and their revision.
func (c *RequestContext) snapshot() (map[string]any, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	props := make(map[string]any, len(c.props))
	for k, v := range c.props {
		props[k] = v
	}
	return props, c.rev
}
