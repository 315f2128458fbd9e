package soap

import (
	"io"
	"net/http"
	"sync"
)

// Direction is the path a message travels.
type Direction int

const (
	// Outbound messages are being sent.
	Outbound Direction = iota

	// Inbound messages have been received.
	Inbound
)

// String returns "out" or "in".
func (d Direction) String() string {
	if d == Inbound {
		return "in"
	}
	return "out"
}

// Exchange groups the request and response messages of one invocation.
// Its properties are shared by both messages.
type Exchange struct {
	mu    sync.Mutex
	props map[string]any

	Out *Message
	In  *Message
}

// NewExchange returns an empty exchange.
func NewExchange() *Exchange {
	return &Exchange{props: make(map[string]any)}
}

// Get returns the exchange property stored under key.
func (e *Exchange) Get(key string) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.props[key]
	return v, ok
}

// Set stores an exchange property.
func (e *Exchange) Set(key string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.props[key] = value
}

// Message is one direction of an exchange as seen by interceptors.
//
// Interceptors may replace Out or In with wrapping streams. A replaced
// stream must write or read through to the original.
type Message struct {
	Exchange  *Exchange
	Direction Direction

	// Address is the endpoint URL.
	Address string

	// Operation is the local name of the invoked operation, if known.
	Operation string

	// Header holds the HTTP headers sent or received.
	Header http.Header

	// StatusCode is the HTTP status of an inbound message.
	StatusCode int

	// Out is the destination of an outbound message's encoded envelope.
	Out io.WriteCloser

	// In is the source of an inbound message's envelope.
	In io.Reader

	props map[string]any
}

// Get returns the message property stored under key.
func (m *Message) Get(key string) (any, bool) {
	v, ok := m.props[key]
	return v, ok
}

// Set stores a message property.
func (m *Message) Set(key string, value any) {
	if m.props == nil {
		m.props = make(map[string]any)
	}
	m.props[key] = value
}

// Has reports whether a message property is present.
func (m *Message) Has(key string) bool {
	_, ok := m.props[key]
	return ok
}
