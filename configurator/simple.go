package configurator

import (
	"log/slog"
	"reflect"

	"github.com/smnsjas/go-wspool/binding"
	"github.com/smnsjas/go-wspool/wirelog"
)

// Simple configures binding.Provider stubs for runtimes that honor only
// the endpoint address and socket factory. Timeouts and authentication
// are left to the runtime, and wire logging is not supported.
type Simple[T binding.Provider] struct {
	// Logger notes ignored wire logging requests. Nil means slog.Default().
	Logger *slog.Logger
}

// Configure writes the address and socket factory properties.
func (Simple[T]) Configure(stub T, p Params) (T, error) {
	if isNil(stub) {
		return stub, ErrNilStub
	}
	rc := stub.RequestContext()
	rc.Put(binding.EndpointAddress, p.Address)
	rc.Put(binding.SocketFactory, p.SocketFactory())
	return stub, nil
}

// AttachLogging does nothing beyond noting a non-nil sink.
func (s Simple[T]) AttachLogging(_ T, sink wirelog.Sink) error {
	if sink == nil {
		return nil
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("configurator: wire logging not supported by simple runtime")
	return nil
}

// Fixed leaves stubs unchanged. It serves transports whose configuration is
// fixed at build time.
type Fixed[T any] struct{}

// Configure returns stub unchanged.
func (Fixed[T]) Configure(stub T, _ Params) (T, error) {
	return stub, nil
}

// AttachLogging does nothing.
func (Fixed[T]) AttachLogging(T, wirelog.Sink) error {
	return nil
}

// isNil reports whether a provider stub is nil or a nil pointer.
func isNil(p binding.Provider) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
