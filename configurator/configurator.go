// Package configurator applies connection policy to stubs of different SOAP
// runtimes through one interface.
//
// Each runtime reaches its settings differently: Interceptor configures a
// *soap.Client directly and installs wire loggers on its interceptor
// chains, RequestContext and Simple write request context properties of a
// binding.Provider, and Fixed leaves stubs with compile-time configuration
// untouched. A pool selects one configurator when it is built; call sites
// never branch on the runtime.
package configurator

import (
	"errors"
	"time"

	"github.com/smnsjas/go-wspool/soap"
	"github.com/smnsjas/go-wspool/soap/auth"
	"github.com/smnsjas/go-wspool/trust"
	"github.com/smnsjas/go-wspool/wirelog"
)

// ErrNilStub is returned when a configurator is given a nil stub.
var ErrNilStub = errors.New("configurator: nil stub")

// Params is the connection policy applied to one stub.
type Params struct {
	// Address is the endpoint URL. It is always applied.
	Address string

	// ConnectTimeout bounds connect plus TLS handshake.
	ConnectTimeout time.Duration

	// ReadTimeout bounds the wait for a response.
	ReadTimeout time.Duration

	// Transport is the secure transport context. Nil means the platform
	// default socket factory.
	Transport *trust.Context

	// VerifyHost enables host name verification for Transport. Without a
	// Transport the platform default always verifies host names.
	VerifyHost bool

	// ProtocolVersion selects SOAP 1.1 or 1.2. Empty keeps the stub's own.
	ProtocolVersion soap.Version

	// Authenticator adds HTTP authentication. Nil disables it.
	Authenticator auth.Authenticator
}

// ChecksHost reports whether host names are verified. Only an explicit
// Transport can turn the check off.
func (p Params) ChecksHost() bool {
	return p.Transport == nil || p.VerifyHost
}

// SocketFactory returns the socket factory derived from p.Transport, or the
// platform default. It never returns nil.
func (p Params) SocketFactory() *trust.SocketFactory {
	if p.Transport == nil {
		return trust.DefaultSocketFactory()
	}
	return p.Transport.SocketFactory().WithHostVerification(p.VerifyHost)
}

// Configurator applies Params to stubs of type T and attaches wire logging.
// Implementations must be safe for concurrent use on distinct stubs.
type Configurator[T any] interface {
	// Configure applies p to stub and returns the configured stub.
	Configure(stub T, p Params) (T, error)

	// AttachLogging routes stub's wire traffic to sink. Attaching again
	// replaces the previous sink.
	AttachLogging(stub T, sink wirelog.Sink) error
}
