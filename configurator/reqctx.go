package configurator

import (
	"log/slog"

	"github.com/smnsjas/go-wspool/binding"
	"github.com/smnsjas/go-wspool/wirelog"
)

// RequestContext configures binding.Provider stubs through request context
// properties. Wire loggers are installed on the binding's handler chains.
type RequestContext[T binding.Provider] struct {
	// Logger reports wire log sink failures. Nil means slog.Default().
	Logger *slog.Logger
}

// Configure writes the address, socket factory, host verification,
// timeouts, version and authenticator properties.
func (r RequestContext[T]) Configure(stub T, p Params) (T, error) {
	if isNil(stub) {
		return stub, ErrNilStub
	}
	rc := stub.RequestContext()
	rc.Put(binding.EndpointAddress, p.Address)
	rc.Put(binding.SocketFactory, p.SocketFactory())
	rc.Put(binding.VerifyHost, p.ChecksHost())
	rc.Put(binding.ConnectTimeout, p.ConnectTimeout)
	rc.Put(binding.RequestTimeout, p.ReadTimeout)
	if p.ProtocolVersion != "" {
		rc.Put(binding.ProtocolVersion, p.ProtocolVersion)
	}
	if p.Authenticator != nil {
		rc.Put(binding.Authenticator, p.Authenticator)
	} else {
		rc.Delete(binding.Authenticator)
	}
	return stub, nil
}

// AttachLogging installs wire loggers on the binding's handler chains,
// replacing any installed before.
func (r RequestContext[T]) AttachLogging(stub T, sink wirelog.Sink) error {
	if isNil(stub) {
		return ErrNilStub
	}
	b := stub.Binding()
	wirelog.Uninstall(b.InHandlers(), b.OutHandlers())
	if sink == nil {
		return nil
	}
	wirelog.Install(b.InHandlers(), b.OutHandlers(), sink, wirelog.WithLogger(r.Logger))
	return nil
}
