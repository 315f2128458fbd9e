package configurator

import (
	"log/slog"

	"github.com/smnsjas/go-wspool/soap"
	"github.com/smnsjas/go-wspool/wirelog"
)

// Interceptor configures *soap.Client stubs through their conduit and
// interceptor chains.
type Interceptor struct {
	// Logger reports wire log sink failures. Nil means slog.Default().
	Logger *slog.Logger
}

var _ Configurator[*soap.Client] = Interceptor{}

// Configure sets the address, version and conduit policy of c.
func (i Interceptor) Configure(c *soap.Client, p Params) (*soap.Client, error) {
	if c == nil {
		return nil, ErrNilStub
	}
	c.SetAddress(p.Address)
	if p.ProtocolVersion != "" {
		c.SetVersion(p.ProtocolVersion)
	}

	conduit := c.Conduit()
	conduit.SetPolicy(soap.ClientPolicy{
		ConnectionTimeout: p.ConnectTimeout,
		ReceiveTimeout:    p.ReadTimeout,
		Connection:        soap.KeepAlive,
	})
	conduit.SetTLSClientParameters(&soap.TLSClientParameters{
		SocketFactory:  p.SocketFactory(),
		DisableCNCheck: !p.ChecksHost(),
	})
	conduit.SetAuthenticator(p.Authenticator)
	return c, nil
}

// AttachLogging installs wire loggers on both chains of c, replacing any
// installed before.
func (i Interceptor) AttachLogging(c *soap.Client, sink wirelog.Sink) error {
	if c == nil {
		return ErrNilStub
	}
	wirelog.Uninstall(c.InInterceptors(), c.OutInterceptors())
	if sink == nil {
		return nil
	}
	wirelog.Install(c.InInterceptors(), c.OutInterceptors(), sink, wirelog.WithLogger(i.Logger))
	return nil
}
