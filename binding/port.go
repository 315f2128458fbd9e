package binding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/smnsjas/go-wspool/soap"
	"github.com/smnsjas/go-wspool/soap/auth"
	"github.com/smnsjas/go-wspool/trust"
)

// ErrInvalidProperty is returned by Call when a request context property
// holds a value of the wrong type.
var ErrInvalidProperty = errors.New("binding: invalid request context property")

// Provider is implemented by stubs configured through a request context.
type Provider interface {
	RequestContext() *RequestContext
	Binding() *Binding
}

// Binding exposes the handler chains of a port.
type Binding struct {
	client *soap.Client
}

// InHandlers returns the chain run over each response.
func (b *Binding) InHandlers() *soap.Chain {
	return b.client.InInterceptors()
}

// OutHandlers returns the chain run over each request.
func (b *Binding) OutHandlers() *soap.Chain {
	return b.client.OutInterceptors()
}

// Port is a SOAP stub driven by its request context.
type Port struct {
	reqCtx  *RequestContext
	client  *soap.Client
	binding Binding

	mu      sync.Mutex
	applied uint64
	synced  bool
}

// NewPort creates a port. opts configure the underlying client; the
// endpoint address and connection settings come from the request context.
func NewPort(opts ...soap.Option) *Port {
	c := soap.NewClient(opts...)
	return &Port{
		reqCtx:  newRequestContext(),
		client:  c,
		binding: Binding{client: c},
	}
}

// RequestContext implements Provider.
func (p *Port) RequestContext() *RequestContext {
	return p.reqCtx
}

// Binding implements Provider.
func (p *Port) Binding() *Binding {
	return &p.binding
}

// Call applies the request context if it changed and invokes operation.
func (p *Port) Call(ctx context.Context, operation string, payload []byte) ([]byte, error) {
	if err := p.sync(); err != nil {
		return nil, err
	}
	return p.client.Invoke(ctx, operation, payload)
}

// Close releases idle connections.
func (p *Port) Close() error {
	return p.client.Close()
}

// sync pushes the request context into the client. Conduit settings are
// only replaced when the context changed, so connections stay cached.
func (p *Port) sync() error {
	props, rev := p.reqCtx.snapshot()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.synced && rev == p.applied {
		return nil
	}

	address, err := lookup[string](props, EndpointAddress)
	if err != nil {
		return err
	}
	version, err := lookup[soap.Version](props, ProtocolVersion)
	if err != nil {
		return err
	}
	sf, err := lookup[*trust.SocketFactory](props, SocketFactory)
	if err != nil {
		return err
	}
	verify := sf == nil || sf.VerifiesHost()
	if _, ok := props[VerifyHost]; ok {
		if verify, err = lookup[bool](props, VerifyHost); err != nil {
			return err
		}
	}
	connect, err := lookup[time.Duration](props, ConnectTimeout)
	if err != nil {
		return err
	}
	receive, err := lookup[time.Duration](props, RequestTimeout)
	if err != nil {
		return err
	}
	authenticator, err := lookup[auth.Authenticator](props, Authenticator)
	if err != nil {
		return err
	}

	p.client.SetAddress(address)
	if version != "" {
		p.client.SetVersion(version)
	}
	conduit := p.client.Conduit()
	conduit.SetPolicy(soap.ClientPolicy{ConnectionTimeout: connect, ReceiveTimeout: receive})
	conduit.SetTLSClientParameters(&soap.TLSClientParameters{SocketFactory: sf, DisableCNCheck: !verify})
	conduit.SetAuthenticator(authenticator)

	p.applied = rev
	p.synced = true
	return nil
}

// lookup returns the typed value of key, or the zero value when absent.
func lookup[V any](props map[string]any, key string) (V, error) {
	var zero V
	raw, ok := props[key]
	if !ok || raw == nil {
		return zero, nil
	}
	v, ok := raw.(V)
	if !ok {
		return zero, fmt.Errorf("%w: %s holds %T, want %T", ErrInvalidProperty, key, raw, zero)
	}
	return v, nil
}
