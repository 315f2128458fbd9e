package soap

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/smnsjas/go-wspool/soap/auth"
	"github.com/smnsjas/go-wspool/soap/transport"
	"github.com/smnsjas/go-wspool/trust"
)

// ConnectionType controls connection reuse.
type ConnectionType int

const (
	// KeepAlive reuses connections between invocations.
	KeepAlive ConnectionType = iota

	// CloseConnection opens a new connection per invocation.
	CloseConnection
)

// ClientPolicy holds connection-level settings.
type ClientPolicy struct {
	// ConnectionTimeout bounds connect plus TLS handshake. Zero means no limit.
	ConnectionTimeout time.Duration

	// ReceiveTimeout bounds the wait for the response. Zero means no limit.
	ReceiveTimeout time.Duration

	// Connection selects connection reuse.
	Connection ConnectionType
}

// TLSClientParameters holds the TLS settings of a conduit.
type TLSClientParameters struct {
	// SocketFactory dials HTTPS connections. Nil means the platform default.
	SocketFactory *trust.SocketFactory

	// DisableCNCheck turns off host name verification.
	DisableCNCheck bool
}

// Conduit sends encoded messages over HTTP. Settings are applied to the next
// request; changing them drops the cached transport.
type Conduit struct {
	mu        sync.Mutex
	policy    ClientPolicy
	tls       *TLSClientParameters
	auth      auth.Authenticator
	transport *transport.HTTPTransport
}

// Policy returns the client policy.
func (c *Conduit) Policy() ClientPolicy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policy
}

// SetPolicy replaces the client policy.
func (c *Conduit) SetPolicy(p ClientPolicy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.policy = p
	c.resetLocked()
}

// TLSClientParameters returns a copy of the TLS parameters, or nil.
func (c *Conduit) TLSClientParameters() *TLSClientParameters {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tls == nil {
		return nil
	}
	p := *c.tls
	return &p
}

// SetTLSClientParameters replaces the TLS parameters.
func (c *Conduit) SetTLSClientParameters(p *TLSClientParameters) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p != nil {
		cp := *p
		p = &cp
	}
	c.tls = p
	c.resetLocked()
}

// Authenticator returns the HTTP authenticator, or nil.
func (c *Conduit) Authenticator() auth.Authenticator {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.auth
}

// SetAuthenticator replaces the HTTP authenticator. Nil disables
// authentication.
func (c *Conduit) SetAuthenticator(a auth.Authenticator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auth = a
	c.resetLocked()
}

func (c *Conduit) resetLocked() {
	if c.transport != nil {
		c.transport.CloseIdleConnections()
		c.transport = nil
	}
}

// httpTransport returns the cached transport, building it if needed.
func (c *Conduit) httpTransport() *transport.HTTPTransport {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport != nil {
		return c.transport
	}

	sf := trust.DefaultSocketFactory()
	verifyHost := true
	if c.tls != nil {
		if c.tls.SocketFactory != nil {
			sf = c.tls.SocketFactory
		}
		verifyHost = !c.tls.DisableCNCheck
	}
	sf = sf.WithHostVerification(verifyHost)

	tr := transport.NewHTTPTransport(
		transport.WithConnectTimeout(c.policy.ConnectionTimeout),
		transport.WithResponseHeaderTimeout(c.policy.ReceiveTimeout),
		transport.WithKeepAlive(c.policy.Connection == KeepAlive),
		transport.WithTLSConfig(sf.TLSConfig()),
		transport.WithTLSDialer(sf.DialContext),
	)
	if c.auth != nil {
		tr.Client().Transport = c.auth.Transport(tr.Client().Transport)
	}
	c.transport = tr
	return tr
}

// Send posts body to address. The caller must close the response body.
func (c *Conduit) Send(ctx context.Context, address string, header http.Header, body []byte) (*http.Response, error) {
	return c.httpTransport().Post(ctx, address, header, body)
}

// Close releases idle connections and an authenticator that holds
// credentials, such as a Kerberos context.
func (c *Conduit) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	if closer, ok := c.auth.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
