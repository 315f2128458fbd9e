package trust

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
)

// Context is a secure-transport context: the key and trust managers of one
// Policy. It is immutable; a new Policy means a new Context.
type Context struct {
	keys  KeyManager
	trust TrustManager
}

// Build creates a Context from p. It returns (nil, nil) for a disabled
// policy. All failures match ErrTrustConfiguration.
func Build(p Policy) (*Context, error) {
	if !p.Enabled {
		return nil, nil
	}

	var keys KeyManager
	if p.KeyStorePath != "" {
		store, err := LoadStore(p.KeyStorePath, p.KeyStorePassword)
		if err != nil {
			return nil, &ConfigurationError{Op: "load key store", Path: p.KeyStorePath, Err: err}
		}
		keys, err = NewKeyManager(store)
		if err != nil {
			return nil, &ConfigurationError{Op: "init key manager", Path: p.KeyStorePath, Err: err}
		}
		if p.ForcedAlias != "" {
			if keys.Certificate(p.ForcedAlias) == nil {
				return nil, &ConfigurationError{
					Op:   "init key manager",
					Path: p.KeyStorePath,
					Err:  fmt.Errorf("forced alias %q not found", p.ForcedAlias),
				}
			}
			keys = ForceAlias(keys, p.ForcedAlias)
		}
	} else if p.ForcedAlias != "" {
		return nil, &ConfigurationError{Op: "init key manager", Err: errors.New("forced alias set without a key store")}
	}

	var tm TrustManager
	switch {
	case !p.ChecksHostTrusted():
		slog.Warn("trust: server certificate verification disabled by policy (check-host-trusted=false)")
		tm = AlwaysTrust()
	case p.TrustStorePath != "":
		store, err := LoadStore(p.TrustStorePath, p.TrustStorePassword)
		if err != nil {
			return nil, &ConfigurationError{Op: "load trust store", Path: p.TrustStorePath, Err: err}
		}
		tm, err = NewTrustManager(store)
		if err != nil {
			return nil, &ConfigurationError{Op: "init trust manager", Path: p.TrustStorePath, Err: err}
		}
	default:
		var err error
		tm, err = newSystemTrustManager()
		if err != nil {
			return nil, &ConfigurationError{Op: "load system roots", Err: err}
		}
	}

	return NewContext(keys, tm), nil
}

// NewContext assembles a Context from explicit managers. keys may be nil.
func NewContext(keys KeyManager, tm TrustManager) *Context {
	if tm == nil {
		tm = &poolTrustManager{}
	}
	return &Context{keys: keys, trust: tm}
}

var defaultContext = sync.OnceValue(func() *Context {
	tm, err := newSystemTrustManager()
	if err != nil {
		// x509 falls back to the platform verifier when Roots is nil.
		tm = &poolTrustManager{}
	}
	return NewContext(nil, tm)
})

// Default returns the platform default context: system roots, no client
// identity.
func Default() *Context {
	return defaultContext()
}

// KeyManager returns the client identity selector, or nil.
func (c *Context) KeyManager() KeyManager {
	return c.keys
}

// TrustManager returns the server chain verifier.
func (c *Context) TrustManager() TrustManager {
	return c.trust
}

// TLSConfig returns a fresh tls.Config for this context. verifyHost controls
// whether the peer's certificate must match the server name crypto/tls
// reports. No name is reported for IP literals, so a host check without one
// fails; use TLSConfigFor when the dial address is known.
func (c *Context) TLSConfig(verifyHost bool) *tls.Config {
	return c.tlsConfig(verifyHost, "")
}

// TLSConfigFor returns a fresh tls.Config for dialing host. The host check,
// if enabled, is made against host itself, IP literals included.
func (c *Context) TLSConfigFor(host string, verifyHost bool) *tls.Config {
	cfg := c.tlsConfig(verifyHost, host)
	cfg.ServerName = host
	return cfg
}

func (c *Context) tlsConfig(verifyHost bool, host string) *tls.Config {
	cfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		// Chain and host checks are done by VerifyConnection so that the
		// trust manager, not crypto/tls, owns the decision.
		InsecureSkipVerify: true,
		VerifyConnection: func(cs tls.ConnectionState) error {
			name := ""
			if verifyHost {
				name = host
				if name == "" {
					name = cs.ServerName
				}
				if _, lax := c.trust.(alwaysTrust); name == "" && !lax {
					return errNoServerName
				}
			}
			return c.trust.CheckServerTrusted(cs.PeerCertificates, name)
		},
	}
	if c.keys != nil {
		cfg.GetClientCertificate = c.clientCertificate
		cfg.GetCertificate = c.serverCertificate
	}
	return cfg
}

func (c *Context) clientCertificate(cri *tls.CertificateRequestInfo) (*tls.Certificate, error) {
	if cert := c.keys.Certificate(c.keys.ChooseClientAlias(cri)); cert != nil {
		return cert, nil
	}
	// An empty certificate tells crypto/tls to send none.
	return &tls.Certificate{}, nil
}

func (c *Context) serverCertificate(chi *tls.ClientHelloInfo) (*tls.Certificate, error) {
	if cert := c.keys.Certificate(c.keys.ChooseServerAlias(chi)); cert != nil {
		return cert, nil
	}
	return nil, errors.New("trust: no server certificate for client hello")
}

// SocketFactory returns a factory for this context with host name
// verification enabled.
func (c *Context) SocketFactory() *SocketFactory {
	return &SocketFactory{ctx: c, verifyHost: true}
}

// SocketFactory dials TLS connections with a Context.
type SocketFactory struct {
	ctx        *Context
	verifyHost bool
}

// DefaultSocketFactory returns the platform default factory.
func DefaultSocketFactory() *SocketFactory {
	return Default().SocketFactory()
}

// WithHostVerification returns a copy of f with host name verification
// switched on or off. Chain verification is unaffected.
func (f *SocketFactory) WithHostVerification(verify bool) *SocketFactory {
	return &SocketFactory{ctx: f.ctx, verifyHost: verify}
}

// VerifiesHost reports whether host names are verified.
func (f *SocketFactory) VerifiesHost() bool {
	return f.verifyHost
}

// Context returns the context the factory dials with.
func (f *SocketFactory) Context() *Context {
	return f.ctx
}

// TLSConfig returns a tls.Config without a fixed server name, for
// connections whose name crypto/tls fills in, such as proxy tunnels.
func (f *SocketFactory) TLSConfig() *tls.Config {
	return f.ctx.TLSConfig(f.verifyHost)
}

// TLSConfigFor returns the tls.Config used to dial addr, a host:port pair.
func (f *SocketFactory) TLSConfigFor(addr string) *tls.Config {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	return f.ctx.TLSConfigFor(host, f.verifyHost)
}

// DialContext opens a TLS connection and completes the handshake.
func (f *SocketFactory) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	d := &tls.Dialer{Config: f.TLSConfigFor(addr)}
	return d.DialContext(ctx, network, addr)
}
