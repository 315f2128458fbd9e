package trust

import (
	"crypto/x509"
	"errors"
	"sync"
)

// TrustManager decides whether a server certificate chain is trusted.
type TrustManager interface {
	// CheckServerTrusted verifies chain, leaf first. A non-empty host is
	// also matched against the leaf.
	CheckServerTrusted(chain []*x509.Certificate, host string) error

	// AcceptedIssuers lists the configured roots, if known.
	AcceptedIssuers() []*x509.Certificate
}

var (
	errEmptyChain   = errors.New("trust: server presented no certificates")
	errNoServerName = errors.New("trust: host name verification requested but no server name is known")
)

// systemRoots loads the platform roots once per process.
var systemRoots = sync.OnceValues(x509.SystemCertPool)

// Init loads process-wide trust material. It is safe to call more than once
// and is called by Build when system roots are needed; calling it at startup
// surfaces a broken root store before the first connection.
func Init() error {
	if _, err := systemRoots(); err != nil {
		return &ConfigurationError{Op: "load system roots", Err: err}
	}
	return nil
}

type poolTrustManager struct {
	roots   *x509.CertPool
	issuers []*x509.Certificate
}

// NewTrustManager returns a TrustManager rooted at the certificates of store.
func NewTrustManager(store *Store) (TrustManager, error) {
	certs := store.Certificates()
	if len(certs) == 0 {
		return nil, errors.New("store holds no certificates")
	}
	pool := x509.NewCertPool()
	for _, c := range certs {
		pool.AddCert(c)
	}
	return &poolTrustManager{roots: pool, issuers: certs}, nil
}

func newSystemTrustManager() (TrustManager, error) {
	roots, err := systemRoots()
	if err != nil {
		return nil, err
	}
	return &poolTrustManager{roots: roots}, nil
}

func (m *poolTrustManager) CheckServerTrusted(chain []*x509.Certificate, host string) error {
	if len(chain) == 0 {
		return errEmptyChain
	}
	opts := x509.VerifyOptions{
		Roots:         m.roots,
		Intermediates: x509.NewCertPool(),
		DNSName:       host,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	for _, c := range chain[1:] {
		opts.Intermediates.AddCert(c)
	}
	_, err := chain[0].Verify(opts)
	return err
}

func (m *poolTrustManager) AcceptedIssuers() []*x509.Certificate {
	return m.issuers
}

type alwaysTrust struct{}

// AlwaysTrust returns a TrustManager that accepts any chain, including
// self-signed and expired ones. Build only uses it when a policy sets
// check-host-trusted to false.
func AlwaysTrust() TrustManager {
	return alwaysTrust{}
}

func (alwaysTrust) CheckServerTrusted([]*x509.Certificate, string) error {
	return nil
}

func (alwaysTrust) AcceptedIssuers() []*x509.Certificate {
	return nil
}
