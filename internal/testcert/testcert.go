// Package testcert generates throwaway certificates and stores for tests.
package testcert

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// KeyType selects the key algorithm of a generated certificate.
type KeyType int

const (
	ECDSA KeyType = iota
	RSA
)

// Cert is a generated certificate with its private key.
type Cert struct {
	Cert *x509.Certificate
	Key  crypto.Signer

	issuer *Cert
}

// Option adjusts a certificate template.
type Option func(*options)

type options struct {
	keyType KeyType
	hosts   []string
	usages  []x509.ExtKeyUsage
}

// WithKeyType selects the key algorithm. The default is ECDSA P-256.
func WithKeyType(k KeyType) Option {
	return func(o *options) { o.keyType = k }
}

// WithHosts adds DNS names or IP addresses as subject alternative names.
func WithHosts(hosts ...string) Option {
	return func(o *options) { o.hosts = append(o.hosts, hosts...) }
}

// ForClient marks the certificate for client authentication only.
func ForClient() Option {
	return func(o *options) { o.usages = []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth} }
}

var serial atomic.Int64

func nextSerial() *big.Int {
	return big.NewInt(1000 + serial.Add(1))
}

func newKey(t testing.TB, k KeyType) crypto.Signer {
	t.Helper()
	switch k {
	case RSA:
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatalf("generate rsa key: %v", err)
		}
		return key
	default:
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			t.Fatalf("generate ecdsa key: %v", err)
		}
		return key
	}
}

// NewCA creates a self-signed certificate authority.
func NewCA(t testing.TB, cn string) *Cert {
	t.Helper()
	key := newKey(t, ECDSA)
	tmpl := &x509.Certificate{
		SerialNumber:          nextSerial(),
		Subject:               pkix.Name{CommonName: cn, Organization: []string{"wspool test"}},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, key.Public(), key)
	if err != nil {
		t.Fatalf("create CA certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse CA certificate: %v", err)
	}
	return &Cert{Cert: cert, Key: key}
}

// Issue creates a leaf certificate signed by ca. Leaves are valid for both
// server and client authentication unless ForClient is given.
func (ca *Cert) Issue(t testing.TB, cn string, opts ...Option) *Cert {
	t.Helper()
	o := options{usages: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth}}
	for _, opt := range opts {
		opt(&o)
	}

	key := newKey(t, o.keyType)
	tmpl := &x509.Certificate{
		SerialNumber: nextSerial(),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  o.usages,
	}
	for _, h := range o.hosts {
		if ip := net.ParseIP(h); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca.Cert, key.Public(), ca.Key)
	if err != nil {
		t.Fatalf("create certificate %s: %v", cn, err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate %s: %v", cn, err)
	}
	return &Cert{Cert: cert, Key: key, issuer: ca}
}

// TLSCertificate returns the certificate and its issuer chain for tls.Config.
func (c *Cert) TLSCertificate() tls.Certificate {
	out := tls.Certificate{PrivateKey: c.Key, Leaf: c.Cert}
	for cur := c; cur != nil; cur = cur.issuer {
		out.Certificate = append(out.Certificate, cur.Cert.Raw)
	}
	return out
}

// CertBlock returns the certificate as a PEM block. A non-empty alias is
// stored in the block's "alias" header.
func (c *Cert) CertBlock(alias string) *pem.Block {
	b := &pem.Block{Type: "CERTIFICATE", Bytes: c.Cert.Raw}
	if alias != "" {
		b.Headers = map[string]string{"alias": alias}
	}
	return b
}

// KeyBlock returns the private key as a PKCS#8 PEM block.
func (c *Cert) KeyBlock(t testing.TB, alias string) *pem.Block {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(c.Key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	b := &pem.Block{Type: "PRIVATE KEY", Bytes: der}
	if alias != "" {
		b.Headers = map[string]string{"alias": alias}
	}
	return b
}

// Identity returns key, leaf and issuer blocks for a key store entry.
func (c *Cert) Identity(t testing.TB, alias string) []*pem.Block {
	t.Helper()
	blocks := []*pem.Block{c.KeyBlock(t, alias), c.CertBlock("")}
	for cur := c.issuer; cur != nil; cur = cur.issuer {
		blocks = append(blocks, cur.CertBlock(""))
	}
	return blocks
}

// Encode concatenates PEM blocks.
func Encode(blocks ...*pem.Block) []byte {
	var out []byte
	for _, b := range blocks {
		out = append(out, pem.EncodeToMemory(b)...)
	}
	return out
}

// WriteFile writes blocks to name inside a test temp directory and returns
// the path.
func WriteFile(t testing.TB, name string, blocks ...*pem.Block) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, Encode(blocks...), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
