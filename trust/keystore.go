package trust

import (
	"bytes"
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/pkcs12"
)

// Store is an ordered set of aliased entries loaded from a key or trust store.
type Store struct {
	entries []storeEntry
}

type storeEntry struct {
	alias string
	chain []*x509.Certificate
	key   crypto.PrivateKey // nil for trusted certificate entries
}

// publicKey is implemented by every public key type in the standard library.
type publicKey interface {
	Equal(x crypto.PublicKey) bool
}

// LoadStore reads a PEM bundle or PKCS#12 file.
// The password is only used for PKCS#12 stores.
func LoadStore(path, password string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".p12" || ext == ".pfx" || !bytes.Contains(data, []byte("-----BEGIN")) {
		return ParsePKCS12(data, password)
	}
	return ParsePEM(data)
}

// ParsePKCS12 decodes a PKCS#12 archive. Bag friendlyName attributes become aliases.
func ParsePKCS12(data []byte, password string) (*Store, error) {
	blocks, err := pkcs12.ToPEM(data, password)
	if err != nil {
		return nil, fmt.Errorf("decode pkcs12: %w", err)
	}
	return parseBlocks(blocks)
}

// ParsePEM decodes a PEM bundle of private keys and certificates.
func ParsePEM(data []byte) (*Store, error) {
	var blocks []*pem.Block
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		blocks = append(blocks, block)
	}
	if len(blocks) == 0 {
		return nil, errors.New("no PEM blocks found")
	}
	return parseBlocks(blocks)
}

type parsedCert struct {
	cert  *x509.Certificate
	alias string
	used  bool
}

type parsedKey struct {
	key   crypto.PrivateKey
	alias string
}

func parseBlocks(blocks []*pem.Block) (*Store, error) {
	var certs []*parsedCert
	var keys []parsedKey

	for _, block := range blocks {
		if _, encrypted := block.Headers["Proc-Type"]; encrypted {
			return nil, errors.New("encrypted PEM blocks are not supported, use a PKCS#12 store")
		}
		switch block.Type {
		case "CERTIFICATE":
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parse certificate: %w", err)
			}
			certs = append(certs, &parsedCert{cert: cert, alias: blockAlias(block)})
		case "PRIVATE KEY", "RSA PRIVATE KEY", "EC PRIVATE KEY":
			key, err := parsePrivateKey(block.Bytes)
			if err != nil {
				return nil, err
			}
			keys = append(keys, parsedKey{key: key, alias: blockAlias(block)})
		}
	}

	store := &Store{}
	for i, k := range keys {
		signer, ok := k.key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("private key %d is not a signer", i)
		}
		pub, ok := signer.Public().(publicKey)
		if !ok {
			return nil, fmt.Errorf("private key %d has an unsupported public key", i)
		}

		var leaf *parsedCert
		for _, c := range certs {
			if !c.used && pub.Equal(c.cert.PublicKey) {
				leaf = c
				break
			}
		}
		if leaf == nil {
			return nil, fmt.Errorf("no certificate matches private key %d", i)
		}
		leaf.used = true

		alias := k.alias
		if alias == "" {
			alias = leaf.alias
		}
		if alias == "" {
			alias = leaf.cert.Subject.CommonName
		}
		if alias == "" {
			alias = fmt.Sprintf("key-%d", i)
		}

		store.entries = append(store.entries, storeEntry{
			alias: alias,
			chain: buildChain(leaf, certs),
			key:   k.key,
		})
	}

	// Certificates that are not the leaf of a key entry are trusted entries.
	for i, c := range certs {
		if c.used {
			continue
		}
		alias := c.alias
		if alias == "" {
			alias = c.cert.Subject.CommonName
		}
		if alias == "" {
			alias = fmt.Sprintf("cert-%d", i)
		}
		store.entries = append(store.entries, storeEntry{
			alias: alias,
			chain: []*x509.Certificate{c.cert},
		})
	}

	return store, nil
}

// buildChain follows issuer links from leaf through the remaining certificates.
func buildChain(leaf *parsedCert, certs []*parsedCert) []*x509.Certificate {
	chain := []*x509.Certificate{leaf.cert}
	current := leaf.cert
	for len(chain) <= len(certs) {
		if bytes.Equal(current.RawIssuer, current.RawSubject) {
			break
		}
		var next *x509.Certificate
		for _, c := range certs {
			if c.cert != current && bytes.Equal(c.cert.RawSubject, current.RawIssuer) {
				next = c.cert
				break
			}
		}
		if next == nil {
			break
		}
		chain = append(chain, next)
		current = next
	}
	return chain
}

func blockAlias(block *pem.Block) string {
	for _, h := range []string{"alias", "Alias", "friendlyName"} {
		if v := block.Headers[h]; v != "" {
			return v
		}
	}
	return ""
}

func parsePrivateKey(der []byte) (crypto.PrivateKey, error) {
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}
	return nil, errors.New("unsupported private key encoding")
}

// Aliases returns every alias in store order.
func (s *Store) Aliases() []string {
	aliases := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		aliases = append(aliases, e.alias)
	}
	return aliases
}

// KeyAliases returns the aliases of entries holding a private key.
func (s *Store) KeyAliases() []string {
	var aliases []string
	for _, e := range s.entries {
		if e.key != nil {
			aliases = append(aliases, e.alias)
		}
	}
	return aliases
}

// Certificates returns every certificate in the store, leaf first per entry.
func (s *Store) Certificates() []*x509.Certificate {
	var certs []*x509.Certificate
	for _, e := range s.entries {
		certs = append(certs, e.chain...)
	}
	return certs
}

// certificate returns the key entry for alias as a tls.Certificate.
func (s *Store) certificate(alias string) (*tls.Certificate, bool) {
	for _, e := range s.entries {
		if e.alias != alias || e.key == nil {
			continue
		}
		cert := &tls.Certificate{
			PrivateKey: e.key,
			Leaf:       e.chain[0],
		}
		for _, c := range e.chain {
			cert.Certificate = append(cert.Certificate, c.Raw)
		}
		return cert, true
	}
	return nil, false
}
