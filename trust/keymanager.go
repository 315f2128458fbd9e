package trust

import (
	"crypto/tls"
	"errors"
)

// KeyManager selects the identity presented during a TLS handshake.
type KeyManager interface {
	// ChooseClientAlias picks the alias to present to a server that
	// requested a client certificate. Empty means no certificate.
	ChooseClientAlias(cri *tls.CertificateRequestInfo) string

	// ChooseServerAlias picks the alias to present to a connecting client.
	ChooseServerAlias(chi *tls.ClientHelloInfo) string

	// ClientAliases lists the aliases acceptable for the request.
	ClientAliases(cri *tls.CertificateRequestInfo) []string

	// Certificate returns the chain and key for alias, or nil.
	Certificate(alias string) *tls.Certificate
}

// storeKeyManager selects among the key entries of a Store in store order.
type storeKeyManager struct {
	aliases []string
	certs   map[string]*tls.Certificate
}

// NewKeyManager returns a KeyManager over the key entries of store.
func NewKeyManager(store *Store) (KeyManager, error) {
	km := &storeKeyManager{certs: make(map[string]*tls.Certificate)}
	for _, alias := range store.KeyAliases() {
		cert, _ := store.certificate(alias)
		if _, dup := km.certs[alias]; dup {
			continue
		}
		km.aliases = append(km.aliases, alias)
		km.certs[alias] = cert
	}
	if len(km.aliases) == 0 {
		return nil, errors.New("store holds no private key entries")
	}
	return km, nil
}

func (m *storeKeyManager) ChooseClientAlias(cri *tls.CertificateRequestInfo) string {
	for _, alias := range m.aliases {
		if cri == nil || cri.SupportsCertificate(m.certs[alias]) == nil {
			return alias
		}
	}
	return ""
}

func (m *storeKeyManager) ChooseServerAlias(chi *tls.ClientHelloInfo) string {
	for _, alias := range m.aliases {
		if chi == nil || chi.SupportsCertificate(m.certs[alias]) == nil {
			return alias
		}
	}
	return ""
}

func (m *storeKeyManager) ClientAliases(cri *tls.CertificateRequestInfo) []string {
	var out []string
	for _, alias := range m.aliases {
		if cri == nil || cri.SupportsCertificate(m.certs[alias]) == nil {
			out = append(out, alias)
		}
	}
	return out
}

func (m *storeKeyManager) Certificate(alias string) *tls.Certificate {
	return m.certs[alias]
}

// aliasForcingKeyManager always offers one alias to servers, whatever key
// types or issuers they ask for. Some servers reject clients that pick an
// identity from the advertised issuers, so the alias is pinned instead.
type aliasForcingKeyManager struct {
	KeyManager
	alias string
}

// ForceAlias wraps km so client alias selection always returns alias.
// Server alias selection and certificate lookups are delegated unchanged.
func ForceAlias(km KeyManager, alias string) KeyManager {
	return &aliasForcingKeyManager{KeyManager: km, alias: alias}
}

func (m *aliasForcingKeyManager) ChooseClientAlias(*tls.CertificateRequestInfo) string {
	return m.alias
}
