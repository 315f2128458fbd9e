package trust

// Policy declares how a transport context is built.
type Policy struct {
	// Enabled turns TLS configuration on. A disabled policy builds no context.
	Enabled bool `yaml:"enabled" toml:"enabled" json:"enabled"`

	// KeyStorePath locates the client identity store. Empty means no client
	// certificate is presented.
	KeyStorePath string `yaml:"key-store-path" toml:"key-store-path" json:"key-store-path"`

	// KeyStorePassword unlocks a PKCS#12 key store.
	KeyStorePassword string `yaml:"key-store-password" toml:"key-store-password" json:"key-store-password"`

	// TrustStorePath locates the trusted roots. Empty means system roots.
	TrustStorePath string `yaml:"trust-store-path" toml:"trust-store-path" json:"trust-store-path"`

	// TrustStorePassword unlocks a PKCS#12 trust store.
	TrustStorePassword string `yaml:"trust-store-password" toml:"trust-store-password" json:"trust-store-password"`

	// VerifyHost enables host name verification on derived socket factories.
	VerifyHost bool `yaml:"verify-host" toml:"verify-host" json:"verify-host"`

	// CheckHostTrusted enables chain verification. Nil means true; only an
	// explicit false substitutes AlwaysTrust.
	CheckHostTrusted *bool `yaml:"check-host-trusted" toml:"check-host-trusted" json:"check-host-trusted"`

	// ForcedAlias pins the client identity to one key store alias.
	ForcedAlias string `yaml:"forced-alias" toml:"forced-alias" json:"forced-alias"`
}

// ChecksHostTrusted reports whether server chains are verified.
func (p Policy) ChecksHostTrusted() bool {
	return p.CheckHostTrusted == nil || *p.CheckHostTrusted
}

// Bool returns a pointer to v, for Policy.CheckHostTrusted literals.
func Bool(v bool) *bool {
	return &v
}
