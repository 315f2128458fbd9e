// Package auth provides HTTP authentication handlers for SOAP endpoints.
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// Authenticator defines the interface for authentication handlers.
type Authenticator interface {
	// Transport wraps an http.RoundTripper with authentication.
	Transport(base http.RoundTripper) http.RoundTripper

	// Name returns the authentication scheme name.
	Name() string
}

// Credentials holds authentication credentials.
type Credentials struct {
	// Username is the user name for authentication.
	Username string

	// Password is the password for authentication.
	Password string

	// Domain is the optional domain for NTLM authentication.
	Domain string
}

// Validate checks that required credential fields are populated.
// For Kerberos with ccache/keytab, password may be empty - use ValidateForKerberos instead.
func (c *Credentials) Validate() error {
	if c.Username == "" {
		return errors.New("username is required")
	}
	if c.Password == "" {
		return errors.New("password is required")
	}
	return nil
}

// ValidateForKerberos checks credentials for Kerberos auth where password is optional.
func (c *Credentials) ValidateForKerberos() error {
	if c.Username == "" {
		return errors.New("username is required")
	}
	return nil
}

// Type names an authentication scheme in configuration.
type Type string

const (
	TypeNone     Type = ""
	TypeBasic    Type = "basic"
	TypeNTLM     Type = "ntlm"
	TypeKerberos Type = "kerberos"
)

// Config selects and parameterizes an authenticator.
type Config struct {
	Type        Type
	Credentials Credentials

	// Kerberos settings.
	Realm        string
	Krb5ConfPath string
	KeytabPath   string
	CCachePath   string

	// TargetSPN overrides the service principal. Empty derives HTTP/<host>
	// from the endpoint address.
	TargetSPN string

	// Logger receives handshake progress. Nil means slog.Default().
	Logger *slog.Logger
}

// Validate checks that the configuration is complete for its type.
func (c Config) Validate() error {
	switch c.Type {
	case TypeNone:
		return nil
	case TypeBasic, TypeNTLM:
		return c.Credentials.Validate()
	case TypeKerberos:
		if c.CCachePath != "" {
			return nil
		}
		if c.KeytabPath != "" {
			return c.Credentials.ValidateForKerberos()
		}
		return c.Credentials.Validate()
	default:
		return fmt.Errorf("unsupported auth type %q", c.Type)
	}
}

// New returns a fresh authenticator for cfg, or nil for TypeNone. endpoint
// is used to derive the Kerberos SPN. Authenticators hold per-connection
// handshake state, so each stub gets its own.
func New(cfg Config, endpoint string) (Authenticator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}

	switch cfg.Type {
	case TypeBasic:
		return NewBasicAuth(cfg.Credentials), nil
	case TypeNTLM:
		return NewNTLMAuth(cfg.Credentials), nil
	case TypeKerberos:
		spn := cfg.TargetSPN
		if spn == "" {
			var err error
			if spn, err = SPNForEndpoint(endpoint); err != nil {
				return nil, fmt.Errorf("auth: %w", err)
			}
		}
		provider, err := NewKerberosProvider(KerberosConfig{
			Realm:        cfg.Realm,
			Krb5ConfPath: cfg.Krb5ConfPath,
			KeytabPath:   cfg.KeytabPath,
			CCachePath:   cfg.CCachePath,
			Credentials:  &cfg.Credentials,
		}, spn)
		if err != nil {
			return nil, fmt.Errorf("auth: %w", err)
		}
		return NewNegotiateAuth(provider, WithNegotiateLogger(cfg.Logger)), nil
	}
	return nil, nil
}

// SPNForEndpoint derives the HTTP service principal for an endpoint URL.
func SPNForEndpoint(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("endpoint %q has no host", endpoint)
	}
	return "HTTP/" + strings.ToLower(host), nil
}
