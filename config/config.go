package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/smnsjas/go-wspool/soap"
	"github.com/smnsjas/go-wspool/soap/auth"
	"github.com/smnsjas/go-wspool/trust"
)

// Defaults.
const (
	DefaultConnectionTimeout = 30 * time.Second
	DefaultSocketReadTimeout = 60 * time.Second
	DefaultProtocolVersion   = "1.1"
	DefaultPoolSize          = 300
	DefaultPoolMaxWait       = 30 * time.Second
)

// ErrInvalid is matched by every validation error.
var ErrInvalid = errors.New("config: invalid configuration")

// Client is one client configuration snapshot. Replacing it is the unit of
// hot reconfiguration.
type Client struct {
	EndpointURL       string       `yaml:"endpoint-url" toml:"endpoint-url" json:"endpoint-url"`
	ConnectionTimeout Duration     `yaml:"connection-timeout" toml:"connection-timeout" json:"connection-timeout"`
	SocketReadTimeout Duration     `yaml:"socket-read-timeout" toml:"socket-read-timeout" json:"socket-read-timeout"`
	ProtocolVersion   string       `yaml:"protocol-version" toml:"protocol-version" json:"protocol-version"`
	SSL               trust.Policy `yaml:"ssl" toml:"ssl" json:"ssl"`
	Pool              Pool         `yaml:"pool" toml:"pool" json:"pool"`
	Auth              Auth         `yaml:"auth" toml:"auth" json:"auth"`
}

// Pool is the pool policy.
type Pool struct {
	// Name identifies the pool in logs and metrics.
	Name string `yaml:"name" toml:"name" json:"name"`

	// Size is the maximum number of live stubs.
	Size int `yaml:"size" toml:"size" json:"size"`

	// MaxWait bounds how long a borrow waits for a free stub.
	MaxWait Duration `yaml:"max-wait" toml:"max-wait" json:"max-wait"`

	// MaxIdleTime discards stubs idle for longer. Zero keeps them.
	MaxIdleTime Duration `yaml:"max-idle-time" toml:"max-idle-time" json:"max-idle-time"`
}

// Auth selects HTTP authentication for the endpoint.
type Auth struct {
	Type     string `yaml:"type" toml:"type" json:"type"`
	Username string `yaml:"username" toml:"username" json:"username"`
	Password string `yaml:"password" toml:"password" json:"password"`
	Domain   string `yaml:"domain" toml:"domain" json:"domain"`
	Realm    string `yaml:"realm" toml:"realm" json:"realm"`
	Krb5Conf string `yaml:"krb5-conf" toml:"krb5-conf" json:"krb5-conf"`
	Keytab   string `yaml:"keytab" toml:"keytab" json:"keytab"`
	CCache   string `yaml:"ccache" toml:"ccache" json:"ccache"`
	SPN      string `yaml:"spn" toml:"spn" json:"spn"`
}

// Default returns a configuration holding the default values.
func Default() Client {
	return Client{
		ConnectionTimeout: Duration(DefaultConnectionTimeout),
		SocketReadTimeout: Duration(DefaultSocketReadTimeout),
		ProtocolVersion:   DefaultProtocolVersion,
		Pool: Pool{
			Size:    DefaultPoolSize,
			MaxWait: Duration(DefaultPoolMaxWait),
		},
	}
}

// Version returns the SOAP version. Validate reports unsupported values.
func (c Client) Version() soap.Version {
	v, err := soap.ParseVersion(c.ProtocolVersion)
	if err != nil {
		return soap.V11
	}
	return v
}

// AuthConfig returns the authentication settings for auth.New.
func (c Client) AuthConfig() auth.Config {
	return auth.Config{
		Type: auth.Type(c.Auth.Type),
		Credentials: auth.Credentials{
			Username: c.Auth.Username,
			Password: c.Auth.Password,
			Domain:   c.Auth.Domain,
		},
		Realm:        c.Auth.Realm,
		Krb5ConfPath: c.Auth.Krb5Conf,
		KeytabPath:   c.Auth.Keytab,
		CCachePath:   c.Auth.CCache,
		TargetSPN:    c.Auth.SPN,
	}
}

// Validate checks the configuration. All errors match ErrInvalid.
func (c Client) Validate() error {
	if c.EndpointURL == "" {
		return fmt.Errorf("%w: endpoint-url is required", ErrInvalid)
	}
	u, err := url.Parse(c.EndpointURL)
	if err != nil {
		return fmt.Errorf("%w: endpoint-url: %v", ErrInvalid, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: endpoint-url scheme must be http or https, got %q", ErrInvalid, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: endpoint-url has no host", ErrInvalid)
	}
	if c.ConnectionTimeout < 0 || c.SocketReadTimeout < 0 {
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalid)
	}
	if _, err := soap.ParseVersion(c.ProtocolVersion); err != nil {
		return fmt.Errorf("%w: protocol-version: %v", ErrInvalid, err)
	}
	if c.Pool.Size < 1 {
		return fmt.Errorf("%w: pool.size must be at least 1, got %d", ErrInvalid, c.Pool.Size)
	}
	if c.Pool.MaxWait < 0 || c.Pool.MaxIdleTime < 0 {
		return fmt.Errorf("%w: pool durations must not be negative", ErrInvalid)
	}
	if c.Auth.Type != "" {
		if err := c.AuthConfig().Validate(); err != nil {
			return fmt.Errorf("%w: auth: %v", ErrInvalid, err)
		}
	}
	return nil
}
