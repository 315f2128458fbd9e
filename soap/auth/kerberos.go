package auth

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-krb5/krb5/client"
	"github.com/go-krb5/krb5/config"
	"github.com/go-krb5/krb5/credentials"
	"github.com/go-krb5/krb5/keytab"
	"github.com/go-krb5/krb5/spnego"
)

// KerberosConfig holds the configuration for the KerberosProvider.
type KerberosConfig struct {
	// Realm is the Kerberos realm (e.g. EXAMPLE.COM).
	Realm string

	// Krb5ConfPath is the path to the krb5.conf file.
	Krb5ConfPath string

	// KeytabPath is the path to the keytab file (optional).
	KeytabPath string

	// CCachePath is the path to the credential cache (optional).
	CCachePath string

	// Credentials are used if KeytabPath/CCachePath are empty.
	Credentials *Credentials
}

// KerberosProvider implements SecurityProvider with the pure Go krb5 library.
// Message protection is left to TLS; the provider only authenticates.
type KerberosProvider struct {
	client       *client.Client
	spnegoClient *spnego.SPNEGO
	targetSPN    string
	isComplete   bool
}

// NewKerberosProvider creates a Kerberos provider for targetSPN.
func NewKerberosProvider(cfg KerberosConfig, targetSPN string) (*KerberosProvider, error) {
	if cfg.Krb5ConfPath == "" {
		cfg.Krb5ConfPath = os.Getenv("KRB5_CONFIG")
		if cfg.Krb5ConfPath == "" {
			cfg.Krb5ConfPath = "/etc/krb5.conf"
		}
	}
	conf, err := config.Load(cfg.Krb5ConfPath)
	if err != nil {
		return nil, fmt.Errorf("load krb5.conf from %s: %w", cfg.Krb5ConfPath, err)
	}

	var cl *client.Client
	switch {
	case cfg.KeytabPath != "":
		if cfg.Credentials == nil {
			return nil, errors.New("keytab requires a username")
		}
		kt, err := keytab.Load(cfg.KeytabPath)
		if err != nil {
			return nil, fmt.Errorf("load keytab from %s: %w", cfg.KeytabPath, err)
		}
		cl = client.NewWithKeytab(cfg.Credentials.Username, cfg.Realm, kt, conf, client.DisablePAFXFAST(true))
	case cfg.CCachePath != "":
		cc, err := credentials.LoadCCache(cfg.CCachePath)
		if err != nil {
			return nil, fmt.Errorf("load ccache from %s: %w", cfg.CCachePath, err)
		}
		cl, err = client.NewFromCCache(cc, conf, client.DisablePAFXFAST(true))
		if err != nil {
			return nil, fmt.Errorf("create client from ccache: %w", err)
		}
	case cfg.Credentials != nil:
		cl = client.NewWithPassword(
			cfg.Credentials.Username,
			cfg.Realm,
			cfg.Credentials.Password,
			conf,
			client.DisablePAFXFAST(true),
		)
	default:
		return nil, errors.New("no credentials provided (keytab, ccache, or password required)")
	}

	return &KerberosProvider{
		client:    cl,
		targetSPN: targetSPN,
	}, nil
}

// Step performs a SPNEGO step. The first call logs in and returns the
// initial token; a later server token completes the exchange.
func (p *KerberosProvider) Step(_ context.Context, inputToken []byte) ([]byte, bool, error) {
	if len(inputToken) > 0 {
		if !p.isComplete {
			return nil, false, errors.New(
				"received server token before client authentication completed (mutual auth not supported)")
		}
		return nil, false, nil
	}

	if err := p.client.Login(); err != nil {
		return nil, false, fmt.Errorf("kerberos login: %w", err)
	}
	if p.spnegoClient == nil {
		p.spnegoClient = spnego.SPNEGOClient(p.client, p.targetSPN)
	}

	tkn, err := p.spnegoClient.InitSecContext()
	if err != nil {
		return nil, false, err
	}
	token, err := tkn.Marshal()
	if err != nil {
		return nil, false, fmt.Errorf("marshal token: %w", err)
	}

	p.isComplete = true
	return token, false, nil
}

// Complete returns true if the context is established.
func (p *KerberosProvider) Complete() bool {
	return p.isComplete
}

// Close releases resources.
func (p *KerberosProvider) Close() error {
	p.client.Destroy()
	return nil
}
