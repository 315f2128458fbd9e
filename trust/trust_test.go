package trust

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smnsjas/go-wspool/internal/testcert"
)

// httpClient returns a client whose TLS connections are dialed by sf.
func httpClient(sf *SocketFactory) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return sf.DialContext(ctx, network, addr)
			},
		},
	}
}

func get(t *testing.T, sf *SocketFactory, url string) (string, error) {
	t.Helper()
	resp, err := httpClient(sf).Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	return string(body), err
}

func TestBuild_Disabled(t *testing.T) {
	ctx, err := Build(Policy{Enabled: false, KeyStorePath: "/does/not/exist"})
	require.NoError(t, err)
	assert.Nil(t, ctx)
}

func TestBuild_MissingKeyStore(t *testing.T) {
	_, err := Build(Policy{Enabled: true, KeyStorePath: filepath.Join(t.TempDir(), "missing.pem")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTrustConfiguration))

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "load key store", cfgErr.Op)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestBuild_EmptyTrustStore(t *testing.T) {
	ca := testcert.NewCA(t, "Test CA")
	client := ca.Issue(t, "client")
	// A key without its certificate is not a usable trust store.
	path := testcert.WriteFile(t, "trust.pem", client.KeyBlock(t, ""))

	_, err := Build(Policy{Enabled: true, TrustStorePath: path})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTrustConfiguration)
}

func TestBuild_ForcedAliasUnknown(t *testing.T) {
	ca := testcert.NewCA(t, "Test CA")
	client := ca.Issue(t, "client")
	path := testcert.WriteFile(t, "keys.pem", client.Identity(t, "billing")...)

	_, err := Build(Policy{Enabled: true, KeyStorePath: path, ForcedAlias: "nope"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTrustConfiguration)
	assert.Contains(t, err.Error(), `"nope"`)
}

func TestBuild_ForcedAliasWithoutKeyStore(t *testing.T) {
	_, err := Build(Policy{Enabled: true, ForcedAlias: "billing", CheckHostTrusted: Bool(false)})
	assert.ErrorIs(t, err, ErrTrustConfiguration)
}

func TestSelfSignedServer(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	t.Run("rejected by system roots", func(t *testing.T) {
		ctx, err := Build(Policy{Enabled: true})
		if err != nil {
			t.Skipf("system roots unavailable: %v", err)
		}
		_, err = get(t, ctx.SocketFactory(), srv.URL)
		require.Error(t, err)
	})

	t.Run("accepted when host trust checks are off", func(t *testing.T) {
		ctx, err := Build(Policy{Enabled: true, CheckHostTrusted: Bool(false)})
		require.NoError(t, err)
		body, err := get(t, ctx.SocketFactory(), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, "ok", body)
	})

	t.Run("accepted with the server certificate as trust store", func(t *testing.T) {
		path := testcert.WriteFile(t, "trust.pem", &pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
		ctx, err := Build(Policy{Enabled: true, TrustStorePath: path})
		require.NoError(t, err)
		body, err := get(t, ctx.SocketFactory().WithHostVerification(true), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, "ok", body)
	})
}

func TestHostVerification(t *testing.T) {
	ca := testcert.NewCA(t, "Test CA")
	server := ca.Issue(t, "server", testcert.WithHosts("svc.example.test"))

	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	srv.TLS = &tls.Config{Certificates: []tls.Certificate{server.TLSCertificate()}}
	srv.StartTLS()
	defer srv.Close()

	path := testcert.WriteFile(t, "ca.pem", ca.CertBlock("root"))
	ctx, err := Build(Policy{Enabled: true, TrustStorePath: path})
	require.NoError(t, err)

	// The certificate names svc.example.test, not 127.0.0.1.
	_, err = get(t, ctx.SocketFactory().WithHostVerification(true), srv.URL)
	require.Error(t, err)

	body, err := get(t, ctx.SocketFactory().WithHostVerification(false), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", body)
}

func TestHostVerification_IPLiteral(t *testing.T) {
	ca := testcert.NewCA(t, "Test CA")
	server := ca.Issue(t, "server", testcert.WithHosts("127.0.0.1"))

	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	srv.TLS = &tls.Config{Certificates: []tls.Certificate{server.TLSCertificate()}}
	srv.StartTLS()
	defer srv.Close()

	path := testcert.WriteFile(t, "ca.pem", ca.CertBlock("root"))
	ctx, err := Build(Policy{Enabled: true, TrustStorePath: path})
	require.NoError(t, err)

	body, err := get(t, ctx.SocketFactory(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", body)
}

func TestTLSConfig_HostCheckWithoutServerName(t *testing.T) {
	ca := testcert.NewCA(t, "Test CA")
	server := ca.Issue(t, "server", testcert.WithHosts("svc.example.test"))
	state := tls.ConnectionState{PeerCertificates: []*x509.Certificate{server.Cert}}

	path := testcert.WriteFile(t, "ca.pem", ca.CertBlock("root"))
	ctx, err := Build(Policy{Enabled: true, TrustStorePath: path})
	require.NoError(t, err)

	// No SNI for IP literals: the host check cannot pass on an empty name.
	assert.ErrorIs(t, ctx.TLSConfig(true).VerifyConnection(state), errNoServerName)
	assert.NoError(t, ctx.TLSConfig(false).VerifyConnection(state))

	assert.NoError(t, ctx.TLSConfigFor("svc.example.test", true).VerifyConnection(state))
	assert.Error(t, ctx.TLSConfigFor("127.0.0.1", true).VerifyConnection(state))

	sf := ctx.SocketFactory()
	assert.Equal(t, "svc.example.test", sf.TLSConfigFor("svc.example.test:8443").ServerName)

	lax := NewContext(nil, AlwaysTrust())
	assert.NoError(t, lax.TLSConfig(true).VerifyConnection(state))
}

func TestMutualTLS(t *testing.T) {
	ca := testcert.NewCA(t, "Test CA")
	server := ca.Issue(t, "server", testcert.WithHosts("127.0.0.1", "localhost"))
	client := ca.Issue(t, "billing-client", testcert.ForClient())

	roots := x509.NewCertPool()
	roots.AddCert(ca.Cert)

	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
			http.Error(w, "no client certificate", http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, r.TLS.PeerCertificates[0].Subject.CommonName)
	}))
	srv.TLS = &tls.Config{
		Certificates: []tls.Certificate{server.TLSCertificate()},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    roots,
	}
	srv.StartTLS()
	defer srv.Close()

	keys := testcert.WriteFile(t, "client.pem", client.Identity(t, "billing")...)
	trusted := testcert.WriteFile(t, "ca.pem", ca.CertBlock(""))

	ctx, err := Build(Policy{
		Enabled:        true,
		KeyStorePath:   keys,
		TrustStorePath: trusted,
		ForcedAlias:    "billing",
	})
	require.NoError(t, err)

	body, err := get(t, ctx.SocketFactory(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "billing-client", body)

	t.Run("no identity", func(t *testing.T) {
		anon, err := Build(Policy{Enabled: true, TrustStorePath: trusted})
		require.NoError(t, err)
		_, err = get(t, anon.SocketFactory(), srv.URL)
		assert.Error(t, err)
	})
}

func TestForcedAliasOverridesKeyType(t *testing.T) {
	ca := testcert.NewCA(t, "Test CA")
	rsaClient := ca.Issue(t, "rsa-client", testcert.WithKeyType(testcert.RSA), testcert.ForClient())
	ecClient := ca.Issue(t, "ec-client", testcert.ForClient())

	blocks := append(rsaClient.Identity(t, "rsa"), ecClient.Identity(t, "ec")...)
	store, err := ParsePEM(testcert.Encode(blocks...))
	require.NoError(t, err)

	km, err := NewKeyManager(store)
	require.NoError(t, err)

	cri := &tls.CertificateRequestInfo{
		SignatureSchemes: []tls.SignatureScheme{tls.ECDSAWithP256AndSHA256},
		Version:          tls.VersionTLS13,
	}
	assert.Equal(t, "ec", km.ChooseClientAlias(cri))
	assert.Equal(t, []string{"ec"}, km.ClientAliases(cri))

	forced := ForceAlias(km, "rsa")
	assert.Equal(t, "rsa", forced.ChooseClientAlias(cri))
	assert.Equal(t, "rsa", forced.ChooseClientAlias(nil))
	require.NotNil(t, forced.Certificate("rsa"))
	assert.Equal(t, "rsa-client", forced.Certificate("rsa").Leaf.Subject.CommonName)

	// Server side selection is not forced.
	assert.Equal(t, km.ChooseServerAlias(nil), forced.ChooseServerAlias(nil))
}

func TestParsePEM(t *testing.T) {
	ca := testcert.NewCA(t, "Test CA")
	leaf := ca.Issue(t, "svc-client")

	tests := []struct {
		name        string
		blocks      []*pem.Block
		wantAliases []string
		wantKeys    []string
		wantErr     bool
	}{
		{
			name:        "alias from key header",
			blocks:      leaf.Identity(t, "primary"),
			wantAliases: []string{"primary", "Test CA"},
			wantKeys:    []string{"primary"},
		},
		{
			name:        "alias from common name",
			blocks:      []*pem.Block{leaf.KeyBlock(t, ""), leaf.CertBlock("")},
			wantAliases: []string{"svc-client"},
			wantKeys:    []string{"svc-client"},
		},
		{
			name:        "trusted certificate only",
			blocks:      []*pem.Block{ca.CertBlock("corp-root")},
			wantAliases: []string{"corp-root"},
		},
		{
			name:    "key without certificate",
			blocks:  []*pem.Block{leaf.KeyBlock(t, "orphan")},
			wantErr: true,
		},
		{
			name: "encrypted block",
			blocks: []*pem.Block{{
				Type:    "RSA PRIVATE KEY",
				Headers: map[string]string{"Proc-Type": "4,ENCRYPTED"},
				Bytes:   []byte{0x01},
			}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := ParsePEM(testcert.Encode(tt.blocks...))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAliases, store.Aliases())
			assert.Equal(t, tt.wantKeys, store.KeyAliases())
		})
	}
}

func TestParsePEM_Chain(t *testing.T) {
	ca := testcert.NewCA(t, "Test CA")
	leaf := ca.Issue(t, "svc-client")

	store, err := ParsePEM(testcert.Encode(leaf.Identity(t, "svc")...))
	require.NoError(t, err)

	cert, ok := store.certificate("svc")
	require.True(t, ok)
	require.Len(t, cert.Certificate, 2)
	assert.Equal(t, leaf.Cert.Raw, cert.Certificate[0])
	assert.Equal(t, ca.Cert.Raw, cert.Certificate[1])
}

func TestParsePEM_NoBlocks(t *testing.T) {
	_, err := ParsePEM([]byte("not a pem file"))
	assert.Error(t, err)
}

func TestAlwaysTrust(t *testing.T) {
	tm := AlwaysTrust()
	assert.NoError(t, tm.CheckServerTrusted(nil, "anything"))
	assert.Nil(t, tm.AcceptedIssuers())
}

func TestTrustManager_EmptyChain(t *testing.T) {
	ca := testcert.NewCA(t, "Test CA")
	store, err := ParsePEM(testcert.Encode(ca.CertBlock("")))
	require.NoError(t, err)
	tm, err := NewTrustManager(store)
	require.NoError(t, err)
	assert.Error(t, tm.CheckServerTrusted(nil, ""))
	assert.Len(t, tm.AcceptedIssuers(), 1)
}

func TestSocketFactory_TLSConfig(t *testing.T) {
	sf := DefaultSocketFactory()
	assert.True(t, sf.VerifiesHost())

	cfg := sf.TLSConfig()
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	assert.NotNil(t, cfg.VerifyConnection)
	assert.Nil(t, cfg.GetClientCertificate)

	off := sf.WithHostVerification(false)
	assert.False(t, off.VerifiesHost())
	assert.True(t, sf.VerifiesHost(), "original factory must be unchanged")
	assert.Same(t, sf.Context(), off.Context())
}

func TestInit_Idempotent(t *testing.T) {
	err1 := Init()
	err2 := Init()
	assert.Equal(t, err1, err2)
}
