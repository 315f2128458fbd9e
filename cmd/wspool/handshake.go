package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/smnsjas/go-wspool/trust"
)

func newHandshakeCmd(a *app) *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "handshake",
		Short: "Build the transport context and perform a TLS handshake",
		Long: `handshake builds the transport context from the ssl section, connects to
the endpoint and prints the negotiated parameters, the server chain and the
client certificate presented.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(configPath)
			if err != nil {
				return err
			}
			if !cfg.SSL.Enabled {
				return errors.New("ssl.enabled is false; nothing to handshake")
			}
			tc, err := trust.Build(cfg.SSL)
			if err != nil {
				return err
			}
			addr, err := hostPort(cfg.EndpointURL)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.ConnectionTimeout.Std())
			defer cancel()
			res, err := handshake(ctx, tc.SocketFactory().WithHostVerification(cfg.SSL.VerifyHost), addr)
			if err != nil {
				return err
			}
			res.print(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Client configuration file (.yaml, .toml or .json)")
	return cmd
}

func hostPort(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("endpoint-url: %w", err)
	}
	if u.Scheme != "https" {
		return "", fmt.Errorf("endpoint-url scheme is %q, want https", u.Scheme)
	}
	port := u.Port()
	if port == "" {
		port = "443"
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

type handshakeResult struct {
	addr     string
	state    tls.ConnectionState
	client   *tls.Certificate
	duration time.Duration
}

// handshake dials addr with the factory's TLS settings and records the
// client certificate it offers.
func handshake(ctx context.Context, f *trust.SocketFactory, addr string) (*handshakeResult, error) {
	res := &handshakeResult{addr: addr}
	tlsCfg := f.TLSConfigFor(addr)
	if get := tlsCfg.GetClientCertificate; get != nil {
		tlsCfg.GetClientCertificate = func(cri *tls.CertificateRequestInfo) (*tls.Certificate, error) {
			cert, err := get(cri)
			res.client = cert
			return cert, err
		}
	}

	start := time.Now()
	d := &tls.Dialer{Config: tlsCfg}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("handshake with %s: %w", addr, err)
	}
	defer conn.Close()
	res.duration = time.Since(start)
	res.state = conn.(*tls.Conn).ConnectionState()
	return res, nil
}

func (r *handshakeResult) print(w io.Writer) {
	fmt.Fprintf(w, "Connected to %s in %s\n", r.addr, r.duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  Protocol: %s\n", tls.VersionName(r.state.Version))
	fmt.Fprintf(w, "  Cipher:   %s\n", tls.CipherSuiteName(r.state.CipherSuite))
	fmt.Fprintln(w, "Server chain:")
	for i, c := range r.state.PeerCertificates {
		printCert(w, i, c)
	}
	if r.client == nil || len(r.client.Certificate) == 0 {
		fmt.Fprintln(w, "Client certificate: none requested or none offered")
		return
	}
	fmt.Fprintln(w, "Client certificate:")
	if leaf, err := x509.ParseCertificate(r.client.Certificate[0]); err == nil {
		printCert(w, 0, leaf)
	}
}

func printCert(w io.Writer, i int, c *x509.Certificate) {
	fmt.Fprintf(w, "  %d: subject=%s\n", i, c.Subject)
	fmt.Fprintf(w, "     issuer=%s\n", c.Issuer)
	fmt.Fprintf(w, "     valid %s to %s\n", c.NotBefore.Format(time.DateOnly), c.NotAfter.Format(time.DateOnly))
}
