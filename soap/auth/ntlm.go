package auth

import (
	"net/http"

	"github.com/Azure/go-ntlmssp"
)

// NTLMAuth implements NTLM authentication.
type NTLMAuth struct {
	creds Credentials
}

// NewNTLMAuth creates a new NTLM authentication handler.
func NewNTLMAuth(creds Credentials) *NTLMAuth {
	return &NTLMAuth{creds: creds}
}

// Name returns the authentication scheme name.
func (a *NTLMAuth) Name() string {
	return "NTLM"
}

// Transport wraps an http.RoundTripper with NTLM authentication.
// Uses github.com/Azure/go-ntlmssp for the NTLM handshake. The handshake is
// bound to a connection, so the base transport must keep connections alive.
func (a *NTLMAuth) Transport(base http.RoundTripper) http.RoundTripper {
	return &credentialsRoundTripper{
		creds: a.creds,
		base:  ntlmssp.Negotiator{RoundTripper: base},
	}
}

// credentialsRoundTripper hands credentials to ntlmssp.Negotiator, which
// reads them from the request's Basic auth header.
type credentialsRoundTripper struct {
	creds Credentials
	base  http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (rt *credentialsRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	reqCopy := req.Clone(req.Context())
	user := rt.creds.Username
	if rt.creds.Domain != "" {
		user = rt.creds.Domain + `\` + user
	}
	reqCopy.SetBasicAuth(user, rt.creds.Password)
	return rt.base.RoundTrip(reqCopy)
}
