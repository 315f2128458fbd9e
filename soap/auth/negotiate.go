package auth

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
)

// maxNegotiateLegs bounds the challenge/response exchange of one request.
const maxNegotiateLegs = 5

var (
	// ErrNegotiateRejected is returned when the server keeps answering 401
	// after the security context was offered.
	ErrNegotiateRejected = errors.New("auth: negotiate rejected by server")

	// ErrAuthenticatorClosed is returned by transports of a closed
	// authenticator.
	ErrAuthenticatorClosed = errors.New("auth: authenticator closed")
)

// SecurityProvider produces SPNEGO tokens. A provider carries handshake
// state and is used by one authenticator, which serializes its calls.
type SecurityProvider interface {
	// Step consumes the server token, nil on the first leg, and returns the
	// token to send and whether another leg is expected.
	Step(ctx context.Context, serverToken []byte) (token []byte, continueNeeded bool, err error)

	// Complete reports whether the security context is established.
	Complete() bool

	// Close releases the provider's credentials.
	Close() error
}

// NegotiateOption configures a NegotiateAuth.
type NegotiateOption func(*NegotiateAuth)

// WithNegotiateLogger sets the logger for handshake progress. Nil means
// slog.Default().
func WithNegotiateLogger(l *slog.Logger) NegotiateOption {
	return func(a *NegotiateAuth) {
		if l != nil {
			a.logger = l
		}
	}
}

// NegotiateAuth authenticates with SPNEGO tokens from a SecurityProvider.
// It belongs to one stub: Close releases the provider when the stub is
// destroyed.
type NegotiateAuth struct {
	logger *slog.Logger

	mu       sync.Mutex
	provider SecurityProvider
	closed   bool
}

// NewNegotiateAuth returns a Negotiate authenticator owning provider.
func NewNegotiateAuth(provider SecurityProvider, opts ...NegotiateOption) *NegotiateAuth {
	a := &NegotiateAuth{provider: provider, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the scheme name.
func (a *NegotiateAuth) Name() string {
	return "Negotiate"
}

// Transport wraps base with the Negotiate exchange.
func (a *NegotiateAuth) Transport(base http.RoundTripper) http.RoundTripper {
	return &negotiateRoundTripper{base: base, auth: a}
}

// Close releases the provider. Later requests fail with
// ErrAuthenticatorClosed.
func (a *NegotiateAuth) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	return a.provider.Close()
}

// step runs one provider leg.
func (a *NegotiateAuth) step(ctx context.Context, serverToken []byte) ([]byte, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, false, ErrAuthenticatorClosed
	}
	return a.provider.Step(ctx, serverToken)
}

type negotiateRoundTripper struct {
	base http.RoundTripper
	auth *NegotiateAuth
}

func (rt *negotiateRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil && req.Body != http.NoBody {
		var err error
		body, err = io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("auth: read request body: %w", err)
		}
	}

	var token []byte
	for leg := 0; leg < maxNegotiateLegs; leg++ {
		attempt := req.Clone(req.Context())
		if body != nil {
			attempt.Body = io.NopCloser(bytes.NewReader(body))
			attempt.ContentLength = int64(len(body))
			attempt.GetBody = func() (io.ReadCloser, error) {
				return io.NopCloser(bytes.NewReader(body)), nil
			}
		}
		if token != nil {
			attempt.Header.Set("Authorization", "Negotiate "+base64.StdEncoding.EncodeToString(token))
		}

		resp, err := rt.base.RoundTrip(attempt)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusUnauthorized {
			return resp, nil
		}
		challenge, ok := negotiateChallenge(resp.Header)
		if !ok {
			return resp, nil
		}
		_ = resp.Body.Close()

		var more bool
		token, more, err = rt.auth.step(req.Context(), challenge)
		if err != nil {
			return nil, fmt.Errorf("auth: negotiate step: %w", err)
		}
		rt.auth.logger.Debug("auth: negotiate leg",
			"url", req.URL.Redacted(),
			"leg", leg+1,
			"server_token", len(challenge) > 0,
			"continue", more)

		if !more && leg > 0 {
			break
		}
	}
	return nil, fmt.Errorf("%w: %s after %d legs", ErrNegotiateRejected, req.URL.Redacted(), maxNegotiateLegs)
}

// negotiateChallenge returns the server token of a Negotiate challenge.
// A bare "Negotiate" yields a nil token.
func negotiateChallenge(h http.Header) ([]byte, bool) {
	for _, v := range h.Values("WWW-Authenticate") {
		scheme, param, _ := strings.Cut(strings.TrimSpace(v), " ")
		if !strings.EqualFold(scheme, "Negotiate") {
			continue
		}
		token, err := base64.StdEncoding.DecodeString(strings.TrimSpace(param))
		if err != nil || len(token) == 0 {
			return nil, true
		}
		return token, true
	}
	return nil, false
}
