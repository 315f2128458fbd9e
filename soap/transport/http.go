package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// ErrUnauthorized is returned when the server responds with 401 Unauthorized.
// Use errors.Is(err, ErrUnauthorized) to check for authentication failures.
var ErrUnauthorized = errors.New("transport: authentication failed (401 Unauthorized)")

// ErrForbidden is returned when the server responds with 403 Forbidden.
var ErrForbidden = errors.New("transport: access denied (403 Forbidden)")

const (
	// DefaultTimeout is the default overall request timeout. Zero disables it;
	// callers normally bound requests with connect and response timeouts.
	DefaultTimeout = 0

	// DefaultConnectTimeout bounds TCP connect plus TLS handshake.
	DefaultConnectTimeout = 30 * time.Second

	// DefaultResponseHeaderTimeout bounds the wait for the response headers.
	DefaultResponseHeaderTimeout = 60 * time.Second

	// defaultBufferSize is the initial size for pooled buffers.
	defaultBufferSize = 32 * 1024 // 32KB

	// maxErrorPreview limits the response body included in status errors.
	maxErrorPreview = 3000
)

// bufferPool is a pool of reusable bytes.Buffer to reduce allocations.
var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, defaultBufferSize))
	},
}

// GetBuffer returns an empty buffer from the pool.
func GetBuffer() *bytes.Buffer {
	return bufferPool.Get().(*bytes.Buffer)
}

// PutBuffer returns a buffer to the pool after resetting it.
func PutBuffer(buf *bytes.Buffer) {
	buf.Reset()
	bufferPool.Put(buf)
}

// ReadAll reads from r using a pooled buffer and returns a copy of the data.
func ReadAll(r io.Reader) ([]byte, error) {
	buf := GetBuffer()
	defer PutBuffer(buf)

	_, err := buf.ReadFrom(r)
	if err != nil {
		return nil, err
	}

	// Return a copy since buf will be reused
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}

// StatusError reports an HTTP error status that carried no SOAP fault.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("transport: HTTP %d: %s", e.StatusCode, e.Body)
}

// CheckStatus maps an HTTP status to an error. body is used for the error
// preview only.
func CheckStatus(code int, body []byte) error {
	switch {
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code == http.StatusForbidden:
		return ErrForbidden
	case code >= 400:
		preview := string(body)
		if len(preview) > maxErrorPreview {
			preview = preview[:maxErrorPreview] + "..."
		}
		return &StatusError{StatusCode: code, Body: preview}
	}
	return nil
}

// DialFunc opens a connection. TLS dialers return a connection that has
// completed its handshake.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// HTTPTransport handles HTTP/HTTPS communication for SOAP endpoints.
type HTTPTransport struct {
	client *http.Client

	connectTimeout time.Duration
	dialTLS        DialFunc
}

// HTTPTransportOption configures an HTTPTransport.
type HTTPTransportOption func(*HTTPTransport)

// NewHTTPTransport creates a new HTTP transport with the given options.
func NewHTTPTransport(opts ...HTTPTransportOption) *HTTPTransport {
	t := &HTTPTransport{
		client: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				// NTLM requires persistent connections for the handshake
				DisableKeepAlives:     false,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
				ResponseHeaderTimeout: DefaultResponseHeaderTimeout,
			},
		},
		connectTimeout: DefaultConnectTimeout,
	}

	for _, opt := range opts {
		opt(t)
	}
	t.wireDialers()

	return t
}

// wireDialers installs the plain and TLS dialers once all options are known,
// so the connect timeout applies to both regardless of option order.
func (t *HTTPTransport) wireDialers() {
	transport := t.ensureHTTPTransport()
	d := &net.Dialer{Timeout: t.connectTimeout, KeepAlive: 30 * time.Second}
	transport.DialContext = d.DialContext
	transport.TLSHandshakeTimeout = t.connectTimeout

	if t.dialTLS == nil {
		return
	}
	dial := t.dialTLS
	timeout := t.connectTimeout
	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return dial(ctx, network, addr)
	}
}

// WithTimeout sets the overall HTTP client timeout.
func WithTimeout(d time.Duration) HTTPTransportOption {
	return func(t *HTTPTransport) {
		t.client.Timeout = d
	}
}

// WithConnectTimeout bounds connection establishment, including the TLS
// handshake.
func WithConnectTimeout(d time.Duration) HTTPTransportOption {
	return func(t *HTTPTransport) {
		t.connectTimeout = d
	}
}

// WithResponseHeaderTimeout bounds the wait for response headers after the
// request has been written.
func WithResponseHeaderTimeout(d time.Duration) HTTPTransportOption {
	return func(t *HTTPTransport) {
		t.ensureHTTPTransport().ResponseHeaderTimeout = d
	}
}

// WithTLSConfig sets a custom TLS configuration.
// NOTE: MinVersion is enforced to be at least TLS 1.2 for security.
func WithTLSConfig(cfg *tls.Config) HTTPTransportOption {
	return func(t *HTTPTransport) {
		transport := t.ensureHTTPTransport()
		// Enforce minimum TLS 1.2 regardless of user config
		if cfg.MinVersion < tls.VersionTLS12 {
			cfg.MinVersion = tls.VersionTLS12
		}
		transport.TLSClientConfig = cfg
	}
}

// WithTLSDialer sets the function used to open HTTPS connections. The
// TLS configuration is still used for connections tunneled through a proxy.
func WithTLSDialer(dial DialFunc) HTTPTransportOption {
	return func(t *HTTPTransport) {
		t.dialTLS = dial
	}
}

// WithProxy configures the proxy. An empty string keeps the environment
// settings (HTTPS_PROXY, NO_PROXY), "direct" disables proxying, and any other
// value is used as the proxy URL. Invalid URLs fall back to the environment.
func WithProxy(proxy string) HTTPTransportOption {
	return func(t *HTTPTransport) {
		transport := t.ensureHTTPTransport()
		switch proxy {
		case "":
			transport.Proxy = http.ProxyFromEnvironment
		case "direct":
			transport.Proxy = nil
		default:
			u, err := url.Parse(proxy)
			if err != nil || u.Host == "" {
				transport.Proxy = http.ProxyFromEnvironment
				return
			}
			transport.Proxy = http.ProxyURL(u)
		}
	}
}

// WithKeepAlive enables or disables persistent connections.
func WithKeepAlive(enabled bool) HTTPTransportOption {
	return func(t *HTTPTransport) {
		t.ensureHTTPTransport().DisableKeepAlives = !enabled
	}
}

// WithMaxConnsPerHost limits connections per host. Zero means no limit.
func WithMaxConnsPerHost(n int) HTTPTransportOption {
	return func(t *HTTPTransport) {
		transport := t.ensureHTTPTransport()
		transport.MaxConnsPerHost = n
		if n > 0 && transport.MaxIdleConnsPerHost > n {
			transport.MaxIdleConnsPerHost = n
		}
	}
}

// ensureHTTPTransport ensures the client has an *http.Transport.
func (t *HTTPTransport) ensureHTTPTransport() *http.Transport {
	if t.client.Transport == nil {
		t.client.Transport = &http.Transport{}
	}
	transport, ok := t.client.Transport.(*http.Transport)
	if !ok {
		transport = &http.Transport{}
		t.client.Transport = transport
	}
	return transport
}

// Post sends a request with the given headers and returns the response with
// its body unread. The caller must close the body.
func (t *HTTPTransport) Post(ctx context.Context, url string, header http.Header, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("transport: failed to create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = append([]string(nil), v...)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: request failed: %w", err)
	}
	return resp, nil
}

// Client returns the underlying HTTP client for advanced configuration.
func (t *HTTPTransport) Client() *http.Client {
	return t.client
}

// CloseIdleConnections closes any idle connections in the transport.
func (t *HTTPTransport) CloseIdleConnections() {
	t.client.CloseIdleConnections()
}
