package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// TestNewHTTPTransport verifies transport creation with default settings.
func TestNewHTTPTransport(t *testing.T) {
	tr := NewHTTPTransport()
	if tr == nil {
		t.Fatal("NewHTTPTransport returned nil")
	}
	httpTransport, ok := tr.client.Transport.(*http.Transport)
	if !ok {
		t.Fatal("transport is not *http.Transport")
	}
	if httpTransport.DisableKeepAlives {
		t.Error("keep-alives disabled by default")
	}
	if httpTransport.ResponseHeaderTimeout != DefaultResponseHeaderTimeout {
		t.Errorf("ResponseHeaderTimeout = %v, want %v", httpTransport.ResponseHeaderTimeout, DefaultResponseHeaderTimeout)
	}
	if httpTransport.TLSHandshakeTimeout != DefaultConnectTimeout {
		t.Errorf("TLSHandshakeTimeout = %v, want %v", httpTransport.TLSHandshakeTimeout, DefaultConnectTimeout)
	}
	if httpTransport.DialTLSContext != nil {
		t.Error("DialTLSContext set without a TLS dialer")
	}
}

// TestHTTPTransport_WithTimeout verifies timeout configuration.
func TestHTTPTransport_WithTimeout(t *testing.T) {
	timeout := 30 * time.Second
	tr := NewHTTPTransport(WithTimeout(timeout))

	if tr.client.Timeout != timeout {
		t.Errorf("got timeout %v, want %v", tr.client.Timeout, timeout)
	}
}

// TestHTTPTransport_Timeouts verifies connect and response timeouts.
func TestHTTPTransport_Timeouts(t *testing.T) {
	tr := NewHTTPTransport(
		WithResponseHeaderTimeout(5*time.Second),
		WithConnectTimeout(2*time.Second),
	)
	httpTransport := tr.client.Transport.(*http.Transport)
	if httpTransport.ResponseHeaderTimeout != 5*time.Second {
		t.Errorf("ResponseHeaderTimeout = %v", httpTransport.ResponseHeaderTimeout)
	}
	if httpTransport.TLSHandshakeTimeout != 2*time.Second {
		t.Errorf("TLSHandshakeTimeout = %v", httpTransport.TLSHandshakeTimeout)
	}
}

// TestHTTPTransport_WithTLSConfig verifies custom TLS configuration.
func TestHTTPTransport_WithTLSConfig(t *testing.T) {
	tlsCfg := &tls.Config{
		MinVersion: tls.VersionTLS10,
	}
	tr := NewHTTPTransport(WithTLSConfig(tlsCfg))

	httpTransport, ok := tr.client.Transport.(*http.Transport)
	if !ok {
		t.Fatal("transport is not *http.Transport")
	}
	if httpTransport.TLSClientConfig != tlsCfg {
		t.Error("TLSClientConfig does not match provided config")
	}
	if tlsCfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %x, want TLS 1.2", tlsCfg.MinVersion)
	}
}

// TestHTTPTransport_WithTLSDialer verifies HTTPS connections go through the dialer.
func TestHTTPTransport_WithTLSDialer(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	var dials atomic.Int32
	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		dials.Add(1)
		if _, ok := ctx.Deadline(); !ok {
			t.Error("dial context has no deadline")
		}
		d := &tls.Dialer{Config: &tls.Config{InsecureSkipVerify: true}} //nolint:gosec // test server
		return d.DialContext(ctx, network, addr)
	}

	tr := NewHTTPTransport(WithTLSDialer(dial), WithConnectTimeout(time.Second))
	resp, err := tr.Post(context.Background(), server.URL, nil, []byte("<a/>"))
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	defer resp.Body.Close()
	if dials.Load() != 1 {
		t.Errorf("dialer called %d times, want 1", dials.Load())
	}
}

// TestHTTPTransport_Post verifies basic request execution.
func TestHTTPTransport_Post(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "text/xml; charset=utf-8" {
			t.Errorf("unexpected Content-Type: %s", ct)
		}
		if sa := r.Header.Get("SOAPAction"); sa != `"urn:ping"` {
			t.Errorf("unexpected SOAPAction: %s", sa)
		}

		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "test-body") {
			t.Errorf("unexpected body: %s", body)
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<response>ok</response>"))
	}))
	defer server.Close()

	tr := NewHTTPTransport()
	header := http.Header{}
	header.Set("Content-Type", "text/xml; charset=utf-8")
	header.Set("SOAPAction", `"urn:ping"`)

	resp, err := tr.Post(context.Background(), server.URL, header, []byte("<request>test-body</request>"))
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if !strings.Contains(string(body), "ok") {
		t.Errorf("unexpected response: %s", body)
	}
}

// TestHTTPTransport_Post_WithContext verifies context cancellation.
func TestHTTPTransport_Post_WithContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tr := NewHTTPTransport()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := tr.Post(ctx, server.URL, nil, []byte("<request/>"))
	if err == nil {
		t.Error("expected context deadline exceeded error")
	}
}

// TestHTTPTransport_Post_Error verifies error handling for failed requests.
func TestHTTPTransport_Post_Error(t *testing.T) {
	tr := NewHTTPTransport()

	_, err := tr.Post(context.Background(), "http://localhost:1", nil, []byte("<request/>"))
	if err == nil {
		t.Error("expected connection error")
	}
}

// TestHTTPTransport_WithProxy verifies proxy configuration.
func TestHTTPTransport_WithProxy(t *testing.T) {
	tests := []struct {
		name     string
		proxyURL string
		wantNil  bool
	}{
		{"empty uses defaults", "", false},
		{"direct bypasses proxy", "direct", true},
		{"explicit proxy URL", "http://proxy.example.com:8080", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewHTTPTransport(WithProxy(tt.proxyURL))

			httpTransport, ok := tr.client.Transport.(*http.Transport)
			if !ok {
				t.Fatal("transport is not *http.Transport")
			}
			if (httpTransport.Proxy == nil) != tt.wantNil {
				t.Errorf("Proxy nil = %v, want %v", httpTransport.Proxy == nil, tt.wantNil)
			}
		})
	}
}

// TestHTTPTransport_WithKeepAlive verifies connection reuse configuration.
func TestHTTPTransport_WithKeepAlive(t *testing.T) {
	tr := NewHTTPTransport(WithKeepAlive(false), WithMaxConnsPerHost(4))
	httpTransport := tr.client.Transport.(*http.Transport)
	if !httpTransport.DisableKeepAlives {
		t.Error("keep-alives still enabled")
	}
	if httpTransport.MaxConnsPerHost != 4 || httpTransport.MaxIdleConnsPerHost != 4 {
		t.Errorf("conns per host = %d/%d, want 4/4", httpTransport.MaxConnsPerHost, httpTransport.MaxIdleConnsPerHost)
	}
}

// TestCheckStatus verifies status code mapping.
func TestCheckStatus(t *testing.T) {
	tests := []struct {
		code    int
		wantErr error
	}{
		{http.StatusOK, nil},
		{http.StatusAccepted, nil},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrForbidden},
	}
	for _, tt := range tests {
		if err := CheckStatus(tt.code, nil); !errors.Is(err, tt.wantErr) {
			t.Errorf("CheckStatus(%d) = %v, want %v", tt.code, err, tt.wantErr)
		}
	}

	long := strings.Repeat("x", maxErrorPreview+10)
	err := CheckStatus(http.StatusBadGateway, []byte(long))
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("CheckStatus(502) = %T, want *StatusError", err)
	}
	if se.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d", se.StatusCode)
	}
	if !strings.HasSuffix(se.Body, "...") || len(se.Body) != maxErrorPreview+3 {
		t.Errorf("body preview not truncated: len=%d", len(se.Body))
	}
}

// TestReadAll verifies pooled reads return independent copies.
func TestReadAll(t *testing.T) {
	a, err := ReadAll(strings.NewReader("first"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := ReadAll(strings.NewReader("second"))
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != "first" || string(b) != "second" {
		t.Errorf("got %q, %q", a, b)
	}
}
