package soap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/smnsjas/go-wspool/soap/transport"
)

// ErrNoAddress is returned by Invoke when no endpoint address is set.
var ErrNoAddress = errors.New("soap: endpoint address not set")

// Client is a SOAP client stub bound to one endpoint.
//
// A Client is safe for concurrent use, although pooled stubs are normally
// used by one caller at a time.
type Client struct {
	mu           sync.RWMutex
	address      string
	version      Version
	actionPrefix string
	addressing   bool

	conduit Conduit
	in      Chain
	out     Chain
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithAddress sets the endpoint address.
func WithAddress(address string) Option {
	return func(c *Client) { c.address = address }
}

// WithVersion selects the SOAP version. The default is V11.
func WithVersion(v Version) Option {
	return func(c *Client) { c.version = v }
}

// WithActionPrefix derives the SOAP action of each operation as prefix
// followed by the operation name.
func WithActionPrefix(prefix string) Option {
	return func(c *Client) { c.actionPrefix = prefix }
}

// WithAddressing adds WS-Addressing headers to each envelope.
func WithAddressing(enabled bool) Option {
	return func(c *Client) { c.addressing = enabled }
}

// WithLogger sets the logger for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates an unconfigured client.
func NewClient(opts ...Option) *Client {
	c := &Client{version: V11, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Address returns the endpoint address.
func (c *Client) Address() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.address
}

// SetAddress sets the endpoint address used by later invocations.
func (c *Client) SetAddress(address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.address = address
}

// Version returns the SOAP version.
func (c *Client) Version() Version {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// SetVersion changes the SOAP version.
func (c *Client) SetVersion(v Version) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version = v
}

// Conduit returns the client's HTTP conduit.
func (c *Client) Conduit() *Conduit {
	return &c.conduit
}

// InInterceptors returns the chain run over each response.
func (c *Client) InInterceptors() *Chain {
	return &c.in
}

// OutInterceptors returns the chain run over each request.
func (c *Client) OutInterceptors() *Chain {
	return &c.out
}

// Close releases the client's idle connections.
func (c *Client) Close() error {
	return c.conduit.Close()
}

// Invoke sends payload as the Body of operation and returns the Body of the
// response. A SOAP fault is returned as *Fault.
func (c *Client) Invoke(ctx context.Context, operation string, payload []byte) ([]byte, error) {
	c.mu.RLock()
	address, version, prefix, addressing := c.address, c.version, c.actionPrefix, c.addressing
	c.mu.RUnlock()

	if address == "" {
		return nil, ErrNoAddress
	}

	action := ""
	if prefix != "" {
		action = prefix + operation
	}

	env := NewEnvelope(version).WithBody(payload)
	if addressing {
		env.WithAction(action).
			WithTo(address).
			WithMessageID("uuid:" + strings.ToUpper(uuid.New().String())).
			WithReplyTo(AddressAnonymous)
	}
	data, err := env.Marshal()
	if err != nil {
		return nil, fmt.Errorf("soap: marshal envelope: %w", err)
	}

	ex := NewExchange()
	out := &Message{
		Exchange:  ex,
		Direction: Outbound,
		Address:   address,
		Operation: operation,
		Header:    make(http.Header),
	}
	out.Header.Set("Content-Type", version.ContentType(action))
	if version == V11 {
		out.Header.Set("SOAPAction", `"`+action+`"`)
	}
	ex.Out = out

	buf := transport.GetBuffer()
	defer transport.PutBuffer(buf)
	out.Out = nopWriteCloser{buf}

	if err := c.out.Handle(out); err != nil {
		// Wrappers installed before the failure release on close.
		_ = out.Out.Close()
		return nil, fmt.Errorf("soap: outbound: %w", err)
	}
	if err := writeMessage(out.Out, data); err != nil {
		return nil, fmt.Errorf("soap: write request: %w", err)
	}

	c.logger.Debug("soap: sending request",
		"address", address,
		"operation", operation,
		"bytes", buf.Len())

	resp, err := c.conduit.Send(ctx, address, out.Header, buf.Bytes())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	in := &Message{
		Exchange:   ex,
		Direction:  Inbound,
		Address:    address,
		Operation:  operation,
		Header:     resp.Header,
		StatusCode: resp.StatusCode,
		In:         resp.Body,
	}
	ex.In = in

	if err := c.in.Handle(in); err != nil {
		return nil, fmt.Errorf("soap: inbound: %w", err)
	}

	respData, err := transport.ReadAll(in.In)
	if err != nil {
		return nil, fmt.Errorf("soap: read response: %w", err)
	}

	c.logger.Debug("soap: received response",
		"address", address,
		"operation", operation,
		"status", resp.StatusCode,
		"bytes", len(respData))

	if resp.StatusCode >= 400 {
		if fault, ferr := ParseFault(respData); ferr == nil && fault != nil {
			return nil, fault
		}
		return nil, transport.CheckStatus(resp.StatusCode, respData)
	}
	if err := CheckFault(respData); err != nil {
		return nil, err
	}
	if len(respData) == 0 {
		// One-way operations answer 202 with no envelope.
		return nil, nil
	}
	return ParseBody(respData)
}

// writeMessage writes data, flushes if supported, then closes w. Close
// is the point where wrapping streams see the complete message.
func writeMessage(w io.WriteCloser, data []byte) error {
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	if f, ok := w.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			_ = w.Close()
			return err
		}
	}
	return w.Close()
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
