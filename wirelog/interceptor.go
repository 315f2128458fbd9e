package wirelog

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/smnsjas/go-wspool/soap"
	"github.com/smnsjas/go-wspool/soap/transport"
)

// Owner is the tag owner shared by the wire loggers.
const Owner = "wirelog"

// Message and exchange property keys.
const (
	// loggedKey marks a message that has already been captured.
	loggedKey = "wirelog.logged"

	// exchangeIDKey holds the exchange correlation ID.
	exchangeIDKey = "wirelog.exchange-id"
)

var (
	// InTag identifies the inbound logger in a chain.
	InTag = soap.Tag{Direction: soap.Inbound, Owner: Owner}

	// OutTag identifies the outbound logger in a chain.
	OutTag = soap.Tag{Direction: soap.Outbound, Owner: Owner}
)

// Option configures a logger.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used to report sink failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Install adds an InLogger to in and an OutLogger to out. Loggers already
// installed, whatever their sink, are replaced.
func Install(in, out *soap.Chain, sink Sink, opts ...Option) {
	in.Add(NewInLogger(sink, opts...))
	out.Add(NewOutLogger(sink, opts...))
}

// Uninstall removes the wire loggers from both chains.
func Uninstall(in, out *soap.Chain) {
	in.Remove(InTag)
	out.Remove(OutTag)
}

// Installed returns the sink of the installed outbound logger, if any.
func Installed(out *soap.Chain) (Sink, bool) {
	i, ok := out.Get(OutTag)
	if !ok {
		return nil, false
	}
	l, ok := i.(*OutLogger)
	if !ok {
		return nil, false
	}
	return l.sink, true
}

// markFirst reports whether msg has not been captured yet and marks it. It
// returns the exchange ID, creating one on first use.
func markFirst(msg *soap.Message) (string, bool) {
	if msg.Has(loggedKey) {
		return "", false
	}
	id := exchangeID(msg.Exchange)
	msg.Set(loggedKey, id)
	return id, true
}

func exchangeID(ex *soap.Exchange) string {
	if ex == nil {
		return uuid.NewString()
	}
	if v, ok := ex.Get(exchangeIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	id := uuid.NewString()
	ex.Set(exchangeIDKey, id)
	return id
}

// InLogger captures inbound messages. It runs in the receive phase, before
// the response is parsed.
type InLogger struct {
	sink   Sink
	logger *slog.Logger
}

// NewInLogger returns an inbound logger delivering to sink.
func NewInLogger(sink Sink, opts ...Option) *InLogger {
	o := buildOptions(opts)
	return &InLogger{sink: sink, logger: o.logger}
}

// Tag implements soap.Interceptor.
func (l *InLogger) Tag() soap.Tag { return InTag }

// Phase implements soap.Interceptor.
func (l *InLogger) Phase() soap.Phase { return soap.PhaseReceive }

// Sink returns the sink records are delivered to.
func (l *InLogger) Sink() Sink { return l.sink }

// HandleMessage reads the inbound stream into memory and replaces it with a
// reader over the same bytes. A read failure is not reported here: the
// replacement stream returns the bytes read so far followed by the error.
func (l *InLogger) HandleMessage(msg *soap.Message) error {
	id, first := markFirst(msg)
	if !first || msg.In == nil {
		return nil
	}

	var buf bytes.Buffer
	_, err := buf.ReadFrom(msg.In)
	data := buf.Bytes()
	if err != nil {
		msg.In = io.MultiReader(bytes.NewReader(data), errReader{err})
		l.logger.Debug("wirelog: response not captured",
			"exchange", id,
			"address", msg.Address,
			"error", err)
		return nil
	}
	msg.In = bytes.NewReader(data)

	deliver(l.logger, l.sink, false, Record{
		ExchangeID: id,
		Head:       statusLine(msg.StatusCode),
		Address:    msg.Address,
		Operation:  msg.Operation,
		Header:     msg.Header.Clone(),
		Body:       string(data),
	})
	return nil
}

func statusLine(code int) string {
	if code == 0 {
		return ""
	}
	return fmt.Sprintf("HTTP %d %s", code, http.StatusText(code))
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

// OutLogger captures outbound messages. It runs before the envelope is
// written and wraps the output stream.
type OutLogger struct {
	sink   Sink
	logger *slog.Logger
}

// NewOutLogger returns an outbound logger delivering to sink.
func NewOutLogger(sink Sink, opts ...Option) *OutLogger {
	o := buildOptions(opts)
	return &OutLogger{sink: sink, logger: o.logger}
}

// Tag implements soap.Interceptor.
func (l *OutLogger) Tag() soap.Tag { return OutTag }

// Phase implements soap.Interceptor.
func (l *OutLogger) Phase() soap.Phase { return soap.PhasePreStream }

// Sink returns the sink records are delivered to.
func (l *OutLogger) Sink() Sink { return l.sink }

// HandleMessage replaces the output stream with a tee. The request is
// delivered when the stream is closed.
func (l *OutLogger) HandleMessage(msg *soap.Message) error {
	id, first := markFirst(msg)
	if !first || msg.Out == nil {
		return nil
	}
	msg.Out = &teeWriter{
		dst:   msg.Out,
		buf:   transport.GetBuffer(),
		msg:   msg,
		id:    id,
		owner: l,
	}
	return nil
}

// teeWriter writes through to dst while keeping a copy.
type teeWriter struct {
	dst    io.WriteCloser
	buf    *bytes.Buffer
	msg    *soap.Message
	id     string
	owner  *OutLogger
	closed bool
}

func (w *teeWriter) Write(p []byte) (int, error) {
	n, err := w.dst.Write(p)
	if n > 0 && w.buf != nil {
		w.buf.Write(p[:n])
	}
	return n, err
}

// Flush flushes dst when it supports flushing. It does not deliver the
// record; only Close does.
func (w *teeWriter) Flush() error {
	if f, ok := w.dst.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

func (w *teeWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.deliver()
	w.msg.Out = w.dst
	return w.dst.Close()
}

// deliver hands the captured request to the sink and releases the buffer,
// even when building the record panics.
func (w *teeWriter) deliver() {
	buf := w.buf
	w.buf = nil
	defer transport.PutBuffer(buf)
	defer func() {
		if v := recover(); v != nil {
			w.owner.logger.Warn("wirelog: request not captured",
				"exchange", w.id,
				"panic", fmt.Sprint(v))
		}
	}()

	body := buf.Bytes()
	if len(body) == 0 {
		// Nothing was written; the request never reached the wire.
		return
	}
	header := w.msg.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	if header.Get("Content-Type") == "" {
		header.Set("Content-Type", "text/xml; charset=utf-8")
	}
	operation := w.msg.Operation
	if operation == "" {
		operation = operationName(body)
	}

	deliver(w.owner.logger, w.owner.sink, true, Record{
		ExchangeID: w.id,
		Head:       http.MethodPost + " " + w.msg.Address,
		Address:    w.msg.Address,
		Operation:  operation,
		Header:     header,
		Body:       string(body),
	})
}
