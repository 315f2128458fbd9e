package wirelog

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wslog "github.com/smnsjas/go-wspool/internal/log"
	"github.com/smnsjas/go-wspool/soap"
)

type event struct {
	kind   string
	record Record
}

// recordingSink keeps every record in delivery order.
type recordingSink struct {
	mu     sync.Mutex
	events []event
}

func (s *recordingSink) LogRequest(r Record)  { s.add("request", r) }
func (s *recordingSink) LogResponse(r Record) { s.add("response", r) }

func (s *recordingSink) add(kind string, r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event{kind, r})
}

func (s *recordingSink) Events() []event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event(nil), s.events...)
}

type panicSink struct{}

func (panicSink) LogRequest(Record)  { panic("request sink down") }
func (panicSink) LogResponse(Record) { panic("response sink down") }

// closeRecorder is an output stream that remembers whether it was closed.
type closeRecorder struct {
	bytes.Buffer
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func outMessage(dst io.WriteCloser) *soap.Message {
	return &soap.Message{
		Exchange:  soap.NewExchange(),
		Direction: soap.Outbound,
		Address:   "https://svc/a",
		Header:    http.Header{"Soapaction": {`"urn:Ping"`}},
		Out:       dst,
	}
}

func TestRecord_String(t *testing.T) {
	r := Record{
		Head: "POST https://svc/a",
		Header: http.Header{
			"Soapaction":   {`"urn:Ping"`},
			"Content-Type": {"text/xml; charset=utf-8"},
			"Accept":       {"text/xml", "application/soap+xml"},
		},
		Body: "<Ping/>",
	}
	want := "POST https://svc/a\n" +
		"Accept: [text/xml, application/soap+xml]\n" +
		"Content-Type: [text/xml; charset=utf-8]\n" +
		"Soapaction: [\"urn:Ping\"]\n" +
		"\n<Ping/>"
	assert.Equal(t, want, r.String())

	assert.Equal(t, "", Record{}.String())
	assert.Equal(t, "\nbody", Record{Body: "body"}.String())
}

func TestOutLogger_DeliversOnClose(t *testing.T) {
	sink := &recordingSink{}
	dst := &closeRecorder{}
	msg := outMessage(dst)

	require.NoError(t, NewOutLogger(sink).HandleMessage(msg))
	require.NotSame(t, dst, msg.Out)

	_, err := io.WriteString(msg.Out, "PI")
	require.NoError(t, err)
	_, err = io.WriteString(msg.Out, "NG")
	require.NoError(t, err)

	flusher, ok := msg.Out.(interface{ Flush() error })
	require.True(t, ok)
	require.NoError(t, flusher.Flush())
	assert.Empty(t, sink.Events(), "flush must not deliver")

	require.NoError(t, msg.Out.Close())
	assert.True(t, dst.closed)
	assert.Equal(t, "PING", dst.String(), "bytes must pass through unchanged")
	assert.Same(t, dst, msg.Out, "original stream not restored")

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "request", events[0].kind)
	r := events[0].record
	assert.Equal(t, "PING", r.Body)
	assert.Equal(t, "https://svc/a", r.Address)
	assert.Equal(t, "POST https://svc/a", r.Head)
	assert.Equal(t, "text/xml; charset=utf-8", r.Header.Get("Content-Type"))
	assert.Equal(t, `"urn:Ping"`, r.Header.Get("SOAPAction"))
	assert.NotEmpty(t, r.ExchangeID)

	// A second close is a no-op on the restored stream.
	require.NoError(t, msg.Out.Close())
	assert.Len(t, sink.Events(), 1)
}

func TestOutLogger_CloseWithoutWrite(t *testing.T) {
	sink := &recordingSink{}
	dst := &closeRecorder{}
	msg := outMessage(dst)

	require.NoError(t, NewOutLogger(sink).HandleMessage(msg))
	require.NoError(t, msg.Out.Close())
	assert.True(t, dst.closed)
	assert.Same(t, dst, msg.Out)
	assert.Empty(t, sink.Events())
}

func TestClientExchange_LaterInterceptorFails(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { requests++ }))
	defer srv.Close()

	sink := &recordingSink{}
	c := soap.NewClient(soap.WithAddress(srv.URL))
	Install(c.InInterceptors(), c.OutInterceptors(), sink)
	c.OutInterceptors().Add(rejectWrite{})

	_, err := c.Invoke(context.Background(), "Ping", []byte("<Ping/>"))
	require.Error(t, err)
	assert.Zero(t, requests)
	assert.Empty(t, sink.Events(), "nothing was sent, nothing to log")
}

// rejectWrite fails the outbound chain after the wire logger ran.
type rejectWrite struct{}

func (rejectWrite) Tag() soap.Tag     { return soap.Tag{Direction: soap.Outbound, Owner: "reject"} }
func (rejectWrite) Phase() soap.Phase { return soap.PhaseWrite }
func (rejectWrite) HandleMessage(m *soap.Message) error {
	if _, ok := m.Out.(*teeWriter); !ok {
		return errors.New("wire logger did not run first")
	}
	return errors.New("rejected")
}

func TestOutLogger_SkipsMarkedMessage(t *testing.T) {
	sink := &recordingSink{}
	dst := &closeRecorder{}
	msg := outMessage(dst)

	l := NewOutLogger(sink)
	require.NoError(t, l.HandleMessage(msg))
	wrapped := msg.Out
	require.NoError(t, l.HandleMessage(msg))
	assert.Same(t, wrapped, msg.Out, "second pass wrapped the stream again")

	_, _ = io.WriteString(msg.Out, "x")
	require.NoError(t, msg.Out.Close())
	assert.Len(t, sink.Events(), 1)
}

func TestOutLogger_SinkPanicIsContained(t *testing.T) {
	dst := &closeRecorder{}
	msg := outMessage(dst)
	require.NoError(t, NewOutLogger(panicSink{}).HandleMessage(msg))

	_, err := io.WriteString(msg.Out, "PING")
	require.NoError(t, err)
	assert.NotPanics(t, func() { require.NoError(t, msg.Out.Close()) })
	assert.True(t, dst.closed)
	assert.Same(t, dst, msg.Out)
}

func TestInLogger_ReplacesStream(t *testing.T) {
	sink := &recordingSink{}
	msg := &soap.Message{
		Exchange:   soap.NewExchange(),
		Direction:  soap.Inbound,
		Address:    "https://svc/a",
		Operation:  "Ping",
		Header:     http.Header{"Content-Type": {"text/xml"}},
		StatusCode: http.StatusOK,
		In:         strings.NewReader("PONG"),
	}

	l := NewInLogger(sink)
	require.NoError(t, l.HandleMessage(msg))
	require.NoError(t, l.HandleMessage(msg))

	data, err := io.ReadAll(msg.In)
	require.NoError(t, err)
	assert.Equal(t, "PONG", string(data))

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "response", events[0].kind)
	assert.Equal(t, "PONG", events[0].record.Body)
	assert.Equal(t, "Ping", events[0].record.Operation)
	assert.Equal(t, "HTTP 200 OK", events[0].record.Head)
}

func TestInLogger_ReadError(t *testing.T) {
	sink := &recordingSink{}
	broken := errors.New("connection reset")
	msg := &soap.Message{
		Exchange:  soap.NewExchange(),
		Direction: soap.Inbound,
		In:        io.MultiReader(strings.NewReader("PAR"), errorReader{broken}),
	}

	require.NoError(t, NewInLogger(sink).HandleMessage(msg))
	require.NotNil(t, msg.In)

	data, err := io.ReadAll(msg.In)
	assert.ErrorIs(t, err, broken)
	assert.Equal(t, "PAR", string(data))
	assert.Empty(t, sink.Events())
}

type errorReader struct{ err error }

func (r errorReader) Read([]byte) (int, error) { return 0, r.err }

func TestExchangeIDShared(t *testing.T) {
	sink := &recordingSink{}
	ex := soap.NewExchange()
	out := outMessage(&closeRecorder{})
	out.Exchange = ex
	in := &soap.Message{Exchange: ex, Direction: soap.Inbound, In: strings.NewReader("x")}

	require.NoError(t, NewOutLogger(sink).HandleMessage(out))
	require.NoError(t, out.Out.Close())
	require.NoError(t, NewInLogger(sink).HandleMessage(in))

	events := sink.Events()
	require.Len(t, events, 2)
	assert.Equal(t, events[0].record.ExchangeID, events[1].record.ExchangeID)
}

func TestInstall_ReplacesPreviousSink(t *testing.T) {
	var in, out soap.Chain
	first, second := &recordingSink{}, &recordingSink{}

	Install(&in, &out, first)
	Install(&in, &out, second)

	assert.Equal(t, 1, in.Len())
	assert.Equal(t, 1, out.Len())
	got, ok := Installed(&out)
	require.True(t, ok)
	assert.Same(t, second, got)

	Uninstall(&in, &out)
	assert.Zero(t, in.Len())
	assert.Zero(t, out.Len())
	_, ok = Installed(&out)
	assert.False(t, ok)
}

func TestClientExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "PING") {
			t.Errorf("request body = %s", body)
		}
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		_, _ = io.WriteString(w, `<s:Envelope xmlns:s="`+soap.NsSoap11+`"><s:Body><Pong>PONG</Pong></s:Body></s:Envelope>`)
	}))
	defer srv.Close()

	sink := &recordingSink{}
	c := soap.NewClient(soap.WithAddress(srv.URL))
	Install(c.InInterceptors(), c.OutInterceptors(), &recordingSink{})
	Install(c.InInterceptors(), c.OutInterceptors(), sink)

	body, err := c.Invoke(context.Background(), "Ping", []byte("<Ping>PING</Ping>"))
	require.NoError(t, err)
	assert.Equal(t, "<Pong>PONG</Pong>", string(body))

	events := sink.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "request", events[0].kind)
	assert.Contains(t, events[0].record.Body, "<Ping>PING</Ping>")
	assert.Equal(t, "Ping", events[0].record.Operation)
	assert.Equal(t, "response", events[1].kind)
	assert.Contains(t, events[1].record.Body, "PONG")
}

func TestClientExchange_SinkPanicDoesNotFailCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `<s:Envelope xmlns:s="`+soap.NsSoap11+`"><s:Body><ok/></s:Body></s:Envelope>`)
	}))
	defer srv.Close()

	c := soap.NewClient(soap.WithAddress(srv.URL))
	Install(c.InInterceptors(), c.OutInterceptors(), panicSink{}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	body, err := c.Invoke(context.Background(), "Ping", nil)
	require.NoError(t, err)
	assert.Equal(t, "<ok/>", string(body))
}

func TestOperationName(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"soap 1.1", `<s:Envelope xmlns:s="` + soap.NsSoap11 + `"><s:Body><m:GetQuote xmlns:m="urn:q"/></s:Body></s:Envelope>`, "GetQuote"},
		{"with header", `<Envelope><Header><a/></Header><Body><Ping/></Body></Envelope>`, "Ping"},
		{"empty body", `<Envelope><Body/></Envelope>`, ""},
		{"not an envelope", `<Ping/>`, ""},
		{"not xml", `PING`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, operationName([]byte(tt.body)))
		})
	}
}

func TestSlogSink_RedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	handler := wslog.NewRedactingHandler(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	sink := NewSlogSink(slog.New(handler))

	sink.LogRequest(Record{
		Address: "https://svc/a",
		Header: http.Header{
			"Authorization": {"Basic dXNlcjpwYXNz"},
			"Cookie":        {"session=abc"},
			"Content-Type":  {"text/xml"},
		},
		Body: "PING",
	})

	out := buf.String()
	assert.Contains(t, out, `"msg":"soap request"`)
	assert.Contains(t, out, `"body":"PING"`)
	assert.Contains(t, out, "text/xml")
	assert.NotContains(t, out, "dXNlcjpwYXNz")
	assert.NotContains(t, out, "session=abc")
}

func TestSlogSink_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	NewSlogSink(logger).LogResponse(Record{Body: "hidden"})
	assert.Empty(t, buf.String())

	NewSlogSink(logger).WithLevel(slog.LevelInfo).LogResponse(Record{Body: "shown"})
	assert.Contains(t, buf.String(), "shown")
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wire.log")
	sink, err := NewFileSink(path, 1<<20, 2)
	require.NoError(t, err)

	sink.LogRequest(Record{ExchangeID: "ex-1", Head: "POST https://svc/a", Body: "PING"})
	sink.LogResponse(Record{ExchangeID: "ex-1", Head: "HTTP 200 OK", Body: "PONG"})
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "--- request ex-1 ---\nPOST https://svc/a\n\nPING")
	assert.Contains(t, text, "--- response ex-1 ---\nHTTP 200 OK\n\nPONG")
	assert.Less(t, strings.Index(text, "PING"), strings.Index(text, "PONG"))
}
