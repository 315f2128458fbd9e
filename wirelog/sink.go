package wirelog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	wslog "github.com/smnsjas/go-wspool/internal/log"
)

// Sink receives captured records. Implementations must be safe for
// concurrent use.
type Sink interface {
	LogRequest(r Record)
	LogResponse(r Record)
}

// deliver hands r to sink, containing any panic.
func deliver(logger *slog.Logger, sink Sink, request bool, r Record) {
	defer func() {
		if v := recover(); v != nil {
			logger.Warn("wirelog: sink panicked",
				"exchange", r.ExchangeID,
				"address", r.Address,
				"panic", fmt.Sprint(v))
		}
	}()
	if request {
		sink.LogRequest(r)
		return
	}
	sink.LogResponse(r)
}

// SlogSink writes records as structured log entries. Headers are logged as
// a group, so a redacting handler hides credentials they carry.
type SlogSink struct {
	logger *slog.Logger
	level  slog.Level
}

// NewSlogSink returns a sink logging at debug level. A nil logger means
// slog.Default().
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger, level: slog.LevelDebug}
}

// WithLevel returns a copy of the sink logging at level.
func (s *SlogSink) WithLevel(level slog.Level) *SlogSink {
	cp := *s
	cp.level = level
	return &cp
}

// LogRequest implements Sink.
func (s *SlogSink) LogRequest(r Record) { s.log("soap request", r) }

// LogResponse implements Sink.
func (s *SlogSink) LogResponse(r Record) { s.log("soap response", r) }

func (s *SlogSink) log(msg string, r Record) {
	ctx := context.Background()
	if !s.logger.Enabled(ctx, s.level) {
		return
	}
	names := make([]string, 0, len(r.Header))
	for name := range r.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	headers := make([]any, 0, len(names))
	for _, name := range names {
		headers = append(headers, slog.Any(name, r.Header[name]))
	}
	s.logger.LogAttrs(ctx, s.level, msg,
		slog.String("exchange", r.ExchangeID),
		slog.String("head", r.Head),
		slog.String("address", r.Address),
		slog.String("operation", r.Operation),
		slog.Group("headers", headers...),
		slog.String("body", r.Body),
	)
}

// WriterSink writes the text form of each record to a writer.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink returns a sink writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// NewFileSink returns a sink writing to a size-rotated file. maxSize is in
// bytes; maxBackups old files are kept. Close the sink when done.
func NewFileSink(path string, maxSize int64, maxBackups int) (*WriterSink, error) {
	f, err := wslog.NewRotatingFile(path, maxSize, maxBackups)
	if err != nil {
		return nil, fmt.Errorf("wirelog: open log file: %w", err)
	}
	return &WriterSink{w: f}, nil
}

// LogRequest implements Sink.
func (s *WriterSink) LogRequest(r Record) { s.write("request", r) }

// LogResponse implements Sink.
func (s *WriterSink) LogResponse(r Record) { s.write("response", r) }

func (s *WriterSink) write(kind string, r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Write errors are dropped; logging never fails an exchange.
	_, _ = fmt.Fprintf(s.w, "--- %s %s ---\n%s\n", kind, r.ExchangeID, r.String())
}

// Close closes the underlying writer if it is an io.Closer.
func (s *WriterSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
