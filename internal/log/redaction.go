package log

import (
	"context"
	"log/slog"
	"strings"
)

// Redacted replaces the value of a sensitive attribute.
const Redacted = "[REDACTED]"

// defaultSensitiveKeys are matched as case-insensitive substrings of
// attribute keys. HTTP credential headers (Authorization, Cookie,
// Set-Cookie, Proxy-Authorization) are covered.
var defaultSensitiveKeys = []string{
	"password",
	"pass",
	"secret",
	"token",
	"key",
	"hash",
	"auth",
	"ticket",
	"cred",
	"cookie",
	"session",
}

// RedactingHandler is a slog.Handler that redacts sensitive attributes,
// including those nested in groups.
type RedactingHandler struct {
	next slog.Handler
	keys []string
}

// NewRedactingHandler wraps next. extraKeys are matched in addition to the
// default sensitive keys.
func NewRedactingHandler(next slog.Handler, extraKeys ...string) *RedactingHandler {
	keys := make([]string, 0, len(defaultSensitiveKeys)+len(extraKeys))
	keys = append(keys, defaultSensitiveKeys...)
	for _, k := range extraKeys {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keys = append(keys, k)
		}
	}
	return &RedactingHandler{next: next, keys: keys}
}

// Enabled implements slog.Handler.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redact(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

// WithAttrs implements slog.Handler.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.redact(a)
	}
	return &RedactingHandler{next: h.next.WithAttrs(redacted), keys: h.keys}
}

// WithGroup implements slog.Handler.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{next: h.next.WithGroup(name), keys: h.keys}
}

func (h *RedactingHandler) redact(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		group := make([]any, len(attrs))
		for i, attr := range attrs {
			group[i] = h.redact(attr)
		}
		return slog.Group(a.Key, group...)
	}
	if h.sensitive(a.Key) {
		return slog.String(a.Key, Redacted)
	}
	return a
}

func (h *RedactingHandler) sensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, k := range h.keys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
