package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

// lookup walks a dotted path through decoded JSON log output.
func lookup(m map[string]any, path string) (any, bool) {
	var val any = m
	for _, part := range strings.Split(path, ".") {
		obj, ok := val.(map[string]any)
		if !ok {
			return nil, false
		}
		if val, ok = obj[part]; !ok {
			return nil, false
		}
	}
	return val, true
}

func TestRedactingHandler(t *testing.T) {
	tests := []struct {
		name     string
		extra    []string
		attrs    []slog.Attr
		expected map[string]any
	}{
		{
			name: "sensitive keys are redacted",
			attrs: []slog.Attr{
				slog.String("key-store-password", "changeit"),
				slog.String("api_token", "abcdef"),
				slog.String("address", "https://svc/a"),
			},
			expected: map[string]any{
				"key-store-password": Redacted,
				"api_token":          Redacted,
				"address":            "https://svc/a",
			},
		},
		{
			name: "case insensitive matching",
			attrs: []slog.Attr{
				slog.String("UserPassword", "secret"),
				slog.String("AUTH_KEY", "xyz"),
			},
			expected: map[string]any{
				"UserPassword": Redacted,
				"AUTH_KEY":     Redacted,
			},
		},
		{
			name: "http credential headers in a group",
			attrs: []slog.Attr{
				slog.Group("headers",
					slog.Any("Authorization", []string{"Basic dTpw"}),
					slog.Any("Cookie", []string{"JSESSIONID=1"}),
					slog.String("Content-Type", "text/xml"),
				),
			},
			expected: map[string]any{
				"headers.Authorization": Redacted,
				"headers.Cookie":        Redacted,
				"headers.Content-Type":  "text/xml",
			},
		},
		{
			name:  "extra keys",
			extra: []string{" Forced-Alias "},
			attrs: []slog.Attr{
				slog.String("forced-alias", "billing"),
				slog.String("pool", "billing"),
			},
			expected: map[string]any{
				"forced-alias": Redacted,
				"pool":         "billing",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(NewRedactingHandler(slog.NewJSONHandler(&buf, nil), tt.extra...))

			args := make([]any, len(tt.attrs))
			for i, a := range tt.attrs {
				args[i] = a
			}
			logger.Info("test message", args...)

			var result map[string]any
			if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
				t.Fatalf("failed to parse log output: %v", err)
			}
			for k, want := range tt.expected {
				got, ok := lookup(result, k)
				if !ok {
					t.Errorf("key %s not found in output", k)
					continue
				}
				if got != want {
					t.Errorf("key %s: got %v, want %v", k, got, want)
				}
			}
		})
	}
}

func TestRedactingHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewRedactingHandler(slog.NewJSONHandler(&buf, nil))).
		With("trust-store-password", "changeit").
		WithGroup("pool")
	logger.Info("built", "name", "billing")

	out := buf.String()
	if strings.Contains(out, "changeit") {
		t.Errorf("password leaked: %s", out)
	}
	if !strings.Contains(out, `"pool":{"name":"billing"}`) {
		t.Errorf("group lost: %s", out)
	}
}
