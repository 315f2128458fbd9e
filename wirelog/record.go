package wirelog

import (
	"net/http"
	"sort"
	"strings"
)

// Record is one captured message.
type Record struct {
	// ExchangeID correlates the request and response of one exchange.
	ExchangeID string

	// Head is the request or status line, e.g. "POST https://svc/a".
	Head string

	// Address is the endpoint URL.
	Address string

	// Operation is the operation local name. It is empty when neither the
	// runtime nor the envelope named it.
	Operation string

	// Header holds the HTTP headers, including Content-Type.
	Header http.Header

	// Body is the message text.
	Body string
}

// String renders the record as the head line, one "Name: [values]" line per
// header in name order, a blank line, then the body.
func (r Record) String() string {
	var sb strings.Builder
	if r.Head != "" {
		sb.WriteString(r.Head)
		sb.WriteByte('\n')
	}
	names := make([]string, 0, len(r.Header))
	for name := range r.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sb.WriteString(name)
		sb.WriteString(": [")
		sb.WriteString(strings.Join(r.Header[name], ", "))
		sb.WriteString("]\n")
	}
	if r.Body != "" {
		sb.WriteByte('\n')
		sb.WriteString(r.Body)
	}
	return sb.String()
}
