package soap

import "fmt"

// Version is a SOAP protocol version.
type Version string

const (
	// V11 is SOAP 1.1: text/xml with a SOAPAction header.
	V11 Version = "1.1"

	// V12 is SOAP 1.2: application/soap+xml with the action as a media type
	// parameter.
	V12 Version = "1.2"
)

// Envelope namespaces.
const (
	NsSoap11 = "http://schemas.xmlsoap.org/soap/envelope/"
	NsSoap12 = "http://www.w3.org/2003/05/soap-envelope"
)

// ParseVersion parses a configured protocol version. Empty means V11.
func ParseVersion(s string) (Version, error) {
	switch s {
	case "", "1.1":
		return V11, nil
	case "1.2":
		return V12, nil
	}
	return "", fmt.Errorf("soap: unsupported protocol version %q", s)
}

// Namespace returns the envelope namespace for v.
func (v Version) Namespace() string {
	if v == V12 {
		return NsSoap12
	}
	return NsSoap11
}

// ContentType returns the request content type for v. For SOAP 1.2 a
// non-empty action is carried as a media type parameter.
func (v Version) ContentType(action string) string {
	if v == V12 {
		if action != "" {
			return `application/soap+xml; charset=utf-8; action="` + action + `"`
		}
		return "application/soap+xml; charset=utf-8"
	}
	return "text/xml; charset=utf-8"
}
