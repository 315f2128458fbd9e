package soap

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
)

// Fault represents a SOAP 1.1 or 1.2 fault.
type Fault struct {
	// Version is the envelope version the fault arrived in.
	Version Version

	// Code is the fault code (faultcode in 1.1, Code/Value in 1.2).
	Code string

	// Subcode is the SOAP 1.2 Code/Subcode/Value, if any.
	Subcode string

	// Reason is the human-readable fault reason.
	Reason string

	// Actor is the faultactor (1.1) or Role (1.2).
	Actor string

	// Detail is the raw inner XML of the detail element.
	Detail string
}

// Error implements the error interface.
func (f *Fault) Error() string {
	var parts []string
	if f.Code != "" {
		parts = append(parts, f.Code)
	}
	if f.Subcode != "" {
		parts = append(parts, f.Subcode)
	}
	if f.Reason != "" {
		parts = append(parts, f.Reason)
	}
	return "soap fault: " + strings.Join(parts, ": ")
}

// IsClientFault reports whether the sender was at fault.
func (f *Fault) IsClientFault() bool {
	code := localName(f.Code)
	return code == "Client" || code == "Sender"
}

// IsFault returns true if the error is a SOAP Fault.
func IsFault(err error) bool {
	var f *Fault
	return errors.As(err, &f)
}

// ParseFault parses a SOAP response and returns a Fault if present.
// Returns nil if the response does not contain a fault.
func ParseFault(data []byte) (*Fault, error) {
	if !bytes.Contains(data, []byte("Fault")) {
		return nil, nil
	}

	var env faultEnvelope
	if err := xml.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse fault: %w", err)
	}
	raw := env.Body.Fault
	if raw == nil {
		return nil, nil
	}

	switch env.XMLName.Space {
	case NsSoap12:
		return &Fault{
			Version: V12,
			Code:    strings.TrimSpace(raw.Code.Value),
			Subcode: strings.TrimSpace(raw.Code.Subcode.Value),
			Reason:  strings.TrimSpace(raw.Reason.Text),
			Actor:   strings.TrimSpace(raw.Role),
			Detail:  strings.TrimSpace(raw.Detail12.Content),
		}, nil
	default:
		return &Fault{
			Version: V11,
			Code:    strings.TrimSpace(raw.FaultCode),
			Reason:  strings.TrimSpace(raw.FaultString),
			Actor:   strings.TrimSpace(raw.FaultActor),
			Detail:  strings.TrimSpace(raw.Detail11.Content),
		}, nil
	}
}

// CheckFault parses a response and returns an error if it contains a fault.
func CheckFault(data []byte) error {
	fault, err := ParseFault(data)
	if err != nil {
		return err
	}
	if fault != nil {
		return fault
	}
	return nil
}

func localName(qname string) string {
	if i := strings.LastIndexByte(qname, ':'); i >= 0 {
		return qname[i+1:]
	}
	return qname
}

// faultEnvelope is the XML structure for parsing SOAP faults of both versions.
type faultEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Fault *struct {
			// SOAP 1.1
			FaultCode   string `xml:"faultcode"`
			FaultString string `xml:"faultstring"`
			FaultActor  string `xml:"faultactor"`
			Detail11    struct {
				Content string `xml:",innerxml"`
			} `xml:"detail"`

			// SOAP 1.2
			Code struct {
				Value   string `xml:"Value"`
				Subcode struct {
					Value string `xml:"Value"`
				} `xml:"Subcode"`
			} `xml:"Code"`
			Reason struct {
				Text string `xml:"Text"`
			} `xml:"Reason"`
			Role     string `xml:"Role"`
			Detail12 struct {
				Content string `xml:",innerxml"`
			} `xml:"Detail"`
		} `xml:"Fault"`
	} `xml:"Body"`
}
