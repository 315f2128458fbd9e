package soap

import (
	"encoding/xml"
	"fmt"
)

// NsAddressing is the WS-Addressing namespace.
const NsAddressing = "http://www.w3.org/2005/08/addressing"

// AddressAnonymous is the WS-Addressing anonymous reply address.
const AddressAnonymous = NsAddressing + "/anonymous"

// Envelope represents an outgoing SOAP envelope.
type Envelope struct {
	XMLName xml.Name `xml:"s:Envelope"`

	NsSoap string `xml:"xmlns:s,attr"`
	NsAddr string `xml:"xmlns:a,attr,omitempty"`

	Header *Header `xml:"s:Header,omitempty"`
	Body   *Body   `xml:"s:Body"`
}

// Header holds the optional WS-Addressing headers.
type Header struct {
	Action    string   `xml:"a:Action,omitempty"`
	To        string   `xml:"a:To,omitempty"`
	MessageID string   `xml:"a:MessageID,omitempty"`
	ReplyTo   *ReplyTo `xml:"a:ReplyTo,omitempty"`
}

// ReplyTo represents the WS-Addressing ReplyTo element.
type ReplyTo struct {
	Address string `xml:"a:Address"`
}

// Body represents the SOAP body.
type Body struct {
	Content []byte `xml:",innerxml"`
}

// NewEnvelope creates an empty envelope for v.
func NewEnvelope(v Version) *Envelope {
	return &Envelope{
		NsSoap: v.Namespace(),
		Body:   &Body{},
	}
}

func (e *Envelope) header() *Header {
	if e.Header == nil {
		e.Header = &Header{}
		e.NsAddr = NsAddressing
	}
	return e.Header
}

// WithAction sets the WS-Addressing Action header.
func (e *Envelope) WithAction(action string) *Envelope {
	e.header().Action = action
	return e
}

// WithTo sets the WS-Addressing To header (the endpoint URL).
func (e *Envelope) WithTo(to string) *Envelope {
	e.header().To = to
	return e
}

// WithMessageID sets the WS-Addressing MessageID header.
func (e *Envelope) WithMessageID(messageID string) *Envelope {
	e.header().MessageID = messageID
	return e
}

// WithReplyTo sets the WS-Addressing ReplyTo header.
func (e *Envelope) WithReplyTo(address string) *Envelope {
	e.header().ReplyTo = &ReplyTo{Address: address}
	return e
}

// WithBody sets the SOAP body content.
func (e *Envelope) WithBody(content []byte) *Envelope {
	e.Body.Content = content
	return e
}

// Marshal serializes the envelope to XML, including the XML declaration.
func (e *Envelope) Marshal() ([]byte, error) {
	data, err := xml.Marshal(e)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), data...), nil
}

// responseEnvelope matches the Body of either SOAP version.
type responseEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Content []byte `xml:",innerxml"`
	} `xml:"Body"`
}

// ParseBody returns the inner XML of the envelope Body.
func ParseBody(data []byte) ([]byte, error) {
	var env responseEnvelope
	if err := xml.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("soap: parse response envelope: %w", err)
	}
	return env.Body.Content, nil
}
