package wirelog

import "github.com/beevik/etree"

// operationName returns the local name of the first element in the
// envelope Body, or "" if body is not a SOAP envelope.
func operationName(body []byte) string {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return ""
	}
	env := doc.Root()
	if env == nil || env.Tag != "Envelope" {
		return ""
	}
	for _, part := range env.ChildElements() {
		if part.Tag != "Body" {
			continue
		}
		if ops := part.ChildElements(); len(ops) > 0 {
			return ops[0].Tag
		}
		return ""
	}
	return ""
}
