// Package binding provides a SOAP port configured through a request
// context: a property map read on every call. Generated service stubs embed
// *Port and call Port.Call with their operation payloads.
//
//	port := binding.NewPort(soap.WithActionPrefix("urn:billing/"))
//	port.RequestContext().Put(binding.EndpointAddress, "https://svc/a")
//	body, err := port.Call(ctx, "GetInvoice", payload)
package binding
