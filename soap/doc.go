// Package soap implements an interceptor-based SOAP client stub.
//
// A [Client] is bound to one endpoint address. Each call to
// [Client.Invoke] creates an [Exchange] with an outbound and an inbound
// [Message]; the out chain runs before the envelope is written and the in
// chain runs over the response stream before it is parsed. Interceptors may
// wrap Message.Out or replace Message.In, which lets them capture the exact
// bytes on the wire without changing them.
//
// Interceptors are identified by a [Tag]. Adding an interceptor to a
// [Chain] replaces any interceptor with an equal tag, so re-installing a
// component never stacks duplicates.
//
// Connection settings live in the client's [Conduit]: timeouts, connection
// reuse, the TLS socket factory with its host name check, and optional HTTP
// authentication from package auth.
//
// # Usage
//
//	c := soap.NewClient(soap.WithAddress("https://svc.example.com/ws"))
//	c.Conduit().SetPolicy(soap.ClientPolicy{
//	    ConnectionTimeout: 30 * time.Second,
//	    ReceiveTimeout:    60 * time.Second,
//	})
//	body, err := c.Invoke(ctx, "Ping", []byte(`<Ping xmlns="urn:svc"/>`))
package soap
