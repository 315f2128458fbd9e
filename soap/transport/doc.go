// Package transport provides the HTTP transport used by SOAP clients.
//
// The transport separates connection establishment from response waiting:
// a connect timeout bounds TCP connect plus TLS handshake, and a response
// header timeout bounds the wait after the request is written. HTTPS
// connections may be opened by an external TLS dialer, typically a
// trust.SocketFactory.
package transport
