// Package wirelog captures SOAP request and response bytes for logging
// without changing what is sent or received.
//
// An OutLogger wraps the outbound stream of a message in a tee and hands
// the captured request to a Sink when the stream is closed. An InLogger
// reads the inbound stream once, replaces it with a re-readable copy and
// hands the captured response to the same Sink. Both are identified by a
// fixed tag per direction, so installing them again replaces rather than
// stacks:
//
//	sink := wirelog.NewSlogSink(logger)
//	wirelog.Install(client.InInterceptors(), client.OutInterceptors(), sink)
//
// Sinks are called synchronously from the exchange and must be safe for
// concurrent use. A panicking sink is recovered and reported through slog.
package wirelog
