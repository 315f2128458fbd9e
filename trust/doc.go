// Package trust builds secure-transport contexts for outbound TLS clients.
//
// A [Policy] declares where the client identity and the trusted roots come
// from. [Build] turns it into a [Context], from which [SocketFactory] values
// are derived for each runtime that needs to dial TLS connections.
//
// # Stores
//
// Key and trust stores are read from PEM bundles or PKCS#12 (.p12, .pfx)
// files. In a PEM bundle the alias of an entry is taken from an "alias" or
// "friendlyName" block header, falling back to the certificate common name.
// PKCS#12 stores use the friendlyName bag attribute.
//
// # Host trust
//
// Server chains are verified against the trust store, or the system roots
// when no trust store is configured. Setting check-host-trusted to false
// replaces verification with [AlwaysTrust]; this is an explicit opt-out and
// never the default. Host name verification is controlled separately through
// [SocketFactory.WithHostVerification].
//
// # Usage
//
//	ctx, err := trust.Build(trust.Policy{
//	    Enabled:      true,
//	    KeyStorePath: "/etc/svc/client.p12",
//	    ForcedAlias:  "billing-client",
//	})
//	if err != nil {
//	    return err
//	}
//	sf := ctx.SocketFactory().WithHostVerification(true)
//	conn, err := sf.DialContext(dctx, "tcp", "svc.example.com:443")
package trust
