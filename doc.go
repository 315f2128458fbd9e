// Package wspool is the root of a pooled SOAP client stub runtime with
// declarative TLS trust policy and wire logging.
//
// The library is organized into layers:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  pool/             bounded stub pool, factory, hot reconfig │
//	├─────────────────────────────────────────────────────────────┤
//	│  configurator/     address, timeouts, TLS, auth, logging    │
//	├─────────────────────────────────────────────────────────────┤
//	│  soap/, binding/   client runtimes (interceptor, req. ctx)  │
//	│  wirelog/          request/response capture interceptors    │
//	├─────────────────────────────────────────────────────────────┤
//	│  trust/            key/trust stores, forced alias, TLS      │
//	│  config/           YAML, TOML and JSON configuration        │
//	└─────────────────────────────────────────────────────────────┘
//
// # Quick Start
//
//	cfg, err := config.Load("client.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	p, err := pool.NewSOAP(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Shutdown()
//
//	err = p.Do(ctx, func(c *soap.Client) error {
//	    resp, err := c.Invoke(ctx, "GetQuote", []byte(`<GetQuote><sym>X</sym></GetQuote>`))
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(string(resp))
//	    return nil
//	})
//
// # Configuration
//
//	endpoint-url: https://svc.example.com/quotes
//	connection-timeout: 30s
//	socket-read-timeout: 60000   # integers are milliseconds
//	protocol-version: "1.1"
//	pool:
//	  name: quotes
//	  size: 50
//	  max-wait: 5s
//	ssl:
//	  enabled: true
//	  key-store-path: /etc/wspool/client.p12
//	  trust-store-path: /etc/wspool/roots.pem
//	  forced-alias: billing
//	  verify-host: true
//
// # Security
//
// Setting ssl.check-host-trusted to false accepts any server certificate.
// It exists for test endpoints and is logged as a warning whenever a
// transport context is built with it. Wire log records carry HTTP headers;
// the slog sinks redact Authorization and Cookie values.
package wspool
