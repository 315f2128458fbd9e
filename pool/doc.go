// Package pool lends configured SOAP client stubs to concurrent callers.
//
// A [Pool] bounds the number of stubs lent at once. Stubs are built lazily
// by a [Factory], which applies the active configuration through a
// configurator: the endpoint address, timeouts, the TLS transport context
// built from the ssl policy, host verification and HTTP authentication.
// Returned stubs are reused most-recently-returned first.
//
// Basic usage:
//
//	cfg, err := config.Load("client.yaml")
//	if err != nil {
//		return err
//	}
//	p, err := pool.NewSOAP(cfg)
//	if err != nil {
//		return err
//	}
//	defer p.Shutdown()
//
//	err = p.Do(ctx, func(c *soap.Client) error {
//		_, err := c.Invoke(ctx, "Ping", payload)
//		return err
//	})
//
// [Pool.Reconfigure] replaces the configuration without a restart. Idle
// stubs are discarded and new borrows see the new endpoint and transport
// context; stubs lent at that moment finish their calls with the old
// configuration and are discarded when returned. A failed Reconfigure
// leaves the previous configuration in place.
//
// Lifecycle events are logged as structured slog records that share a
// per-pool correlation ID. [Collector] exports [Pool.Stats] to Prometheus.
package pool
