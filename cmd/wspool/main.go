// Command wspool calls SOAP endpoints through a pooled, TLS-configured
// client stub runtime.
//
// Usage:
//
//	wspool call --config client.yaml --body ping.xml [--runtime soap|binding|simple] [--wire-log]
//	wspool handshake --config client.yaml
//	wspool stress --config client.yaml --body ping.xml --workers 16 --iterations 100
//
// Global flags select the log level, an optional rotated log file, a
// password prompt for the key store and a Prometheus metrics listener.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
