package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/beevik/etree"
	"github.com/spf13/cobra"

	"github.com/smnsjas/go-wspool/binding"
	"github.com/smnsjas/go-wspool/config"
	"github.com/smnsjas/go-wspool/pool"
	"github.com/smnsjas/go-wspool/soap"
	"github.com/smnsjas/go-wspool/wirelog"
)

// Runtimes accepted by --runtime.
const (
	runtimeSOAP    = "soap"
	runtimeBinding = "binding"
	runtimeSimple  = "simple"
)

type callOptions struct {
	configPath string
	bodyPath   string
	operation  string
	runtime    string
	wireLog    bool
}

func newCallCmd(a *app) *cobra.Command {
	var o callOptions
	cmd := &cobra.Command{
		Use:   "call",
		Short: "Invoke one operation and print the response body",
		Long: `call borrows a stub, sends the body (the SOAP Body contents, not a full
envelope) and prints the Body contents of the response.

The operation defaults to the local name of the body's root element.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(o.configPath)
			if err != nil {
				return err
			}
			payload, err := readBody(o.bodyPath, cmd.InOrStdin())
			if err != nil {
				return err
			}
			op := o.operation
			if op == "" {
				if op, err = rootElement(payload); err != nil {
					return err
				}
			}

			var sink wirelog.Sink
			if o.wireLog {
				sink = wirelog.NewWriterSink(cmd.ErrOrStderr())
			}

			invoke, closePool, err := a.newInvoker(cfg, o.runtime)
			if err != nil {
				return err
			}
			defer closePool()

			resp, err := invoke(cmd.Context(), op, payload, sink)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(resp))
			return err
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.configPath, "config", "c", "", "Client configuration file (.yaml, .toml or .json)")
	f.StringVarP(&o.bodyPath, "body", "b", "-", "File holding the request body, - for stdin")
	f.StringVarP(&o.operation, "operation", "o", "", "Operation name (default: body root element)")
	f.StringVar(&o.runtime, "runtime", runtimeSOAP, "Client runtime: soap, binding or simple")
	f.BoolVar(&o.wireLog, "wire-log", false, "Print request and response wire records to stderr")
	return cmd
}

func readBody(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

func rootElement(payload []byte) (string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(payload); err != nil {
		return "", fmt.Errorf("parse body: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return "", fmt.Errorf("body has no root element; use --operation")
	}
	return root.Tag, nil
}

// invokeFunc borrows a stub, runs one operation and returns the stub. A
// non-nil sink receives the wire records of the call.
type invokeFunc func(ctx context.Context, operation string, payload []byte, sink wirelog.Sink) ([]byte, error)

// newInvoker builds a pool for the chosen runtime.
func (a *app) newInvoker(cfg config.Client, runtime string) (invokeFunc, func(), error) {
	opts := a.poolOptions()
	switch runtime {
	case runtimeSOAP, "":
		p, err := pool.NewSOAP(cfg, opts...)
		if err != nil {
			return nil, nil, err
		}
		a.register(p)
		return poolInvoker(p, (*soap.Client).Invoke), a.shutdown(p), nil
	case runtimeBinding:
		p, err := pool.NewPorts(cfg, opts...)
		if err != nil {
			return nil, nil, err
		}
		a.register(p)
		return poolInvoker(p, (*binding.Port).Call), a.shutdown(p), nil
	case runtimeSimple:
		create := func() (*binding.Port, error) { return binding.NewPort(), nil }
		p, err := pool.NewSimple(create, cfg, opts...)
		if err != nil {
			return nil, nil, err
		}
		a.register(p)
		return poolInvoker(p, (*binding.Port).Call), a.shutdown(p), nil
	}
	return nil, nil, fmt.Errorf("unknown runtime %q (valid: soap, binding, simple)", runtime)
}

func poolInvoker[T comparable](p *pool.Pool[T], call func(T, context.Context, string, []byte) ([]byte, error)) invokeFunc {
	return func(ctx context.Context, operation string, payload []byte, sink wirelog.Sink) ([]byte, error) {
		var (
			stub T
			err  error
		)
		if sink != nil {
			stub, err = p.BorrowWithLogging(ctx, sink)
		} else {
			stub, err = p.Borrow(ctx)
		}
		if err != nil {
			return nil, err
		}
		defer func() {
			if rerr := p.Return(stub); rerr != nil {
				slog.Warn("return stub", "error", rerr)
			}
		}()
		return call(stub, ctx, operation, payload)
	}
}

func (a *app) shutdown(s interface{ Shutdown() error }) func() {
	return func() {
		if err := s.Shutdown(); err != nil {
			a.logger.Warn("pool shutdown", "error", err)
		}
	}
}
