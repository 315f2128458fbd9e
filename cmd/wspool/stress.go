package main

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/smnsjas/go-wspool/pool"
	"github.com/smnsjas/go-wspool/soap"
)

type stressOptions struct {
	configPath string
	bodyPath   string
	operation  string
	workers    int
	iterations int
	retries    int
}

func newStressCmd(a *app) *cobra.Command {
	var o stressOptions
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Run concurrent calls through one pool and print its statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if o.workers < 1 || o.iterations < 1 {
				return errors.New("--workers and --iterations must be at least 1")
			}
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

			p, err := pool.NewSOAP(cfg, a.poolOptions()...)
			if err != nil {
				return err
			}
			defer a.shutdown(p)()
			a.register(p)

			ctx := cmd.Context()
			policy := pool.DefaultRetryPolicy()
			policy.MaxAttempts = o.retries + 1
			var ok, failed, exhausted atomic.Int64
			var wg sync.WaitGroup
			start := time.Now()
			for range o.workers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for range o.iterations {
						err := p.DoRetry(ctx, policy, func(c *soap.Client) error {
							_, err := c.Invoke(ctx, op, payload)
							return err
						})
						switch {
						case err == nil:
							ok.Add(1)
						case errors.Is(err, pool.ErrPoolExhausted):
							exhausted.Add(1)
						default:
							failed.Add(1)
							a.logger.Debug("call failed", "error", err)
						}
					}
				}()
			}
			wg.Wait()
			elapsed := time.Since(start)

			total := o.workers * o.iterations
			st := p.Stats()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Calls:      %d in %s (%.1f/s)\n", total, elapsed.Round(time.Millisecond), float64(total)/elapsed.Seconds())
			fmt.Fprintf(out, "  ok:        %d\n", ok.Load())
			fmt.Fprintf(out, "  failed:    %d\n", failed.Load())
			fmt.Fprintf(out, "  exhausted: %d\n", exhausted.Load())
			fmt.Fprintf(out, "Pool %q: size=%d created=%d destroyed=%d idle=%d borrows=%d timeouts=%d\n",
				st.Name, st.Size, st.Created, st.Destroyed, st.Idle, st.Borrows, st.Timeouts)
			if failed.Load() > 0 {
				return fmt.Errorf("%d calls failed", failed.Load())
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.configPath, "config", "c", "", "Client configuration file (.yaml, .toml or .json)")
	f.StringVarP(&o.bodyPath, "body", "b", "-", "File holding the request body, - for stdin")
	f.StringVarP(&o.operation, "operation", "o", "", "Operation name (default: body root element)")
	f.IntVarP(&o.workers, "workers", "w", 8, "Concurrent callers")
	f.IntVarP(&o.iterations, "iterations", "n", 10, "Calls per caller")
	f.IntVar(&o.retries, "retries", 0, "Retries per call on transient errors")
	return cmd
}
