package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/smnsjas/go-wspool/config"
	wslog "github.com/smnsjas/go-wspool/internal/log"
	"github.com/smnsjas/go-wspool/pool"
)

// app holds the global flags and the resources they open.
type app struct {
	logLevel       string
	logFile        string
	promptPassword bool
	metricsListen  string

	logger      *slog.Logger
	closers     []io.Closer
	registry    *prometheus.Registry
	server      *http.Server
	metricsAddr net.Addr

	// stdin is read by the password prompt.
	stdin io.Reader
	lines *bufio.Reader
}

func newRootCmd() *cobra.Command {
	a := &app{stdin: os.Stdin}

	root := &cobra.Command{
		Use:   "wspool",
		Short: "Call SOAP endpoints through a pooled TLS client runtime",
		Long: `wspool builds client stubs from a configuration file (YAML, TOML or JSON),
applies the ssl policy, timeouts and authentication, and lends them from a
bounded pool.

Passwords may be supplied with WSPOOL_KEY_STORE_PASSWORD,
WSPOOL_TRUST_STORE_PASSWORD and WSPOOL_AUTH_PASSWORD, or prompted for with
--prompt-password.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.teardown()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	flags.StringVar(&a.logFile, "log-file", "", "Write logs to this file, rotated by size (default stderr)")
	flags.BoolVar(&a.promptPassword, "prompt-password", false, "Prompt for the key store password")
	flags.StringVar(&a.metricsListen, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	root.AddCommand(newCallCmd(a), newHandshakeCmd(a), newStressCmd(a))
	return root
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid log level %q (valid: debug, info, warn, error)", s)
}

// setup configures logging and starts the metrics listener.
func (a *app) setup(cmd *cobra.Command) error {
	level, err := parseLevel(a.logLevel)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.ErrOrStderr()
	if a.logFile != "" {
		rf, err := wslog.NewRotatingFile(a.logFile, wslog.DefaultMaxSize, wslog.DefaultMaxBackups)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		a.closers = append(a.closers, rf)
		w = rf
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	a.logger = slog.New(wslog.NewRedactingHandler(handler))
	slog.SetDefault(a.logger)

	if a.metricsListen == "" {
		return nil
	}
	a.registry = prometheus.NewRegistry()
	ln, err := net.Listen("tcp", a.metricsListen)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	a.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server stopped", "error", err)
		}
	}()
	a.metricsAddr = ln.Addr()
	a.logger.Info("serving metrics", "addr", a.metricsAddr.String())
	return nil
}

func (a *app) teardown() error {
	var errs []error
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = append(errs, a.server.Shutdown(ctx))
	}
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// loadConfig reads the configuration file and applies prompted passwords.
func (a *app) loadConfig(path string) (config.Client, error) {
	if path == "" {
		return config.Client{}, errors.New("--config is required")
	}
	if !a.promptPassword {
		return config.Load(path)
	}

	cfg, err := config.Read(path)
	if err != nil {
		return cfg, err
	}

	if cfg.SSL.KeyStorePath != "" {
		if cfg.SSL.KeyStorePassword, err = a.readPassword("Key store password: "); err != nil {
			return cfg, err
		}
	}
	if cfg.Auth.Type != "" && cfg.Auth.Password == "" {
		if cfg.Auth.Password, err = a.readPassword("Password for " + cfg.Auth.Username + ": "); err != nil {
			return cfg, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, &config.Error{Path: path, Err: err}
	}
	return cfg, nil
}

// readPassword prompts on stderr, hiding input on a terminal.
func (a *app) readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	if f, ok := a.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		pass, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(pass), nil
	}

	// Not a terminal (piped input): read a line.
	if a.lines == nil {
		a.lines = bufio.NewReader(a.stdin)
	}
	line, err := a.lines.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// register exports pool statistics when --metrics-addr is set.
func (a *app) register(src pool.StatsSource) {
	if a.registry == nil {
		return
	}
	if err := pool.RegisterMetrics(a.registry, src); err != nil {
		a.logger.Warn("register pool metrics", "error", err)
	}
}

// poolOptions returns the options shared by all commands.
func (a *app) poolOptions() []pool.Option {
	return []pool.Option{pool.WithLogger(a.logger), pool.WithEvictionInterval(-1)}
}
