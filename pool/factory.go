package pool

import (
	"fmt"
	"sync"

	"github.com/smnsjas/go-wspool/config"
	"github.com/smnsjas/go-wspool/configurator"
	"github.com/smnsjas/go-wspool/soap"
	"github.com/smnsjas/go-wspool/soap/auth"
	"github.com/smnsjas/go-wspool/trust"
)

// Creator builds one unconfigured stub.
type Creator[T any] func() (T, error)

// StubInfo describes the configuration a stub was built with.
type StubInfo struct {
	Address         string
	ProtocolVersion soap.Version
	Generation      uint64
}

// Factory builds configured stubs. The configuration and its transport
// context are replaced together by Reconfigure; Build never sees one
// without the other.
type Factory[T any] struct {
	create       Creator[T]
	configurator configurator.Configurator[T]
	events       *EventLogger

	mu         sync.RWMutex
	cfg        config.Client
	tc         *trust.Context
	generation uint64
}

// NewFactory returns a factory for cfg. The transport context is built
// immediately, so trust store errors surface here.
func NewFactory[T any](create Creator[T], conf configurator.Configurator[T], cfg config.Client, events *EventLogger) (*Factory[T], error) {
	if create == nil {
		return nil, fmt.Errorf("pool: nil creator")
	}
	if conf == nil {
		return nil, fmt.Errorf("pool: nil configurator")
	}
	f := &Factory[T]{create: create, configurator: conf, events: events}
	if err := f.Reconfigure(cfg); err != nil {
		return nil, err
	}
	return f, nil
}

// Reconfigure validates cfg, builds its transport context and swaps both
// in. On error the previous configuration stays active.
func (f *Factory[T]) Reconfigure(cfg config.Client) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	var tc *trust.Context
	if cfg.SSL.Enabled {
		var err error
		tc, err = trust.Build(cfg.SSL)
		if err != nil {
			f.events.Log(EventTrustContext, SeverityError, OutcomeFailure, cfg.EndpointURL, f.Generation(),
				map[string]any{"error": err.Error()})
			return err
		}
	}

	f.mu.Lock()
	f.cfg = cfg
	f.tc = tc
	f.generation++
	gen := f.generation
	f.mu.Unlock()

	f.events.Log(EventTrustContext, SeverityInfo, OutcomeSuccess, cfg.EndpointURL, gen, map[string]any{
		"tls":                cfg.SSL.Enabled,
		"check_host_trusted": cfg.SSL.ChecksHostTrusted(),
		"verify_host":        cfg.SSL.VerifyHost,
		"forced_alias":       cfg.SSL.ForcedAlias != "",
	})
	return nil
}

// Build creates a stub and applies the current configuration to it.
func (f *Factory[T]) Build() (T, StubInfo, error) {
	var zero T

	f.mu.RLock()
	cfg, tc, gen := f.cfg, f.tc, f.generation
	f.mu.RUnlock()

	stub, err := f.create()
	if err != nil {
		return zero, StubInfo{}, fmt.Errorf("pool: create stub: %w", err)
	}

	var authenticator auth.Authenticator
	if cfg.Auth.Type != "" {
		// Authenticators keep per-connection handshake state; one per stub.
		authCfg := cfg.AuthConfig()
		if f.events != nil {
			authCfg.Logger = f.events.logger
		}
		authenticator, err = auth.New(authCfg, cfg.EndpointURL)
		if err != nil {
			return zero, StubInfo{}, fmt.Errorf("pool: %w", err)
		}
	}

	version := cfg.Version()
	stub, err = f.configurator.Configure(stub, configurator.Params{
		Address:         cfg.EndpointURL,
		ConnectTimeout:  cfg.ConnectionTimeout.Std(),
		ReadTimeout:     cfg.SocketReadTimeout.Std(),
		Transport:       tc,
		VerifyHost:      cfg.SSL.VerifyHost,
		ProtocolVersion: version,
		Authenticator:   authenticator,
	})
	if err != nil {
		return zero, StubInfo{}, fmt.Errorf("pool: configure stub: %w", err)
	}
	return stub, StubInfo{Address: cfg.EndpointURL, ProtocolVersion: version, Generation: gen}, nil
}

// Configurator returns the configurator applied to each stub.
func (f *Factory[T]) Configurator() configurator.Configurator[T] {
	return f.configurator
}

// Config returns the active configuration.
func (f *Factory[T]) Config() config.Client {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.cfg
}

// TransportContext returns the active transport context, or nil when TLS
// policy is disabled.
func (f *Factory[T]) TransportContext() *trust.Context {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.tc
}

// Generation returns the configuration generation. It grows by one on each
// successful Reconfigure.
func (f *Factory[T]) Generation() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.generation
}
