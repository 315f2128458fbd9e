package pool

import (
	"github.com/smnsjas/go-wspool/binding"
	"github.com/smnsjas/go-wspool/config"
	"github.com/smnsjas/go-wspool/configurator"
	"github.com/smnsjas/go-wspool/soap"
)

// ProviderStub is a comparable stub configured through its request context.
type ProviderStub interface {
	comparable
	binding.Provider
}

// NewSOAP returns a pool of *soap.Client stubs configured through their
// conduit and interceptor chains.
func NewSOAP(cfg config.Client, opts ...Option) (*Pool[*soap.Client], error) {
	o := applyOptions(opts)
	clientOpts := append([]soap.Option{soap.WithLogger(o.logger)}, o.clientOpts...)
	create := func() (*soap.Client, error) {
		return soap.NewClient(clientOpts...), nil
	}
	return New(create, configurator.Interceptor{Logger: o.logger}, cfg, opts...)
}

// NewPorts returns a pool of *binding.Port stubs configured through request
// context properties.
func NewPorts(cfg config.Client, opts ...Option) (*Pool[*binding.Port], error) {
	o := applyOptions(opts)
	clientOpts := append([]soap.Option{soap.WithLogger(o.logger)}, o.clientOpts...)
	create := func() (*binding.Port, error) {
		return binding.NewPort(clientOpts...), nil
	}
	return NewBinding(create, cfg, opts...)
}

// NewBinding returns a pool of stubs configured through request context
// properties, with wire logging on the binding handler chains.
func NewBinding[T ProviderStub](create Creator[T], cfg config.Client, opts ...Option) (*Pool[T], error) {
	o := applyOptions(opts)
	return New(create, configurator.RequestContext[T]{Logger: o.logger}, cfg, opts...)
}

// NewSimple returns a pool whose stubs receive only the endpoint address and
// socket factory. Wire logging is not supported.
func NewSimple[T ProviderStub](create Creator[T], cfg config.Client, opts ...Option) (*Pool[T], error) {
	o := applyOptions(opts)
	return New(create, configurator.Simple[T]{Logger: o.logger}, cfg, opts...)
}

// NewFixed returns a pool whose stubs are used exactly as create returns
// them.
func NewFixed[T comparable](create Creator[T], cfg config.Client, opts ...Option) (*Pool[T], error) {
	return New(create, configurator.Fixed[T]{}, cfg, opts...)
}
