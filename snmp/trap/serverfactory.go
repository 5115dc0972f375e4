package trap

import (
	"context"
	"net"
	"strconv"

	"github.com/imdario/mergo"
)

// ServerFactory defines an interface for instantiating SNMP Trap/Inform servers.
type ServerFactory interface {
	// NewServer instantiates an SNMP Trap/Inform server.
	NewServer(ctx context.Context, handler Handler, opts ...ServerOption) (Server, error)
}

// NewServerFactory delivers a new server factory.
func NewServerFactory() ServerFactory {
	return &serverFactoryImpl{}
}

type serverFactoryImpl struct{}

func (f *serverFactoryImpl) NewServer(ctx context.Context, handler Handler, opts ...ServerOption) (Server, error) {
	config := defaultServerConfig
	for _, opt := range opts {
		opt(&config)
	}
	config.resolveServerHooks()

	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, config.network, net.JoinHostPort(config.address, strconv.Itoa(config.port)))
	if err != nil {
		config.trace.Error(&config, nil, err)
		return nil, err
	}

	impl := &serverImpl{config: &config, conn: conn, handler: handler}
	impl.handleMessages()

	return impl, nil
}

// ServerOption implements options for configuring server behaviour.
type ServerOption func(*serverConfig)

// ServerNetwork defines the transport network.
// Default value is udp
func ServerNetwork(value string) ServerOption {
	return func(c *serverConfig) {
		c.network = value
	}
}

// Address defines the address on which to listen.
// Default value is ""
func Address(value string) ServerOption {
	return func(c *serverConfig) {
		c.address = value
	}
}

// Port defines the port on which to listen.
// Default value is 162.
func Port(value int) ServerOption {
	return func(c *serverConfig) {
		c.port = value
	}
}

// Community restricts accepted notifications to those carrying the given community.
// Default value is "", accepting any community.
func Community(value string) ServerOption {
	return func(c *serverConfig) {
		c.community = value
	}
}

// Hooks defines a set of hooks to be invoked by the server.
// Default value is DefaultServerHooks.
func Hooks(trace *ServerHooks) ServerOption {
	return func(c *serverConfig) {
		c.trace = trace
	}
}

// Defines properties controlling server behaviour.
type serverConfig struct {
	// Connection network, typically udp.
	network string
	// Network address, for example: 10.48.24.234. Empty string means all interfaces.
	address string
	// Port number on which to listen, for example 162.
	port int
	// Required community; empty accepts all.
	community string
	// Trace hooks
	trace *ServerHooks
}

var defaultServerConfig = serverConfig{
	network: "udp",
	address: "",
	port:    162,
	trace:   DefaultServerHooks,
}

// Merges on a copy so that the shared hook sets are never modified.
func (c *serverConfig) resolveServerHooks() {
	trace := *c.trace
	mergo.Merge(&trace, NoOpServerHooks) // nolint: gosec, errcheck
	c.trace = &trace
}
