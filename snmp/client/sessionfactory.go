package client

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/imdario/mergo"
	"github.com/sirupsen/logrus"

	"github.com/damianoneill/snmpasync/snmp/common"
	"github.com/damianoneill/snmpasync/snmp/engine"
	"github.com/damianoneill/snmpasync/snmp/usm"
)

// Defines a factory method for instantiating SNMP Sessions.
type SessionFactory interface {
	// NewSession instantiates an SNMP session for managing the target device.
	NewSession(ctx context.Context, target string, opts ...SessionOption) (Session, error)
}

// Delivers a new session factory.
func NewFactory() SessionFactory {
	return &factoryImpl{}
}

type factoryImpl struct{}

func (f *factoryImpl) NewSession(ctx context.Context, target string, opts ...SessionOption) (Session, error) {
	config := defaultConfig
	config.address = target
	config.id = uuid.NewString()
	for _, opt := range opts {
		opt(&config)
	}

	trace := *config.trace
	_ = mergo.Merge(&trace, NoOpLoggingHooks)
	config.trace = &trace

	sess, err := openEngine(ctx, &config)
	if err != nil {
		config.trace.Error("Open Session", &config, err)
		return nil, err
	}
	return newSession(sess, &config), nil
}

// SessionOption implements options for configuring session behaviour.
type SessionOption func(*SessionConfig)

// Timeout defines the timeout for receiving a response to a request, before it is retransmitted.
// Default value is 1s.
func Timeout(timeout time.Duration) SessionOption {
	return func(c *SessionConfig) {
		c.timeout = timeout
	}
}

// Retries defines the number of times an unanswered request will be retransmitted.
// Default value is 5.
func Retries(value int) SessionOption {
	return func(c *SessionConfig) {
		c.retries = value
	}
}

// Network defines the transport network.
// Default value is udp
func Network(value string) SessionOption {
	return func(c *SessionConfig) {
		c.network = value
	}
}

// LocalAddress defines the local address the session's socket is bound to.
// Default is an ephemeral port.
func LocalAddress(value string) SessionOption {
	return func(c *SessionConfig) {
		c.localAddress = value
	}
}

// WithVersion defines the SNMP version to use.
// Default value is V2c
func WithVersion(value common.Version) SessionOption {
	return func(c *SessionConfig) {
		c.version = value
	}
}

// Community defines the community string to be used.
// Default value is public.
func Community(value string) SessionOption {
	return func(c *SessionConfig) {
		c.community = value
	}
}

// User defines the v3 user, and selects version 3.
func User(user *usm.User) SessionOption {
	return func(c *SessionConfig) {
		c.version = common.V3
		c.user = user
	}
}

// ContextName defines the v3 context name.
func ContextName(value string) SessionOption {
	return func(c *SessionConfig) {
		c.contextName = value
	}
}

// Authoritative makes the session act as the authoritative engine, identified by engineID.
// Such sessions never probe.
func Authoritative(engineID []byte) SessionOption {
	return func(c *SessionConfig) {
		c.authoritative = true
		c.localEngineID = engineID
	}
}

// AsyncProbe defines whether a v3 session discovers the authoritative engine before its first
// query. Default value is true.
func AsyncProbe(value bool) SessionOption {
	return func(c *SessionConfig) {
		c.asyncProbe = value
	}
}

// SharedTransport opens the session on a socket shared with other sessions. Such sessions are
// not safe for concurrent use.
func SharedTransport(t *engine.Transport) SessionOption {
	return func(c *SessionConfig) {
		c.transport = t
	}
}

// LoggingHooks defines a set of logging hooks to be used by the session.
// Default value is DefaultLoggingHooks.
func LoggingHooks(trace *SessionTrace) SessionOption {
	return func(c *SessionConfig) {
		c.trace = trace
	}
}

// Logger defines the logger used by the protocol engine.
// Default value is the logrus standard logger.
func Logger(logger logrus.FieldLogger) SessionOption {
	return func(c *SessionConfig) {
		c.logger = logger
	}
}

// Deliver a new engine session for the target defined in the configuration.
func openEngine(ctx context.Context, c *SessionConfig) (sess engine.Session, err error) {
	defer func(begin time.Time) {
		c.trace.ConnectDone(c, err, time.Since(begin))
	}(time.Now())
	c.trace.ConnectStart(c)

	ec := c.engineConfig()
	if c.transport != nil {
		return c.transport.Open(ec)
	}
	return engine.Open(ctx, ec)
}

// SessionConfig defines properties controlling session behaviour.
type SessionConfig struct {
	// Unique identifier of the session, used to correlate trace output.
	id string
	// Connection network, typically udp.
	network string
	// Network address/hostname with port, for example: 10.48.24.234:161
	address      string
	localAddress string
	// SNMP version
	version common.Version
	// community string for v1/v2c.
	community string
	// v3 security
	user          *usm.User
	contextName   string
	authoritative bool
	localEngineID []byte
	asyncProbe    bool
	// Timeout for receiving a response
	timeout time.Duration
	// Defines the number of times an unanswered request will be retransmitted.
	retries   int
	transport *engine.Transport
	logger    logrus.FieldLogger
	// Trace hooks
	trace *SessionTrace
}

// Address delivers the target the session was opened for.
func (c *SessionConfig) Address() string { return c.address }

// ID delivers the session identifier.
func (c *SessionConfig) ID() string { return c.id }

func (c *SessionConfig) engineConfig() *engine.Config {
	return &engine.Config{
		Network:       c.network,
		Address:       c.address,
		LocalAddress:  c.localAddress,
		Version:       c.version,
		Community:     c.community,
		Timeout:       c.timeout,
		Retries:       c.retries,
		User:          c.user,
		ContextName:   c.contextName,
		Authoritative: c.authoritative,
		LocalEngineID: c.localEngineID,
		Logger:        c.logger,
	}
}

var defaultConfig = SessionConfig{
	network:    "udp",
	address:    "",
	community:  "public",
	version:    common.V2c,
	timeout:    engine.DefaultTimeout,
	retries:    engine.DefaultRetries,
	asyncProbe: true,
	trace:      DefaultLoggingHooks,
}
