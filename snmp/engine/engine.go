// Package engine is the SNMP protocol engine: it owns the socket, encodes and decodes messages,
// keeps the retransmission timers of outstanding requests and reports completions through a
// single per-session hook. It performs no blocking waits of its own apart from SynchExchange;
// callers drive it with Readiness, DriveTimeout and Multiplex.
package engine

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/damianoneill/snmpasync/snmp/common"
	"github.com/damianoneill/snmpasync/snmp/usm"
)

//go:generate mockgen -destination ../mocks/mock_engine.go -package mocks github.com/damianoneill/snmpasync/snmp/engine Session,Descriptor

// Operation codes passed to a CompletionHook.
const (
	OpReceivedMessage = 1
	OpTimedOut        = 2
	OpSendFailed      = 3
	OpConnect         = 4
	OpDisconnect      = 5
)

// CallbackOp is a validated completion operation code.
type CallbackOp int

// ParseCallbackOp validates an operation code received by a hook.
func ParseCallbackOp(op int) (CallbackOp, error) {
	if op < OpReceivedMessage || op > OpDisconnect {
		return 0, &common.InvalidCallbackOpError{Op: op}
	}
	return CallbackOp(op), nil
}

// CompletionHook is invoked synchronously from DriveTimeout or Multiplex when a request completes.
// For OpReceivedMessage the view refers to the engine-owned response and is only valid for the
// duration of the call; for other operations it is the zero view.
type CompletionHook func(op int, reqID int32, response common.MessageView)

// ProbeStatus is the outcome of a discovery probe as seen by the caller.
type ProbeStatus int

const (
	ProbeSuccess ProbeStatus = iota
	ProbeError
	ProbeTimeout
)

func (s ProbeStatus) String() string {
	switch s {
	case ProbeSuccess:
		return "success"
	case ProbeError:
		return "error"
	case ProbeTimeout:
		return "timeout"
	}
	return "unknown"
}

// Descriptor is the readiness source of a session's socket.
type Descriptor interface {
	// WaitWritable blocks until the socket can accept a datagram or ctx is done.
	WaitWritable(ctx context.Context) error
	// WaitReadable blocks until a datagram can be read or ctx is done.
	WaitReadable(ctx context.Context) error
	// Pending reports, without blocking, whether a datagram can be read.
	Pending() bool
}

// Info describes an open session.
type Info struct {
	PeerName      string
	LocalName     string
	Authoritative bool
}

// Session is one configured association with a peer.
type Session interface {
	// Send encodes and transmits msg. On success ownership of msg passes to the engine and the
	// request id is returned; on failure the caller still owns msg and Err describes the failure.
	Send(msg *common.Message) (int32, bool)
	// SynchExchange sends msg and blocks for the correlated response. msg is consumed whether or
	// not the exchange succeeds. A response carrying a non-zero error-status is returned as a
	// *common.PacketError.
	SynchExchange(ctx context.Context, msg *common.Message) (*common.Message, error)
	// Readiness returns the descriptor to watch and the time until the next retransmission deadline.
	Readiness() (Descriptor, time.Duration)
	// DriveTimeout retransmits or expires every outstanding request whose deadline has passed.
	DriveTimeout()
	// RegisterHook installs the completion hook, replacing any previous one. A nil hook disables delivery.
	RegisterHook(hook CompletionHook)
	// Multiplex reads at most one datagram and invokes the hook at most once.
	Multiplex(fd Descriptor)
	// Abandon forgets an outstanding request without invoking the hook.
	Abandon(reqID int32)
	// NeedsProbe reports whether msg cannot be sent before the authoritative engine is discovered.
	NeedsProbe(msg *common.Message) bool
	// SendProbe transmits an engine discovery request.
	SendProbe() (int32, bool)
	// ProcessProbeResponse completes discovery. The engine takes ownership of response, which may be nil.
	ProcessProbeResponse(status ProbeStatus, response *common.Message) error
	Info() Info
	// Err returns the last error recorded by the session, or nil.
	Err() error
	// ThreadSafe reports whether the session may be used from more than one goroutine.
	ThreadSafe() bool
	Close() error
}

// Config defines the properties of a session.
type Config struct {
	// App names the application in transport errors.
	App string
	// Network is udp, udp4 or udp6.
	Network string
	// Address of the peer, host:port.
	Address string
	// Optional local address to bind.
	LocalAddress string

	Version   common.Version
	Community string

	// Time to wait for a response before retransmitting.
	Timeout time.Duration
	// Number of retransmissions before a request times out.
	Retries int

	// v3 user; nil for v1/v2c.
	User            *usm.User
	ContextName     string
	ContextEngineID []byte

	// Authoritative sessions act as the SNMP engine of record (for example when sending
	// informs or v3 traps) and use LocalEngineID rather than discovering the peer.
	Authoritative bool
	LocalEngineID []byte

	Logger logrus.FieldLogger
}

// Default timing values, as used by net-snmp.
const (
	DefaultTimeout = time.Second
	DefaultRetries = 5
)

func (c *Config) withDefaults() (Config, error) {
	cfg := *c
	if cfg.Address == "" {
		return cfg, errors.New("missing peer address")
	}
	if cfg.App == "" {
		cfg.App = "snmpasync"
	}
	if cfg.Network == "" {
		cfg.Network = "udp"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if _, err := common.ParseVersion(int(cfg.Version)); err != nil {
		return cfg, err
	}
	if cfg.Version == common.V3 {
		if cfg.User == nil {
			return cfg, &common.UsmError{Reason: "v3 session without user"}
		}
		if err := cfg.User.Validate(); err != nil {
			return cfg, err
		}
		if cfg.Authoritative && len(cfg.LocalEngineID) == 0 {
			return cfg, &common.UsmError{Reason: "authoritative session without local engine id"}
		}
	}
	return cfg, nil
}
