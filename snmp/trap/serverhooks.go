package trap

import (
	"encoding/hex"
	"net"

	"github.com/sirupsen/logrus"
)

// ServerHooks defines a structure for handling server hook events
type ServerHooks struct {
	// StartListening is called when the server is about to start listening for messages.
	StartListening func(addr net.Addr)

	// StopListening is called when the server has stopped listening.
	StopListening func(addr net.Addr, err error)

	// Error is called after an error condition has been detected. source is nil when the
	// error is not associated with a received message.
	Error func(config *serverConfig, source net.Addr, err error)

	// WriteComplete is called after a packet has been written
	WriteComplete func(config *serverConfig, addr net.Addr, output []byte, err error)

	// ReadComplete is called after a read has completed
	ReadComplete func(config *serverConfig, addr net.Addr, input []byte, err error)
}

// DefaultServerHooks provides a default logging hook to report server errors.
var DefaultServerHooks = &ServerHooks{
	Error: func(config *serverConfig, source net.Addr, err error) {
		logrus.WithFields(logrus.Fields{"address": config.address, "source": source}).WithError(err).Error("SNMP-Trap-Error")
	},
	WriteComplete: func(config *serverConfig, addr net.Addr, output []byte, err error) {
		if err != nil {
			logrus.WithField("target", addr).WithError(err).Error("SNMP-Trap-WriteComplete")
		}
	},
	ReadComplete: func(config *serverConfig, addr net.Addr, input []byte, err error) {
		if err != nil {
			logrus.WithField("source", addr).WithError(err).Error("SNMP-Trap-ReadComplete")
		}
	},
}

// DiagnosticServerHooks provides a set of default diagnostic server hooks
var DiagnosticServerHooks = &ServerHooks{
	StartListening: func(addr net.Addr) {
		logrus.WithField("address", addr).Debug("SNMP-Trap-StartListening")
	},
	StopListening: func(addr net.Addr, err error) {
		logrus.WithField("address", addr).WithError(err).Debug("SNMP-Trap-StopListening")
	},
	Error: DefaultServerHooks.Error,
	WriteComplete: func(config *serverConfig, addr net.Addr, output []byte, err error) {
		logrus.WithFields(logrus.Fields{"target": addr, "data": hex.EncodeToString(output)}).WithError(err).Debug("SNMP-Trap-WriteComplete")
	},
	ReadComplete: func(config *serverConfig, addr net.Addr, input []byte, err error) {
		logrus.WithFields(logrus.Fields{"source": addr, "data": hex.EncodeToString(input)}).WithError(err).Debug("SNMP-Trap-ReadComplete")
	},
}

// NoOpServerHooks provides set of server hooks that do nothing.
var NoOpServerHooks = &ServerHooks{
	StartListening: func(addr net.Addr) {},
	StopListening:  func(addr net.Addr, err error) {},
	Error:          func(config *serverConfig, source net.Addr, err error) {},
	WriteComplete:  func(config *serverConfig, addr net.Addr, output []byte, err error) {},
	ReadComplete:   func(config *serverConfig, addr net.Addr, input []byte, err error) {},
}
