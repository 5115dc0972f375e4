package client

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/damianoneill/snmpasync/snmp/common"
)

// SessionTrace defines a structure for handling trace events
type SessionTrace struct {
	// ConnectStart is called before a session is opened.
	ConnectStart func(config *SessionConfig)

	// ConnectDone is called when the session open attempt completes, with err indicating
	// whether it was successful.
	ConnectDone func(config *SessionConfig, err error, d time.Duration)

	// QueryStart is called before a request is handed to the engine.
	QueryStart func(config *SessionConfig, kind common.Kind)

	// QueryDone is called when a query completes.
	QueryDone func(config *SessionConfig, kind common.Kind, err error, d time.Duration)

	// ProbeDone is called when engine discovery completes.
	ProbeDone func(config *SessionConfig, err error, d time.Duration)

	// Wake is called each time a waiting query wakes.
	Wake func(config *SessionConfig, wake Wake)

	// InvalidCallback is called when the engine reports a completion with an unknown operation code.
	InvalidCallback func(config *SessionConfig, err error)

	// Error is called after an error condition has been detected.
	Error func(location string, config *SessionConfig, err error)

	// Closed is called after the session has been closed.
	Closed func(config *SessionConfig, err error)
}

func fields(config *SessionConfig) logrus.Fields {
	return logrus.Fields{"target": config.address, "session": config.id}
}

// DefaultLoggingHooks provides a default logging hook to report errors.
var DefaultLoggingHooks = &SessionTrace{
	Error: func(location string, config *SessionConfig, err error) {
		logrus.WithFields(fields(config)).WithError(err).Errorf("SNMP-Error context:%s", location)
	},
	InvalidCallback: func(config *SessionConfig, err error) {
		logrus.WithFields(fields(config)).WithError(err).Warn("SNMP-InvalidCallback")
	},
}

// MetricLoggingHooks provides a set of hooks that will log timings.
var MetricLoggingHooks = &SessionTrace{
	ConnectDone: func(config *SessionConfig, err error, d time.Duration) {
		logrus.WithFields(fields(config)).WithError(err).WithField("took", d).Info("SNMP-ConnectDone")
	},
	QueryDone: func(config *SessionConfig, kind common.Kind, err error, d time.Duration) {
		logrus.WithFields(fields(config)).WithError(err).WithFields(logrus.Fields{"kind": kind.String(), "took": d}).Info("SNMP-QueryDone")
	},
	ProbeDone: func(config *SessionConfig, err error, d time.Duration) {
		logrus.WithFields(fields(config)).WithError(err).WithField("took", d).Info("SNMP-ProbeDone")
	},
	Error:           DefaultLoggingHooks.Error,
	InvalidCallback: DefaultLoggingHooks.InvalidCallback,
}

// DiagnosticLoggingHooks provides a set of default diagnostic hooks
var DiagnosticLoggingHooks = &SessionTrace{
	ConnectStart: func(config *SessionConfig) {
		logrus.WithFields(fields(config)).Debug("SNMP-ConnectStart")
	},
	ConnectDone: MetricLoggingHooks.ConnectDone,
	QueryStart: func(config *SessionConfig, kind common.Kind) {
		logrus.WithFields(fields(config)).WithField("kind", kind.String()).Debug("SNMP-QueryStart")
	},
	QueryDone: MetricLoggingHooks.QueryDone,
	ProbeDone: MetricLoggingHooks.ProbeDone,
	Wake: func(config *SessionConfig, wake Wake) {
		logrus.WithFields(fields(config)).WithField("wake", wake.String()).Trace("SNMP-Wake")
	},
	InvalidCallback: DefaultLoggingHooks.InvalidCallback,
	Error:           DefaultLoggingHooks.Error,
	Closed: func(config *SessionConfig, err error) {
		logrus.WithFields(fields(config)).WithError(err).Debug("SNMP-Closed")
	},
}

// NoOpLoggingHooks provides set of hooks that do nothing.
var NoOpLoggingHooks = &SessionTrace{
	ConnectStart:    func(config *SessionConfig) {},
	ConnectDone:     func(config *SessionConfig, err error, d time.Duration) {},
	QueryStart:      func(config *SessionConfig, kind common.Kind) {},
	QueryDone:       func(config *SessionConfig, kind common.Kind, err error, d time.Duration) {},
	ProbeDone:       func(config *SessionConfig, err error, d time.Duration) {},
	Wake:            func(config *SessionConfig, wake Wake) {},
	InvalidCallback: func(config *SessionConfig, err error) {},
	Error:           func(location string, config *SessionConfig, err error) {},
	Closed:          func(config *SessionConfig, err error) {},
}

// Combine delivers a trace that calls the hooks of each of the given traces in turn. Missing hooks
// are skipped.
func Combine(traces ...*SessionTrace) *SessionTrace {
	return &SessionTrace{
		ConnectStart: func(config *SessionConfig) {
			for _, t := range traces {
				if t.ConnectStart != nil {
					t.ConnectStart(config)
				}
			}
		},
		ConnectDone: func(config *SessionConfig, err error, d time.Duration) {
			for _, t := range traces {
				if t.ConnectDone != nil {
					t.ConnectDone(config, err, d)
				}
			}
		},
		QueryStart: func(config *SessionConfig, kind common.Kind) {
			for _, t := range traces {
				if t.QueryStart != nil {
					t.QueryStart(config, kind)
				}
			}
		},
		QueryDone: func(config *SessionConfig, kind common.Kind, err error, d time.Duration) {
			for _, t := range traces {
				if t.QueryDone != nil {
					t.QueryDone(config, kind, err, d)
				}
			}
		},
		ProbeDone: func(config *SessionConfig, err error, d time.Duration) {
			for _, t := range traces {
				if t.ProbeDone != nil {
					t.ProbeDone(config, err, d)
				}
			}
		},
		Wake: func(config *SessionConfig, wake Wake) {
			for _, t := range traces {
				if t.Wake != nil {
					t.Wake(config, wake)
				}
			}
		},
		InvalidCallback: func(config *SessionConfig, err error) {
			for _, t := range traces {
				if t.InvalidCallback != nil {
					t.InvalidCallback(config, err)
				}
			}
		},
		Error: func(location string, config *SessionConfig, err error) {
			for _, t := range traces {
				if t.Error != nil {
					t.Error(location, config, err)
				}
			}
		},
		Closed: func(config *SessionConfig, err error) {
			for _, t := range traces {
				if t.Closed != nil {
					t.Closed(config, err)
				}
			}
		},
	}
}
