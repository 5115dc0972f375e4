// Package client provides context-aware asynchronous SNMP queries over a protocol engine session.
//
// A query runs on the calling goroutine. It waits for the engine's socket to become writable,
// sends the request, then alternates between waiting for a response and letting the engine
// retransmit, until the engine reports a response or a timeout through its completion hook.
// v3 sessions first discover the authoritative engine, once.
package client

import (
	"context"
	"sync/atomic"

	"github.com/damianoneill/snmpasync/snmp/common"
	"github.com/damianoneill/snmpasync/snmp/engine"
)

// Session provides asynchronous SNMP queries against one target. At most one query may be
// outstanding on a session at any time.
type Session interface {
	// Query sends msg and waits for the correlated response. msg is consumed whether or not the
	// query succeeds. Responses are returned as received, including reports and responses that
	// carry a non-zero error-status. Unconfirmed kinds (traps, responses and reports) complete
	// with a nil response once sent.
	Query(ctx context.Context, msg *common.Message) (*common.Message, error)

	// QueryAsync runs Query on its own goroutine, delivering the outcome on the returned channel.
	QueryAsync(ctx context.Context, msg *common.Message) <-chan *Result

	// Get issues a get request for oid and delivers the first variable of the response, or nil
	// when the response carries none.
	// Get request processing is described at https://tools.ietf.org/html/rfc1905#section-4.2.1.
	Get(ctx context.Context, oid common.OID) (*common.Variable, error)

	// GetNext issues a get-next request for oid and delivers the first variable of the response.
	// Get Next request processing is described at https://tools.ietf.org/html/rfc1905#section-4.2.2.
	GetNext(ctx context.Context, oid common.OID) (*common.Variable, error)

	// GetBulk issues a get-bulk request whose non-repeaters are gets and whose repeaters are walks.
	// Get Bulk request processing is described at https://tools.ietf.org/html/rfc1905#section-4.2.3
	GetBulk(ctx context.Context, gets, walks []common.OID, repetitions int) (*common.Message, error)

	// GetMany fetches the given oids in a single get-bulk request.
	GetMany(ctx context.Context, oids []common.OID) (*common.Message, error)

	// SetAsyncProbe enables or disables engine discovery before the next query.
	SetAsyncProbe(enabled bool)

	// PeerName delivers the address of the target.
	PeerName() string

	// LocalName delivers the local address of the session's socket.
	LocalName() string

	// IsAuthoritative reports whether the session acts as the authoritative engine.
	IsAuthoritative() bool

	// HasError reports whether the engine has recorded an error on the session.
	HasError() bool

	// Err delivers the last error recorded by the engine, or nil.
	Err() error

	// ConcurrencySafe reports whether the session may be handed between goroutines.
	ConcurrencySafe() bool

	// ID delivers the unique identifier of the session.
	ID() string

	// Close closes the session and releases any associated resources.
	Close() error
}

// Result is the outcome of an asynchronous query.
type Result struct {
	Response *common.Message
	Err      error
}

type sessionImpl struct {
	config *SessionConfig
	engine engine.Session
	clock  *RetryClock
	probe  atomic.Bool
	closed atomic.Bool
}

func newSession(sess engine.Session, config *SessionConfig) *sessionImpl {
	s := &sessionImpl{config: config, engine: sess, clock: NewRetryClock(sess)}
	s.probe.Store(config.asyncProbe)
	return s
}

func (s *sessionImpl) QueryAsync(ctx context.Context, msg *common.Message) <-chan *Result {
	rchan := make(chan *Result, 1)
	go func() {
		resp, err := s.Query(ctx, msg)
		rchan <- &Result{Response: resp, Err: err}
	}()
	return rchan
}

func (s *sessionImpl) Get(ctx context.Context, oid common.OID) (*common.Variable, error) {
	return s.first(ctx, common.NewGet().AddOID(oid))
}

func (s *sessionImpl) GetNext(ctx context.Context, oid common.OID) (*common.Variable, error) {
	return s.first(ctx, common.NewGetNext().AddOID(oid))
}

// Delivers a copy of the first variable of the response to msg.
func (s *sessionImpl) first(ctx context.Context, msg *common.Message) (*common.Variable, error) {
	oid := msg.Vars().First().Name()
	resp, err := s.Query(ctx, msg)
	if err != nil {
		return nil, err
	}
	defer resp.Release()
	if err := responseError(resp, oid); err != nil {
		return nil, err
	}
	if v := resp.Vars().First(); v != nil {
		return v.Clone(), nil
	}
	return nil, nil
}

// Maps the error-status of a response onto an error. noSuchName, as returned by v1 agents,
// becomes a NoSuchObjectError for oid. A report becomes a UsmError naming its usmStats counter.
func responseError(resp *common.Message, oid common.OID) error {
	if resp.Kind == common.Report {
		reason := engine.ReportReason(resp.View())
		if reason == "" {
			reason = "unexpected report"
		}
		return &common.UsmError{Reason: reason}
	}
	if resp.Kind != common.Response || resp.ErrorStatus == common.NoError {
		return nil
	}
	if resp.ErrorStatus == common.NoSuchName {
		return &common.NoSuchObjectError{OID: oid}
	}
	return &common.PacketError{Status: resp.ErrorStatus, Index: resp.ErrorIndex}
}

func (s *sessionImpl) GetBulk(ctx context.Context, gets, walks []common.OID, repetitions int) (*common.Message, error) {
	msg := common.NewGetBulk(len(gets), repetitions)
	for _, oid := range gets {
		msg.AddOID(oid)
	}
	for _, oid := range walks {
		msg.AddOID(oid)
	}
	return s.Query(ctx, msg)
}

func (s *sessionImpl) GetMany(ctx context.Context, oids []common.OID) (*common.Message, error) {
	return s.GetBulk(ctx, oids, nil, 1)
}

func (s *sessionImpl) SetAsyncProbe(enabled bool) {
	s.probe.Store(enabled)
}

func (s *sessionImpl) PeerName() string {
	return s.engine.Info().PeerName
}

func (s *sessionImpl) LocalName() string {
	return s.engine.Info().LocalName
}

func (s *sessionImpl) IsAuthoritative() bool {
	return s.engine.Info().Authoritative
}

func (s *sessionImpl) HasError() bool {
	return s.engine.Err() != nil
}

func (s *sessionImpl) Err() error {
	return s.engine.Err()
}

func (s *sessionImpl) ConcurrencySafe() bool {
	return s.engine.ThreadSafe()
}

func (s *sessionImpl) ID() string {
	return s.config.id
}

func (s *sessionImpl) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := s.engine.Close()
	if err != nil {
		s.config.trace.Error("Session close failed", s.config, err)
	}
	s.config.trace.Closed(s.config, err)
	return err
}
