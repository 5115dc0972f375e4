package engine

import (
	"context"
	"math/rand/v2"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/damianoneill/snmpasync/snmp/codec"
	"github.com/damianoneill/snmpasync/snmp/common"
)

var errClosed = errors.New("session closed")

type pendingRequest struct {
	reqID     int32
	msgID     int32
	msg       *common.Message
	release   func()
	wire      []byte
	deadline  time.Time
	retries   int
	probe     bool
	resynced  bool
	sentBoots int32
}

type udpSession struct {
	cfg  Config
	log  logrus.FieldLogger
	conn *net.UDPConn
	fd   *socketDescriptor
	// remote is nil when conn is connected to the peer.
	remote    *net.UDPAddr
	transport *Transport

	mu        sync.Mutex
	hook      CompletionHook
	pending   map[int32]*pendingRequest
	nextReqID int32
	nextMsgID int32
	lastErr   error
	closed    bool

	sec securityState
}

// Open creates a session with its own socket, connected to the peer. Such sessions may be
// used from any goroutine, one query at a time.
func Open(ctx context.Context, c *Config) (Session, error) {
	cfg, err := c.withDefaults()
	if err != nil {
		return nil, err
	}
	d := net.Dialer{}
	if cfg.LocalAddress != "" {
		laddr, err := net.ResolveUDPAddr(cfg.Network, cfg.LocalAddress)
		if err != nil {
			return nil, &common.TransportError{App: cfg.App, Addr: cfg.Network + ":" + cfg.Address, Cause: err}
		}
		d.LocalAddr = laddr
	}
	conn, err := d.DialContext(ctx, cfg.Network, cfg.Address)
	if err != nil {
		return nil, &common.TransportError{App: cfg.App, Addr: cfg.Network + ":" + cfg.Address, Cause: err}
	}
	udp, ok := conn.(*net.UDPConn)
	if !ok {
		_ = conn.Close()
		return nil, &common.TransportError{App: cfg.App, Addr: cfg.Network + ":" + cfg.Address, Cause: errors.New("not a udp network")}
	}
	fd, err := newSocketDescriptor(udp)
	if err != nil {
		_ = udp.Close()
		return nil, &common.TransportError{App: cfg.App, Addr: cfg.Network + ":" + cfg.Address, Cause: err}
	}
	s, err := newSession(&cfg, udp, fd, nil)
	if err != nil {
		_ = udp.Close()
		return nil, err
	}
	return s, nil
}

func newSession(cfg *Config, conn *net.UDPConn, fd *socketDescriptor, remote *net.UDPAddr) (*udpSession, error) {
	s := &udpSession{
		cfg:       *cfg,
		conn:      conn,
		fd:        fd,
		remote:    remote,
		pending:   map[int32]*pendingRequest{},
		nextReqID: rand.Int32N(1 << 30), //nolint:gosec
		nextMsgID: rand.Int32N(1 << 30), //nolint:gosec
	}
	s.log = cfg.Logger.WithFields(logrus.Fields{"peer": cfg.Address, "version": cfg.Version.String()})
	if err := s.sec.init(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *udpSession) Send(msg *common.Message) (int32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendLocked(msg, false)
}

func (s *udpSession) sendLocked(msg *common.Message, probe bool) (int32, bool) {
	if s.closed {
		s.lastErr = errClosed
		return 0, false
	}
	if msg.Kind == common.GetBulkRequest && s.cfg.Version == common.V1 {
		s.lastErr = errors.New("get-bulk is not supported by v1")
		return 0, false
	}
	if msg.Kind != common.Response && msg.Kind != common.Report {
		msg.RequestID = s.nextRequestID()
	}
	msg.Version = s.cfg.Version
	if s.cfg.Version == common.V3 {
		msg.MessageID = s.nextMessageID()
	} else {
		msg.RawCommunity = []byte(s.cfg.Community)
	}
	wire, err := s.encode(msg, probe)
	if err != nil {
		s.lastErr = err
		return 0, false
	}
	if err = s.write(wire); err != nil {
		s.lastErr = err
		return 0, false
	}
	release := msg.Transfer()
	if !msg.Kind.Confirmed() {
		release()
		return msg.RequestID, true
	}
	s.pending[msg.RequestID] = &pendingRequest{
		reqID:     msg.RequestID,
		msgID:     msg.MessageID,
		msg:       msg,
		release:   release,
		wire:      wire,
		deadline:  time.Now().Add(s.cfg.Timeout),
		probe:     probe,
		sentBoots: msg.Security.Boots,
	}
	return msg.RequestID, true
}

func (s *udpSession) encode(msg *common.Message, probe bool) ([]byte, error) {
	if s.cfg.Version != common.V3 {
		return codec.Marshal(msg)
	}
	user, err := s.sec.stamp(msg, &s.cfg, probe)
	if err != nil {
		return nil, err
	}
	return codec.MarshalV3(msg, user)
}

func (s *udpSession) write(b []byte) error {
	var err error
	if s.remote == nil {
		_, err = s.conn.Write(b)
	} else {
		_, err = s.conn.WriteToUDP(b, s.remote)
	}
	return errors.Wrap(err, "send")
}

func (s *udpSession) nextRequestID() int32 {
	s.nextReqID++
	if s.nextReqID <= 0 {
		s.nextReqID = 1
	}
	return s.nextReqID
}

func (s *udpSession) nextMessageID() int32 {
	s.nextMsgID++
	if s.nextMsgID <= 0 {
		s.nextMsgID = 1
	}
	return s.nextMsgID
}

func (s *udpSession) Readiness() (Descriptor, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var earliest time.Time
	for _, p := range s.pending {
		if earliest.IsZero() || p.deadline.Before(earliest) {
			earliest = p.deadline
		}
	}
	if earliest.IsZero() {
		return s.fd, s.cfg.Timeout
	}
	d := time.Until(earliest)
	if d < 0 {
		d = 0
	}
	return s.fd, d
}

func (s *udpSession) DriveTimeout() {
	now := time.Now()
	var expired []int32

	s.mu.Lock()
	for id, p := range s.pending {
		if now.Before(p.deadline) {
			continue
		}
		if p.retries < s.cfg.Retries {
			p.retries++
			p.deadline = now.Add(s.cfg.Timeout)
			s.log.WithFields(logrus.Fields{"request": id, "attempt": p.retries}).Debug("retransmitting request")
			if err := s.write(p.wire); err != nil {
				s.lastErr = err
			}
			continue
		}
		delete(s.pending, id)
		p.release()
		expired = append(expired, id)
	}
	hook := s.hook
	s.mu.Unlock()

	for _, id := range expired {
		s.log.WithField("request", id).Debug("request timed out")
		if hook != nil {
			hook(OpTimedOut, id, common.MessageView{})
		}
	}
}

func (s *udpSession) RegisterHook(hook CompletionHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
}

func (s *udpSession) Multiplex(_ Descriptor) {
	buf := make([]byte, codec.MaxMessageSize+1)
	n, from, ok, err := s.fd.recv(buf)
	if err != nil {
		s.mu.Lock()
		s.lastErr = errors.Wrap(err, "receive")
		s.mu.Unlock()
		return
	}
	if !ok {
		return
	}
	if s.transport != nil {
		s.transport.dispatch(buf[:n], from)
		return
	}
	s.deliver(buf[:n])
}

// Decodes a datagram from the peer and completes the request it answers.
func (s *udpSession) deliver(data []byte) {
	msg, err := codec.Unmarshal(data, s.sec.lookup)
	if err != nil {
		s.log.WithError(err).Debug("dropping undecodable datagram")
		return
	}
	if msg.Kind != common.Response && msg.Kind != common.Report {
		s.log.WithField("kind", msg.Kind.String()).Debug("dropping unexpected message")
		return
	}

	s.mu.Lock()
	p := s.match(msg)
	if p == nil {
		s.mu.Unlock()
		s.log.WithField("request", msg.RequestID).Debug("dropping response to unknown request")
		return
	}
	if msg.Version == common.V3 && s.handleV3Locked(p, msg) {
		s.mu.Unlock()
		return
	}
	delete(s.pending, p.reqID)
	p.release()
	hook := s.hook
	s.mu.Unlock()

	msg.RequestID = p.reqID
	release := msg.Transfer()
	defer release()
	if hook != nil {
		hook(OpReceivedMessage, p.reqID, msg.View())
	}
}

// v3 reports may carry a zero request id, so v3 messages are correlated by message id.
func (s *udpSession) match(msg *common.Message) *pendingRequest {
	if msg.Version != common.V3 {
		return s.pending[msg.RequestID]
	}
	for _, p := range s.pending {
		if p.msgID == msg.MessageID {
			return p
		}
	}
	return nil
}

func (s *udpSession) Abandon(reqID int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pending[reqID]; ok {
		delete(s.pending, reqID)
		p.release()
	}
}

func (s *udpSession) SynchExchange(ctx context.Context, msg *common.Message) (*common.Message, error) {
	var (
		reqID    int32
		response *common.Message
		failure  error
		done     bool
	)
	s.mu.Lock()
	previous := s.hook
	s.hook = func(op int, id int32, view common.MessageView) {
		if id != reqID {
			return
		}
		switch op {
		case OpReceivedMessage:
			response = view.Clone()
		case OpTimedOut:
			failure = common.ErrTimeout
		default:
			return
		}
		done = true
	}
	id, ok := s.sendLocked(msg, false)
	if !ok {
		s.hook = previous
		err := s.lastErr
		s.mu.Unlock()
		msg.Release()
		return nil, err
	}
	reqID = id
	s.mu.Unlock()

	defer s.RegisterHook(previous)
	for !done {
		fd, timeout := s.Readiness()
		readable, err := waitReadable(ctx, fd, timeout)
		if err != nil {
			s.Abandon(reqID)
			return nil, err
		}
		if readable {
			s.Multiplex(fd)
		} else {
			s.DriveTimeout()
		}
	}
	if failure != nil {
		return nil, failure
	}
	if response.ErrorStatus != common.NoError && response.Kind == common.Response {
		err := &common.PacketError{Status: response.ErrorStatus, Index: response.ErrorIndex}
		response.Release()
		return nil, err
	}
	return response, nil
}

// Waits for readability, reporting false when timeout elapses first.
func waitReadable(ctx context.Context, fd Descriptor, timeout time.Duration) (bool, error) {
	if timeout <= 0 {
		return fd.Pending(), nil
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := fd.WaitReadable(tctx)
	switch {
	case ctx.Err() != nil:
		return false, ctx.Err()
	case err == nil:
		return true, nil
	case tctx.Err() != nil:
		return fd.Pending(), nil
	}
	return false, err
}

func (s *udpSession) Info() Info {
	local := ""
	if addr := s.conn.LocalAddr(); addr != nil {
		local = addr.String()
	}
	return Info{
		PeerName:      s.cfg.Address,
		LocalName:     local,
		Authoritative: s.cfg.Authoritative,
	}
}

func (s *udpSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *udpSession) ThreadSafe() bool {
	return s.transport == nil
}

func (s *udpSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for id, p := range s.pending {
		delete(s.pending, id)
		p.release()
	}
	s.hook = nil
	s.mu.Unlock()

	if s.transport != nil {
		s.transport.remove(s)
		return nil
	}
	return s.conn.Close()
}
