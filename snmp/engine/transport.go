package engine

import (
	"net"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/damianoneill/snmpasync/snmp/common"
)

// Transport is a UDP socket shared by several sessions. Datagrams are routed to the session whose
// peer address they come from. Sessions opened on a Transport share its socket and deadlines, so
// each must be confined to a single goroutine, and the sessions of one Transport to the same one.
type Transport struct {
	conn *net.UDPConn
	fd   *socketDescriptor
	log  logrus.FieldLogger

	mu       sync.Mutex
	sessions map[string]*udpSession
}

// NewTransport binds a socket on localAddress, which may be empty for an ephemeral port.
func NewTransport(network, localAddress string, logger logrus.FieldLogger) (*Transport, error) {
	if network == "" {
		network = "udp"
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	laddr, err := net.ResolveUDPAddr(network, localAddress)
	if err != nil {
		return nil, &common.TransportError{App: "transport", Addr: network + ":" + localAddress, Cause: err}
	}
	conn, err := net.ListenUDP(network, laddr)
	if err != nil {
		return nil, &common.TransportError{App: "transport", Addr: network + ":" + localAddress, Cause: err}
	}
	fd, err := newSocketDescriptor(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &Transport{
		conn:     conn,
		fd:       fd,
		log:      logger.WithField("local", conn.LocalAddr().String()),
		sessions: map[string]*udpSession{},
	}, nil
}

// Open creates a session with the peer in c over the shared socket.
func (t *Transport) Open(c *Config) (Session, error) {
	cfg, err := c.withDefaults()
	if err != nil {
		return nil, err
	}
	remote, err := net.ResolveUDPAddr(cfg.Network, cfg.Address)
	if err != nil {
		return nil, &common.TransportError{App: cfg.App, Addr: cfg.Network + ":" + cfg.Address, Cause: err}
	}
	s, err := newSession(&cfg, t.conn, t.fd, remote)
	if err != nil {
		return nil, err
	}
	s.transport = t

	t.mu.Lock()
	defer t.mu.Unlock()
	key := remote.String()
	if _, ok := t.sessions[key]; ok {
		return nil, errors.Errorf("transport already has a session with %s", key)
	}
	t.sessions[key] = s
	return s, nil
}

// LocalAddr is the address the shared socket is bound to.
func (t *Transport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

func (t *Transport) dispatch(data []byte, from *net.UDPAddr) {
	if from == nil {
		return
	}
	t.mu.Lock()
	s := t.sessions[from.String()]
	t.mu.Unlock()
	if s == nil {
		t.log.WithField("from", from.String()).Debug("dropping datagram from unknown peer")
		return
	}
	s.deliver(data)
}

func (t *Transport) remove(s *udpSession) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, v := range t.sessions {
		if v == s {
			delete(t.sessions, k)
		}
	}
}

// Close closes the socket. Sessions still open on the transport fail on their next operation.
func (t *Transport) Close() error {
	return t.conn.Close()
}
