// Package trap receives trap and inform notifications sent by SNMP agents.
package trap

import (
	"io"
	"net"

	"github.com/pkg/errors"

	"github.com/damianoneill/snmpasync/snmp/codec"
	"github.com/damianoneill/snmpasync/snmp/common"
)

// Server provides an interface for receiving Trap and Inform messages.
// This is only defined because it will facilitate unit testing of calling code that might want to mock the server
// factory.
type Server io.Closer

// Handler is the interface that needs to be supported by the callback provided when a server is instantiated.
type Handler interface {
	// NewMessage is called when a trap or inform has been received.
	// msg is only valid for the duration of the call; use msg.Clone to retain it.
	// isInform defines the message type.
	// sourceAddr is the address which originated the message.
	// A NewMessage invocation blocks the receipt of other messages and, for an inform, the
	// transmission of the acknowledgement.
	NewMessage(msg common.MessageView, isInform bool, sourceAddr net.Addr)
}

//go:generate mockgen -destination ../mocks/mock_net.go -package mocks net PacketConn

type serverImpl struct {
	conn    net.PacketConn
	config  *serverConfig
	handler Handler
}

func (s *serverImpl) Close() error {
	return s.conn.Close()
}

// Launches a goroutine to process incoming messages.
func (s *serverImpl) handleMessages() {
	go func() {
		s.config.trace.StartListening(s.conn.LocalAddr())
		err := s.listen()
		s.config.trace.StopListening(s.conn.LocalAddr(), err)
	}()
}

func (s *serverImpl) listen() error {
	for {
		input, addr, err := s.readMessage()
		if err != nil {
			return err
		}

		err = s.processMessage(input, addr)
		if err != nil {
			s.config.trace.Error(s.config, addr, err)
		}
	}
}

func (s *serverImpl) processMessage(input []byte, addr net.Addr) error {
	msg, err := codec.Unmarshal(input, nil)
	if err != nil {
		return errors.Wrap(err, "failed to unmarshal message")
	}
	defer msg.Release()

	if msg.Version == common.V3 {
		return &common.UnsupportedVersionError{Code: int(msg.Version)}
	}
	switch msg.Kind {
	case common.Trap, common.Trap2, common.InformRequest:
	default:
		return errors.Errorf("unrecognised message type %s", msg.Kind)
	}
	if s.config.community != "" && string(msg.RawCommunity) != s.config.community {
		return errors.Errorf("community mismatch from %s", addr)
	}

	isInform := msg.Kind == common.InformRequest
	s.handler.NewMessage(msg.View(), isInform, addr)

	if isInform {
		return s.acknowledgeInform(msg, addr)
	}
	return nil
}

// The acknowledgement echoes the request id and variable bindings of the inform.
func (s *serverImpl) acknowledgeInform(msg *common.Message, addr net.Addr) error {
	resp := common.NewMessage(common.Response)
	defer resp.Release()
	resp.Version = msg.Version
	resp.RawCommunity = msg.RawCommunity
	resp.RequestID = msg.RequestID
	for v := range msg.Variables() {
		resp.AddVariable(v)
	}

	output, err := codec.Marshal(resp)
	if err != nil {
		return errors.Wrap(err, "failed to marshal response")
	}
	return s.writeMessage(output, addr)
}

func (s *serverImpl) writeMessage(message []byte, addr net.Addr) error {
	_, err := s.conn.WriteTo(message, addr)
	s.config.trace.WriteComplete(s.config, addr, message, err)
	return err
}

func (s *serverImpl) readMessage() (input []byte, addr net.Addr, err error) {
	input = make([]byte, codec.MaxMessageSize)

	n, addr, err := s.conn.ReadFrom(input)
	defer s.config.trace.ReadComplete(s.config, addr, input[0:n], err)
	if err != nil {
		return nil, nil, err
	}

	return input[0:n], addr, nil
}
