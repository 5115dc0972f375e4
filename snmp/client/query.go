package client

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/damianoneill/snmpasync/snmp/common"
	"github.com/damianoneill/snmpasync/snmp/engine"
)

func (s *sessionImpl) Query(ctx context.Context, msg *common.Message) (resp *common.Message, err error) {
	kind := msg.Kind
	s.config.trace.QueryStart(s.config, kind)
	defer func(begin time.Time) {
		s.config.trace.QueryDone(s.config, kind, err, time.Since(begin))
	}(time.Now())

	if s.probe.Load() && s.engine.NeedsProbe(msg) {
		if err = s.handshake(ctx); err != nil {
			msg.Release()
			return nil, err
		}
	}
	return s.exchange(ctx, msg)
}

// Discovers the authoritative engine. The probe flag is cleared whatever the outcome, so a
// session probes at most once unless SetAsyncProbe re-enables it.
func (s *sessionImpl) handshake(ctx context.Context) (err error) {
	s.probe.Store(false)
	defer func(begin time.Time) {
		s.config.trace.ProbeDone(s.config, err, time.Since(begin))
	}(time.Now())

	reg := install(s.engine, s.invalidCallback)
	defer reg.teardown(s.engine)

	fd, _ := s.clock.Next()
	if err = fd.WaitWritable(ctx); err != nil {
		return err
	}
	id, ok := s.engine.SendProbe()
	if !ok {
		s.config.trace.Error("Send probe", s.config, s.engine.Err())
		return common.ErrProbeFailed
	}
	reg.expect(id)

	res, err := s.await(ctx, reg)
	if err != nil {
		s.engine.Abandon(id)
		return err
	}
	switch {
	case res.err != nil:
		_ = s.engine.ProcessProbeResponse(engine.ProbeTimeout, nil)
		return common.ErrProbeFailed
	case res.msg.Kind == common.Report:
		res.msg.Release()
		_ = s.engine.ProcessProbeResponse(engine.ProbeError, nil)
		return common.ErrProbeFailed
	}
	if perr := s.engine.ProcessProbeResponse(engine.ProbeSuccess, res.msg); perr != nil {
		s.config.trace.Error("Process probe response", s.config, perr)
		return common.ErrProbeFailed
	}
	return nil
}

// Sends msg and waits for the correlated response. On cancellation the request is abandoned and
// the session is left ready for the next query.
func (s *sessionImpl) exchange(ctx context.Context, msg *common.Message) (*common.Message, error) {
	reg := install(s.engine, s.invalidCallback)
	defer reg.teardown(s.engine)

	fd, _ := s.clock.Next()
	if err := fd.WaitWritable(ctx); err != nil {
		msg.Release()
		return nil, err
	}
	confirmed := msg.Kind.Confirmed()
	id, ok := s.engine.Send(msg)
	if !ok {
		err := s.engine.Err()
		if err == nil {
			err = errors.New("send failed")
		}
		msg.Release()
		s.config.trace.Error("Send", s.config, err)
		return nil, err
	}
	if !confirmed {
		return nil, nil
	}
	reg.expect(id)

	res, err := s.await(ctx, reg)
	if err != nil {
		s.engine.Abandon(id)
		return nil, err
	}
	return res.msg, res.err
}

// Alternates between waiting and driving the engine until the registration holds a result. A
// timeout wake is handled before readability, which is then checked again in the same wake.
func (s *sessionImpl) await(ctx context.Context, reg *registration) (result, error) {
	for {
		fd, timeout := s.clock.Next()
		wake, err := s.clock.Wait(ctx, fd, timeout)
		if err != nil {
			return result{}, err
		}
		s.config.trace.Wake(s.config, wake)
		switch wake {
		case WakeTimeout:
			s.clock.Expire()
			if res, ok := reg.take(); ok {
				return res, nil
			}
			if fd.Pending() {
				s.engine.Multiplex(fd)
			}
		case WakeReadable:
			s.engine.Multiplex(fd)
		}
		if res, ok := reg.take(); ok {
			return res, nil
		}
	}
}

func (s *sessionImpl) invalidCallback(err error) {
	s.config.trace.InvalidCallback(s.config, err)
}
