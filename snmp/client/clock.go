package client

import (
	"context"
	"time"

	"github.com/damianoneill/snmpasync/snmp/engine"
)

// Wake identifies what ended a RetryClock wait.
type Wake int

const (
	// WakeReadable means a datagram is waiting on the session's socket.
	WakeReadable Wake = iota
	// WakeTimeout means the engine's current retransmission deadline has passed.
	WakeTimeout
)

func (w Wake) String() string {
	if w == WakeReadable {
		return "readable"
	}
	return "timeout"
}

// RetryClock turns the engine's retransmission schedule into waits. It keeps no retry state of its
// own: every number it works with comes from the engine, and must be asked for again after each wake.
type RetryClock struct {
	sess engine.Session
}

// NewRetryClock delivers a clock driven by sess.
func NewRetryClock(sess engine.Session) *RetryClock {
	return &RetryClock{sess: sess}
}

// Next delivers the descriptor to watch and the time left before the engine's next deadline.
func (c *RetryClock) Next() (engine.Descriptor, time.Duration) {
	return c.sess.Readiness()
}

// Expire lets the engine retransmit or time out every request whose deadline has passed.
func (c *RetryClock) Expire() {
	c.sess.DriveTimeout()
}

// Wait blocks until fd is readable or timeout elapses, whichever is first. A non-positive timeout
// wakes immediately. The only errors are those of ctx or of the descriptor.
func (c *RetryClock) Wait(ctx context.Context, fd engine.Descriptor, timeout time.Duration) (Wake, error) {
	if err := ctx.Err(); err != nil {
		return WakeTimeout, err
	}
	if timeout <= 0 {
		return WakeTimeout, nil
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := fd.WaitReadable(tctx)
	switch {
	case ctx.Err() != nil:
		return WakeTimeout, ctx.Err()
	case err == nil:
		return WakeReadable, nil
	case tctx.Err() != nil:
		return WakeTimeout, nil
	}
	return WakeTimeout, err
}
