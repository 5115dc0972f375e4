package engine

import (
	"context"
	"net"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// socketDescriptor waits on a UDP socket through the runtime network poller. The level-triggered
// poll(2) check runs first on every wait, so a datagram that arrived before the wait began is
// never missed.
type socketDescriptor struct {
	conn *net.UDPConn
	raw  syscall.RawConn
}

func newSocketDescriptor(conn *net.UDPConn) (*socketDescriptor, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return nil, errors.Wrap(err, "raw connection")
	}
	return &socketDescriptor{conn: conn, raw: raw}, nil
}

var aLongTimeAgo = time.Unix(1, 0)

func (d *socketDescriptor) WaitWritable(ctx context.Context) error {
	return d.wait(ctx, d.raw.Write, d.conn.SetWriteDeadline, unix.POLLOUT)
}

func (d *socketDescriptor) WaitReadable(ctx context.Context) error {
	return d.wait(ctx, d.raw.Read, d.conn.SetReadDeadline, unix.POLLIN)
}

func (d *socketDescriptor) Pending() bool {
	ready := false
	_ = d.raw.Control(func(fd uintptr) {
		ready = pollNow(fd, unix.POLLIN)
	})
	return ready
}

// Cancellation interrupts the poller wait by moving the deadline into the past; the deadline is
// cleared again once the interrupting callback has finished so the next wait starts clean.
func (d *socketDescriptor) wait(ctx context.Context, op func(func(uintptr) bool) error,
	setDeadline func(time.Time) error, events int16,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		_ = setDeadline(aLongTimeAgo)
		close(fired)
	})
	err := op(func(fd uintptr) bool {
		return pollNow(fd, events)
	})
	if !stop() {
		<-fired
		_ = setDeadline(time.Time{})
		return ctx.Err()
	}
	return err
}

func pollNow(fd uintptr, events int16) bool {
	fds := []unix.PollFd{{Fd: int32(fd), Events: events}} //nolint:gosec
	n, err := unix.Poll(fds, 0)
	return err == nil && n > 0 && fds[0].Revents != 0
}

// Reads one datagram without blocking. ok is false when nothing was queued.
func (d *socketDescriptor) recv(buf []byte) (n int, from *net.UDPAddr, ok bool, err error) {
	cerr := d.raw.Read(func(fd uintptr) bool {
		var sa unix.Sockaddr
		var rerr error
		n, sa, rerr = unix.Recvfrom(int(fd), buf, unix.MSG_DONTWAIT)
		switch {
		case rerr == unix.EAGAIN || rerr == unix.EWOULDBLOCK:
		case rerr != nil:
			err = rerr
		default:
			ok = true
			from = sockaddrToUDP(sa)
		}
		return true
	})
	if cerr != nil {
		return 0, nil, false, cerr
	}
	return n, from, ok, err
}

func sockaddrToUDP(sa unix.Sockaddr) *net.UDPAddr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.UDPAddr{IP: net.IP(append([]byte(nil), a.Addr[:]...)), Port: a.Port}
	case *unix.SockaddrInet6:
		return &net.UDPAddr{IP: net.IP(append([]byte(nil), a.Addr[:]...)), Port: a.Port}
	}
	return nil
}
