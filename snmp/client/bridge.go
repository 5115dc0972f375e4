package client

import (
	"sync"

	"github.com/damianoneill/snmpasync/snmp/common"
	"github.com/damianoneill/snmpasync/snmp/engine"
)

// result is what a completion hook leaves for the waiting query.
type result struct {
	msg *common.Message
	err error
}

// registration is one installation of a completion slot. The slot is written at most once and
// read at most once.
type registration struct {
	token     uint64
	onInvalid func(error)

	mu     sync.Mutex
	armed  bool
	reqID  int32
	filled bool
	taken  bool
	res    result
}

// Registrations are reached from engine hooks only through this table, so a hook that fires
// after its registration has been torn down finds nothing and does nothing.
var registry = struct {
	mu   sync.Mutex
	next uint64
	regs map[uint64]*registration
}{regs: map[uint64]*registration{}}

// install creates a registration and makes its trampoline the session's completion hook.
func install(sess engine.Session, onInvalid func(error)) *registration {
	registry.mu.Lock()
	registry.next++
	r := &registration{token: registry.next, onInvalid: onInvalid}
	registry.regs[r.token] = r
	registry.mu.Unlock()

	sess.RegisterHook(trampoline(r.token))
	return r
}

func lookup(token uint64) *registration {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	return registry.regs[token]
}

// The trampoline captures only the token.
func trampoline(token uint64) engine.CompletionHook {
	return func(op int, reqID int32, response common.MessageView) {
		if r := lookup(token); r != nil {
			r.deliver(op, reqID, response)
		}
	}
}

// expect arms the slot for the given request id. Events for other requests are ignored.
func (r *registration) expect(reqID int32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.armed = true
	r.reqID = reqID
}

func (r *registration) deliver(op int, reqID int32, response common.MessageView) {
	cop, err := engine.ParseCallbackOp(op)
	if err != nil {
		if r.onInvalid != nil {
			r.onInvalid(err)
		}
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.filled || !r.armed || reqID != r.reqID {
		return
	}
	switch cop {
	case engine.OpReceivedMessage:
		if response.IsZero() {
			return
		}
		r.res = result{msg: response.Clone()}
	case engine.OpTimedOut:
		r.res = result{err: common.ErrTimeout}
	default:
		return
	}
	r.filled = true
}

// take hands over the slot's content the first time it is called after the slot was written.
func (r *registration) take() (result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.filled || r.taken {
		return result{}, false
	}
	r.taken = true
	res := r.res
	r.res = result{}
	return res, true
}

// teardown removes the registration from the table and the session, releasing any result that
// was never taken.
func (r *registration) teardown(sess engine.Session) {
	registry.mu.Lock()
	delete(registry.regs, r.token)
	registry.mu.Unlock()

	sess.RegisterHook(nil)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.filled && !r.taken && r.res.msg != nil {
		r.res.msg.Release()
	}
	r.taken = true
	r.res = result{}
}
