package client

import (
	"context"
	"sync"
	"time"

	"github.com/damianoneill/snmpasync/snmp/common"
	"github.com/damianoneill/snmpasync/snmp/engine"
)

// stubDescriptor is readable whenever the stub engine has a queued response.
type stubDescriptor struct {
	e *stubEngine
}

func (d *stubDescriptor) WaitWritable(ctx context.Context) error {
	return ctx.Err()
}

func (d *stubDescriptor) WaitReadable(ctx context.Context) error {
	if d.Pending() {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (d *stubDescriptor) Pending() bool {
	d.e.mu.Lock()
	defer d.e.mu.Unlock()
	return len(d.e.queue) > 0
}

type queued struct {
	reqID int32
	resp  *common.Message
}

type stubRequest struct {
	release  func()
	deadline time.Time
	retries  int
}

// stubEngine is an in-memory engine.Session. respond, when set, supplies the response to each
// request at send time; the response is delivered by the next Multiplex.
type stubEngine struct {
	mu       sync.Mutex
	fd       *stubDescriptor
	hook     engine.CompletionHook
	nextID   int32
	pending  map[int32]*stubRequest
	queue    []queued
	timeout  time.Duration
	retries  int
	sent     []*common.Message
	sendErr  error
	lastErr  error
	closed   bool
	safe     bool
	extraOps []int
	repeat   bool

	respond func(req *common.Message) *common.Message

	needsProbe    bool
	probes        int
	probeReply    func() *common.Message
	probeErr      error
	processed     []engine.ProbeStatus
	abandoned     []int32
	registrations int
}

func newStubEngine() *stubEngine {
	e := &stubEngine{
		pending: map[int32]*stubRequest{},
		timeout: 20 * time.Millisecond,
		retries: 1,
		safe:    true,
	}
	e.fd = &stubDescriptor{e: e}
	return e
}

// Responds to every request with a single variable holding value.
func (e *stubEngine) answer(value *common.TypedValue) *stubEngine {
	e.respond = func(req *common.Message) *common.Message {
		resp := common.NewMessage(common.Response)
		resp.RequestID = req.RequestID
		for v := range req.Variables() {
			_ = resp.AddValue(v.Name(), value)
		}
		return resp
	}
	return e
}

func (e *stubEngine) Send(msg *common.Message) (int32, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.sendErr != nil {
		e.lastErr = e.sendErr
		return 0, false
	}
	e.nextID++
	msg.RequestID = e.nextID
	e.sent = append(e.sent, msg.Clone())
	release := msg.Transfer()
	if !msg.Kind.Confirmed() {
		release()
		return msg.RequestID, true
	}
	var resp *common.Message
	if e.respond != nil {
		resp = e.respond(msg)
	}
	e.pending[msg.RequestID] = &stubRequest{release: release, deadline: time.Now().Add(e.timeout)}
	if resp != nil {
		e.queue = append(e.queue, queued{reqID: msg.RequestID, resp: resp})
	}
	return msg.RequestID, true
}

func (e *stubEngine) SynchExchange(context.Context, *common.Message) (*common.Message, error) {
	panic("not used by the client")
}

func (e *stubEngine) Readiness() (engine.Descriptor, time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var earliest time.Time
	for _, p := range e.pending {
		if earliest.IsZero() || p.deadline.Before(earliest) {
			earliest = p.deadline
		}
	}
	if earliest.IsZero() {
		return e.fd, e.timeout
	}
	return e.fd, time.Until(earliest)
}

func (e *stubEngine) DriveTimeout() {
	e.mu.Lock()
	var expired []int32
	now := time.Now()
	for id, p := range e.pending {
		if now.Before(p.deadline) {
			continue
		}
		if p.retries < e.retries {
			p.retries++
			p.deadline = now.Add(e.timeout)
			continue
		}
		delete(e.pending, id)
		p.release()
		expired = append(expired, id)
	}
	hook := e.hook
	e.mu.Unlock()
	for _, id := range expired {
		if hook != nil {
			hook(engine.OpTimedOut, id, common.MessageView{})
		}
	}
}

func (e *stubEngine) RegisterHook(hook engine.CompletionHook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if hook != nil {
		e.registrations++
	}
	e.hook = hook
}

func (e *stubEngine) currentHook() engine.CompletionHook {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hook
}

func (e *stubEngine) Multiplex(engine.Descriptor) {
	e.mu.Lock()
	if len(e.queue) == 0 {
		e.mu.Unlock()
		return
	}
	q := e.queue[0]
	e.queue = e.queue[1:]
	p, ok := e.pending[q.reqID]
	if ok {
		delete(e.pending, q.reqID)
		p.release()
	}
	hook := e.hook
	extra := e.extraOps
	repeat := e.repeat
	e.mu.Unlock()

	defer q.resp.Release()
	if !ok || hook == nil {
		return
	}
	for _, op := range extra {
		hook(op, q.reqID, common.MessageView{})
	}
	hook(engine.OpReceivedMessage, q.reqID, q.resp.View())
	if repeat {
		spurious := common.NewMessage(common.Response)
		spurious.RequestID = q.reqID
		_ = spurious.AddValue(common.MustParseOID("1.3.6.1.2.1.1.1.0"), &common.TypedValue{Type: common.OctetString, Value: []byte("spurious")})
		hook(engine.OpReceivedMessage, q.reqID, spurious.View())
		spurious.Release()
	}
}

func (e *stubEngine) Abandon(reqID int32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.abandoned = append(e.abandoned, reqID)
	if p, ok := e.pending[reqID]; ok {
		delete(e.pending, reqID)
		p.release()
	}
}

func (e *stubEngine) NeedsProbe(*common.Message) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.needsProbe
}

func (e *stubEngine) SendProbe() (int32, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.probes++
	e.nextID++
	probe := common.NewGet()
	e.pending[e.nextID] = &stubRequest{release: probe.Transfer(), deadline: time.Now().Add(e.timeout)}
	if e.probeReply != nil {
		resp := e.probeReply()
		resp.RequestID = e.nextID
		e.queue = append(e.queue, queued{reqID: e.nextID, resp: resp})
	}
	return e.nextID, true
}

func (e *stubEngine) ProcessProbeResponse(status engine.ProbeStatus, response *common.Message) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.processed = append(e.processed, status)
	if response != nil {
		response.Release()
	}
	if status == engine.ProbeSuccess && e.probeErr == nil {
		e.needsProbe = false
	}
	return e.probeErr
}

func (e *stubEngine) Info() engine.Info {
	return engine.Info{PeerName: "192.0.2.1:161", LocalName: "192.0.2.2:40000"}
}

func (e *stubEngine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

func (e *stubEngine) ThreadSafe() bool {
	return e.safe
}

func (e *stubEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	for id, p := range e.pending {
		delete(e.pending, id)
		p.release()
	}
	return nil
}

func (e *stubEngine) pendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// Delivers a session over e with no-op trace hooks.
func stubSession(e *stubEngine) *sessionImpl {
	config := defaultConfig
	config.address = "192.0.2.1:161"
	config.id = "stub"
	config.trace = NoOpLoggingHooks
	return newSession(e, &config)
}
