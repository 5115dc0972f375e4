package testutil

import (
	"bytes"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/damianoneill/snmpasync/snmp/codec"
	"github.com/damianoneill/snmpasync/snmp/common"
	"github.com/damianoneill/snmpasync/snmp/usm"
)

// Agent represents a test SNMP agent serving a fixed MIB view over UDP on the loopback interface.
// It answers v1/v2c requests carrying its community and v3 requests from its user, including
// engine discovery.
type Agent struct {
	conn      *net.UDPConn
	community string
	engineID  []byte
	user      *usm.LocalizedUser
	started   time.Time

	mu     sync.Mutex
	values map[string]*common.TypedValue
	order  []common.OID
	boots  int32

	drop     atomic.Int32
	silent   atomic.Bool
	requests atomic.Int32
	probes   atomic.Int32
	wg       sync.WaitGroup
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithCommunity sets the community accepted by the agent. Default is public.
func WithCommunity(community string) AgentOption {
	return func(a *Agent) {
		a.community = community
	}
}

// WithUser enables v3 for the given user.
func WithUser(t *testing.T, u *usm.User) AgentOption {
	return func(a *Agent) {
		lu, err := u.Localize(a.engineID)
		assert.NoError(t, err, "Localize failed")
		a.user = lu
	}
}

// NewAgent delivers a new test agent serving values, keyed by dotted object identifier.
func NewAgent(t *testing.T, values map[string]*common.TypedValue, opts ...AgentOption) *Agent {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	assert.NoError(t, err, "Listen failed")

	a := &Agent{
		conn:      conn,
		community: "public",
		engineID:  []byte{0x80, 0x00, 0x1f, 0x88, 0x80, 0x74, 0x65, 0x73, 0x74},
		started:   time.Now(),
		values:    map[string]*common.TypedValue{},
		boots:     1,
	}
	for _, opt := range opts {
		opt(a)
	}
	for k, v := range values {
		a.Set(common.MustParseOID(k), v)
	}

	a.wg.Add(1)
	go a.serve(t)
	return a
}

// Addr delivers the host:port the agent is listening on.
func (a *Agent) Addr() string {
	return a.conn.LocalAddr().String()
}

// EngineID delivers the agent's authoritative engine id.
func (a *Agent) EngineID() []byte {
	return a.engineID
}

// Set adds or replaces a value in the agent's view.
func (a *Agent) Set(oid common.OID, v *common.TypedValue) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := oid.String()
	if _, ok := a.values[key]; !ok {
		a.order = append(a.order, oid.Clone())
		sort.Slice(a.order, func(i, j int) bool { return a.order[i].Less(a.order[j]) })
	}
	a.values[key] = v
}

// Drop makes the agent ignore the next n requests.
func (a *Agent) Drop(n int) {
	a.drop.Store(int32(n)) //nolint:gosec
}

// Silence makes the agent ignore every request while silent is true.
func (a *Agent) Silence(silent bool) {
	a.silent.Store(silent)
}

// Reboot advances the agent's boot counter, putting every client out of its time window.
func (a *Agent) Reboot() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.boots++
}

// Requests delivers the number of datagrams received.
func (a *Agent) Requests() int {
	return int(a.requests.Load())
}

// Probes delivers the number of engine discovery requests received.
func (a *Agent) Probes() int {
	return int(a.probes.Load())
}

// Close closes any resources used by the agent.
func (a *Agent) Close() {
	// nolint: gosec, errcheck
	a.conn.Close()
	a.wg.Wait()
}

func (a *Agent) serve(t *testing.T) {
	defer a.wg.Done()
	buf := make([]byte, codec.MaxMessageSize)
	for {
		n, from, err := a.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		a.requests.Add(1)
		if a.silent.Load() {
			continue
		}
		if a.drop.Load() > 0 {
			a.drop.Add(-1)
			continue
		}
		out := a.handle(buf[:n])
		if out == nil {
			continue
		}
		_, err = a.conn.WriteToUDP(out, from)
		assert.NoError(t, err, "Write failed")
	}
}

func (a *Agent) lookup(engineID []byte, userName string) (*usm.LocalizedUser, error) {
	if a.user == nil || a.user.Name != userName || !bytes.Equal(engineID, a.engineID) {
		return nil, &common.UsmError{Reason: "unknown user"}
	}
	return a.user, nil
}

func (a *Agent) handle(input []byte) []byte {
	req, err := codec.Unmarshal(input, a.lookup)
	if err != nil {
		return nil
	}
	if req.Version == common.V3 {
		return a.handleV3(req)
	}
	if a.user != nil || string(req.RawCommunity) != a.community {
		return nil
	}
	resp := a.respond(req)
	if resp == nil {
		return nil
	}
	out, err := codec.Marshal(resp)
	if err != nil {
		return nil
	}
	return out
}

func (a *Agent) engineTime() int32 {
	return int32(time.Since(a.started) / time.Second) //nolint:gosec
}

func (a *Agent) handleV3(req *common.Message) []byte {
	if a.user == nil {
		return nil
	}
	a.mu.Lock()
	boots := a.boots
	a.mu.Unlock()

	var resp *common.Message
	level := req.Security.AuthLevel
	switch {
	case !bytes.Equal(req.Security.EngineID, a.engineID):
		if req.Vars().Len() == 0 {
			a.probes.Add(1)
		}
		resp = report(req, "1.3.6.1.6.3.15.1.1.4.0")
		level = common.NoAuthNoPriv
	case req.Security.UserName != a.user.Name:
		resp = report(req, "1.3.6.1.6.3.15.1.1.3.0")
		level = common.NoAuthNoPriv
	case level < a.user.Level():
		resp = report(req, "1.3.6.1.6.3.15.1.1.1.0")
		level = common.NoAuthNoPriv
	case req.Security.Boots != boots:
		resp = report(req, "1.3.6.1.6.3.15.1.1.2.0")
		if level > common.AuthNoPriv {
			level = common.AuthNoPriv
		}
	default:
		resp = a.respond(req)
		if resp == nil {
			return nil
		}
	}
	resp.Version = common.V3
	resp.MessageID = req.MessageID
	resp.Security = common.SecurityParams{
		EngineID:  a.engineID,
		Boots:     boots,
		Time:      a.engineTime(),
		UserName:  req.Security.UserName,
		AuthLevel: level,
	}
	resp.ContextEngineID = a.engineID
	resp.ContextName = req.ContextName
	out, err := codec.MarshalV3(resp, a.user)
	if err != nil {
		return nil
	}
	return out
}

func report(req *common.Message, counter string) *common.Message {
	resp := common.NewMessage(common.Report)
	resp.RequestID = req.RequestID
	_ = resp.AddValue(common.MustParseOID(counter), &common.TypedValue{Type: common.Counter32, Value: uint32(1)})
	return resp
}

func (a *Agent) respond(req *common.Message) *common.Message {
	resp := common.NewMessage(common.Response)
	resp.Version = req.Version
	resp.RawCommunity = req.RawCommunity
	resp.RequestID = req.RequestID

	a.mu.Lock()
	defer a.mu.Unlock()
	switch req.Kind { //nolint:exhaustive
	case common.GetRequest:
		i := 0
		for v := range req.Variables() {
			i++
			name := v.Name()
			value, ok := a.values[name.String()]
			if !ok {
				if req.Version == common.V1 {
					return errorResponse(req, common.NoSuchName, i)
				}
				value = &common.TypedValue{Type: common.NoSuchObject}
			}
			_ = resp.AddValue(name, value)
		}
	case common.GetNextRequest:
		for v := range req.Variables() {
			a.addNext(resp, v.Name())
		}
	case common.GetBulkRequest:
		i := 0
		for v := range req.Variables() {
			if i < req.NonRepeaters() {
				a.addNext(resp, v.Name())
			} else {
				name := v.Name()
				for r := 0; r < req.MaxRepetitions(); r++ {
					name = a.addNext(resp, name)
				}
			}
			i++
		}
	case common.SetRequest:
		for v := range req.Variables() {
			value, err := v.Value()
			if err != nil {
				return errorResponse(req, common.GenErr, 1)
			}
			key := v.Name().String()
			if _, ok := a.values[key]; !ok {
				a.order = append(a.order, v.Name())
				sort.Slice(a.order, func(i, j int) bool { return a.order[i].Less(a.order[j]) })
			}
			a.values[key] = value
			_ = resp.AddValue(v.Name(), value)
		}
	case common.InformRequest:
		for v := range req.Variables() {
			resp.AddVariable(v)
		}
	default:
		return nil
	}
	return resp
}

// Appends the successor of name, returning it, or end-of-mib-view when there is none.
func (a *Agent) addNext(resp *common.Message, name common.OID) common.OID {
	for _, oid := range a.order {
		if name.Less(oid) {
			_ = resp.AddValue(oid, a.values[oid.String()])
			return oid
		}
	}
	_ = resp.AddValue(name, &common.TypedValue{Type: common.EndOfMibView})
	return name
}

func errorResponse(req *common.Message, status, index int) *common.Message {
	resp := common.NewMessage(common.Response)
	resp.Version = req.Version
	resp.RawCommunity = req.RawCommunity
	resp.RequestID = req.RequestID
	resp.ErrorStatus = status
	resp.ErrorIndex = index
	for v := range req.Variables() {
		resp.AddVariable(v)
	}
	return resp
}
