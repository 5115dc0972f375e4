package common

import (
	"iter"
	"net"
	"sync/atomic"
	"unicode/utf8"
)

// SecurityParams holds the user-based security model parameters of a v3 message.
type SecurityParams struct {
	EngineID  []byte
	Boots     int32
	Time      int32
	UserName  string
	AuthLevel SecurityLevel
}

// SecurityLevel is the v3 msgFlags security level.
type SecurityLevel int

const (
	NoAuthNoPriv SecurityLevel = iota
	AuthNoPriv
	AuthPriv
)

func (l SecurityLevel) String() string {
	switch l {
	case NoAuthNoPriv:
		return "noAuthNoPriv"
	case AuthNoPriv:
		return "authNoPriv"
	case AuthPriv:
		return "authPriv"
	}
	return "unknown"
}

// V1Trap holds the fields specific to a version 1 trap PDU.
type V1Trap struct {
	Enterprise   OID
	AgentAddress net.IP
	GenericTrap  int
	SpecificTrap int
	Timestamp    uint32
}

const (
	ownedByCaller int32 = iota
	ownedByEngine
	released
)

// Message is one protocol data unit together with the envelope fields it travels with.
//
// A new message belongs to the caller, who must either Release it or hand it to an engine
// send operation. A successful send transfers the message to the engine, after which the
// caller must not release or touch it. Releasing twice, or releasing a transferred message,
// panics.
type Message struct {
	Kind      Kind
	Version   Version
	RequestID int32
	// On get-bulk requests ErrorStatus and ErrorIndex carry non-repeaters and max-repetitions.
	ErrorStatus int
	ErrorIndex  int

	RawCommunity []byte

	// v3 only.
	MessageID       int32
	Security        SecurityParams
	ContextEngineID []byte
	ContextName     string
	Reportable      bool

	// v1 traps only.
	TrapInfo *V1Trap

	vars  VarChain
	state atomic.Int32
}

// NewMessage returns an empty caller-owned message of the given kind.
func NewMessage(kind Kind) *Message {
	return &Message{Kind: kind, Version: V2c}
}

func NewGet() *Message { return NewMessage(GetRequest) }
func NewGetNext() *Message { return NewMessage(GetNextRequest) }
func NewSet() *Message { return NewMessage(SetRequest) }

// NewGetBulk returns a get-bulk request with the repetition fields set.
func NewGetBulk(nonRepeaters, maxRepetitions int) *Message {
	m := NewMessage(GetBulkRequest)
	m.ErrorStatus = nonRepeaters
	m.ErrorIndex = maxRepetitions
	return m
}

func (m *Message) NonRepeaters() int { return m.ErrorStatus }
func (m *Message) MaxRepetitions() int { return m.ErrorIndex }

// AddOID appends a variable with an absent value, to be filled in by the response.
func (m *Message) AddOID(oid OID) *Message {
	m.checkLive()
	m.vars.append(&Variable{name: oid.Clone(), tag: NullTag})
	return m
}

// AddVariable appends a detached copy of v.
func (m *Message) AddVariable(v *Variable) *Message {
	m.checkLive()
	m.vars.append(v.Clone())
	return m
}

// AddValue appends a variable bound to the given value.
func (m *Message) AddValue(oid OID, tv *TypedValue) error {
	tag, data, err := tv.Encode()
	if err != nil {
		return err
	}
	m.checkLive()
	m.vars.append(&Variable{name: oid.Clone(), tag: tag, data: data})
	return nil
}

// Vars returns the variable chain. The chain is only valid while the message is alive.
func (m *Message) Vars() *VarChain {
	m.checkLive()
	return &m.vars
}

// Variables walks the variable chain.
func (m *Message) Variables() iter.Seq[*Variable] {
	return m.Vars().All()
}

// Community returns the community string, failing when it is not valid UTF-8.
func (m *Message) Community() (string, error) {
	if !utf8.Valid(m.RawCommunity) {
		return "", ErrCommunityNotUTF8
	}
	return string(m.RawCommunity), nil
}

// ClearError resets the error-status and error-index fields.
func (m *Message) ClearError() {
	m.ErrorStatus = NoError
	m.ErrorIndex = 0
}

// Clone returns a deep, caller-owned copy.
func (m *Message) Clone() *Message {
	m.checkLive()
	c := &Message{
		Kind:            m.Kind,
		Version:         m.Version,
		RequestID:       m.RequestID,
		ErrorStatus:     m.ErrorStatus,
		ErrorIndex:      m.ErrorIndex,
		RawCommunity:    copyBytes(m.RawCommunity),
		MessageID:       m.MessageID,
		Security:        m.Security,
		ContextEngineID: copyBytes(m.ContextEngineID),
		ContextName:     m.ContextName,
		Reportable:      m.Reportable,
	}
	c.Security.EngineID = copyBytes(m.Security.EngineID)
	if m.TrapInfo != nil {
		t := *m.TrapInfo
		t.Enterprise = t.Enterprise.Clone()
		t.AgentAddress = net.IP(copyBytes(t.AgentAddress))
		c.TrapInfo = &t
	}
	c.vars = *m.vars.Clone()
	return c
}

// Release frees a caller-owned message. It panics when the message has already been released
// or has been transferred to an engine.
func (m *Message) Release() {
	switch m.state.Load() {
	case ownedByEngine:
		panic("snmp: release of a message owned by the engine")
	case released:
		panic("snmp: message released twice")
	}
	if !m.state.CompareAndSwap(ownedByCaller, released) {
		panic("snmp: concurrent release of message")
	}
	m.vars = VarChain{}
}

// Transfer hands the message to an engine. It returns the function the engine must call,
// exactly once, to release the message.
func (m *Message) Transfer() (release func()) {
	if !m.state.CompareAndSwap(ownedByCaller, ownedByEngine) {
		panic("snmp: transfer of a message not owned by the caller")
	}
	return func() {
		if !m.state.CompareAndSwap(ownedByEngine, released) {
			panic("snmp: engine released message twice")
		}
		m.vars = VarChain{}
	}
}

// Owned reports whether the caller still owns the message.
func (m *Message) Owned() bool { return m.state.Load() == ownedByCaller }

// Released reports whether the message has been released.
func (m *Message) Released() bool { return m.state.Load() == released }

// View returns a read-only view of the message.
func (m *Message) View() MessageView { return MessageView{m: m} }

func (m *Message) checkLive() {
	if m.state.Load() == released {
		panic("snmp: use of released message")
	}
}

// MessageView is a read-only window onto a message owned by someone else, typically an engine
// passing a received response to a completion hook. It is only valid for the duration of the
// call that produced it; Clone it to keep the contents.
type MessageView struct {
	m *Message
}

// IsZero reports whether the view refers to no message, as for timeout notifications.
func (v MessageView) IsZero() bool { return v.m == nil }

func (v MessageView) Kind() Kind { return v.m.Kind }
func (v MessageView) Version() Version { return v.m.Version }
func (v MessageView) RequestID() int32 { return v.m.RequestID }
func (v MessageView) ErrorStatus() int { return v.m.ErrorStatus }
func (v MessageView) ErrorIndex() int { return v.m.ErrorIndex }
func (v MessageView) Len() int { return v.m.Vars().Len() }
func (v MessageView) EngineID() []byte { return copyBytes(v.m.Security.EngineID) }
func (v MessageView) Reportable() bool { return v.m.Reportable }
func (v MessageView) TrapInfo() *V1Trap { return v.m.TrapInfo }
func (v MessageView) ContextName() string { return v.m.ContextName }

func (v MessageView) Community() (string, error) { return v.m.Community() }

// Variables walks the variables of the viewed message.
func (v MessageView) Variables() iter.Seq[*Variable] { return v.m.Variables() }

// Clone copies the viewed message into a new caller-owned message.
func (v MessageView) Clone() *Message {
	if v.m == nil {
		return nil
	}
	return v.m.Clone()
}
