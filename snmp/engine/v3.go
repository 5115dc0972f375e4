package engine

import (
	"bytes"
	"encoding/hex"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/damianoneill/snmpasync/snmp/common"
	"github.com/damianoneill/snmpasync/snmp/usm"
)

// usmStats counters reported by an authoritative engine, RFC 3414 section 5.
var (
	usmStatsUnsupportedSecLevels = common.MustParseOID("1.3.6.1.6.3.15.1.1.1.0")
	usmStatsNotInTimeWindows     = common.MustParseOID("1.3.6.1.6.3.15.1.1.2.0")
	usmStatsUnknownUserNames     = common.MustParseOID("1.3.6.1.6.3.15.1.1.3.0")
	usmStatsUnknownEngineIDs     = common.MustParseOID("1.3.6.1.6.3.15.1.1.4.0")
	usmStatsWrongDigests         = common.MustParseOID("1.3.6.1.6.3.15.1.1.5.0")
	usmStatsDecryptionErrors     = common.MustParseOID("1.3.6.1.6.3.15.1.1.6.0")
)

var reportReasons = map[string]string{
	usmStatsUnsupportedSecLevels.String(): "unsupported security level",
	usmStatsNotInTimeWindows.String():     "not in time window",
	usmStatsUnknownUserNames.String():     "unknown user name",
	usmStatsUnknownEngineIDs.String():     "unknown engine id",
	usmStatsWrongDigests.String():         "wrong digest",
	usmStatsDecryptionErrors.String():     "decryption error",
}

// ReportReason describes the usmStats counter carried by a report, or returns "" when the report
// carries some other counter.
func ReportReason(report common.MessageView) string {
	for v := range report.Variables() {
		return reportReasons[v.Name().String()]
	}
	return ""
}

// securityState is the view a session keeps of the authoritative engine it talks to.
type securityState struct {
	mu       sync.Mutex
	user     *usm.User
	level    common.SecurityLevel
	engineID []byte
	boots    int32
	time     int32
	timeRef  time.Time
	keys     *usm.LocalizedUser
}

func (st *securityState) init(cfg *Config) error {
	if cfg.Version != common.V3 {
		return nil
	}
	st.user = cfg.User
	st.level = cfg.User.Level()
	if !cfg.Authoritative {
		return nil
	}
	return st.learn(common.SecurityParams{EngineID: cfg.LocalEngineID, Boots: 1})
}

func (st *securityState) discovered() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.engineID) > 0
}

func (st *securityState) currentTime() int32 {
	if st.timeRef.IsZero() {
		return 0
	}
	return st.time + int32(time.Since(st.timeRef)/time.Second) //nolint:gosec
}

// Fills in the security parameters of an outgoing message, returning the keys to protect it with.
func (st *securityState) stamp(msg *common.Message, cfg *Config, probe bool) (*usm.LocalizedUser, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	msg.Reportable = msg.Kind.Confirmed()
	if probe {
		msg.Security = common.SecurityParams{AuthLevel: common.NoAuthNoPriv}
		msg.ContextEngineID = nil
		msg.ContextName = ""
		return nil, nil
	}
	msg.Security = common.SecurityParams{
		EngineID:  st.engineID,
		Boots:     st.boots,
		Time:      st.currentTime(),
		UserName:  st.user.Name,
		AuthLevel: st.level,
	}
	msg.ContextEngineID = cfg.ContextEngineID
	if msg.ContextEngineID == nil {
		msg.ContextEngineID = st.engineID
	}
	msg.ContextName = cfg.ContextName
	if st.level > common.NoAuthNoPriv && st.keys == nil {
		return nil, &common.UsmError{Reason: "authoritative engine id has not been discovered"}
	}
	return st.keys, nil
}

// Records the identity and clock of the authoritative engine, localising keys when the identity changes.
func (st *securityState) learn(p common.SecurityParams) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(p.EngineID) == 0 {
		return &common.UsmError{Reason: "empty authoritative engine id"}
	}
	if !bytes.Equal(p.EngineID, st.engineID) {
		keys, err := st.user.Localize(p.EngineID)
		if err != nil {
			return err
		}
		st.engineID = append([]byte(nil), p.EngineID...)
		st.keys = keys
	}
	st.boots = p.Boots
	st.time = p.Time
	st.timeRef = time.Now()
	return nil
}

// Keeps the engine clock in step with authenticated messages from the authoritative engine.
func (st *securityState) synchronise(p common.SecurityParams) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if !bytes.Equal(p.EngineID, st.engineID) {
		return
	}
	if p.Boots > st.boots || (p.Boots == st.boots && p.Time > st.currentTime()) {
		st.boots = p.Boots
		st.time = p.Time
		st.timeRef = time.Now()
	}
}

func (st *securityState) lookup(engineID []byte, userName string) (*usm.LocalizedUser, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.keys == nil || st.keys.Name != userName || !bytes.Equal(engineID, st.keys.EngineID) {
		return nil, &common.UsmError{Reason: "unknown user " + userName}
	}
	return st.keys, nil
}

// Applies the user-based security model to a v3 response or report. It returns true when the
// message was consumed by the engine and must not complete the request.
func (s *udpSession) handleV3Locked(p *pendingRequest, msg *common.Message) bool {
	if msg.Kind != common.Report {
		if msg.Security.AuthLevel > common.NoAuthNoPriv {
			s.sec.synchronise(msg.Security)
		}
		return false
	}

	var counter common.OID
	for v := range msg.Variables() {
		counter = v.Name()
		break
	}
	switch {
	case usmStatsUnknownEngineIDs.Equal(counter):
		if !s.cfg.Authoritative {
			if err := s.sec.learn(msg.Security); err != nil {
				s.lastErr = err
				return false
			}
		}
		if p.probe {
			// The expected answer to a discovery probe.
			msg.Kind = common.Response
			return false
		}
	case usmStatsNotInTimeWindows.Equal(counter):
		if !s.cfg.Authoritative {
			if err := s.sec.learn(msg.Security); err != nil {
				s.lastErr = err
				return false
			}
		}
	default:
		s.lastErr = &common.UsmError{Reason: reportReasons[counter.String()]}
		return false
	}
	if p.resynced || p.probe {
		return false
	}
	return s.resendLocked(p)
}

// Re-stamps and retransmits a request after the engine identity or clock has been corrected.
func (s *udpSession) resendLocked(p *pendingRequest) bool {
	p.resynced = true
	wire, err := s.encode(p.msg, false)
	if err == nil {
		err = s.write(wire)
	}
	if err != nil {
		s.lastErr = errors.Wrap(err, "resend")
		return false
	}
	s.log.WithField("request", p.reqID).Debug("resent request with corrected security parameters")
	p.wire = wire
	p.deadline = time.Now().Add(s.cfg.Timeout)
	return true
}

func (s *udpSession) NeedsProbe(msg *common.Message) bool {
	return s.cfg.Version == common.V3 && !s.cfg.Authoritative && msg.Kind.Confirmed() && !s.sec.discovered()
}

func (s *udpSession) SendProbe() (int32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	probe := common.NewGet()
	id, ok := s.sendLocked(probe, true)
	if !ok {
		probe.Release()
	}
	return id, ok
}

func (s *udpSession) ProcessProbeResponse(status ProbeStatus, response *common.Message) error {
	if response != nil {
		defer response.Release()
	}
	if status != ProbeSuccess {
		return errors.Errorf("discovery %s", status)
	}
	if response == nil {
		return errors.New("discovery succeeded without a response")
	}
	if err := s.sec.learn(response.Security); err != nil {
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		return err
	}
	s.log.WithField("engineID", hex.EncodeToString(response.Security.EngineID)).Debug("discovered authoritative engine")
	return nil
}
