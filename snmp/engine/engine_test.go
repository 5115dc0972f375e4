package engine

import (
	"context"
	"testing"
	"time"

	assert "github.com/stretchr/testify/require"

	"github.com/damianoneill/snmpasync/snmp/common"
	"github.com/damianoneill/snmpasync/snmp/usm"
	"github.com/damianoneill/snmpasync/testutil"
)

const sysDescr = "1.3.6.1.2.1.1.1.0"

func mibView() map[string]*common.TypedValue {
	return map[string]*common.TypedValue{
		sysDescr:            {Type: common.OctetString, Value: []byte("test agent")},
		"1.3.6.1.2.1.1.3.0": {Type: common.TimeTicks, Value: uint32(4200)},
		"1.3.6.1.2.1.1.5.0": {Type: common.OctetString, Value: []byte("agent.example.com")},
	}
}

func v2cConfig(a *testutil.Agent) *Config {
	return &Config{Address: a.Addr(), Version: common.V2c, Community: "public", Timeout: 50 * time.Millisecond, Retries: 1}
}

var v3User = &usm.User{Name: "operator", AuthProtocol: usm.SHA, AuthPassword: "maplesyrup", PrivProtocol: usm.AES, PrivPassword: "maplesyrup"}

func v3Config(a *testutil.Agent) *Config {
	return &Config{Address: a.Addr(), Version: common.V3, User: v3User, Timeout: 100 * time.Millisecond, Retries: 1}
}

// Drives s until done reports true.
func pump(t *testing.T, s Session, done func() bool) {
	deadline := time.Now().Add(5 * time.Second)
	for !done() {
		assert.True(t, time.Now().Before(deadline), "session made no progress")
		fd, timeout := s.Readiness()
		readable, err := waitReadable(context.Background(), fd, timeout)
		assert.NoError(t, err)
		if readable {
			s.Multiplex(fd)
		} else {
			s.DriveTimeout()
		}
	}
}

type completion struct {
	op       int
	reqID    int32
	response *common.Message
}

func recorder(got *[]completion) CompletionHook {
	return func(op int, reqID int32, response common.MessageView) {
		*got = append(*got, completion{op: op, reqID: reqID, response: response.Clone()})
	}
}

func TestSendAndMultiplex(t *testing.T) {
	a := testutil.NewAgent(t, mibView())
	defer a.Close()

	s, err := Open(context.Background(), v2cConfig(a))
	assert.NoError(t, err)
	defer s.Close()

	var got []completion
	s.RegisterHook(recorder(&got))

	msg := common.NewGet().AddOID(common.MustParseOID(sysDescr))
	id, ok := s.Send(msg)
	assert.True(t, ok, "send failed: %v", s.Err())
	assert.False(t, msg.Owned(), "engine should own a sent message")

	pump(t, s, func() bool { return len(got) > 0 })
	assert.Len(t, got, 1)
	assert.Equal(t, OpReceivedMessage, got[0].op)
	assert.Equal(t, id, got[0].reqID)
	assert.True(t, msg.Released(), "request should be released on completion")

	resp := got[0].response
	defer resp.Release()
	assert.Equal(t, common.Response, resp.Kind)
	v := resp.Vars().First()
	assert.Equal(t, sysDescr, v.Name().String())
	tv, err := v.Value()
	assert.NoError(t, err)
	assert.Equal(t, "test agent", tv.String())
}

func TestTimeoutAfterRetries(t *testing.T) {
	a := testutil.NewAgent(t, mibView())
	defer a.Close()
	a.Silence(true)

	cfg := v2cConfig(a)
	cfg.Retries = 2
	s, err := Open(context.Background(), cfg)
	assert.NoError(t, err)
	defer s.Close()

	var got []completion
	s.RegisterHook(recorder(&got))

	msg := common.NewGet().AddOID(common.MustParseOID(sysDescr))
	id, ok := s.Send(msg)
	assert.True(t, ok)

	pump(t, s, func() bool { return len(got) > 0 })
	assert.Equal(t, OpTimedOut, got[0].op)
	assert.Equal(t, id, got[0].reqID)
	assert.Nil(t, got[0].response)
	assert.True(t, msg.Released())
	assert.Eventually(t, func() bool { return a.Requests() == 3 }, time.Second, 10*time.Millisecond)
}

func TestRetransmissionRecovers(t *testing.T) {
	a := testutil.NewAgent(t, mibView())
	defer a.Close()
	a.Drop(1)

	s, err := Open(context.Background(), v2cConfig(a))
	assert.NoError(t, err)
	defer s.Close()

	resp, err := s.SynchExchange(context.Background(), common.NewGet().AddOID(common.MustParseOID(sysDescr)))
	assert.NoError(t, err)
	defer resp.Release()
	assert.Equal(t, 2, a.Requests())
}

func TestSendFailureKeepsOwnership(t *testing.T) {
	a := testutil.NewAgent(t, mibView())
	defer a.Close()

	cfg := v2cConfig(a)
	cfg.Version = common.V1
	s, err := Open(context.Background(), cfg)
	assert.NoError(t, err)
	defer s.Close()

	msg := common.NewGetBulk(0, 10).AddOID(common.MustParseOID("1.3.6.1.2.1.1"))
	_, ok := s.Send(msg)
	assert.False(t, ok)
	assert.True(t, msg.Owned(), "caller should keep a message that was not sent")
	assert.Error(t, s.Err())
	msg.Release()
}

func TestSynchExchange(t *testing.T) {
	a := testutil.NewAgent(t, mibView())
	defer a.Close()

	tests := []struct {
		name    string
		version common.Version
		oid     string
		wantErr error
		want    string
	}{
		{name: "v2c", version: common.V2c, oid: sysDescr, want: "test agent"},
		{name: "v1", version: common.V1, oid: sysDescr, want: "test agent"},
		{name: "v2c no such object", version: common.V2c, oid: "1.3.6.1.4.1.99.0", want: "No such Object"},
		{name: "v1 no such name", version: common.V1, oid: "1.3.6.1.4.1.99.0", wantErr: &common.PacketError{Status: common.NoSuchName, Index: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := v2cConfig(a)
			cfg.Version = tt.version
			s, err := Open(context.Background(), cfg)
			assert.NoError(t, err)
			defer s.Close()

			msg := common.NewGet().AddOID(common.MustParseOID(tt.oid))
			resp, err := s.SynchExchange(context.Background(), msg)
			assert.True(t, msg.Released())
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				assert.Nil(t, resp)
				return
			}
			assert.NoError(t, err)
			defer resp.Release()
			tv, err := resp.Vars().First().Value()
			assert.NoError(t, err)
			assert.Equal(t, tt.want, tv.String())
		})
	}
}

func TestSynchExchangeTimeout(t *testing.T) {
	a := testutil.NewAgent(t, mibView())
	defer a.Close()
	a.Silence(true)

	s, err := Open(context.Background(), v2cConfig(a))
	assert.NoError(t, err)
	defer s.Close()

	_, err = s.SynchExchange(context.Background(), common.NewGet().AddOID(common.MustParseOID(sysDescr)))
	assert.ErrorIs(t, err, common.ErrTimeout)
}

func TestSynchExchangeCancelled(t *testing.T) {
	a := testutil.NewAgent(t, mibView())
	defer a.Close()
	a.Silence(true)

	cfg := v2cConfig(a)
	cfg.Timeout = time.Minute
	s, err := Open(context.Background(), cfg)
	assert.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	msg := common.NewGet().AddOID(common.MustParseOID(sysDescr))
	_, err = s.SynchExchange(ctx, msg)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, msg.Released())
	assert.Empty(t, s.(*udpSession).pending)

	// The session stays usable.
	a.Silence(false)
	resp, err := s.SynchExchange(context.Background(), common.NewGet().AddOID(common.MustParseOID(sysDescr)))
	assert.NoError(t, err)
	resp.Release()
}

func TestAbandon(t *testing.T) {
	a := testutil.NewAgent(t, mibView())
	defer a.Close()
	a.Silence(true)

	s, err := Open(context.Background(), v2cConfig(a))
	assert.NoError(t, err)
	defer s.Close()

	called := false
	s.RegisterHook(func(int, int32, common.MessageView) { called = true })

	msg := common.NewGet().AddOID(common.MustParseOID(sysDescr))
	id, ok := s.Send(msg)
	assert.True(t, ok)
	s.Abandon(id)
	assert.True(t, msg.Released())

	time.Sleep(120 * time.Millisecond)
	s.DriveTimeout()
	assert.False(t, called, "hook should not run for an abandoned request")
	// Abandoning an unknown request is harmless.
	s.Abandon(id)
}

func TestCloseReleasesPending(t *testing.T) {
	a := testutil.NewAgent(t, mibView())
	defer a.Close()
	a.Silence(true)

	s, err := Open(context.Background(), v2cConfig(a))
	assert.NoError(t, err)

	msg := common.NewGet().AddOID(common.MustParseOID(sysDescr))
	_, ok := s.Send(msg)
	assert.True(t, ok)
	assert.NoError(t, s.Close())
	assert.True(t, msg.Released())
	assert.NoError(t, s.Close())

	again := common.NewGet()
	_, ok = s.Send(again)
	assert.False(t, ok)
	assert.ErrorIs(t, s.Err(), errClosed)
	again.Release()
}

func TestV3Discovery(t *testing.T) {
	a := testutil.NewAgent(t, mibView(), testutil.WithUser(t, v3User))
	defer a.Close()

	s, err := Open(context.Background(), v3Config(a))
	assert.NoError(t, err)
	defer s.Close()

	get := common.NewGet().AddOID(common.MustParseOID(sysDescr))
	assert.True(t, s.NeedsProbe(get))

	var got []completion
	s.RegisterHook(recorder(&got))
	id, ok := s.SendProbe()
	assert.True(t, ok, "probe failed: %v", s.Err())
	pump(t, s, func() bool { return len(got) > 0 })
	assert.Equal(t, OpReceivedMessage, got[0].op)
	assert.Equal(t, id, got[0].reqID)
	assert.Equal(t, common.Response, got[0].response.Kind)
	assert.Equal(t, a.EngineID(), got[0].response.Security.EngineID)

	assert.NoError(t, s.ProcessProbeResponse(ProbeSuccess, got[0].response))
	assert.True(t, got[0].response.Released())
	assert.False(t, s.NeedsProbe(get))
	assert.Equal(t, 1, a.Probes())

	resp, err := s.SynchExchange(context.Background(), get)
	assert.NoError(t, err)
	defer resp.Release()
	assert.Equal(t, common.AuthPriv, resp.Security.AuthLevel)
	tv, err := resp.Vars().First().Value()
	assert.NoError(t, err)
	assert.Equal(t, "test agent", tv.String())
}

func TestV3ResynchronisesAfterReboot(t *testing.T) {
	a := testutil.NewAgent(t, mibView(), testutil.WithUser(t, v3User))
	defer a.Close()

	s, err := Open(context.Background(), v3Config(a))
	assert.NoError(t, err)
	defer s.Close()

	var got []completion
	s.RegisterHook(recorder(&got))
	_, ok := s.SendProbe()
	assert.True(t, ok)
	pump(t, s, func() bool { return len(got) > 0 })
	assert.NoError(t, s.ProcessProbeResponse(ProbeSuccess, got[0].response))

	a.Reboot()
	resp, err := s.SynchExchange(context.Background(), common.NewGet().AddOID(common.MustParseOID(sysDescr)))
	assert.NoError(t, err)
	defer resp.Release()
	assert.Equal(t, common.Response, resp.Kind)
	assert.Equal(t, int32(2), resp.Security.Boots)
}

func TestProcessProbeFailure(t *testing.T) {
	a := testutil.NewAgent(t, mibView(), testutil.WithUser(t, v3User))
	defer a.Close()

	s, err := Open(context.Background(), v3Config(a))
	assert.NoError(t, err)
	defer s.Close()

	assert.Error(t, s.ProcessProbeResponse(ProbeTimeout, nil))
	assert.Error(t, s.ProcessProbeResponse(ProbeSuccess, nil))
	assert.True(t, s.NeedsProbe(common.NewGet()))
}

func TestAuthoritativeSessionNeverProbes(t *testing.T) {
	a := testutil.NewAgent(t, mibView(), testutil.WithUser(t, v3User))
	defer a.Close()

	cfg := v3Config(a)
	cfg.Authoritative = true
	cfg.LocalEngineID = []byte{0x80, 0x00, 0x1f, 0x88, 0x04, 0x6c, 0x6f, 0x63}
	s, err := Open(context.Background(), cfg)
	assert.NoError(t, err)
	defer s.Close()

	assert.False(t, s.NeedsProbe(common.NewMessage(common.InformRequest)))
	assert.True(t, s.Info().Authoritative)

	cfg.LocalEngineID = nil
	_, err = Open(context.Background(), cfg)
	assert.Error(t, err)
}

func TestSharedTransport(t *testing.T) {
	a1 := testutil.NewAgent(t, mibView())
	defer a1.Close()
	a2 := testutil.NewAgent(t, map[string]*common.TypedValue{
		sysDescr: {Type: common.OctetString, Value: []byte("second agent")},
	})
	defer a2.Close()

	tr, err := NewTransport("udp4", "127.0.0.1:0", nil)
	assert.NoError(t, err)
	defer tr.Close()

	s1, err := tr.Open(v2cConfig(a1))
	assert.NoError(t, err)
	defer s1.Close()
	s2, err := tr.Open(v2cConfig(a2))
	assert.NoError(t, err)
	defer s2.Close()
	assert.False(t, s1.ThreadSafe())
	assert.Equal(t, tr.LocalAddr().String(), s1.Info().LocalName)

	_, err = tr.Open(v2cConfig(a1))
	assert.Error(t, err, "a second session with the same peer should be refused")

	var got1, got2 []completion
	s1.RegisterHook(recorder(&got1))
	s2.RegisterHook(recorder(&got2))
	_, ok := s1.Send(common.NewGet().AddOID(common.MustParseOID(sysDescr)))
	assert.True(t, ok)
	_, ok = s2.Send(common.NewGet().AddOID(common.MustParseOID(sysDescr)))
	assert.True(t, ok)

	pump(t, s1, func() bool { return len(got1) > 0 && len(got2) > 0 })
	for _, c := range []struct {
		got  []completion
		want string
	}{{got1, "test agent"}, {got2, "second agent"}} {
		tv, err := c.got[0].response.Vars().First().Value()
		assert.NoError(t, err)
		assert.Equal(t, c.want, tv.String())
		c.got[0].response.Release()
	}
}

func TestOwnSocketIsThreadSafe(t *testing.T) {
	a := testutil.NewAgent(t, mibView())
	defer a.Close()

	s, err := Open(context.Background(), v2cConfig(a))
	assert.NoError(t, err)
	defer s.Close()
	assert.True(t, s.ThreadSafe())
	assert.Equal(t, a.Addr(), s.Info().PeerName)
	assert.NotEmpty(t, s.Info().LocalName)
}

func TestParseCallbackOp(t *testing.T) {
	tests := []struct {
		op      int
		wantErr bool
	}{
		{op: OpReceivedMessage},
		{op: OpTimedOut},
		{op: OpSendFailed},
		{op: OpConnect},
		{op: OpDisconnect},
		{op: 0, wantErr: true},
		{op: 6, wantErr: true},
		{op: -1, wantErr: true},
	}
	for _, tt := range tests {
		op, err := ParseCallbackOp(tt.op)
		if tt.wantErr {
			assert.Equal(t, &common.InvalidCallbackOpError{Op: tt.op}, err)
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, CallbackOp(tt.op), op)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "no address", cfg: Config{Version: common.V2c}},
		{name: "unsupported version", cfg: Config{Address: "127.0.0.1:161", Version: 2}},
		{name: "v3 without user", cfg: Config{Address: "127.0.0.1:161", Version: common.V3}},
		{name: "v3 short password", cfg: Config{Address: "127.0.0.1:161", Version: common.V3,
			User: &usm.User{Name: "u", AuthProtocol: usm.MD5, AuthPassword: "short"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(context.Background(), &tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestWaitReadableCancellation(t *testing.T) {
	a := testutil.NewAgent(t, mibView())
	defer a.Close()

	s, err := Open(context.Background(), v2cConfig(a))
	assert.NoError(t, err)
	defer s.Close()
	fd, _ := s.Readiness()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, fd.WaitReadable(ctx), context.Canceled)

	ctx, cancel = context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	assert.ErrorIs(t, fd.WaitReadable(ctx), context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, fd.Pending())
	assert.NoError(t, fd.WaitWritable(context.Background()))

	// An interrupted wait leaves no stale deadline behind.
	_, ok := s.Send(common.NewGet().AddOID(common.MustParseOID(sysDescr)))
	assert.True(t, ok)
	assert.NoError(t, fd.WaitReadable(context.Background()))
	assert.True(t, fd.Pending())
}

func TestReportReason(t *testing.T) {
	msg := common.NewMessage(common.Report)
	msg.AddOID(usmStatsNotInTimeWindows)
	assert.Equal(t, "not in time window", ReportReason(msg.View()))
	msg.Release()

	other := common.NewMessage(common.Report).AddOID(common.MustParseOID("1.3.6.1.2.1.1.1.0"))
	assert.Equal(t, "", ReportReason(other.View()))
	other.Release()
}
